package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/stronnag/mwmav/pkg/bridge"
	"github.com/stronnag/mwmav/pkg/fclink"
	"github.com/stronnag/mwmav/pkg/gcs"
	"github.com/stronnag/mwmav/pkg/status"
)

var (
	device      = flag.String("d", "", "FC device (/dev/ttyUSB0[@baud], tcp://host:port, udp://local:port/remote:port)")
	baud        = flag.Int("b", 115200, "Baud rate")
	target      = flag.String("t", "", "Ground station host[:port]")
	gcsPort     = flag.Int("p", 14550, "Ground station port when -t has none")
	listen      = flag.Int("l", 0, "Local UDP port to accept the ground station on")
	sysid       = flag.Int("sysid", 1, "MAVLink system id")
	fsMode      = flag.String("fs-mode", "default", "Failsafe mode (default, disarm, rth)")
	fsTimeout   = flag.Int("fs-timeout", 10, "Failsafe timeout (seconds)")
	initTimeout = flag.Duration("init-timeout", 30*time.Second, "Handshake timeout per request, 0 waits forever")
	httpAddr    = flag.String("http", "", "Status server listen address")
	keys        = flag.Bool("k", false, "Keyboard console")
	logLevel    = flag.String("log-level", "info", "Log level")
	debug       = flag.Bool("debug", false, "Debug logging")
)

// gcsTarget adds the default port to -t. With neither -t nor -l the ground
// station is assumed to be local.
func gcsTarget() string {
	t := *target
	if t == "" {
		if *listen != 0 {
			return ""
		}
		t = "127.0.0.1"
	}
	if _, _, err := net.SplitHostPort(t); err != nil {
		t = net.JoinHostPort(t, strconv.Itoa(*gcsPort))
	}
	return t
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level := hclog.LevelFromString(*logLevel)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	if *debug {
		level = hclog.Debug
	}
	l := hclog.New(&hclog.LoggerOptions{Name: "mwmav", Level: level, Output: os.Stderr})

	if err := run(l); err != nil {
		l.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// newScheduler registers the top-level tasks in order.
func newScheduler(tasks []bridge.Task) (*bridge.Scheduler, error) {
	sched := bridge.NewScheduler(bridge.LoopModulus)
	for _, t := range tasks {
		if err := sched.Register(t.Name, t.Divisor, t.Run); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func run(l hclog.Logger) error {
	mode, err := bridge.ParseFailsafeMode(*fsMode)
	if err != nil {
		return err
	}
	if *sysid < 1 || *sysid > 255 {
		return fmt.Errorf("invalid system id %d", *sysid)
	}

	dd, err := fclink.CheckDevice(*device, *baud)
	if err != nil {
		return err
	}
	l.Info("using device", "name", dd.Name, "param", dd.Param)
	link, err := fclink.Open(dd, l.Named("link"))
	if err != nil {
		return err
	}
	defer link.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bridge.New(link, bridge.Config{
		FailsafeMode:    mode,
		FailsafeTimeout: *fsTimeout,
		InitTimeout:     *initTimeout,
	}, l.Named("bridge"))
	if err := b.Init(ctx); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	gcfg := gcs.Config{Target: gcsTarget(), SystemID: uint8(*sysid)}
	if *listen != 0 {
		gcfg.Listen = fmt.Sprintf(":%d", *listen)
	}
	g, err := gcs.Open(gcfg, b, l.Named("gcs"))
	if err != nil {
		return err
	}
	defer g.Close()
	l.Info("ground station", "target", gcfg.Target, "listen", gcfg.Listen)

	tasks := []bridge.Task{
		{Name: "gcs-inbound", Divisor: 1, Run: g.Inbound},
		{Name: "bridge", Divisor: 1, Run: b.Tick},
		{Name: "gcs-stream", Divisor: 1, Run: g.Stream},
	}

	if *keys {
		c, err := openConsole(l.Named("console"))
		if err != nil {
			return fmt.Errorf("console: %w", err)
		}
		defer c.Close()
		tasks = append(tasks, bridge.Task{Name: "console", Divisor: 1, Run: func() { c.drain(b, stop) }})
	}

	if *httpAddr != "" {
		srv := status.New(l.Named("status"))
		defer srv.Close()
		go func() {
			if err := srv.ListenAndServe(*httpAddr); err != nil {
				l.Error("status server", "error", err)
			}
		}()
		tasks = append(tasks, bridge.Task{Name: "status", Divisor: bridge.LoopModulus, Run: func() { srv.Publish(b.Snapshot()) }})
	}

	sched, err := newScheduler(tasks)
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-link.Done():
			if err := link.Err(); err != nil {
				l.Error("link closed", "error", err)
			}
			stop()
		case <-ctx.Done():
		}
	}()

	l.Info("running", "tick", bridge.LoopMS*time.Millisecond)
	sched.Run(ctx, bridge.LoopMS*time.Millisecond)
	l.Info("shutting down")
	return nil
}
