package fclink

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/sasha-s/go-deadlock"
	"github.com/tarm/serial"

	"github.com/stronnag/mwmav/pkg/msp"
)

const (
	comboDuration = time.Second
	comboInterval = 50 * time.Millisecond
)

type entry struct {
	data  []byte
	fresh bool
}

// Link is the FC channel: requests are written fire-and-forget, replies are
// decoded by a reader goroutine into a per-command cache. There is no
// correlation between a request and a reply other than the command id.
type Link struct {
	sd  io.ReadWriteCloser
	log hclog.Logger

	mu    deadlock.Mutex
	cache map[uint16]*entry
	stats msp.LocalStatus

	wmu        deadlock.Mutex
	comboUntil time.Time
	comboRC    []byte
	comboDur   time.Duration
	comboTick  time.Duration

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// New wraps an open port and starts the reader.
func New(sd io.ReadWriteCloser, log hclog.Logger) *Link {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	l := &Link{
		sd:        sd,
		log:       log,
		cache:     make(map[uint16]*entry),
		comboDur:  comboDuration,
		comboTick: comboInterval,
		done:      make(chan struct{}),
	}
	go l.read_msp()
	return l
}

// Open opens the described device and returns a running Link.
func Open(dd DevDescription, log hclog.Logger) (*Link, error) {
	var sd io.ReadWriteCloser
	var err error

	switch dd.Klass {
	case DevClass_SERIAL:
		c := &serial.Config{Name: dd.Name, Baud: dd.Param}
		sd, err = serial.OpenPort(c)
	case DevClass_TCP:
		remote := fmt.Sprintf("%s:%d", dd.Name, dd.Param)
		var addr *net.TCPAddr
		addr, err = net.ResolveTCPAddr("tcp", remote)
		if err == nil {
			sd, err = net.DialTCP("tcp", nil, addr)
		}
	case DevClass_UDP:
		sd, err = openUDP(dd)
	default:
		return nil, fmt.Errorf("%s: %w", dd.Name, ErrUnsupportedDevice)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dd.Name, err)
	}
	return New(sd, log), nil
}

func openUDP(dd DevDescription) (*net.UDPConn, error) {
	var laddr, raddr *net.UDPAddr
	var err error
	if dd.Param1 != 0 {
		raddr, err = net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", dd.Name1, dd.Param1))
		if err == nil {
			laddr, err = net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", dd.Name, dd.Param))
		}
	} else {
		if dd.Name == "" {
			laddr, err = net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", dd.Name, dd.Param))
		} else {
			raddr, err = net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", dd.Name, dd.Param))
		}
	}
	if err != nil {
		return nil, err
	}
	return net.DialUDP("udp", laddr, raddr)
}

func (l *Link) read_msp() {
	var dec msp.Decoder
	inp := make([]byte, 256)
	defer l.finish()
	for {
		nb, err := l.sd.Read(inp)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				l.log.Error("read", "error", err)
				l.mu.Lock()
				l.err = err
				l.mu.Unlock()
			}
			return
		}
		for i := 0; i < nb; i++ {
			fr, done, err := dec.Feed(inp[i])
			if err != nil {
				l.mu.Lock()
				l.stats.CrcErrors++
				l.mu.Unlock()
				l.log.Debug("CRC error")
				continue
			}
			if done {
				l.store(fr)
			}
		}
	}
}

func (l *Link) store(fr msp.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats.RxCount++
	if !fr.OK {
		l.stats.ErrReplies++
		l.log.Debug("error reply", "cmd", msp.CmdName(fr.Cmd))
		return
	}
	l.put(fr.Cmd, fr.Payload)
}

// put must be called with mu held.
func (l *Link) put(cmd uint16, data []byte) {
	e, ok := l.cache[cmd]
	if !ok {
		e = &entry{}
		l.cache[cmd] = e
	}
	e.data = data
	e.fresh = true
}

func (l *Link) finish() {
	l.closeOnce.Do(func() { close(l.done) })
}

// Send writes a request. Write errors are logged and counted, never returned.
func (l *Link) Send(cmd uint16, payload []byte) {
	switch cmd {
	case msp.LOCALSTATUS:
		l.mu.Lock()
		l.put(cmd, l.stats.Serialise())
		l.mu.Unlock()
		return
	case msp.STICKCOMBO:
		if len(payload) > 0 {
			l.startCombo(payload[0])
		}
		return
	case msp.SET_RAW_RC:
		l.wmu.Lock()
		busy := time.Now().Before(l.comboUntil)
		l.wmu.Unlock()
		if busy {
			return
		}
	}
	l.write(cmd, payload)
}

func (l *Link) write(cmd uint16, payload []byte) {
	buf, err := msp.Encode(cmd, payload)
	if err != nil {
		l.log.Warn("encode", "cmd", msp.CmdName(cmd), "error", err)
		return
	}
	l.wmu.Lock()
	_, err = l.sd.Write(buf)
	l.wmu.Unlock()
	l.mu.Lock()
	if err == nil {
		l.stats.TxCount++
	}
	l.mu.Unlock()
	if err != nil {
		l.log.Warn("write", "cmd", msp.CmdName(cmd), "error", err)
	}
}

func comboSticks(combo byte) msp.RawRC {
	rc := msp.RawRC{Throttle: 1000, Yaw: 1500, Pitch: 1500, Roll: 1500, Aux: [4]uint16{1500, 1500, 1500, 1500}}
	switch combo {
	case msp.STICK_ARM:
		rc.Yaw = 2000
	case msp.STICK_DISARM:
		rc.Yaw = 1000
	}
	return rc
}

// startCombo holds the sticks in the requested combination for a while;
// raw RC from the caller is discarded meanwhile.
func (l *Link) startCombo(combo byte) {
	payload := comboSticks(combo).Serialise()
	l.wmu.Lock()
	running := time.Now().Before(l.comboUntil)
	l.comboUntil = time.Now().Add(l.comboDur)
	l.comboRC = payload
	l.wmu.Unlock()
	l.log.Debug("stick combo", "combo", combo)
	l.write(msp.SET_RAW_RC, payload)
	if running {
		return
	}
	go func() {
		ticker := time.NewTicker(l.comboTick)
		defer ticker.Stop()
		for {
			select {
			case <-l.done:
				return
			case <-ticker.C:
			}
			l.wmu.Lock()
			over := !time.Now().Before(l.comboUntil)
			payload := l.comboRC
			l.wmu.Unlock()
			if over {
				return
			}
			l.write(msp.SET_RAW_RC, payload)
		}
	}()
}

// Latest returns the most recent reply for cmd, however old.
func (l *Link) Latest(cmd uint16) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.cache[cmd]; ok {
		return e.data, true
	}
	return nil, false
}

// Scan returns the reply for cmd only if one arrived since the previous
// Scan of cmd. Calling Scan and ignoring the result invalidates the entry.
func (l *Link) Scan(cmd uint16) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.cache[cmd]; ok && e.fresh {
		e.fresh = false
		return e.data, true
	}
	return nil, false
}

func (l *Link) Stats() msp.LocalStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Done is closed when the reader stops.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// Err reports why the reader stopped, nil on a clean close.
func (l *Link) Err() error {
	<-l.done
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Link) Close() error {
	err := l.sd.Close()
	l.finish()
	return err
}
