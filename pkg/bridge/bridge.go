// Package bridge drives a MultiWii flight controller on behalf of a ground
// station. All bridge state is owned by the goroutine calling Tick.
package bridge

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/stronnag/mwmav/pkg/msp"
)

type Config struct {
	FailsafeMode    FailsafeMode
	FailsafeTimeout int // seconds
	InitTimeout     time.Duration
}

type Bridge struct {
	st    State
	ch    Channel
	clock Clock
	log   hclog.Logger
	cfg   Config

	sched *Scheduler

	Modes    *Modes
	Watchdog *Watchdog
	Failsafe *Failsafe
	Panic    *Panic

	params []paramDef
	pidst  int
	pidok  bool
}

func New(ch Channel, cfg Config, log hclog.Logger) *Bridge {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	b := &Bridge{ch: ch, clock: systemClock{}, log: log, cfg: cfg}
	b.st.RC = initialRC()
	b.st.FC = FCNoConnection
	b.st.Failsafe.Mode = cfg.FailsafeMode
	b.st.Failsafe.Timeout = cfg.FailsafeTimeout

	b.Modes = &Modes{st: &b.st, ch: ch, log: log.Named("modes")}
	b.Panic = &Panic{st: &b.st, ch: ch, modes: b.Modes, log: log.Named("panic")}
	b.Failsafe = &Failsafe{st: &b.st, modes: b.Modes, panic: b.Panic, disarm: b.Disarm, log: log.Named("failsafe")}
	b.Watchdog = &Watchdog{st: &b.st, ch: ch, failsafe: b.Failsafe}

	b.sched = NewScheduler(LoopModulus)
	for _, t := range []Task{
		{"feedrc", 1, b.Watchdog.Tick},
		{"panic", 10, b.Panic.Tick},
		{"standby", 10, b.standby},
		{"altitude", 50, b.altitudeRefresh},
		{"attitude", 10, b.attitudeRefresh},
		{"gps", 50, b.gpsRefresh},
		{"keepalive", 100, b.keepalive},
		{"box", 100, b.boxRefresh},
		{"analog", 100, b.analogRefresh},
		{"failsafe", 50, b.Failsafe.Tick},
	} {
		if err := b.sched.Register(t.Name, t.Divisor, t.Run); err != nil {
			panic(err)
		}
	}
	b.buildParams()
	return b
}

// SetClock replaces the wall clock used by the handshake.
func (b *Bridge) SetClock(c Clock) {
	b.clock = c
}

// Tick advances the bridge by one base tick (LoopMS).
func (b *Bridge) Tick() {
	b.sched.Tick()
}

// State returns a copy of the bridge state.
func (b *Bridge) State() State {
	st := b.st
	if b.st.Home != nil {
		h := *b.st.Home
		st.Home = &h
	}
	st.Boxes.IDs = append([]uint8(nil), b.st.Boxes.IDs...)
	return st
}

// ManualControl sets the sticks from the ground station, in µs.
func (b *Bridge) ManualControl(throttle, yaw, pitch, roll uint16) bool {
	return b.Watchdog.ManualControl(throttle, yaw, pitch, roll)
}

// Arm and Disarm use the stick combination, then ask for status so the
// armed state is seen sooner.
func (b *Bridge) Arm() {
	b.log.Info("arm")
	b.ch.Send(msp.STICKCOMBO, []byte{msp.STICK_ARM})
	b.ch.Send(msp.STATUS, nil)
}

func (b *Bridge) Disarm() {
	b.log.Info("disarm")
	b.ch.Send(msp.STICKCOMBO, []byte{msp.STICK_DISARM})
	b.ch.Send(msp.STATUS, nil)
}

func (b *Bridge) EepromWrite() {
	b.log.Info("eeprom write")
	b.ch.Send(msp.EEPROM_WRITE, nil)
}

func (b *Bridge) StartPanic() error {
	return b.Panic.Start()
}

func (b *Bridge) InitiateFailsafe() {
	b.Failsafe.Initiate()
}

func (b *Bridge) ResetFailsafe() {
	b.Failsafe.Reset()
}

func (b *Bridge) SetFailsafeMode(m FailsafeMode) {
	b.Failsafe.SetMode(m)
}

func (b *Bridge) SetFailsafeTimeout(secs int) {
	b.Failsafe.SetTimeout(secs)
}

func (b *Bridge) ReturnHome() error {
	return b.Modes.EngageReturnHome()
}

func (b *Bridge) Hold() error {
	return b.Modes.EngageHold()
}

func (b *Bridge) ToggleMode(mode uint8) error {
	return b.Modes.Toggle(mode)
}

// ThrottlePercent is the throttle currently fed to the FC.
func (b *Bridge) ThrottlePercent() uint16 {
	t := b.st.RC.Throttle
	if t <= RCMin {
		return 0
	}
	return (t - RCMin) / 10
}
