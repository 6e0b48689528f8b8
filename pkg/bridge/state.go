package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stronnag/mwmav/pkg/msp"
)

// Base tick and derived tick counts.
const (
	LoopMS      = 10
	LoopModulus = 100

	RCMin     = 1000
	RCNeutral = 1500
	RCMax     = 2000

	rcTimeout     = 1000 / LoopMS // manual control freshness window
	fsFeed        = 1100 / LoopMS // failsafe keeps RC fed this long per 500ms tick
	panicFeed     = 3500 / LoopMS
	panicClimb    = 1600
	hoverThrottle = 1475
	panicLast     = 30
	rthGrace      = 3 * 2 // failsafe ticks allowed for RTH to engage
	mwTimeout     = 3     // missed status replies before no-connection

	boxOn = 0xffff
)

var (
	ErrUnsupportedMode     = errors.New("mode not supported by FC")
	ErrPrerequisiteMissing = errors.New("prerequisite missing")
	ErrHandshakeTimeout    = errors.New("FC did not respond")
	ErrFailsafeActive      = errors.New("failsafe active")
	ErrUnknownParam        = errors.New("unknown parameter")
)

// Channel is the FC link: fire-and-forget requests, the latest cached reply
// per command, and a scan that only succeeds for replies that arrived since
// the previous scan of that command.
type Channel interface {
	Send(cmd uint16, payload []byte)
	Latest(cmd uint16) ([]byte, bool)
	Scan(cmd uint16) ([]byte, bool)
}

type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type FCState int

const (
	FCStandby FCState = iota
	FCArmed
	FCNoConnection
)

func (s FCState) String() string {
	switch s {
	case FCStandby:
		return "standby"
	case FCArmed:
		return "armed"
	case FCNoConnection:
		return "no connection"
	}
	return "unknown"
}

type FailsafeMode uint8

const (
	FailsafeDefault FailsafeMode = iota
	FailsafeDisarm
	FailsafeReturnHome
)

func (m FailsafeMode) String() string {
	switch m {
	case FailsafeDefault:
		return "default"
	case FailsafeDisarm:
		return "disarm"
	case FailsafeReturnHome:
		return "rth"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

func ParseFailsafeMode(s string) (FailsafeMode, error) {
	switch strings.ToLower(s) {
	case "default", "0", "":
		return FailsafeDefault, nil
	case "disarm", "1":
		return FailsafeDisarm, nil
	case "rth", "returnhome", "home", "2":
		return FailsafeReturnHome, nil
	}
	return FailsafeDefault, fmt.Errorf("invalid failsafe mode %q", s)
}

// BoxConfig is indexed by permanent box id. IDs is the FC's own box order,
// which is the order of MSP_BOX / MSP_SET_BOX words and of status flag bits.
type BoxConfig struct {
	IDs       []uint8
	Supported [msp.CHECKBOXITEMS]bool
	Value     [msp.CHECKBOXITEMS]uint16
}

func (c *BoxConfig) setIDs(ids []uint8) {
	c.IDs = ids
	c.Supported = [msp.CHECKBOXITEMS]bool{}
	for _, id := range ids {
		if int(id) < len(c.Supported) {
			c.Supported[id] = true
		}
	}
}

func (c *BoxConfig) index(mode uint8) int {
	for i, id := range c.IDs {
		if id == mode {
			return i
		}
	}
	return -1
}

func (c *BoxConfig) applyValues(vals []uint16) {
	for i, v := range vals {
		if i < len(c.IDs) && int(c.IDs[i]) < len(c.Value) {
			c.Value[c.IDs[i]] = v
		}
	}
}

func (c *BoxConfig) values() []uint16 {
	vals := make([]uint16, len(c.IDs))
	for i, id := range c.IDs {
		if int(id) < len(c.Value) {
			vals[i] = c.Value[id]
		}
	}
	return vals
}

type Home struct {
	Lat     int32
	Lon     int32
	AltHold int32
}

type FailsafeState struct {
	Active  bool
	Mode    FailsafeMode
	Counter int // failsafe ticks (500ms) in this episode
	Timeout int // seconds
	// Fallback is set once the episode has deferred to the FC's own failsafe.
	Fallback bool
}

type PanicState struct {
	Active bool
	Phase  int
}

// State is everything the bridge knows. It is owned by the scheduler
// goroutine; nothing in it is safe for concurrent access.
type State struct {
	RC       msp.RawRC
	Suppress bool
	RCCount  int

	Ident  msp.Ident
	Status msp.Status
	FC     FCState
	Boxes  BoxConfig

	Home           *Home
	HeadingInitial int16

	Failsafe FailsafeState
	Panic    PanicState

	missed int
}

func initialRC() msp.RawRC {
	return msp.RawRC{
		Throttle: RCMin,
		Yaw:      RCNeutral,
		Pitch:    RCNeutral,
		Roll:     RCNeutral,
		Aux:      [4]uint16{RCNeutral, RCNeutral, RCNeutral, RCNeutral},
	}
}

// neutralise centres every stick except throttle.
func (s *State) neutralise() {
	s.RC.Yaw = RCNeutral
	s.RC.Pitch = RCNeutral
	s.RC.Roll = RCNeutral
	for i := range s.RC.Aux {
		s.RC.Aux[i] = RCNeutral
	}
}

func (s *State) boxActive(mode uint8) bool {
	i := s.Boxes.index(mode)
	if i < 0 || i > 31 {
		return false
	}
	return s.Status.Flag&(1<<uint(i)) != 0
}
