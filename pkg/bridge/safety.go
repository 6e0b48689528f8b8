package bridge

import (
	"github.com/hashicorp/go-hclog"

	"github.com/stronnag/mwmav/pkg/msp"
)

// Watchdog feeds the current sticks to the FC while manual control is fresh.
// When nothing is fed the FC's own failsafe applies.
type Watchdog struct {
	st       *State
	ch       Channel
	failsafe *Failsafe
}

func (w *Watchdog) Tick() {
	if w.st.RCCount == 0 {
		return
	}
	w.st.RCCount--
	w.ch.Send(msp.SET_RAW_RC, w.st.RC.Serialise())
	if w.st.RCCount == 0 {
		w.failsafe.Initiate()
	}
}

func clampRC(v uint16) uint16 {
	if v < RCMin {
		return RCMin
	}
	if v > RCMax {
		return RCMax
	}
	return v
}

// ManualControl is discarded while the safety logic owns the sticks.
func (w *Watchdog) ManualControl(throttle, yaw, pitch, roll uint16) bool {
	if w.st.Suppress {
		return false
	}
	w.st.RC.Throttle = clampRC(throttle)
	w.st.RC.Yaw = clampRC(yaw)
	w.st.RC.Pitch = clampRC(pitch)
	w.st.RC.Roll = clampRC(roll)
	w.st.RCCount = rcTimeout
	return true
}

// Failsafe runs on a 500ms tick once initiated.
type Failsafe struct {
	st     *State
	modes  *Modes
	panic  *Panic
	disarm func()
	log    hclog.Logger
}

func (f *Failsafe) Initiate() {
	fs := &f.st.Failsafe
	if fs.Active {
		return
	}
	fs.Active = true
	fs.Counter = 1
	fs.Fallback = false
	f.log.Warn("failsafe initiated", "mode", fs.Mode)
}

// Reset ends the episode and restores neutral sticks with the navigation
// boxes off.
func (f *Failsafe) Reset() {
	fs := &f.st.Failsafe
	if fs.Active {
		f.log.Info("failsafe reset")
	}
	fs.Active = false
	fs.Counter = 0
	fs.Fallback = false
	f.st.Suppress = false
	f.modes.Reset()
}

// clear forgets the episode without touching sticks or boxes.
func (f *Failsafe) clear() {
	fs := &f.st.Failsafe
	if fs.Active {
		f.log.Info("failsafe cleared")
	}
	fs.Active = false
	fs.Counter = 0
	fs.Fallback = false
	f.st.Suppress = false
}

func (f *Failsafe) SetMode(m FailsafeMode) {
	f.st.Failsafe.Mode = m
	f.log.Info("failsafe mode", "mode", m)
}

func (f *Failsafe) SetTimeout(secs int) {
	if secs < 0 {
		secs = 0
	}
	f.st.Failsafe.Timeout = secs
	f.log.Info("failsafe timeout", "seconds", secs)
}

// fallback hands control to the FC by no longer feeding RC.
func (f *Failsafe) fallback(why string) {
	f.st.RCCount = 0
	if !f.st.Failsafe.Fallback {
		f.st.Failsafe.Fallback = true
		f.log.Warn("failsafe deferred to FC", "reason", why)
	}
}

func (f *Failsafe) Tick() {
	fs := &f.st.Failsafe
	if !fs.Active {
		return
	}
	f.panic.Stop()
	f.st.Suppress = true

	if fs.Mode == FailsafeDefault {
		f.fallback("default mode")
		return
	}
	ceiling := fs.Timeout * 2
	if fs.Counter >= ceiling {
		f.fallback("timeout")
		return
	}
	f.st.RCCount = fsFeed
	fs.Counter++

	switch fs.Mode {
	case FailsafeDisarm:
		if f.st.FC == FCArmed {
			f.disarm()
		}
		fs.Counter = ceiling
	case FailsafeReturnHome:
		if f.modes.IsReturnHome() {
			return
		}
		if fs.Counter >= rthGrace {
			f.fallback("return home not engaged")
			return
		}
		if err := f.modes.EngageReturnHome(); err != nil {
			f.log.Warn("return home", "error", err)
			f.fallback("return home failed")
		}
	}
}

// Panic is the recovery sequence: level and climb, restore heading, settle
// to hover, then hold.
type Panic struct {
	st    *State
	ch    Channel
	modes *Modes
	log   hclog.Logger
}

func (p *Panic) Start() error {
	if p.st.Failsafe.Active {
		return ErrFailsafeActive
	}
	if p.st.Panic.Active {
		return nil
	}
	p.st.Panic.Active = true
	p.st.Panic.Phase = 0
	p.log.Warn("panic started")
	return nil
}

func (p *Panic) Stop() {
	if !p.st.Panic.Active {
		return
	}
	p.st.Suppress = false
	p.st.RC.Throttle = hoverThrottle
	p.st.Boxes.Value[msp.BOXBARO] = 0
	p.st.Boxes.Value[msp.BOXGPSHOLD] = 0
	p.st.Panic.Active = false
	p.st.Panic.Phase = 0
	p.log.Info("panic stopped")
}

func (p *Panic) Tick() {
	ps := &p.st.Panic
	if !ps.Active {
		ps.Phase = 0
		return
	}
	switch {
	case ps.Phase < 5:
		p.st.neutralise()
		p.st.RC.Throttle = panicClimb
		p.st.Suppress = true
		p.st.RCCount = panicFeed
		if p.modes.Supported(msp.BOXHORIZON) {
			p.st.Boxes.Value[msp.BOXHORIZON] = boxOn
		}
		p.modes.push()
		p.ch.Send(msp.SET_HEAD, msp.SerialiseHead(p.st.HeadingInitial))
	case ps.Phase == 25:
		p.st.RC.Throttle = hoverThrottle
	case ps.Phase == panicLast:
		if err := p.modes.EngageHold(); err != nil {
			p.log.Warn("hold", "error", err)
		}
	}
	ps.Phase++
	if ps.Phase > panicLast {
		p.st.Suppress = false
		ps.Active = false
		ps.Phase = 0
		p.log.Info("panic complete")
	}
}
