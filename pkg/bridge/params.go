package bridge

import (
	"fmt"
	"strings"

	"github.com/stronnag/mwmav/pkg/msp"
)

type Param struct {
	Index int
	Name  string
	Value float32
}

type paramDef struct {
	name string
	get  func() float32
	set  func(float32) (float32, error)
}

func noCache(cmd uint16) error {
	return fmt.Errorf("%s not read: %w", msp.CmdName(cmd), ErrPrerequisiteMissing)
}

// buildParams lays out the parameter table; RTH_ALT is only offered when
// the FC has GPS.
func (b *Bridge) buildParams() {
	var defs []paramDef
	for j, pn := range msp.PidNames {
		for k, suffix := range []string{"P", "I", "D"} {
			j, k := j, k
			defs = append(defs, paramDef{
				name: strings.ToUpper(pn) + "_" + suffix,
				get: func() float32 {
					p, err := msp.ParsePids(b.latest(msp.PID))
					if err != nil {
						return 0
					}
					return float32(pidTerm(&p[j], k))
				},
				set: func(v float32) (float32, error) {
					p, err := msp.ParsePids(b.latest(msp.PID))
					if err != nil {
						return 0, noCache(msp.PID)
					}
					t := pidTermPtr(&p[j], k)
					*t = toU8(v)
					b.ch.Send(msp.SET_PID, p.Serialise())
					b.PidRefresh(true)
					b.PidRefresh(false)
					return float32(*t), nil
				},
			})
		}
	}
	for j, rn := range msp.RcTuningNames {
		j := j
		defs = append(defs, paramDef{
			name: rn,
			get: func() float32 {
				r, err := msp.ParseRcTuning(b.latest(msp.RC_TUNING))
				if err != nil {
					return 0
				}
				return float32(r[j])
			},
			set: func(v float32) (float32, error) {
				r, err := msp.ParseRcTuning(b.latest(msp.RC_TUNING))
				if err != nil {
					return 0, noCache(msp.RC_TUNING)
				}
				r[j] = toU8(v)
				b.ch.Send(msp.SET_RC_TUNING, r.Serialise())
				b.ch.Send(msp.RC_TUNING, nil)
				return float32(r[j]), nil
			},
		})
	}
	defs = append(defs, paramDef{
		name: "FS_THROTTLE",
		get: func() float32 {
			m, err := msp.ParseMisc(b.latest(msp.MISC))
			if err != nil {
				return 0
			}
			return float32(m.FailsafeThrottle)
		},
		set: func(v float32) (float32, error) {
			m, err := msp.ParseMisc(b.latest(msp.MISC))
			if err != nil {
				return 0, noCache(msp.MISC)
			}
			m.FailsafeThrottle = clampRC(toU16(v))
			b.ch.Send(msp.SET_MISC, m.Serialise())
			b.ch.Send(msp.MISC, nil)
			return float32(m.FailsafeThrottle), nil
		},
	})
	if b.st.Status.HasGPS() {
		defs = append(defs, paramDef{
			name: "RTH_ALT",
			get: func() float32 {
				n, err := msp.ParseNavConfig(b.latest(msp.NAV_CONFIG))
				if err != nil {
					return 0
				}
				return float32(n.RthAltitude)
			},
			set: func(v float32) (float32, error) {
				n, err := msp.ParseNavConfig(b.latest(msp.NAV_CONFIG))
				if err != nil {
					return 0, noCache(msp.NAV_CONFIG)
				}
				n.RthAltitude = toU16(v)
				b.ch.Send(msp.SET_NAV_CONFIG, n.Serialise())
				b.ch.Send(msp.NAV_CONFIG, nil)
				return float32(n.RthAltitude), nil
			},
		})
	}
	defs = append(defs,
		paramDef{
			name: "FS_MODE",
			get:  func() float32 { return float32(b.st.Failsafe.Mode) },
			set: func(v float32) (float32, error) {
				m := FailsafeMode(toU8(v))
				if m > FailsafeReturnHome {
					return 0, fmt.Errorf("FS_MODE %v: out of range", v)
				}
				b.Failsafe.SetMode(m)
				return float32(m), nil
			},
		},
		paramDef{
			name: "FS_TIMEOUT",
			get:  func() float32 { return float32(b.st.Failsafe.Timeout) },
			set: func(v float32) (float32, error) {
				b.Failsafe.SetTimeout(int(toU16(v)))
				return float32(b.st.Failsafe.Timeout), nil
			},
		},
	)
	b.params = defs
}

func pidTerm(p *msp.PidItem, k int) uint8 {
	return *pidTermPtr(p, k)
}

func pidTermPtr(p *msp.PidItem, k int) *uint8 {
	switch k {
	case 0:
		return &p.P
	case 1:
		return &p.I
	}
	return &p.D
}

func toU8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

func toU16(v float32) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 65535:
		return 65535
	}
	return uint16(v + 0.5)
}

func (b *Bridge) ParamCount() int {
	return len(b.params)
}

func (b *Bridge) ParamAt(i int) (Param, bool) {
	if i < 0 || i >= len(b.params) {
		return Param{}, false
	}
	d := b.params[i]
	return Param{Index: i, Name: d.name, Value: d.get()}, true
}

// ParamIndex returns -1 for an unknown name.
func (b *Bridge) ParamIndex(name string) int {
	for i, d := range b.params {
		if d.name == name {
			return i
		}
	}
	return -1
}

// SetParam writes to the FC (or the local failsafe settings) and returns
// the value as written. The cached FC value follows once the refresh arrives.
func (b *Bridge) SetParam(name string, v float32) (Param, error) {
	i := b.ParamIndex(name)
	if i < 0 {
		return Param{}, fmt.Errorf("%s: %w", name, ErrUnknownParam)
	}
	nv, err := b.params[i].set(v)
	if err != nil {
		return Param{}, err
	}
	return Param{Index: i, Name: name, Value: nv}, nil
}

// PidRefresh is polled before a parameter list is sent. A reset invalidates
// the cached PIDs; the next call requests them and later calls report
// whether a fresh reply has arrived.
func (b *Bridge) PidRefresh(reset bool) bool {
	if reset {
		b.pidst = 0
		b.pidok = false
	}
	switch b.pidst {
	case 0:
		if !reset {
			b.ch.Scan(msp.PID)
			b.ch.Send(msp.PID, nil)
			b.pidst = 1
		}
	case 1:
		if _, ok := b.ch.Scan(msp.PID); ok {
			b.pidok = true
			b.pidst = 2
		}
	}
	return b.pidok
}
