package bridge

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/stronnag/mwmav/pkg/msp"
)

// Modes is the box controller. Box activation words are held locally and
// pushed to the FC with MSP_SET_BOX.
type Modes struct {
	st  *State
	ch  Channel
	log hclog.Logger
}

func unsupported(mode uint8) error {
	name := msp.BoxName(mode)
	if name == "" {
		name = fmt.Sprintf("box %d", mode)
	}
	return fmt.Errorf("%s: %w", name, ErrUnsupportedMode)
}

func (m *Modes) Supported(mode uint8) bool {
	return int(mode) < len(m.st.Boxes.Supported) && m.st.Boxes.Supported[mode]
}

// Requested reports whether the box is requested on locally.
func (m *Modes) Requested(mode uint8) bool {
	return m.Supported(mode) && m.st.Boxes.Value[mode] != 0
}

// Active reports whether the FC says the box is active.
func (m *Modes) Active(mode uint8) bool {
	return m.st.boxActive(mode)
}

func (m *Modes) push() {
	m.ch.Send(msp.SET_BOX, msp.SerialiseBoxValues(m.st.Boxes.values()))
}

func (m *Modes) set(mode uint8, v uint16) error {
	if !m.Supported(mode) {
		return unsupported(mode)
	}
	m.st.Boxes.Value[mode] = v
	m.push()
	return nil
}

func (m *Modes) Activate(mode uint8) error {
	return m.set(mode, boxOn)
}

func (m *Modes) Deactivate(mode uint8) error {
	return m.set(mode, 0)
}

func (m *Modes) Toggle(mode uint8) error {
	if !m.Supported(mode) {
		return unsupported(mode)
	}
	if m.st.Boxes.Value[mode] != 0 {
		return m.set(mode, 0)
	}
	return m.set(mode, boxOn)
}

// clearNav drops the stabilisation and navigation boxes locally.
func (m *Modes) clearNav() {
	for _, mode := range []uint8{msp.BOXHORIZON, msp.BOXGPSHOME, msp.BOXGPSHOLD, msp.BOXBARO} {
		m.st.Boxes.Value[mode] = 0
	}
}

// Reset centres the sticks, drops the navigation boxes and pushes the result.
// Throttle is left where it is.
func (m *Modes) Reset() {
	m.st.neutralise()
	m.clearNav()
	m.push()
}

// EngageReturnHome needs a home position and the HORIZON and GPS HOME boxes.
// The sticks are centred before the boxes change, as the FC samples them
// when navigation modes switch.
func (m *Modes) EngageReturnHome() error {
	m.st.neutralise()
	if m.st.Home == nil {
		return fmt.Errorf("return home: no home position: %w", ErrPrerequisiteMissing)
	}
	for _, mode := range []uint8{msp.BOXHORIZON, msp.BOXGPSHOME} {
		if !m.Supported(mode) {
			return unsupported(mode)
		}
	}
	bv := &m.st.Boxes.Value
	bv[msp.BOXHORIZON] = boxOn
	bv[msp.BOXGPSHOME] = boxOn
	bv[msp.BOXGPSHOLD] = 0
	m.push()
	m.log.Info("return home engaged")
	return nil
}

// EngageHold sets altitude and position hold. BARO is only requested when
// the FC has it.
func (m *Modes) EngageHold() error {
	m.st.neutralise()
	for _, mode := range []uint8{msp.BOXHORIZON, msp.BOXGPSHOLD} {
		if !m.Supported(mode) {
			return unsupported(mode)
		}
	}
	bv := &m.st.Boxes.Value
	if m.Supported(msp.BOXBARO) {
		bv[msp.BOXBARO] = boxOn
	}
	bv[msp.BOXHORIZON] = boxOn
	bv[msp.BOXGPSHOLD] = boxOn
	bv[msp.BOXGPSHOME] = 0
	m.push()
	m.log.Info("hold engaged")
	return nil
}

// IsReturnHome reports whether the FC status shows HORIZON and GPS HOME
// active. A request the FC has not acted on does not count.
func (m *Modes) IsReturnHome() bool {
	return m.Active(msp.BOXHORIZON) && m.Active(msp.BOXGPSHOME)
}

func (m *Modes) IsAltHold() bool {
	return m.Active(msp.BOXBARO)
}

// List returns the supported boxes in FC order.
func (m *Modes) List() []uint8 {
	return append([]uint8(nil), m.st.Boxes.IDs...)
}
