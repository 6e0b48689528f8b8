package bridge

import (
	"errors"
	"testing"

	"github.com/stronnag/mwmav/pkg/msp"
)

func TestActivateUnsupported(t *testing.T) {
	b, ch := newTestBridge(t, msp.BOXANGLE)
	before := b.st.Boxes
	err := b.Modes.Activate(msp.BOXBARO)
	if !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("got %v", err)
	}
	if b.st.Boxes.Value != before.Value || b.st.Boxes.Supported != before.Supported {
		t.Error("box config changed")
	}
	if len(ch.sent) != 0 {
		t.Errorf("requests sent: %v", ch.sent)
	}
	if err := b.Modes.Toggle(msp.CHECKBOXITEMS + 3); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("out of range box: %v", err)
	}
}

func TestActivateToggle(t *testing.T) {
	b, ch := newTestBridge(t, msp.BOXANGLE, msp.BOXBARO)
	if err := b.Modes.Activate(msp.BOXBARO); err != nil {
		t.Fatal(err)
	}
	w := boxWords(t, ch.last(msp.SET_BOX))
	if len(w) != 3 || w[0] != 0 || w[1] != 0 || w[2] != boxOn {
		t.Errorf("words %v", w)
	}
	if !b.Modes.Requested(msp.BOXBARO) {
		t.Error("alt hold not requested")
	}
	if b.Modes.IsAltHold() {
		t.Error("alt hold reported before the FC shows it")
	}
	b.Modes.Toggle(msp.BOXBARO)
	b.Modes.Toggle(msp.BOXANGLE)
	w = boxWords(t, ch.last(msp.SET_BOX))
	if w[1] != boxOn || w[2] != 0 {
		t.Errorf("words after toggles %v", w)
	}
	if ch.count(msp.SET_BOX) != 3 {
		t.Errorf("%d pushes", ch.count(msp.SET_BOX))
	}
}

func TestEngageReturnHomeNeedsHome(t *testing.T) {
	b, ch := newTestBridge(t, msp.BOXHORIZON, msp.BOXGPSHOME)
	b.st.RC.Yaw = 1800
	b.st.RC.Throttle = 1400
	err := b.Modes.EngageReturnHome()
	if !errors.Is(err, ErrPrerequisiteMissing) {
		t.Fatalf("got %v", err)
	}
	if b.st.RC.Yaw != RCNeutral || b.st.RC.Throttle != 1400 {
		t.Errorf("sticks %+v", b.st.RC)
	}
	if ch.count(msp.SET_BOX) != 0 {
		t.Error("boxes pushed")
	}
}

func TestEngageHold(t *testing.T) {
	b, ch := newTestBridge(t, msp.BOXHORIZON, msp.BOXGPSHOLD, msp.BOXGPSHOME)
	b.st.Boxes.Value[msp.BOXGPSHOME] = boxOn
	if err := b.Modes.EngageHold(); err != nil {
		t.Fatal(err)
	}
	w := boxWords(t, ch.last(msp.SET_BOX))
	if w[1] != boxOn || w[2] != boxOn || w[3] != 0 {
		t.Errorf("words %v", w)
	}
	if b.st.Boxes.Value[msp.BOXBARO] != 0 {
		t.Error("BARO requested without support")
	}

	b2, _ := newTestBridge(t, msp.BOXHORIZON)
	if err := b2.Modes.EngageHold(); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("got %v", err)
	}
}

func TestActiveFromStatus(t *testing.T) {
	b, _ := newTestBridge(t, msp.BOXANGLE, msp.BOXGPSHOME)
	b.st.Status.Flag = 0b101
	if !b.Modes.Active(msp.BOXARM) || b.Modes.Active(msp.BOXANGLE) || !b.Modes.Active(msp.BOXGPSHOME) {
		t.Error("flag bits not mapped through box ids")
	}
	if b.Modes.Active(msp.BOXBARO) {
		t.Error("unsupported box active")
	}
}

func TestIsReturnHomeFollowsStatus(t *testing.T) {
	b, _ := newTestBridge(t, msp.BOXHORIZON, msp.BOXGPSHOME, msp.BOXBARO)
	b.st.Home = &Home{Lat: 1, Lon: 1}
	if err := b.Modes.EngageReturnHome(); err != nil {
		t.Fatal(err)
	}
	if b.Modes.IsReturnHome() {
		t.Error("requested boxes counted as engaged")
	}
	// ARM, HORIZON, GPSHOME, BARO
	b.st.Status.Flag = 1<<1 | 1<<2
	if !b.Modes.IsReturnHome() {
		t.Error("FC status not seen")
	}
	if b.Modes.IsAltHold() {
		t.Error("BARO not active")
	}
	b.st.Status.Flag |= 1 << 3
	if !b.Modes.IsAltHold() {
		t.Error("BARO active")
	}
}
