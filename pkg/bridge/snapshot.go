package bridge

import (
	"strings"
	"time"

	"github.com/stronnag/mwmav/pkg/msp"
)

// Snapshot is a value copy of the bridge for display. It shares no memory
// with the bridge and may be handed to other goroutines.
type Snapshot struct {
	Time     time.Time `json:"time"`
	FC       string    `json:"fc"`
	Armed    bool      `json:"armed"`
	Boxes    []string  `json:"boxes"`
	Active   []string  `json:"active"`
	RC       [8]uint16 `json:"rc"`
	Suppress bool      `json:"suppress"`
	RCCount  int       `json:"rc_count"`
	Failsafe struct {
		Active   bool   `json:"active"`
		Mode     string `json:"mode"`
		Counter  int    `json:"counter"`
		Timeout  int    `json:"timeout"`
		Fallback bool   `json:"fallback"`
	} `json:"failsafe"`
	Panic struct {
		Active bool `json:"active"`
		Phase  int  `json:"phase"`
	} `json:"panic"`
	Home     *Home   `json:"home,omitempty"`
	Altitude int32   `json:"altitude_cm"`
	Heading  int16   `json:"heading"`
	VBat     uint16  `json:"vbat_mv"`
	GPS      GPS     `json:"gps"`
	DropRate float32 `json:"drop_rate_pct"`
}

func (b *Bridge) Snapshot() Snapshot {
	var s Snapshot
	s.Time = b.clock.Now()
	s.FC = b.st.FC.String()
	s.Armed = b.st.FC == FCArmed
	for _, id := range b.st.Boxes.IDs {
		s.Boxes = append(s.Boxes, msp.BoxName(id))
	}
	if a := msp.FormatBoxes(b.st.Status.Flag, b.st.Boxes.IDs); a != "" {
		s.Active = strings.Split(a, ",")
	}
	rc := b.st.RC
	s.RC = [8]uint16{rc.Roll, rc.Pitch, rc.Yaw, rc.Throttle, rc.Aux[0], rc.Aux[1], rc.Aux[2], rc.Aux[3]}
	s.Suppress = b.st.Suppress
	s.RCCount = b.st.RCCount

	fs := b.st.Failsafe
	s.Failsafe.Active = fs.Active
	s.Failsafe.Mode = fs.Mode.String()
	s.Failsafe.Counter = fs.Counter
	s.Failsafe.Timeout = fs.Timeout
	s.Failsafe.Fallback = fs.Fallback
	s.Panic.Active = b.st.Panic.Active
	s.Panic.Phase = b.st.Panic.Phase

	if h, ok := b.Home(); ok {
		s.Home = &h
	}
	s.Altitude, _ = b.Altitude()
	s.Heading = b.Attitude().Heading
	s.VBat, _ = b.Battery()
	s.GPS = b.RawGPS()
	s.DropRate = float32(b.LinkDropRate()) / 100
	return s
}
