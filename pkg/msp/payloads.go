package msp

import (
	"encoding/binary"
)

// Sensor presence bits in Status.Sensor.
const (
	SENSOR_ACC = 1 << iota
	SENSOR_BARO
	SENSOR_MAG
	SENSOR_GPS
	SENSOR_SONAR
)

// MultiWii multitype values reported by IDENT.
const (
	MULTITYPE_NONE0 = iota
	MULTITYPE_TRI
	MULTITYPE_QUADP
	MULTITYPE_QUADX
	MULTITYPE_BI
	MULTITYPE_GIMBAL
	MULTITYPE_Y6
	MULTITYPE_HEX6
	MULTITYPE_FLYING_WING
	MULTITYPE_Y4
	MULTITYPE_HEX6X
	MULTITYPE_OCTOX8
	MULTITYPE_OCTOFLATP
	MULTITYPE_OCTOFLATX
	MULTITYPE_AIRPLANE
	MULTITYPE_HELI_120_CCPM
	MULTITYPE_HELI_90_DEG
	MULTITYPE_VTAIL4
	MULTITYPE_HEX6H
	MULTITYPE_NONE19
	MULTITYPE_DUALCOPTER
	MULTITYPE_SINGLECOPTER
)

const PIDITEMS = 10

var PidNames = [PIDITEMS]string{"ROLL", "PITCH", "YAW", "ALT", "Pos", "PosR", "NavR", "LEVEL", "MAG", "VEL"}

var RcTuningNames = [...]string{"RC_RATE", "RC_EXPO", "ROLL_PITCH_R", "YAW_RATE", "DYN_THR_PID", "THR_MID", "THR_EXPO"}

type Ident struct {
	Version    uint8
	MultiType  uint8
	MspVersion uint8
	Capability uint32
}

func ParseIdent(b []byte) (Ident, error) {
	if len(b) < 7 {
		return Ident{}, ErrShortPayload
	}
	return Ident{
		Version:    b[0],
		MultiType:  b[1],
		MspVersion: b[2],
		Capability: binary.LittleEndian.Uint32(b[3:7]),
	}, nil
}

func (i Ident) Serialise() []byte {
	buf := make([]byte, 7)
	buf[0] = i.Version
	buf[1] = i.MultiType
	buf[2] = i.MspVersion
	binary.LittleEndian.PutUint32(buf[3:7], i.Capability)
	return buf
}

// Status is MSP_STATUS. Flag has one bit per box, in BOXIDS order.
type Status struct {
	CycleTime uint16
	I2CErrors uint16
	Sensor    uint16
	Flag      uint32
	Set       uint8
}

func ParseStatus(b []byte) (Status, error) {
	if len(b) < 10 {
		return Status{}, ErrShortPayload
	}
	s := Status{
		CycleTime: binary.LittleEndian.Uint16(b[0:2]),
		I2CErrors: binary.LittleEndian.Uint16(b[2:4]),
		Sensor:    binary.LittleEndian.Uint16(b[4:6]),
		Flag:      binary.LittleEndian.Uint32(b[6:10]),
	}
	if len(b) > 10 {
		s.Set = b[10]
	}
	return s, nil
}

func (s Status) Serialise() []byte {
	buf := make([]byte, 11)
	binary.LittleEndian.PutUint16(buf[0:2], s.CycleTime)
	binary.LittleEndian.PutUint16(buf[2:4], s.I2CErrors)
	binary.LittleEndian.PutUint16(buf[4:6], s.Sensor)
	binary.LittleEndian.PutUint32(buf[6:10], s.Flag)
	buf[10] = s.Set
	return buf
}

func (s Status) HasGPS() bool {
	return s.Sensor&SENSOR_GPS != 0
}

// Attitude angles are in 1/10 degree, heading in degrees.
type Attitude struct {
	AngX    int16
	AngY    int16
	Heading int16
}

func ParseAttitude(b []byte) (Attitude, error) {
	if len(b) < 6 {
		return Attitude{}, ErrShortPayload
	}
	return Attitude{
		AngX:    int16(binary.LittleEndian.Uint16(b[0:2])),
		AngY:    int16(binary.LittleEndian.Uint16(b[2:4])),
		Heading: int16(binary.LittleEndian.Uint16(b[4:6])),
	}, nil
}

func (a Attitude) Serialise() []byte {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(a.AngX))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(a.AngY))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(a.Heading))
	return buf
}

// Altitude is the estimated altitude in cm and vario in cm/s.
type Altitude struct {
	EstAlt int32
	Vario  int16
}

func ParseAltitude(b []byte) (Altitude, error) {
	if len(b) < 4 {
		return Altitude{}, ErrShortPayload
	}
	a := Altitude{EstAlt: int32(binary.LittleEndian.Uint32(b[0:4]))}
	if len(b) >= 6 {
		a.Vario = int16(binary.LittleEndian.Uint16(b[4:6]))
	}
	return a, nil
}

func (a Altitude) Serialise() []byte {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(a.EstAlt))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(a.Vario))
	return buf
}

// RawGPS positions are degrees * 1e7, Alt in metres, Speed in cm/s,
// GroundCourse in 1/10 degree.
type RawGPS struct {
	Fix          uint8
	NumSat       uint8
	Lat          int32
	Lon          int32
	Alt          uint16
	Speed        uint16
	GroundCourse uint16
}

func ParseRawGPS(b []byte) (RawGPS, error) {
	if len(b) < 16 {
		return RawGPS{}, ErrShortPayload
	}
	return RawGPS{
		Fix:          b[0],
		NumSat:       b[1],
		Lat:          int32(binary.LittleEndian.Uint32(b[2:6])),
		Lon:          int32(binary.LittleEndian.Uint32(b[6:10])),
		Alt:          binary.LittleEndian.Uint16(b[10:12]),
		Speed:        binary.LittleEndian.Uint16(b[12:14]),
		GroundCourse: binary.LittleEndian.Uint16(b[14:16]),
	}, nil
}

func (g RawGPS) Serialise() []byte {
	buf := make([]byte, 16)
	buf[0] = g.Fix
	buf[1] = g.NumSat
	binary.LittleEndian.PutUint32(buf[2:6], uint32(g.Lat))
	binary.LittleEndian.PutUint32(buf[6:10], uint32(g.Lon))
	binary.LittleEndian.PutUint16(buf[10:12], g.Alt)
	binary.LittleEndian.PutUint16(buf[12:14], g.Speed)
	binary.LittleEndian.PutUint16(buf[14:16], g.GroundCourse)
	return buf
}

// Analog: VBat in 0.1V, Amperage in 0.01A.
type Analog struct {
	VBat          uint8
	PowerMeterSum uint16
	Rssi          uint16
	Amperage      uint16
}

func ParseAnalog(b []byte) (Analog, error) {
	if len(b) < 5 {
		return Analog{}, ErrShortPayload
	}
	a := Analog{
		VBat:          b[0],
		PowerMeterSum: binary.LittleEndian.Uint16(b[1:3]),
		Rssi:          binary.LittleEndian.Uint16(b[3:5]),
	}
	if len(b) >= 7 {
		a.Amperage = binary.LittleEndian.Uint16(b[5:7])
	}
	return a, nil
}

func (a Analog) Serialise() []byte {
	buf := make([]byte, 7)
	buf[0] = a.VBat
	binary.LittleEndian.PutUint16(buf[1:3], a.PowerMeterSum)
	binary.LittleEndian.PutUint16(buf[3:5], a.Rssi)
	binary.LittleEndian.PutUint16(buf[5:7], a.Amperage)
	return buf
}

// RcTuning is indexed as RcTuningNames.
type RcTuning [len(RcTuningNames)]uint8

func ParseRcTuning(b []byte) (RcTuning, error) {
	var r RcTuning
	if len(b) < len(r) {
		return r, ErrShortPayload
	}
	copy(r[:], b)
	return r, nil
}

func (r RcTuning) Serialise() []byte {
	buf := make([]byte, len(r))
	copy(buf, r[:])
	return buf
}

type PidItem struct {
	P, I, D uint8
}

type Pids [PIDITEMS]PidItem

func ParsePids(b []byte) (Pids, error) {
	var p Pids
	if len(b) < 3*PIDITEMS {
		return p, ErrShortPayload
	}
	for j := range p {
		p[j] = PidItem{b[3*j], b[3*j+1], b[3*j+2]}
	}
	return p, nil
}

func (p Pids) Serialise() []byte {
	buf := make([]byte, 3*PIDITEMS)
	for j, v := range p {
		buf[3*j] = v.P
		buf[3*j+1] = v.I
		buf[3*j+2] = v.D
	}
	return buf
}

// Misc exposes the throttle settings; the remaining bytes vary between FC
// versions and are carried through unchanged.
type Misc struct {
	PowerTrigger     uint16
	MinThrottle      uint16
	MaxThrottle      uint16
	MinCommand       uint16
	FailsafeThrottle uint16
	raw              []byte
}

func ParseMisc(b []byte) (Misc, error) {
	if len(b) < 10 {
		return Misc{}, ErrShortPayload
	}
	m := Misc{
		PowerTrigger:     binary.LittleEndian.Uint16(b[0:2]),
		MinThrottle:      binary.LittleEndian.Uint16(b[2:4]),
		MaxThrottle:      binary.LittleEndian.Uint16(b[4:6]),
		MinCommand:       binary.LittleEndian.Uint16(b[6:8]),
		FailsafeThrottle: binary.LittleEndian.Uint16(b[8:10]),
		raw:              append([]byte(nil), b...),
	}
	return m, nil
}

func (m Misc) Serialise() []byte {
	n := len(m.raw)
	if n < 10 {
		n = 10
	}
	buf := make([]byte, n)
	copy(buf, m.raw)
	binary.LittleEndian.PutUint16(buf[0:2], m.PowerTrigger)
	binary.LittleEndian.PutUint16(buf[2:4], m.MinThrottle)
	binary.LittleEndian.PutUint16(buf[4:6], m.MaxThrottle)
	binary.LittleEndian.PutUint16(buf[6:8], m.MinCommand)
	binary.LittleEndian.PutUint16(buf[8:10], m.FailsafeThrottle)
	return buf
}

const navconf_RTH_ALT = 15

// NavConfig only exposes the return-to-home altitude (metres).
type NavConfig struct {
	RthAltitude uint16
	raw         []byte
}

func ParseNavConfig(b []byte) (NavConfig, error) {
	if len(b) < navconf_RTH_ALT+2 {
		return NavConfig{}, ErrShortPayload
	}
	return NavConfig{
		RthAltitude: binary.LittleEndian.Uint16(b[navconf_RTH_ALT : navconf_RTH_ALT+2]),
		raw:         append([]byte(nil), b...),
	}, nil
}

func (n NavConfig) Serialise() []byte {
	sz := len(n.raw)
	if sz < navconf_RTH_ALT+2 {
		sz = navconf_RTH_ALT + 2
	}
	buf := make([]byte, sz)
	copy(buf, n.raw)
	binary.LittleEndian.PutUint16(buf[navconf_RTH_ALT:navconf_RTH_ALT+2], n.RthAltitude)
	return buf
}

// Waypoint 0 is home.
type Waypoint struct {
	No         uint8
	Lat        int32
	Lon        int32
	AltHold    int32
	Heading    uint16
	TimeToStay uint16
	NavFlag    uint8
}

func WaypointRequest(no uint8) []byte {
	return []byte{no}
}

func ParseWaypoint(b []byte) (Waypoint, error) {
	if len(b) < 13 {
		return Waypoint{}, ErrShortPayload
	}
	w := Waypoint{
		No:      b[0],
		Lat:     int32(binary.LittleEndian.Uint32(b[1:5])),
		Lon:     int32(binary.LittleEndian.Uint32(b[5:9])),
		AltHold: int32(binary.LittleEndian.Uint32(b[9:13])),
	}
	if len(b) >= 18 {
		w.Heading = binary.LittleEndian.Uint16(b[13:15])
		w.TimeToStay = binary.LittleEndian.Uint16(b[15:17])
		w.NavFlag = b[17]
	}
	return w, nil
}

func (w Waypoint) Serialise() []byte {
	buf := make([]byte, 18)
	buf[0] = w.No
	binary.LittleEndian.PutUint32(buf[1:5], uint32(w.Lat))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(w.Lon))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(w.AltHold))
	binary.LittleEndian.PutUint16(buf[13:15], w.Heading)
	binary.LittleEndian.PutUint16(buf[15:17], w.TimeToStay)
	buf[17] = w.NavFlag
	return buf
}

// RawRC values are in µs. The wire order is roll, pitch, yaw, throttle, aux1-4.
type RawRC struct {
	Throttle uint16
	Yaw      uint16
	Pitch    uint16
	Roll     uint16
	Aux      [4]uint16
}

func (r RawRC) Serialise() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint16(buf[0:2], r.Roll)
	binary.LittleEndian.PutUint16(buf[2:4], r.Pitch)
	binary.LittleEndian.PutUint16(buf[4:6], r.Yaw)
	binary.LittleEndian.PutUint16(buf[6:8], r.Throttle)
	for j, a := range r.Aux {
		n := 8 + j*2
		binary.LittleEndian.PutUint16(buf[n:n+2], a)
	}
	return buf
}

func ParseRawRC(b []byte) (RawRC, error) {
	var r RawRC
	if len(b) < 16 {
		return r, ErrShortPayload
	}
	r.Roll = binary.LittleEndian.Uint16(b[0:2])
	r.Pitch = binary.LittleEndian.Uint16(b[2:4])
	r.Yaw = binary.LittleEndian.Uint16(b[4:6])
	r.Throttle = binary.LittleEndian.Uint16(b[6:8])
	for j := range r.Aux {
		n := 8 + j*2
		r.Aux[j] = binary.LittleEndian.Uint16(b[n : n+2])
	}
	return r, nil
}

// ParseBoxIds returns the permanent box ids in the FC's box index order.
func ParseBoxIds(b []byte) []uint8 {
	return append([]uint8(nil), b...)
}

// ParseBoxValues decodes MSP_BOX, one activation word per box index.
func ParseBoxValues(b []byte) []uint16 {
	vals := make([]uint16, len(b)/2)
	for j := range vals {
		vals[j] = binary.LittleEndian.Uint16(b[j*2 : j*2+2])
	}
	return vals
}

func SerialiseBoxValues(vals []uint16) []byte {
	buf := make([]byte, 2*len(vals))
	for j, v := range vals {
		binary.LittleEndian.PutUint16(buf[j*2:j*2+2], v)
	}
	return buf
}

func SerialiseHead(heading int16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(heading))
	return buf
}

// LocalStatus is the link's own health report.
type LocalStatus struct {
	RxCount    uint32
	TxCount    uint32
	CrcErrors  uint32
	ErrReplies uint32
	Rssi       int8
	Noise      int8
}

func ParseLocalStatus(b []byte) (LocalStatus, error) {
	if len(b) < 18 {
		return LocalStatus{}, ErrShortPayload
	}
	return LocalStatus{
		RxCount:    binary.LittleEndian.Uint32(b[0:4]),
		TxCount:    binary.LittleEndian.Uint32(b[4:8]),
		CrcErrors:  binary.LittleEndian.Uint32(b[8:12]),
		ErrReplies: binary.LittleEndian.Uint32(b[12:16]),
		Rssi:       int8(b[16]),
		Noise:      int8(b[17]),
	}, nil
}

func (l LocalStatus) Serialise() []byte {
	buf := make([]byte, 18)
	binary.LittleEndian.PutUint32(buf[0:4], l.RxCount)
	binary.LittleEndian.PutUint32(buf[4:8], l.TxCount)
	binary.LittleEndian.PutUint32(buf[8:12], l.CrcErrors)
	binary.LittleEndian.PutUint32(buf[12:16], l.ErrReplies)
	buf[16] = byte(l.Rssi)
	buf[17] = byte(l.Noise)
	return buf
}
