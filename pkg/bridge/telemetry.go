package bridge

import (
	"math"

	"github.com/stronnag/mwmav/pkg/msp"
)

// MAVLink MAV_SYS_STATUS_SENSOR bits.
const (
	Sensor3DGyro        = 0x01
	Sensor3DAccel       = 0x02
	Sensor3DMag         = 0x04
	SensorAbsPressure   = 0x08
	SensorGPS           = 0x20
	SensorAttitudeStab  = 0x800
	SensorYawPosition   = 0x1000
	SensorZAltitudeCtrl = 0x2000
)

// MAVLink MAV_MODE_FLAG bits.
const (
	ModeFlagAuto      = 0x04
	ModeFlagGuided    = 0x08
	ModeFlagStabilize = 0x10
	ModeFlagManual    = 0x40
	ModeFlagArmed     = 0x80
)

// MAVLink MAV_STATE values.
const (
	StateUninit    = 0
	StateStandby   = 3
	StateActive    = 4
	StateEmergency = 6
)

// MAVLink MAV_TYPE values.
const (
	TypeGeneric    = 0
	TypeFixedWing  = 1
	TypeQuadrotor  = 2
	TypeCoaxial    = 3
	TypeHelicopter = 4
	TypeHexarotor  = 13
	TypeOctorotor  = 14
	TypeTricopter  = 15
	TypeGimbal     = 26
)

type GPS struct {
	Fix  uint8
	Sats uint8
	Lat  int32 // degrees * 1e7
	Lon  int32
	Alt  int32  // mm
	Vel  uint16 // cm/s
	Cog  uint16 // centidegrees
}

func (b *Bridge) latest(cmd uint16) []byte {
	p, _ := b.ch.Latest(cmd)
	return p
}

// Altitude returns the estimated altitude in cm and climb rate in cm/s.
func (b *Bridge) Altitude() (int32, int16) {
	a, err := msp.ParseAltitude(b.latest(msp.ALTITUDE))
	if err != nil {
		return 0, 0
	}
	return a.EstAlt, a.Vario
}

func (b *Bridge) Attitude() msp.Attitude {
	a, _ := msp.ParseAttitude(b.latest(msp.ATTITUDE))
	return a
}

// AttitudeQuaternion converts roll and pitch (1/10 degree) and heading
// (degrees) to a w,x,y,z quaternion.
func (b *Bridge) AttitudeQuaternion() (w, x, y, z float32) {
	a := b.Attitude()
	return quaternion(a)
}

func quaternion(a msp.Attitude) (w, x, y, z float32) {
	const rad = math.Pi / 180
	ra := rad * float64(a.AngX) / 10
	rb := rad * float64(a.Heading)
	rc := -rad * float64(a.AngY) / 10

	c1, s1 := math.Cos(ra/2), math.Sin(ra/2)
	c2, s2 := math.Cos(rb/2), math.Sin(rb/2)
	c3, s3 := math.Cos(rc/2), math.Sin(rc/2)

	w = float32(c1*c2*c3 - s1*s2*s3)
	x = float32(c1*c2*s3 + s1*s2*c3)
	y = float32(s1*c2*c3 + c1*s2*s3)
	z = float32(c1*s2*c3 - s1*c2*s3)
	return
}

// RawGPS is zero when the FC has no GPS.
func (b *Bridge) RawGPS() GPS {
	if !b.st.Status.HasGPS() {
		return GPS{}
	}
	g, err := msp.ParseRawGPS(b.latest(msp.RAW_GPS))
	if err != nil {
		return GPS{}
	}
	fix := uint8(0)
	if g.Fix != 0 {
		fix = 3
	}
	return GPS{
		Fix:  fix,
		Sats: g.NumSat,
		Lat:  g.Lat,
		Lon:  g.Lon,
		Alt:  int32(g.Alt) * 1000,
		Vel:  g.Speed,
		Cog:  g.GroundCourse * 10,
	}
}

func (b *Bridge) Home() (Home, bool) {
	if b.st.Home == nil {
		return Home{}, false
	}
	return *b.st.Home, true
}

// Battery returns voltage in mV and current in cA.
func (b *Bridge) Battery() (uint16, int16) {
	a, err := msp.ParseAnalog(b.latest(msp.ANALOG))
	if err != nil {
		return 0, 0
	}
	return uint16(a.VBat) * 100, int16(a.Amperage)
}

func (b *Bridge) localStatus() msp.LocalStatus {
	l, _ := msp.ParseLocalStatus(b.latest(msp.LOCALSTATUS))
	return l
}

func (b *Bridge) Signal() (rssi, noise int8) {
	l := b.localStatus()
	return l.Rssi, l.Noise
}

func (b *Bridge) LinkDropCount() uint32 {
	return b.localStatus().CrcErrors
}

// LinkDropRate is in units of 0.01%.
func (b *Bridge) LinkDropRate() uint16 {
	l := b.localStatus()
	if l.RxCount == 0 {
		return 0
	}
	r := uint64(l.CrcErrors) * 10000 / uint64(l.RxCount)
	if r > 10000 {
		r = 10000
	}
	return uint16(r)
}

func (b *Bridge) SensorsPresent() uint32 {
	s := b.st.Status.Sensor
	v := uint32(Sensor3DGyro | SensorYawPosition)
	if s&msp.SENSOR_ACC != 0 {
		v |= Sensor3DAccel | SensorAttitudeStab
	}
	if s&msp.SENSOR_BARO != 0 {
		v |= SensorAbsPressure | SensorZAltitudeCtrl
	}
	if s&msp.SENSOR_MAG != 0 {
		v |= Sensor3DMag
	}
	if s&msp.SENSOR_GPS != 0 {
		v |= SensorGPS
	}
	if s&msp.SENSOR_SONAR != 0 {
		v |= SensorZAltitudeCtrl
	}
	return v
}

// ModeFlags reports what the FC status shows. Manual input is only claimed
// while armed.
func (b *Bridge) ModeFlags() uint8 {
	var v uint8
	if b.st.FC == FCArmed {
		v |= ModeFlagArmed | ModeFlagManual
	}
	if b.Modes.Active(msp.BOXBARO) || b.Modes.Active(msp.BOXHORIZON) {
		v |= ModeFlagStabilize
	}
	if b.Modes.Active(msp.BOXGPSHOME) || b.Modes.Active(msp.BOXGPSNAV) {
		v |= ModeFlagAuto | ModeFlagGuided
	}
	return v
}

func (b *Bridge) VehicleType() uint8 {
	switch b.st.Ident.MultiType {
	case msp.MULTITYPE_TRI:
		return TypeTricopter
	case msp.MULTITYPE_QUADP, msp.MULTITYPE_QUADX, msp.MULTITYPE_Y4, msp.MULTITYPE_VTAIL4:
		return TypeQuadrotor
	case msp.MULTITYPE_Y6, msp.MULTITYPE_HEX6, msp.MULTITYPE_HEX6X, msp.MULTITYPE_HEX6H:
		return TypeHexarotor
	case msp.MULTITYPE_OCTOX8, msp.MULTITYPE_OCTOFLATP, msp.MULTITYPE_OCTOFLATX:
		return TypeOctorotor
	case msp.MULTITYPE_FLYING_WING, msp.MULTITYPE_AIRPLANE:
		return TypeFixedWing
	case msp.MULTITYPE_HELI_120_CCPM, msp.MULTITYPE_HELI_90_DEG, msp.MULTITYPE_SINGLECOPTER:
		return TypeHelicopter
	case msp.MULTITYPE_BI, msp.MULTITYPE_DUALCOPTER:
		return TypeCoaxial
	case msp.MULTITYPE_GIMBAL:
		return TypeGimbal
	}
	return TypeGeneric
}

func (b *Bridge) SystemState() uint8 {
	switch {
	case b.st.Failsafe.Active, b.st.Panic.Active:
		return StateEmergency
	case b.st.FC == FCNoConnection:
		return StateUninit
	case b.st.FC == FCArmed:
		return StateActive
	}
	return StateStandby
}

func (b *Bridge) FCState() FCState {
	return b.st.FC
}

func (b *Bridge) HasGPS() bool {
	return b.st.Status.HasGPS()
}
