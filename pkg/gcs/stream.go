package gcs

import (
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
)

const unknownU16 = 0xffff

// Stream sends periodic telemetry and any pending parameter list entry. It
// runs once per base tick after the bridge.
func (g *GCS) Stream() {
	c := g.counter
	g.counter = (g.counter + 1) % 100

	if c%100 == 0 {
		g.heartbeat()
		g.sysStatus()
		g.homePosition()
		g.radioStatus()
	}
	if c%50 == 0 {
		g.vfrHud()
		g.gpsRaw()
	}
	if c%10 == 0 {
		g.attitude()
	}
	g.paramStream()
}

// paramStream sends one parameter per tick once the PIDs are fresh, or after
// waiting a second for them.
func (g *GCS) paramStream() {
	if g.paramNext < 0 {
		return
	}
	if !g.v.PidRefresh(false) && g.paramWait < paramWaitMax {
		g.paramWait++
		return
	}
	p, ok := g.v.ParamAt(g.paramNext)
	if !ok {
		g.paramNext = -1
		return
	}
	g.paramValue(p)
	g.paramNext++
}

func (g *GCS) heartbeat() {
	g.write(&common.MessageHeartbeat{
		Type:           common.MAV_TYPE(g.v.VehicleType()),
		Autopilot:      common.MAV_AUTOPILOT_GENERIC,
		BaseMode:       common.MAV_MODE_FLAG(g.v.ModeFlags()),
		SystemStatus:   common.MAV_STATE(g.v.SystemState()),
		MavlinkVersion: 3,
	})
}

func (g *GCS) sysStatus() {
	sensors := common.MAV_SYS_STATUS_SENSOR(g.v.SensorsPresent())
	mv, ca := g.v.Battery()
	drops := g.v.LinkDropCount()
	if drops > unknownU16 {
		drops = unknownU16
	}
	g.write(&common.MessageSysStatus{
		OnboardControlSensorsPresent: sensors,
		OnboardControlSensorsEnabled: sensors,
		OnboardControlSensorsHealth:  sensors,
		VoltageBattery:               mv,
		CurrentBattery:               ca,
		BatteryRemaining:             -1,
		DropRateComm:                 g.v.LinkDropRate(),
		ErrorsComm:                   uint16(drops),
	})
}

func (g *GCS) homePosition() {
	h, ok := g.v.Home()
	if !ok {
		return
	}
	g.write(&common.MessageHomePosition{
		Latitude:  h.Lat,
		Longitude: h.Lon,
		Altitude:  h.AltHold * 10, // cm to mm
		Q:         [4]float32{1, 0, 0, 0},
	})
}

func (g *GCS) radioStatus() {
	rssi, noise := g.v.Signal()
	drops := g.v.LinkDropCount()
	if drops > unknownU16 {
		drops = unknownU16
	}
	g.write(&common.MessageRadioStatus{
		Rssi:     uint8(rssi),
		Noise:    uint8(noise),
		Remrssi:  uint8(rssi),
		Remnoise: uint8(noise),
		Txbuf:    100,
		Rxerrors: uint16(drops),
	})
}

func (g *GCS) vfrHud() {
	alt, vario := g.v.Altitude()
	gps := g.v.RawGPS()
	g.write(&common.MessageVfrHud{
		Groundspeed: float32(gps.Vel) / 100,
		Heading:     g.v.Attitude().Heading,
		Throttle:    g.v.ThrottlePercent(),
		Alt:         float32(alt) / 100,
		Climb:       float32(vario) / 100,
	})
}

func (g *GCS) gpsRaw() {
	gps := g.v.RawGPS()
	g.write(&common.MessageGpsRawInt{
		TimeUsec:          uint64(time.Since(g.boot).Microseconds()),
		FixType:           common.GPS_FIX_TYPE(gps.Fix),
		Lat:               gps.Lat,
		Lon:               gps.Lon,
		Alt:               gps.Alt,
		Eph:               unknownU16,
		Epv:               unknownU16,
		Vel:               gps.Vel,
		Cog:               gps.Cog,
		SatellitesVisible: gps.Sats,
	})
}

func (g *GCS) attitude() {
	w, x, y, z := g.v.AttitudeQuaternion()
	g.write(&common.MessageAttitudeQuaternion{
		TimeBootMs: uint32(time.Since(g.boot).Milliseconds()),
		Q1:         w,
		Q2:         x,
		Q3:         y,
		Q4:         z,
	})
}
