package gcs

import (
	"context"
	"testing"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/hashicorp/go-hclog"

	"github.com/stronnag/mwmav/pkg/bridge"
	"github.com/stronnag/mwmav/pkg/msp"
)

// fc answers every request immediately from canned replies.
type fc struct {
	replies map[uint16][]byte
	cache   map[uint16][]byte
	fresh   map[uint16]bool
	sent    []uint16
}

func newFC(sensor uint16, boxes ...uint8) *fc {
	f := &fc{
		replies: map[uint16][]byte{
			msp.IDENT:      msp.Ident{Version: 240, MultiType: msp.MULTITYPE_QUADX}.Serialise(),
			msp.STATUS:     msp.Status{Sensor: sensor}.Serialise(),
			msp.MISC:       msp.Misc{FailsafeThrottle: 1200}.Serialise(),
			msp.RC_TUNING:  {90, 65, 0, 0, 0, 50, 0},
			msp.BOXIDS:     append([]byte{msp.BOXARM}, boxes...),
			msp.PID:        make([]byte, 30),
			msp.NAV_CONFIG: make([]byte, 21),
			msp.ATTITUDE:   msp.Attitude{Heading: 270}.Serialise(),
			msp.ALTITUDE:   msp.Altitude{EstAlt: 1234, Vario: -50}.Serialise(),
		},
		cache: make(map[uint16][]byte),
		fresh: make(map[uint16]bool),
	}
	return f
}

func (f *fc) Send(cmd uint16, _ []byte) {
	f.sent = append(f.sent, cmd)
	if r, ok := f.replies[cmd]; ok {
		f.cache[cmd] = r
		f.fresh[cmd] = true
	}
}

func (f *fc) Latest(cmd uint16) ([]byte, bool) {
	r, ok := f.cache[cmd]
	return r, ok
}

func (f *fc) Scan(cmd uint16) ([]byte, bool) {
	if f.fresh[cmd] {
		f.fresh[cmd] = false
		return f.cache[cmd], true
	}
	return nil, false
}

func (f *fc) count(cmd uint16) int {
	n := 0
	for _, c := range f.sent {
		if c == cmd {
			n++
		}
	}
	return n
}

type instant struct{ t time.Time }

func (c *instant) Now() time.Time { return c.t }

func (c *instant) Sleep(_ context.Context, d time.Duration) { c.t = c.t.Add(d) }

type capture struct {
	msgs []message.Message
}

func (c *capture) write(m message.Message) {
	c.msgs = append(c.msgs, m)
}

func (c *capture) acks() []*common.MessageCommandAck {
	var out []*common.MessageCommandAck
	for _, m := range c.msgs {
		if a, ok := m.(*common.MessageCommandAck); ok {
			out = append(out, a)
		}
	}
	return out
}

func (c *capture) count(id uint32) int {
	n := 0
	for _, m := range c.msgs {
		if m.GetID() == id {
			n++
		}
	}
	return n
}

func setup(t *testing.T, sensor uint16, boxes ...uint8) (*GCS, *bridge.Bridge, *fc, *capture) {
	t.Helper()
	f := newFC(sensor, boxes...)
	b := bridge.New(f, bridge.Config{FailsafeTimeout: 10}, hclog.NewNullLogger())
	b.SetClock(&instant{t: time.Unix(1700000000, 0)})
	if err := b.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	c := &capture{}
	return New(b, c.write, hclog.NewNullLogger()), b, f, c
}

func TestHeartbeatLife(t *testing.T) {
	g, b, _, _ := setup(t, msp.SENSOR_ACC, msp.BOXHORIZON)
	g.Handle(255, 190, &common.MessageHeartbeat{Type: common.MAV_TYPE_GCS})
	for i := 0; i < heartbeatLife-1; i++ {
		g.Inbound()
	}
	if b.State().Failsafe.Active {
		t.Fatal("failsafe before heartbeat expiry")
	}
	g.Inbound()
	if !b.State().Failsafe.Active {
		t.Fatal("failsafe not initiated on heartbeat loss")
	}
	for i := 0; i < 10; i++ {
		g.Inbound()
	}
	if !b.State().Failsafe.Active {
		t.Fatal("failsafe dropped without heartbeat")
	}
	g.Handle(255, 190, &common.MessageHeartbeat{Type: common.MAV_TYPE_GCS})
	if b.State().Failsafe.Active {
		t.Error("failsafe kept after heartbeat returned")
	}
}

func TestNoHeartbeatNoFailsafe(t *testing.T) {
	g, b, _, _ := setup(t, msp.SENSOR_ACC)
	for i := 0; i < 2*heartbeatLife; i++ {
		g.Inbound()
	}
	if b.State().Failsafe.Active {
		t.Error("failsafe without any heartbeat")
	}
}

func TestSticks(t *testing.T) {
	for _, tc := range []struct {
		x, y, z, r            int16
		thr, yaw, pitch, roll uint16
	}{
		{0, 0, 0, 0, 1000, 1500, 1500, 1500},
		{1000, -1000, 1000, 500, 2000, 1750, 2000, 1000},
		{-1000, 200, 500, -1000, 1500, 1000, 1000, 1600},
		{0, 0, -200, 0, 1000, 1500, 1500, 1500},
	} {
		thr, yaw, pitch, roll := sticks(&common.MessageManualControl{X: tc.x, Y: tc.y, Z: tc.z, R: tc.r})
		if thr != tc.thr || yaw != tc.yaw || pitch != tc.pitch || roll != tc.roll {
			t.Errorf("%+v: got %d %d %d %d", tc, thr, yaw, pitch, roll)
		}
	}
}

func TestManualControl(t *testing.T) {
	g, b, _, _ := setup(t, msp.SENSOR_ACC)
	g.Handle(255, 190, &common.MessageManualControl{X: 200, Z: 300})
	st := b.State()
	if st.RC.Pitch != 1600 || st.RC.Throttle != 1300 || st.RCCount == 0 {
		t.Errorf("rc %+v count %d", st.RC, st.RCCount)
	}
}

func TestCommands(t *testing.T) {
	g, _, f, c := setup(t, msp.SENSOR_ACC, msp.BOXHORIZON, msp.BOXGPSHOME, msp.BOXGPSHOLD)
	for _, tc := range []struct {
		name  string
		cmd   common.MAV_CMD
		p1    float32
		want  common.MAV_RESULT
		setup func()
	}{
		{"arm", common.MAV_CMD_COMPONENT_ARM_DISARM, 1, common.MAV_RESULT_ACCEPTED, nil},
		{"toggle unsupported", common.MAV_CMD_USER_2, msp.BOXBARO, common.MAV_RESULT_UNSUPPORTED, nil},
		{"toggle", common.MAV_CMD_USER_2, msp.BOXHORIZON, common.MAV_RESULT_ACCEPTED, nil},
		{"rth without home", common.MAV_CMD_NAV_RETURN_TO_LAUNCH, 0, common.MAV_RESULT_FAILED, nil},
		{"hold", common.MAV_CMD_NAV_LOITER_UNLIM, 0, common.MAV_RESULT_ACCEPTED, nil},
		{"eeprom", common.MAV_CMD_PREFLIGHT_STORAGE, 0, common.MAV_RESULT_ACCEPTED, nil},
		{"unknown", common.MAV_CMD_DO_SET_SERVO, 0, common.MAV_RESULT_UNSUPPORTED, nil},
		{"panic", common.MAV_CMD_USER_1, 0, common.MAV_RESULT_ACCEPTED, nil},
		{"panic in failsafe", common.MAV_CMD_USER_1, 0, common.MAV_RESULT_DENIED, func() { g.v.InitiateFailsafe() }},
	} {
		if tc.setup != nil {
			tc.setup()
		}
		g.Handle(255, 190, &common.MessageCommandLong{Command: tc.cmd, Param1: tc.p1})
		acks := c.acks()
		a := acks[len(acks)-1]
		if a.Command != tc.cmd || a.Result != tc.want {
			t.Errorf("%s: ack %v result %v", tc.name, a.Command, a.Result)
		}
		if a.TargetSystem != 255 || a.TargetComponent != 190 {
			t.Errorf("%s: ack target %d/%d", tc.name, a.TargetSystem, a.TargetComponent)
		}
	}
	if f.count(msp.STICKCOMBO) != 1 || f.count(msp.EEPROM_WRITE) != 1 {
		t.Errorf("requests %v", f.sent)
	}
}

func TestMissionCount(t *testing.T) {
	g, _, _, c := setup(t, msp.SENSOR_ACC)
	g.Handle(255, 190, &common.MessageMissionRequestList{TargetSystem: 1})
	if len(c.msgs) != 1 {
		t.Fatalf("%d replies", len(c.msgs))
	}
	mc, ok := c.msgs[0].(*common.MessageMissionCount)
	if !ok || mc.Count != 0 || mc.TargetSystem != 255 {
		t.Errorf("reply %+v", c.msgs[0])
	}
}

func TestParamList(t *testing.T) {
	g, b, _, c := setup(t, msp.SENSOR_ACC|msp.SENSOR_GPS)
	g.Handle(255, 190, &common.MessageParamRequestList{})
	for i := 0; i < 200; i++ {
		g.paramStream()
	}
	var got []*common.MessageParamValue
	for _, m := range c.msgs {
		if p, ok := m.(*common.MessageParamValue); ok {
			got = append(got, p)
		}
	}
	if len(got) != b.ParamCount() {
		t.Fatalf("%d of %d params sent", len(got), b.ParamCount())
	}
	for i, p := range got {
		if int(p.ParamIndex) != i || int(p.ParamCount) != b.ParamCount() {
			t.Errorf("param %d: %+v", i, p)
		}
	}
	if got[0].ParamId != "ROLL_P" || got[len(got)-1].ParamId != "FS_TIMEOUT" {
		t.Errorf("order %s..%s", got[0].ParamId, got[len(got)-1].ParamId)
	}
}

func TestParamReadSet(t *testing.T) {
	g, b, f, c := setup(t, msp.SENSOR_ACC)
	g.Handle(255, 190, &common.MessageParamRequestRead{ParamId: "FS_THROTTLE", ParamIndex: -1})
	p := c.msgs[len(c.msgs)-1].(*common.MessageParamValue)
	if p.ParamValue != 1200 || int(p.ParamIndex) != b.ParamIndex("FS_THROTTLE") {
		t.Errorf("read %+v", p)
	}
	g.Handle(255, 190, &common.MessageParamSet{ParamId: "FS_TIMEOUT", ParamValue: 5})
	p = c.msgs[len(c.msgs)-1].(*common.MessageParamValue)
	if p.ParamId != "FS_TIMEOUT" || p.ParamValue != 5 || b.State().Failsafe.Timeout != 5 {
		t.Errorf("set %+v", p)
	}
	g.Handle(255, 190, &common.MessageParamSet{ParamId: "FS_THROTTLE", ParamValue: 1150})
	if f.count(msp.SET_MISC) != 1 {
		t.Error("SET_MISC not sent")
	}
}

func TestStreamRates(t *testing.T) {
	g, _, _, c := setup(t, msp.SENSOR_ACC)
	for i := 0; i < 200; i++ {
		g.Stream()
	}
	for _, tc := range []struct {
		name string
		id   uint32
		want int
	}{
		{"heartbeat", (&common.MessageHeartbeat{}).GetID(), 2},
		{"sys status", (&common.MessageSysStatus{}).GetID(), 2},
		{"vfr hud", (&common.MessageVfrHud{}).GetID(), 4},
		{"gps", (&common.MessageGpsRawInt{}).GetID(), 4},
		{"attitude", (&common.MessageAttitudeQuaternion{}).GetID(), 20},
		{"home", (&common.MessageHomePosition{}).GetID(), 0},
	} {
		if n := c.count(tc.id); n != tc.want {
			t.Errorf("%s sent %d times, want %d", tc.name, n, tc.want)
		}
	}
	hb := c.msgs[0].(*common.MessageHeartbeat)
	if hb.Type != common.MAV_TYPE_QUADROTOR || hb.SystemStatus != common.MAV_STATE_STANDBY {
		t.Errorf("heartbeat %+v", hb)
	}
}

func TestMAVLinkValues(t *testing.T) {
	if uint32(common.MAV_SYS_STATUS_SENSOR_GPS) != bridge.SensorGPS ||
		uint32(common.MAV_SYS_STATUS_SENSOR_3D_ACCEL) != bridge.Sensor3DAccel ||
		uint32(common.MAV_SYS_STATUS_SENSOR_Z_ALTITUDE_CONTROL) != bridge.SensorZAltitudeCtrl {
		t.Error("sensor bits differ")
	}
	if uint8(common.MAV_MODE_FLAG_SAFETY_ARMED) != bridge.ModeFlagArmed ||
		uint8(common.MAV_MODE_FLAG_STABILIZE_ENABLED) != bridge.ModeFlagStabilize ||
		uint8(common.MAV_MODE_FLAG_MANUAL_INPUT_ENABLED) != bridge.ModeFlagManual ||
		uint8(common.MAV_MODE_FLAG_AUTO_ENABLED) != bridge.ModeFlagAuto ||
		uint8(common.MAV_MODE_FLAG_GUIDED_ENABLED) != bridge.ModeFlagGuided {
		t.Error("mode flags differ")
	}
	if uint8(common.MAV_STATE_STANDBY) != bridge.StateStandby || uint8(common.MAV_STATE_EMERGENCY) != bridge.StateEmergency {
		t.Error("states differ")
	}
	if uint8(common.MAV_TYPE_QUADROTOR) != bridge.TypeQuadrotor || uint8(common.MAV_TYPE_HEXAROTOR) != bridge.TypeHexarotor {
		t.Error("types differ")
	}
}
