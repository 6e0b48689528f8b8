// Package gcs speaks MAVLink to the ground station on behalf of the bridge.
package gcs

import (
	"errors"
	"fmt"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/hashicorp/go-hclog"

	"github.com/stronnag/mwmav/pkg/bridge"
	"github.com/stronnag/mwmav/pkg/msp"
)

const (
	heartbeatLife = 3000 / bridge.LoopMS
	paramWaitMax  = 1000 / bridge.LoopMS
)

// Vehicle is what the ground station can see and do.
type Vehicle interface {
	ManualControl(throttle, yaw, pitch, roll uint16) bool
	Arm()
	Disarm()
	StartPanic() error
	InitiateFailsafe()
	ResetFailsafe()
	ReturnHome() error
	Hold() error
	ToggleMode(mode uint8) error
	EepromWrite()

	ParamCount() int
	ParamAt(i int) (bridge.Param, bool)
	ParamIndex(name string) int
	SetParam(name string, v float32) (bridge.Param, error)
	PidRefresh(reset bool) bool

	Altitude() (int32, int16)
	Attitude() msp.Attitude
	AttitudeQuaternion() (w, x, y, z float32)
	RawGPS() bridge.GPS
	Home() (bridge.Home, bool)
	Battery() (uint16, int16)
	Signal() (rssi, noise int8)
	LinkDropCount() uint32
	LinkDropRate() uint16
	ThrottlePercent() uint16

	SensorsPresent() uint32
	ModeFlags() uint8
	VehicleType() uint8
	SystemState() uint8
}

type Config struct {
	Target   string // host:port the ground station listens on
	Listen   string // local address to accept the ground station on
	SystemID uint8
}

type GCS struct {
	v     Vehicle
	write func(message.Message)
	log   hclog.Logger

	node   *gomavlib.Node
	events <-chan gomavlib.Event

	life      int
	lost      bool
	counter   int
	paramNext int
	paramWait int
	boot      time.Time
}

// New returns a GCS that hands outbound messages to write.
func New(v Vehicle, write func(message.Message), log hclog.Logger) *GCS {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &GCS{v: v, write: write, log: log, paramNext: -1, boot: time.Now()}
}

// Open starts a MAVLink node on the configured UDP endpoints.
func Open(cfg Config, v Vehicle, log hclog.Logger) (*GCS, error) {
	var eps []gomavlib.EndpointConf
	if cfg.Target != "" {
		eps = append(eps, gomavlib.EndpointUDPClient{Address: cfg.Target})
	}
	if cfg.Listen != "" {
		eps = append(eps, gomavlib.EndpointUDPServer{Address: cfg.Listen})
	}
	if len(eps) == 0 {
		return nil, errors.New("no ground station endpoint")
	}
	if cfg.SystemID == 0 {
		cfg.SystemID = 1
	}
	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:        eps,
		Dialect:          common.Dialect,
		OutVersion:       gomavlib.V2,
		OutSystemID:      cfg.SystemID,
		HeartbeatDisable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("mavlink: %w", err)
	}
	g := New(v, func(m message.Message) { node.WriteMessageAll(m) }, log)
	g.node = node
	g.events = node.Events()
	return g, nil
}

func (g *GCS) Close() {
	if g.node != nil {
		g.node.Close()
	}
}

// Inbound ages the heartbeat and handles whatever has arrived, without
// blocking. It runs once per base tick.
func (g *GCS) Inbound() {
	if g.life > 0 {
		g.life--
		if g.life == 0 {
			g.log.Warn("ground station heartbeat lost")
			g.lost = true
			g.v.InitiateFailsafe()
		}
	}
	for g.events != nil {
		select {
		case e, ok := <-g.events:
			if !ok {
				g.events = nil
				return
			}
			switch ev := e.(type) {
			case *gomavlib.EventFrame:
				g.Handle(ev.SystemID(), ev.ComponentID(), ev.Message())
			case *gomavlib.EventChannelOpen:
				g.log.Info("channel open", "channel", ev.Channel)
			case *gomavlib.EventChannelClose:
				g.log.Info("channel closed", "channel", ev.Channel)
			case *gomavlib.EventParseError:
				g.log.Debug("parse error", "error", ev.Error)
			}
		default:
			return
		}
	}
}

// Handle dispatches one inbound message from sysid/compid.
func (g *GCS) Handle(sysid, compid uint8, m message.Message) {
	switch msg := m.(type) {
	case *common.MessageHeartbeat:
		if g.life == 0 {
			g.log.Info("ground station heartbeat", "sysid", sysid)
		}
		if g.lost {
			g.lost = false
			g.v.ResetFailsafe()
		}
		g.life = heartbeatLife

	case *common.MessageParamRequestList:
		g.log.Debug("param list requested")
		g.v.PidRefresh(true)
		g.paramNext = 0
		g.paramWait = 0

	case *common.MessageParamRequestRead:
		i := int(msg.ParamIndex)
		if i < 0 {
			i = g.v.ParamIndex(msg.ParamId)
		}
		if p, ok := g.v.ParamAt(i); ok {
			g.paramValue(p)
		} else {
			g.log.Debug("unknown param", "id", msg.ParamId, "index", msg.ParamIndex)
		}

	case *common.MessageParamSet:
		p, err := g.v.SetParam(msg.ParamId, msg.ParamValue)
		if err != nil {
			g.log.Warn("param set", "id", msg.ParamId, "error", err)
			if i := g.v.ParamIndex(msg.ParamId); i >= 0 {
				p, _ = g.v.ParamAt(i)
				g.paramValue(p)
			}
			return
		}
		g.paramValue(p)

	case *common.MessageMissionRequestList:
		g.write(&common.MessageMissionCount{
			TargetSystem:    sysid,
			TargetComponent: compid,
			Count:           0,
			MissionType:     msg.MissionType,
		})

	case *common.MessageManualControl:
		throttle, yaw, pitch, roll := sticks(msg)
		g.v.ManualControl(throttle, yaw, pitch, roll)

	case *common.MessageCommandLong:
		g.command(sysid, compid, msg)

	default:
		g.log.Trace("ignored", "id", m.GetID())
	}
}

func toRC(v int) uint16 {
	if v < bridge.RCMin {
		return bridge.RCMin
	}
	if v > bridge.RCMax {
		return bridge.RCMax
	}
	return uint16(v)
}

// sticks maps MANUAL_CONTROL axes (-1000..1000, throttle 0..1000) to µs.
func sticks(m *common.MessageManualControl) (throttle, yaw, pitch, roll uint16) {
	pitch = toRC(bridge.RCNeutral + int(m.X)/2)
	roll = toRC(bridge.RCNeutral + int(m.Y)/2)
	yaw = toRC(bridge.RCNeutral + int(m.R)/2)
	throttle = toRC(bridge.RCMin + int(m.Z))
	return
}

func result(err error) common.MAV_RESULT {
	switch {
	case err == nil:
		return common.MAV_RESULT_ACCEPTED
	case errors.Is(err, bridge.ErrUnsupportedMode):
		return common.MAV_RESULT_UNSUPPORTED
	case errors.Is(err, bridge.ErrFailsafeActive):
		return common.MAV_RESULT_DENIED
	}
	return common.MAV_RESULT_FAILED
}

func (g *GCS) command(sysid, compid uint8, c *common.MessageCommandLong) {
	var err error
	res := common.MAV_RESULT_ACCEPTED
	switch c.Command {
	case common.MAV_CMD_COMPONENT_ARM_DISARM:
		if c.Param1 == 1 {
			g.v.Arm()
		} else {
			g.v.Disarm()
		}
	case common.MAV_CMD_NAV_RETURN_TO_LAUNCH:
		err = g.v.ReturnHome()
	case common.MAV_CMD_NAV_LOITER_UNLIM:
		err = g.v.Hold()
	case common.MAV_CMD_USER_1:
		err = g.v.StartPanic()
	case common.MAV_CMD_USER_2:
		err = g.v.ToggleMode(uint8(c.Param1))
	case common.MAV_CMD_PREFLIGHT_STORAGE:
		g.v.EepromWrite()
	default:
		res = common.MAV_RESULT_UNSUPPORTED
	}
	if err != nil {
		g.log.Warn("command", "cmd", c.Command, "error", err)
		res = result(err)
	}
	g.write(&common.MessageCommandAck{
		Command:         c.Command,
		Result:          res,
		TargetSystem:    sysid,
		TargetComponent: compid,
	})
}

func (g *GCS) paramValue(p bridge.Param) {
	g.write(&common.MessageParamValue{
		ParamId:    p.Name,
		ParamValue: p.Value,
		ParamType:  common.MAV_PARAM_TYPE_REAL32,
		ParamCount: uint16(g.v.ParamCount()),
		ParamIndex: uint16(p.Index),
	})
}
