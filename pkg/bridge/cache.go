package bridge

import (
	"github.com/stronnag/mwmav/pkg/msp"
)

func (b *Bridge) altitudeRefresh() {
	b.ch.Send(msp.ALTITUDE, nil)
}

func (b *Bridge) attitudeRefresh() {
	b.ch.Send(msp.ATTITUDE, nil)
}

func (b *Bridge) gpsRefresh() {
	if b.st.Status.HasGPS() {
		b.ch.Send(msp.RAW_GPS, nil)
	}
}

func (b *Bridge) analogRefresh() {
	b.ch.Send(msp.ANALOG, nil)
}

// boxRefresh takes the FC's activation words from the previous request.
func (b *Bridge) boxRefresh() {
	if p, ok := b.ch.Scan(msp.BOX); ok {
		b.st.Boxes.applyValues(msp.ParseBoxValues(p))
	}
	b.ch.Send(msp.BOX, nil)
}

// keepalive reads the status reply to the previous request and asks again.
func (b *Bridge) keepalive() {
	b.ch.Send(msp.LOCALSTATUS, nil)
	b.ch.Send(msp.STATUS, nil)
	p, ok := b.ch.Scan(msp.STATUS)
	if ok {
		s, err := msp.ParseStatus(p)
		ok = err == nil
		if ok {
			b.st.missed = 0
			b.setStatus(s)
			return
		}
	}
	b.st.missed++
	if b.st.missed > mwTimeout && b.st.FC != FCNoConnection {
		b.log.Warn("FC not responding", "missed", b.st.missed)
		b.st.FC = FCNoConnection
	}
}

func (b *Bridge) setStatus(s msp.Status) {
	old := b.st.Status
	b.st.Status = s
	if s.Flag != old.Flag {
		b.log.Info("box", "active", msp.FormatBoxes(s.Flag, b.st.Boxes.IDs), "flag", s.Flag)
	}
	fc := FCStandby
	if b.st.boxActive(msp.BOXARM) {
		fc = FCArmed
	}
	if fc != b.st.FC {
		b.log.Info("FC state", "from", b.st.FC, "to", fc)
		b.st.FC = fc
	}
}

// standby runs while disarmed: any failsafe episode is over, home is
// refreshed and the heading to restore on panic is captured.
func (b *Bridge) standby() {
	if b.st.FC != FCStandby {
		return
	}
	b.Failsafe.clear()
	b.homeRefresh()
	if p, ok := b.ch.Latest(msp.ATTITUDE); ok {
		if a, err := msp.ParseAttitude(p); err == nil {
			b.st.HeadingInitial = a.Heading
		}
	}
}

func (b *Bridge) homeRefresh() {
	b.ch.Send(msp.WP, msp.WaypointRequest(0))
	p, ok := b.ch.Scan(msp.WP)
	if !ok {
		return
	}
	w, err := msp.ParseWaypoint(p)
	if err != nil {
		return
	}
	if w.No != 0 || w.Lat == 0 || w.Lon == 0 {
		if b.st.Home != nil {
			b.log.Info("home cleared")
		}
		b.st.Home = nil
		return
	}
	h := Home{Lat: w.Lat, Lon: w.Lon, AltHold: w.AltHold}
	if b.st.Home == nil || *b.st.Home != h {
		b.log.Info("home", "lat", float64(h.Lat)/1e7, "lon", float64(h.Lon)/1e7, "alt", h.AltHold)
	}
	b.st.Home = &h
}
