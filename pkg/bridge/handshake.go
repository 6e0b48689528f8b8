package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/stronnag/mwmav/pkg/msp"
)

const handshakeInterval = 50 * time.Millisecond

// Handshake fetches a reply that is known to answer the request just sent:
// any cached reply is invalidated first, then the request is repeated until
// a fresh reply is scanned.
type Handshake struct {
	ch       Channel
	clock    Clock
	log      hclog.Logger
	Interval time.Duration
	// Timeout bounds each Fetch; zero waits forever.
	Timeout time.Duration
}

func (h *Handshake) Fetch(ctx context.Context, cmd uint16, payload []byte) ([]byte, error) {
	h.ch.Scan(cmd)
	start := h.clock.Now()
	tries := 0
	for {
		h.ch.Send(cmd, payload)
		tries++
		h.clock.Sleep(ctx, h.Interval)
		if b, ok := h.ch.Scan(cmd); ok {
			h.log.Debug("handshake", "cmd", msp.CmdName(cmd), "tries", tries)
			return b, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", msp.CmdName(cmd), err)
		}
		if h.Timeout > 0 && h.clock.Now().Sub(start) >= h.Timeout {
			return nil, fmt.Errorf("%s after %d requests: %w", msp.CmdName(cmd), tries, ErrHandshakeTimeout)
		}
	}
}

// Init reads the FC configuration. It must complete before the scheduler
// starts.
func (b *Bridge) Init(ctx context.Context) error {
	h := &Handshake{ch: b.ch, clock: b.clock, log: b.log, Interval: handshakeInterval, Timeout: b.cfg.InitTimeout}

	p, err := h.Fetch(ctx, msp.IDENT, nil)
	if err != nil {
		return err
	}
	if b.st.Ident, err = msp.ParseIdent(p); err != nil {
		return fmt.Errorf("ident: %w", err)
	}
	b.log.Info("FC", "version", b.st.Ident.Version, "multitype", b.st.Ident.MultiType, "msp", b.st.Ident.MspVersion)

	if p, err = h.Fetch(ctx, msp.STATUS, nil); err != nil {
		return err
	}
	status, err := msp.ParseStatus(p)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	b.st.Status = status

	for _, cmd := range []uint16{msp.MISC, msp.RC_TUNING} {
		if _, err = h.Fetch(ctx, cmd, nil); err != nil {
			return err
		}
	}

	if p, err = h.Fetch(ctx, msp.BOXIDS, nil); err != nil {
		return err
	}
	b.st.Boxes.setIDs(msp.ParseBoxIds(p))
	b.log.Info("boxes", "supported", b.boxList())
	b.setStatus(status)
	b.ch.Send(msp.BOX, nil)

	if b.st.Status.HasGPS() {
		if _, err = h.Fetch(ctx, msp.NAV_CONFIG, nil); err != nil {
			return err
		}
	}
	b.st.RCCount = 0
	b.buildParams()
	return nil
}

func (b *Bridge) boxList() string {
	var all uint32
	for i := range b.st.Boxes.IDs {
		if i < 32 {
			all |= 1 << uint(i)
		}
	}
	return msp.FormatBoxes(all, b.st.Boxes.IDs)
}
