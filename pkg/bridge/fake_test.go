package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/stronnag/mwmav/pkg/msp"
)

type sent struct {
	cmd     uint16
	payload []byte
}

type cached struct {
	data  []byte
	fresh bool
}

// fakeChannel records requests; replies are injected with reply, or from
// onSend to answer requests as an FC would.
type fakeChannel struct {
	sent   []sent
	cache  map[uint16]*cached
	onSend func(cmd uint16, payload []byte)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{cache: make(map[uint16]*cached)}
}

func (f *fakeChannel) Send(cmd uint16, payload []byte) {
	f.sent = append(f.sent, sent{cmd, append([]byte(nil), payload...)})
	if f.onSend != nil {
		f.onSend(cmd, payload)
	}
}

func (f *fakeChannel) Latest(cmd uint16) ([]byte, bool) {
	if c, ok := f.cache[cmd]; ok {
		return c.data, true
	}
	return nil, false
}

func (f *fakeChannel) Scan(cmd uint16) ([]byte, bool) {
	if c, ok := f.cache[cmd]; ok && c.fresh {
		c.fresh = false
		return c.data, true
	}
	return nil, false
}

func (f *fakeChannel) reply(cmd uint16, data []byte) {
	f.cache[cmd] = &cached{data: data, fresh: true}
}

func (f *fakeChannel) count(cmd uint16) int {
	n := 0
	for _, s := range f.sent {
		if s.cmd == cmd {
			n++
		}
	}
	return n
}

func (f *fakeChannel) last(cmd uint16) []byte {
	for j := len(f.sent) - 1; j >= 0; j-- {
		if f.sent[j].cmd == cmd {
			return f.sent[j].payload
		}
	}
	return nil
}

func (f *fakeChannel) clear() {
	f.sent = nil
}

type fakeClock struct {
	now    time.Time
	sleeps int
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.sleeps++
	c.now = c.now.Add(d)
}

// newTestBridge returns a bridge in standby with the given boxes supported.
func newTestBridge(t *testing.T, ids ...uint8) (*Bridge, *fakeChannel) {
	t.Helper()
	ch := newFakeChannel()
	b := New(ch, Config{FailsafeMode: FailsafeDefault, FailsafeTimeout: 10}, hclog.NewNullLogger())
	b.SetClock(&fakeClock{now: time.Unix(1700000000, 0)})
	b.st.Boxes.setIDs(append([]uint8{msp.BOXARM}, ids...))
	b.st.FC = FCStandby
	return b, ch
}

func boxWords(t *testing.T, payload []byte) []uint16 {
	t.Helper()
	if payload == nil {
		t.Fatal("no SET_BOX sent")
	}
	return msp.ParseBoxValues(payload)
}

func nullLog() hclog.Logger {
	return hclog.NewNullLogger()
}
