package bridge

import (
	"context"
	"testing"
	"time"
)

func TestSchedulerDivisors(t *testing.T) {
	s := NewScheduler(100)
	var order []string
	counts := map[string]int{}
	for _, tc := range []struct {
		name string
		div  int
	}{{"fast", 1}, {"tenth", 10}, {"half", 50}} {
		name := tc.name
		if err := s.Register(name, tc.div, func() {
			counts[name]++
			order = append(order, name)
		}); err != nil {
			t.Fatal(err)
		}
	}
	s.Tick()
	if len(order) != 3 || order[0] != "fast" || order[1] != "tenth" || order[2] != "half" {
		t.Fatalf("first tick order %v", order)
	}
	for i := 1; i < 200; i++ {
		s.Tick()
	}
	if counts["fast"] != 200 || counts["tenth"] != 20 || counts["half"] != 4 {
		t.Errorf("counts %v", counts)
	}
}

func TestSchedulerRejectsDivisor(t *testing.T) {
	s := NewScheduler(100)
	for _, d := range []int{0, -1, 3, 200} {
		if err := s.Register("bad", d, func() {}); err == nil {
			t.Errorf("divisor %d accepted", d)
		}
	}
}

func TestSchedulerRunStops(t *testing.T) {
	s := NewScheduler(100)
	n := 0
	s.Register("count", 1, func() { n++ })
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx, time.Millisecond); err == nil {
		t.Fatal("expected context error")
	}
	if n == 0 {
		t.Error("no ticks ran")
	}
}

func TestBridgeTaskTable(t *testing.T) {
	b, _ := newTestBridge(t)
	want := []struct {
		name string
		div  int
	}{
		{"feedrc", 1}, {"panic", 10}, {"standby", 10}, {"altitude", 50}, {"attitude", 10},
		{"gps", 50}, {"keepalive", 100}, {"box", 100}, {"analog", 100}, {"failsafe", 50},
	}
	tasks := b.sched.Tasks()
	if len(tasks) != len(want) {
		t.Fatalf("%d tasks", len(tasks))
	}
	for i, w := range want {
		if tasks[i].Name != w.name || tasks[i].Divisor != w.div {
			t.Errorf("task %d: got %s/%d want %s/%d", i, tasks[i].Name, tasks[i].Divisor, w.name, w.div)
		}
	}
}
