package bridge

import (
	"context"
	"fmt"
	"time"
)

type Task struct {
	Name    string
	Divisor int
	Run     func()
}

// Scheduler runs tasks on a shared base tick. A task fires on the ticks
// where counter%Divisor == 0; tasks fire in registration order.
type Scheduler struct {
	tasks   []Task
	counter int
	modulus int
}

func NewScheduler(modulus int) *Scheduler {
	if modulus <= 0 {
		modulus = LoopModulus
	}
	return &Scheduler{modulus: modulus}
}

// Register appends a task. The divisor must divide the modulus so the task
// keeps a fixed period across counter wraps.
func (s *Scheduler) Register(name string, divisor int, run func()) error {
	if divisor <= 0 || s.modulus%divisor != 0 {
		return fmt.Errorf("task %s: divisor %d does not divide %d", name, divisor, s.modulus)
	}
	s.tasks = append(s.tasks, Task{Name: name, Divisor: divisor, Run: run})
	return nil
}

func (s *Scheduler) Tasks() []Task {
	return s.tasks
}

// Tick runs one base tick.
func (s *Scheduler) Tick() {
	for _, t := range s.tasks {
		if s.counter%t.Divisor == 0 {
			t.Run()
		}
	}
	s.counter++
	if s.counter == s.modulus {
		s.counter = 0
	}
}

// Run ticks every period until ctx is cancelled. Cancellation is only
// observed between ticks.
func (s *Scheduler) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}
