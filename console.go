package main

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-tty"

	"github.com/stronnag/mwmav/pkg/bridge"
)

const consoleHelp = "Keypresses: 'a': arm, 'd': disarm, 'p': panic, 'f': failsafe, 'r': reset failsafe, 'h': return home, 'q': quit"

// console reads operator keypresses on a goroutine; they are acted on from
// the scheduler by drain.
type console struct {
	tty  *tty.TTY
	keys chan rune
	l    hclog.Logger
}

func openConsole(l hclog.Logger) (*console, error) {
	t, err := tty.Open()
	if err != nil {
		return nil, err
	}
	c := &console{tty: t, keys: make(chan rune, 16), l: l}
	go func() {
		defer close(c.keys)
		for {
			r, err := t.ReadRune()
			if err != nil {
				l.Debug("console read", "error", err)
				return
			}
			c.keys <- r
		}
	}()
	fmt.Println(consoleHelp)
	return c, nil
}

// drain handles every pending keypress without blocking.
func (c *console) drain(b *bridge.Bridge, quit func()) {
	for {
		select {
		case r, ok := <-c.keys:
			if !ok {
				return
			}
			c.key(b, r, quit)
		default:
			return
		}
	}
}

func (c *console) key(b *bridge.Bridge, r rune, quit func()) {
	switch r {
	case 'A', 'a':
		c.l.Info("arm requested")
		b.Arm()
	case 'D', 'd':
		c.l.Info("disarm requested")
		b.Disarm()
	case 'P', 'p':
		if err := b.StartPanic(); err != nil {
			c.l.Warn("panic", "error", err)
		}
	case 'F', 'f':
		b.InitiateFailsafe()
	case 'R', 'r':
		b.ResetFailsafe()
	case 'H', 'h':
		if err := b.ReturnHome(); err != nil {
			c.l.Warn("return home", "error", err)
		}
	case 'Q', 'q':
		quit()
	}
}

func (c *console) Close() {
	c.tty.Close()
}
