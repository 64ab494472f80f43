package telephony

import (
	"context"
	"fmt"
	"sync"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

// Script drives a ScriptedDialer call: each inbound reply is surfaced in
// order, one per Receive. Used by tests and by the ctl dry-run mode.
type Script struct {
	// Answer controls whether the dial is picked up at all.
	Answer bool
	// Replies are returned in order; when exhausted, Receive reports the
	// call as ended.
	Replies []string
}

// ScriptedDialer is an in-memory Dialer keyed by dialed number.
type ScriptedDialer struct {
	mu      sync.Mutex
	scripts map[string]Script
	calls   map[string]*ScriptedCall
}

// NewScriptedDialer builds a dialer from per-number scripts.
func NewScriptedDialer(scripts map[string]Script) *ScriptedDialer {
	return &ScriptedDialer{
		scripts: scripts,
		calls:   make(map[string]*ScriptedCall),
	}
}

// PlaceCall answers according to the script for the number. Unknown numbers
// never answer.
func (d *ScriptedDialer) PlaceCall(ctx context.Context, number string) (Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	script, ok := d.scripts[number]
	if !ok || !script.Answer {
		return nil, fmt.Errorf("telephony: %s: %w", number, protocol.ErrNoAnswer)
	}

	call := &ScriptedCall{replies: append([]string(nil), script.Replies...)}
	d.calls[number] = call
	return call, nil
}

// CallFor returns the live (or finished) call for a number, for assertions.
func (d *ScriptedDialer) CallFor(number string) *ScriptedCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[number]
}

// ScriptedCall records what the agent said and replays scripted replies.
type ScriptedCall struct {
	mu      sync.Mutex
	replies []string
	sent    []string
	hungUp  bool
}

func (c *ScriptedCall) Send(ctx context.Context, utterance string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hungUp {
		return fmt.Errorf("telephony: send on finished call")
	}
	c.sent = append(c.sent, utterance)
	return nil
}

func (c *ScriptedCall) Receive(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return Event{Kind: EventEnded}, nil
	}
	next := c.replies[0]
	c.replies = c.replies[1:]
	return Event{Kind: EventUtterance, Text: next}, nil
}

func (c *ScriptedCall) Hangup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hungUp = true
	return nil
}

// Sent returns everything the agent spoke on this call.
func (c *ScriptedCall) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// HungUp reports whether the call was released.
func (c *ScriptedCall) HungUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hungUp
}
