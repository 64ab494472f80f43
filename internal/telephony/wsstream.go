package telephony

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

const (
	dialTimeout  = 15 * time.Second
	answerWindow = 45 * time.Second
)

// frame is the wire format spoken with the telephony bridge. The bridge
// owns SIP/PSTN signalling and speech conversion; this client only
// exchanges text.
type frame struct {
	Type   string `json:"type"` // dial, answered, say, utterance, ended
	Number string `json:"number,omitempty"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// WSDialer places calls through a websocket telephony bridge. One websocket
// connection carries one call.
type WSDialer struct {
	// BridgeURL is the ws:// or wss:// endpoint of the bridge.
	BridgeURL string
}

// PlaceCall opens a bridge connection, requests a dial and waits for the
// answered frame. A rejected or unanswered dial returns ErrNoAnswer.
func (d *WSDialer) PlaceCall(ctx context.Context, number string) (Call, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, d.BridgeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("telephony: bridge connect: %w", err)
	}

	if err := conn.WriteJSON(frame{Type: "dial", Number: number}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("telephony: dial request: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(answerWindow))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		conn.Close()
		return nil, fmt.Errorf("telephony: waiting for answer: %w", protocol.ErrNoAnswer)
	}
	conn.SetReadDeadline(time.Time{})

	switch f.Type {
	case "answered":
		return &wsCall{conn: conn}, nil
	case "ended":
		conn.Close()
		return nil, fmt.Errorf("telephony: dial rejected (%s): %w", f.Reason, protocol.ErrNoAnswer)
	default:
		conn.Close()
		return nil, fmt.Errorf("telephony: unexpected frame %q: %w", f.Type, protocol.ErrNoAnswer)
	}
}

type wsCall struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	hangupMu sync.Mutex
	hungUp   bool
}

func (c *wsCall) Send(ctx context.Context, utterance string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	}
	if err := c.conn.WriteJSON(frame{Type: "say", Text: utterance}); err != nil {
		return fmt.Errorf("telephony: send: %w", err)
	}
	return nil
}

func (c *wsCall) Receive(ctx context.Context) (Event, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
	} else {
		c.conn.SetReadDeadline(time.Time{})
	}

	var f frame
	if err := c.conn.ReadJSON(&f); err != nil {
		if ctx.Err() != nil {
			return Event{}, ctx.Err()
		}
		return Event{}, fmt.Errorf("telephony: receive: %w", err)
	}

	switch f.Type {
	case "utterance":
		return Event{Kind: EventUtterance, Text: f.Text}, nil
	case "ended":
		return Event{Kind: EventEnded, Text: f.Reason}, nil
	default:
		return Event{}, fmt.Errorf("telephony: unexpected frame %q", f.Type)
	}
}

func (c *wsCall) Hangup() error {
	c.hangupMu.Lock()
	defer c.hangupMu.Unlock()
	if c.hungUp {
		return nil
	}
	c.hungUp = true

	c.writeMu.Lock()
	c.conn.WriteJSON(frame{Type: "hangup"})
	c.writeMu.Unlock()
	return c.conn.Close()
}
