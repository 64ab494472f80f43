// Package telephony abstracts the outbound call transport. The negotiation
// engine only sees placed calls and utterance events; audio transport and
// speech conversion live behind this interface.
package telephony

import "context"

// EventKind distinguishes inbound events on a live call.
type EventKind string

const (
	// EventUtterance carries transcribed vendor speech.
	EventUtterance EventKind = "utterance"
	// EventEnded signals the remote side hung up or the carrier dropped
	// the call.
	EventEnded EventKind = "ended"
)

// Event is one inbound occurrence on a call.
type Event struct {
	Kind EventKind
	Text string // transcribed speech for EventUtterance
}

// Call is one live placed call.
type Call interface {
	// Send speaks an utterance to the vendor.
	Send(ctx context.Context, utterance string) error
	// Receive blocks for the next inbound event.
	Receive(ctx context.Context) (Event, error)
	// Hangup releases the call. Safe to call more than once.
	Hangup() error
}

// Dialer places outbound calls. PlaceCall blocks until the call is answered
// or fails with protocol.ErrNoAnswer.
type Dialer interface {
	PlaceCall(ctx context.Context, number string) (Call, error)
}
