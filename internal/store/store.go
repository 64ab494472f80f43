package store

import (
	"errors"

	"github.com/tolmol-io/tolmol/internal/logbuf"
	"github.com/tolmol-io/tolmol/pkg/protocol"
)

// ErrNotFound marks lookups of records that do not exist. A vendor seen for
// the first time is not an error condition for the caller, so the sentinel
// stays checkable through wrapping.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface for trips, vendors and session audit
// records.
type Store interface {
	// SaveTrip creates or updates a trip.
	SaveTrip(t *protocol.TripState) error
	// GetTrip retrieves a trip by ID.
	GetTrip(id string) (*protocol.TripState, error)
	// ListTrips returns trips matching the filter, newest first.
	ListTrips(filter TripFilter) ([]*protocol.TripState, error)
	// UpdateTripPhase advances a trip's phase.
	UpdateTripPhase(id string, phase protocol.TripPhase) error

	// GetVendor retrieves a vendor by canonical phone number.
	GetVendor(phone string) (*protocol.Vendor, error)
	// UpsertVendor creates or refreshes a vendor record. Call statistics
	// are owned by RecordCallResult and never overwritten here.
	UpsertVendor(v *protocol.Vendor) error
	// RecordCallResult atomically folds one answered call into the
	// vendor's statistics and recomputes the trust score.
	RecordCallResult(phone string, success bool, discountPct float64) error
	// BlacklistVendor marks a vendor as permanently excluded.
	BlacklistVendor(phone, reason string) error

	// SaveSession persists a terminal session with its full event log.
	SaveSession(s *protocol.Session) error
	// ListSessions returns all sessions recorded for a trip, oldest first.
	ListSessions(tripID string) ([]*protocol.Session, error)

	// AppendLogEntries durably stores drained daemon log entries.
	AppendLogEntries(entries []logbuf.Entry) error
	// RecentLogEntries returns the newest limit entries, oldest first.
	RecentLogEntries(limit int) ([]logbuf.Entry, error)

	Close() error
}

// TripFilter constrains trip list queries.
type TripFilter struct {
	Phase  *protocol.TripPhase
	Active bool // only non-terminal trips
	UserID string
	Limit  int // 0 = no limit
}
