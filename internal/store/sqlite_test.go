package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tolmol.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testTrip(id string) *protocol.TripState {
	return &protocol.TripState{
		ID: id,
		Request: protocol.TripRequest{
			Destination:   "Manali",
			StartDate:     "2025-06-10",
			EndDate:       "2025-06-13",
			PartySize:     4,
			BudgetMin:     2000,
			BudgetMax:     2800,
			BudgetStretch: 3200,
			Category:      protocol.CategoryTaxi,
		},
		Phase:     protocol.TripPlanning,
		CreatedAt: time.Now(),
	}
}

func TestTripRoundTrip(t *testing.T) {
	s := newTestStore(t)

	trip := testTrip("trip-1")
	if err := s.SaveTrip(trip); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetTrip("trip-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phase != protocol.TripPlanning {
		t.Errorf("phase = %s, want planning", got.Phase)
	}
	if !reflect.DeepEqual(got.Request, trip.Request) {
		t.Errorf("request mangled: %+v", got.Request)
	}
	if got.Deal != nil {
		t.Errorf("deal = %+v, want none", got.Deal)
	}

	// Completing the trip persists the deal through the same upsert.
	trip.Phase = protocol.TripComplete
	trip.Deal = &protocol.Deal{SessionID: "sess-1", VendorPhone: "+919876500000", FinalPrice: 2750}
	if err := s.SaveTrip(trip); err != nil {
		t.Fatalf("save complete: %v", err)
	}
	got, err = s.GetTrip("trip-1")
	if err != nil {
		t.Fatalf("get complete: %v", err)
	}
	if got.Deal == nil || got.Deal.FinalPrice != 2750 {
		t.Errorf("deal = %+v, want final price 2750", got.Deal)
	}
}

func TestGetTripNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetTrip("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateTripPhase(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveTrip(testTrip("trip-1")); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateTripPhase("trip-1", protocol.TripScouting); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.GetTrip("trip-1")
	if got.Phase != protocol.TripScouting {
		t.Errorf("phase = %s, want scouting", got.Phase)
	}

	if err := s.UpdateTripPhase("nope", protocol.TripScouting); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListTripsActive(t *testing.T) {
	s := newTestStore(t)

	live := testTrip("trip-live")
	live.Phase = protocol.TripNegotiating
	done := testTrip("trip-done")
	done.Phase = protocol.TripComplete
	for _, trip := range []*protocol.TripState{live, done} {
		if err := s.SaveTrip(trip); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListTrips(TripFilter{Active: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "trip-live" {
		t.Errorf("active trips = %v, want only trip-live", got)
	}

	all, err := s.ListTrips(TripFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all trips = %d, want 2", len(all))
	}
}

func TestVendorStatsLifecycle(t *testing.T) {
	s := newTestStore(t)

	v := &protocol.Vendor{
		Phone:    "+919876500000",
		Name:     "Manali Travels",
		Category: protocol.CategoryTaxi,
		Location: "manali",
	}
	if err := s.UpsertVendor(v); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// First answered call fails: trust settles at the no-deals baseline.
	if err := s.RecordCallResult(v.Phone, false, 0); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := s.GetVendor(v.Phone)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stats.TotalCalls != 1 || got.Stats.SuccessfulDeals != 0 {
		t.Errorf("stats = %+v, want 1 call, 0 deals", got.Stats)
	}
	if got.Stats.TrustScore != 0.7 {
		t.Errorf("trust = %v, want 0.7", got.Stats.TrustScore)
	}

	// A successful deal pushes trust to the 0.95 cap: 0.5 + 1/2 clamps down.
	if err := s.RecordCallResult(v.Phone, true, 20); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, _ = s.GetVendor(v.Phone)
	if got.Stats.TrustScore != 0.95 {
		t.Errorf("trust = %v, want 0.95", got.Stats.TrustScore)
	}
	if got.Stats.AvgDiscountPct != 10 {
		t.Errorf("avg discount = %v, want 10", got.Stats.AvgDiscountPct)
	}

	// Re-upserting the directory record must not clobber the stats.
	v.Name = "Manali Travels Pvt Ltd"
	if err := s.UpsertVendor(v); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, _ = s.GetVendor(v.Phone)
	if got.Name != "Manali Travels Pvt Ltd" {
		t.Errorf("name not refreshed: %q", got.Name)
	}
	if got.Stats.TotalCalls != 2 {
		t.Errorf("stats clobbered by upsert: %+v", got.Stats)
	}
}

func TestRecordCallResultUnknownVendor(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordCallResult("+910000000000", true, 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBlacklistVendor(t *testing.T) {
	s := newTestStore(t)

	v := &protocol.Vendor{Phone: "+919876500000", Category: protocol.CategoryTaxi}
	if err := s.UpsertVendor(v); err != nil {
		t.Fatal(err)
	}
	if err := s.BlacklistVendor(v.Phone, "otp_request"); err != nil {
		t.Fatalf("blacklist: %v", err)
	}

	got, _ := s.GetVendor(v.Phone)
	if !got.Blacklisted || got.BlacklistReason != "otp_request" {
		t.Errorf("got %+v, want blacklisted with reason", got)
	}
}

func TestSessionAudit(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveTrip(testTrip("trip-1")); err != nil {
		t.Fatal(err)
	}

	sess := &protocol.Session{
		ID:          "sess-1",
		TripID:      "trip-1",
		VendorPhone: "+919876500000",
		Phase:       protocol.PhaseClosing,
		Round:       3,
		FinalPrice:  2750,
		Outcome:     protocol.OutcomeAgreed,
		SafetyFlags: []string{"urgency_pressure"},
		StartedAt:   time.Now(),
		EndedAt:     time.Now(),
	}
	sess.Append(protocol.SpeakerAgent, "namaste, rate kya hai?")
	sess.Append(protocol.SpeakerVendor, "3500 lagega")

	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("save session: %v", err)
	}

	list, err := s.ListSessions("trip-1")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("sessions = %d, want 1", len(list))
	}
	got := list[0]
	if got.Outcome != protocol.OutcomeAgreed || got.FinalPrice != 2750 || got.Round != 3 {
		t.Errorf("session mangled: %+v", got)
	}
	if len(got.SafetyFlags) != 1 || got.SafetyFlags[0] != "urgency_pressure" {
		t.Errorf("safety flags = %v", got.SafetyFlags)
	}
	if len(got.Events) != 2 || got.Events[1].Utterance != "3500 lagega" {
		t.Errorf("event log = %+v, want the two utterances in order", got.Events)
	}
	if got.Events[0].Speaker != protocol.SpeakerAgent {
		t.Errorf("first speaker = %s", got.Events[0].Speaker)
	}
}
