package store

import (
	"testing"
	"time"

	"github.com/tolmol-io/tolmol/internal/logbuf"
)

func TestLogEntriesRoundTrip(t *testing.T) {
	st := newTestStore(t)

	base := time.Now().Truncate(time.Millisecond)
	in := []logbuf.Entry{
		{Time: base, Level: "INFO", Message: "trip phase", Attrs: map[string]any{"trip": "t1", "phase": "scouting"}},
		{Time: base.Add(time.Second), Level: "WARN", Message: "fraud signal", Attrs: map[string]any{"session": "s1"}},
	}
	if err := st.AppendLogEntries(in); err != nil {
		t.Fatalf("append: %v", err)
	}

	out, err := st.RecentLogEntries(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d entries, want 2", len(out))
	}
	if out[0].Message != "trip phase" || out[1].Message != "fraud signal" {
		t.Errorf("order = %q, %q, want chronological", out[0].Message, out[1].Message)
	}
	if out[0].Attrs["trip"] != "t1" {
		t.Errorf("attrs = %v", out[0].Attrs)
	}
	if !out[1].Time.Equal(base.Add(time.Second)) {
		t.Errorf("time = %v, want %v", out[1].Time, base.Add(time.Second))
	}
}

func TestRecentLogEntriesLimit(t *testing.T) {
	st := newTestStore(t)

	var in []logbuf.Entry
	for i := 0; i < 5; i++ {
		in = append(in, logbuf.Entry{
			Time: time.Now().Add(time.Duration(i) * time.Second), Level: "INFO", Message: "line",
		})
	}
	if err := st.AppendLogEntries(in); err != nil {
		t.Fatal(err)
	}

	out, err := st.RecentLogEntries(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Errorf("got %d entries, want the newest 3", len(out))
	}
}
