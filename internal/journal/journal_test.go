package journal

import (
	"testing"
)

func TestAppendAndReadBack(t *testing.T) {
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()

	entries := []Entry{
		{Run: "run-1", Phase: "ensure-bucket", Outcome: OutcomeOK},
		{Run: "run-1", Phase: "upload", Key: "1700_a.txt", Outcome: OutcomeOK},
		{Run: "run-1", Phase: "upload", Outcome: OutcomeSkipped},
		{Run: "run-1", Phase: "upload", Key: "1700_b.txt", Outcome: OutcomeFailed, Error: "backend down"},
		{Run: "run-2", Phase: "ensure-bucket", Outcome: OutcomeOK},
	}
	for _, e := range entries {
		if err := j.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := j.Run("run-1")
	if err != nil {
		t.Fatalf("read run-1: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("run-1 entries: %d, want 4", len(got))
	}
	// Append order preserved.
	for i, e := range got {
		if e.Phase != entries[i].Phase || e.Key != entries[i].Key || e.Outcome != entries[i].Outcome {
			t.Fatalf("entry %d: %+v, want %+v", i, e, entries[i])
		}
		if e.At.IsZero() {
			t.Fatalf("entry %d missing timestamp", i)
		}
	}
	if got[3].Error != "backend down" {
		t.Fatalf("failure error %q", got[3].Error)
	}

	other, err := j.Run("run-2")
	if err != nil {
		t.Fatalf("read run-2: %v", err)
	}
	if len(other) != 1 {
		t.Fatalf("run-2 entries: %d, want 1", len(other))
	}

	if none, _ := j.Run("run-3"); len(none) != 0 {
		t.Fatalf("run-3 entries: %v, want none", none)
	}
}
