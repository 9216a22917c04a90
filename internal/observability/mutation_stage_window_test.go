package observability

import (
	"testing"
	"time"
)

func TestMutationStageWindowSnapshot(t *testing.T) {
	w := newMutationStageWindow(8)
	w.Observe("mutation_total", 50)
	w.Observe("mutation_total", 70)
	w.Observe("mutation_total", 90)
	w.ObserveIndicator("social_enrich_failed")
	w.ObserveIndicator("social_enrich_failed")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != "mutation_total" {
		t.Fatalf("Stage = %q, want %q", s.Stage, "mutation_total")
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 90 {
		t.Fatalf("LastMS = %.2f, want 90", s.LastMS)
	}
	if s.P50MS != 70 {
		t.Fatalf("P50MS = %.2f, want 70", s.P50MS)
	}
	if s.P95MS <= 70 || s.P95MS > 90 {
		t.Fatalf("P95MS = %.2f, want (70,90]", s.P95MS)
	}
	if s.TargetP95MS != 600 {
		t.Fatalf("TargetP95MS = %.2f, want 600", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 {
		t.Fatalf("len(Indicators) = %d, want 1", len(snap.Indicators))
	}
	if snap.Indicators[0].Name != "social_enrich_failed" {
		t.Fatalf("Indicators[0].Name = %q, want %q", snap.Indicators[0].Name, "social_enrich_failed")
	}
	if snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators[0].Count = %d, want %d", snap.Indicators[0].Count, 2)
	}
}

func TestMutationStageWindowWraps(t *testing.T) {
	w := newMutationStageWindow(4)
	for i := 0; i < 6; i++ {
		w.Observe("sweep", float64(i+1))
	}

	snap := w.Snapshot()
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Samples != 4 {
		t.Fatalf("Samples = %d, want 4", s.Samples)
	}
	if s.LastMS != 6 {
		t.Fatalf("LastMS = %.2f, want 6", s.LastMS)
	}
	// Window of 4 after 6 observations keeps values 3..6.
	if s.AvgMS != 4.5 {
		t.Fatalf("AvgMS = %.2f, want 4.5", s.AvgMS)
	}
}

func TestMetricsSnapshotMutationStages(t *testing.T) {
	m := NewMetrics("stagetest")
	m.ObserveMutationStage("sweep", 12*time.Millisecond)
	m.ObserveMutationLatency(80 * time.Millisecond)

	snap := m.SnapshotMutationStages()
	if len(snap.Stages) != 2 {
		t.Fatalf("len(Stages) = %d, want 2", len(snap.Stages))
	}
	if snap.Stages[0].Stage != "mutation_total" {
		t.Fatalf("Stages[0].Stage = %q, want %q", snap.Stages[0].Stage, "mutation_total")
	}
	if snap.Stages[1].Stage != "sweep" {
		t.Fatalf("Stages[1].Stage = %q, want %q", snap.Stages[1].Stage, "sweep")
	}
	if snap.Stages[1].LastMS != 12 {
		t.Fatalf("sweep LastMS = %.2f, want 12", snap.Stages[1].LastMS)
	}
}
