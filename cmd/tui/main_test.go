package main

import (
	"testing"

	"mutfreq/internal/engine"
)

func sampleResult() *engine.Result {
	return &engine.Result{
		TotalPositions:   4,
		MutationCount:    2,
		ConservedCount:   2,
		MutatedPositions: []int{2, 4},
		LowConfPositions: []int{4},
		Positions: []engine.PositionRecord{
			{Position: 1, Reference: "A", Classification: engine.Conserved, Confidence: engine.HighConfidence, Representation: "A (100%)"},
			{Position: 2, Reference: "C", Classification: engine.Mutated, Confidence: engine.HighConfidence, Representation: "C (50%) | C2G (50%)"},
			{Position: 3, Reference: "G", Classification: engine.Conserved, Confidence: engine.HighConfidence, Representation: "G (100%)"},
			{Position: 4, Reference: "T", Classification: engine.Mutated, Confidence: engine.LowConfidence, Representation: "T (50%) | T4- (50%)"},
		},
	}
}

func TestNewModelShowsAllPositions(t *testing.T) {
	m := newModel(sampleResult())
	if got := len(m.list.Items()); got != 4 {
		t.Fatalf("expected 4 items, got %d", got)
	}
	if m.currentMode != modeAll {
		t.Fatalf("expected modeAll, got %v", m.currentMode)
	}
}

func TestCycleMode(t *testing.T) {
	m := newModel(sampleResult())

	m = m.cycleMode()
	if m.currentMode != modeMutated {
		t.Fatalf("expected modeMutated, got %v", m.currentMode)
	}
	if got := len(m.list.Items()); got != 2 {
		t.Fatalf("expected 2 mutated items, got %d", got)
	}

	m = m.cycleMode()
	if m.currentMode != modeLowConf {
		t.Fatalf("expected modeLowConf, got %v", m.currentMode)
	}
	if got := len(m.list.Items()); got != 1 {
		t.Fatalf("expected 1 low-confidence item, got %d", got)
	}

	m = m.cycleMode()
	if m.currentMode != modeAll {
		t.Fatalf("expected modeAll after full cycle, got %v", m.currentMode)
	}
	if got := len(m.list.Items()); got != 4 {
		t.Fatalf("expected 4 items, got %d", got)
	}
}

func TestSetModeResetsSelection(t *testing.T) {
	m := newModel(sampleResult())
	m.list.Select(3)

	m = m.setMode(modeMutated)
	if got := m.list.Index(); got != 0 {
		t.Fatalf("expected selection reset to 0, got %d", got)
	}
	item, ok := m.list.SelectedItem().(listItem)
	if !ok {
		t.Fatal("expected a listItem to be selected")
	}
	if item.rec.Position != 2 {
		t.Fatalf("expected first mutated position 2, got %d", item.rec.Position)
	}
}

func TestFilterValueIncludesPosition(t *testing.T) {
	it := listItem{rec: engine.PositionRecord{Position: 7, Reference: "G"}}
	if got := it.FilterValue(); got != "7 G" {
		t.Fatalf("unexpected filter value %q", got)
	}
}
