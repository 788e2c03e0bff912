package memory

import (
	"context"
	"testing"

	"budgetcal/internal/core"
)

func TestExporterReplacesPreviousExport(t *testing.T) {
	ctx := context.Background()
	e := New()

	first := []core.TargetDateForecast{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}
	ref, err := e.ExportForecasts(ctx, 7, first)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if ref != "mem:7:1" {
		t.Errorf("unexpected ref %q", ref)
	}
	first[0].Name = "mutated"

	if _, err := e.ExportForecasts(ctx, 7, []core.TargetDateForecast{{ID: 3, Name: "C"}}); err != nil {
		t.Fatalf("export: %v", err)
	}
	got := e.Exported(7)
	if len(got) != 1 || got[0].Name != "C" {
		t.Fatalf("expected only the latest export, got %+v", got)
	}
	if e.Count() != 2 {
		t.Errorf("expected 2 exports, got %d", e.Count())
	}
	if len(e.Exported(8)) != 0 {
		t.Errorf("other users have no export")
	}
}
