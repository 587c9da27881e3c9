package planner

import (
	"errors"
	"testing"
)

func TestPlan_TargetMetOnFirstPage(t *testing.T) {
	// First page covering the target always plans zero additional pages,
	// whatever the pagination metadata says.
	cases := []struct {
		target, yield, detected, cap int
	}{
		{5, 8, 100, 25},
		{20, 20, 3, 25},
		{1, 1, 0, 0},
		{100, 150, 2, 1},
	}
	for _, c := range cases {
		got, err := Plan(c.target, c.yield, c.detected, c.cap)
		if err != nil {
			t.Fatalf("Plan(%+v): %v", c, err)
		}
		if got != 0 {
			t.Errorf("Plan(%+v) = %d, want 0", c, got)
		}
	}
}

func TestPlan_ClampedByDetectedTotal(t *testing.T) {
	// target 100, yield 20, 3 pages known to exist: 3 pages total, so 2 more.
	got, err := Plan(100, 20, 3, 25)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got != 2 {
		t.Fatalf("Plan = %d additional pages, want 2", got)
	}
}

func TestPlan_ClampedByCap(t *testing.T) {
	got, err := Plan(1000, 20, 0, 10)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got != 9 {
		t.Fatalf("Plan = %d, want 9", got)
	}
}

func TestPlan_LowYieldUsesNominalPageSize(t *testing.T) {
	// A heavily filtered first page must not balloon the plan: the per-page
	// divisor floors at the portal's nominal 20 per page.
	got, err := Plan(50, 5, 0, 25)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got != 2 {
		t.Fatalf("Plan = %d, want 2", got)
	}
}

func TestPlan_ZeroYieldIsExtractionFailure(t *testing.T) {
	_, err := Plan(10, 0, 0, 25)
	if !errors.Is(err, ErrNoRecordsExtracted) {
		t.Fatalf("err = %v, want ErrNoRecordsExtracted", err)
	}
}
