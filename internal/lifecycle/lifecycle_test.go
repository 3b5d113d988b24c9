package lifecycle

import (
	"testing"

	"github.com/fairyhunter13/quantum-tasks/internal/domain"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.Status
		want     bool
	}{
		{domain.StatusPending, domain.StatusProcessing, true},
		{domain.StatusPending, domain.StatusFailed, true},
		{domain.StatusProcessing, domain.StatusCompleted, true},
		{domain.StatusProcessing, domain.StatusFailed, true},
		{domain.StatusCompleted, domain.StatusProcessing, false},
		{domain.StatusFailed, domain.StatusPending, false},
		{domain.StatusPending, domain.StatusCompleted, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestValidateHistory(t *testing.T) {
	ok := []domain.Status{domain.StatusPending, domain.StatusProcessing, domain.StatusCompleted}
	if err := ValidateHistory(ok); err != nil {
		t.Errorf("unexpected error for legal history: %v", err)
	}

	bad := []domain.Status{domain.StatusCompleted, domain.StatusProcessing}
	if err := ValidateHistory(bad); err == nil {
		t.Error("expected error for illegal transition, got nil")
	}
}

func TestValidateCounts(t *testing.T) {
	cases := []struct {
		name    string
		counts  domain.Counts
		wantErr bool
	}{
		{"empty map permitted", domain.Counts{}, false},
		{"valid bitstrings", domain.Counts{"00": 5, "11": 3}, false},
		{"non-binary key", domain.Counts{"02": 1}, true},
		{"empty key", domain.Counts{"": 1}, true},
		{"negative count", domain.Counts{"1": -1}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateCounts(c.counts)
			if c.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !c.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
