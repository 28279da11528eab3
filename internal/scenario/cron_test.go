package scenario_test

import (
	"testing"

	"github.com/roundtable/engine/internal/scenario"
)

func TestIsValidCron(t *testing.T) {
	cases := map[string]bool{
		"0 9 * * 1":   true,
		"*/5 * * * *": true,
		"not a cron":  false,
		"":            false,
	}
	for expr, want := range cases {
		if got := scenario.IsValidCron(expr); got != want {
			t.Errorf("IsValidCron(%q) = %v, want %v", expr, got, want)
		}
	}
}
