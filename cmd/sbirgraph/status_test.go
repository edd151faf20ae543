package main

import (
	"testing"

	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

func TestDetermineOverallHealth(t *testing.T) {
	tests := []struct {
		name     string
		status   SystemStatus
		expected types.HealthState
	}{
		{
			name: "healthy graph and ledger",
			status: SystemStatus{
				Graph:  GraphStatus{State: types.HealthStateHealthy},
				Ledger: LedgerStatus{Enabled: true},
			},
			expected: types.HealthStateHealthy,
		},
		{
			name: "unhealthy graph dominates",
			status: SystemStatus{
				Graph:  GraphStatus{State: types.HealthStateUnhealthy},
				Ledger: LedgerStatus{Enabled: true},
			},
			expected: types.HealthStateUnhealthy,
		},
		{
			name: "ledger error degrades",
			status: SystemStatus{
				Graph:  GraphStatus{State: types.HealthStateHealthy},
				Ledger: LedgerStatus{Enabled: true, Error: "disk full"},
			},
			expected: types.HealthStateDegraded,
		},
		{
			name: "degraded graph carries through",
			status: SystemStatus{
				Graph:  GraphStatus{State: types.HealthStateDegraded},
				Ledger: LedgerStatus{Enabled: true},
			},
			expected: types.HealthStateDegraded,
		},
		{
			name: "disabled ledger does not degrade",
			status: SystemStatus{
				Graph:  GraphStatus{State: types.HealthStateHealthy},
				Ledger: LedgerStatus{Enabled: false},
			},
			expected: types.HealthStateHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := determineOverallHealth(tt.status); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
