package types

import (
	"testing"
	"time"
)

func TestHealthState_IsValid(t *testing.T) {
	valid := []HealthState{HealthStateHealthy, HealthStateDegraded, HealthStateUnhealthy}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if HealthState("unknown").IsValid() {
		t.Error("unknown state should be invalid")
	}
}

func TestHealthStatus_Constructors(t *testing.T) {
	before := time.Now()

	h := Healthy("connected")
	if h.State != HealthStateHealthy || !h.IsHealthy() {
		t.Errorf("Healthy() state = %v", h.State)
	}
	if h.Message != "connected" {
		t.Errorf("message = %q", h.Message)
	}
	if h.CheckedAt.Before(before) {
		t.Error("CheckedAt should be set to now")
	}

	if Degraded("slow").State != HealthStateDegraded {
		t.Error("Degraded() state mismatch")
	}

	u := Unhealthy("connection refused")
	if u.State != HealthStateUnhealthy || u.IsHealthy() {
		t.Errorf("Unhealthy() state = %v", u.State)
	}
}
