package game

import (
	"testing"

	"tankarena/internal/config"
)

func TestValidateInputShape(t *testing.T) {
	cases := []struct {
		name         string
		msgType      string
		direction    string
		hasDirection bool
		wantOK       bool
	}{
		{"no direction is valid", "state", "", false, true},
		{"up is valid", "state", "up", true, true},
		{"down is valid", "state", "down", true, true},
		{"left is valid", "state", "left", true, true},
		{"right is valid", "state", "right", true, true},
		{"garbage direction is rejected", "state", "sideways", true, false},
		{"wrong type is rejected", "ping", "up", true, false},
		{"missing type is rejected", "", "", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := ValidateInputShape(tc.msgType, tc.direction, tc.hasDirection, 0)
			if ok != tc.wantOK {
				t.Errorf("ValidateInputShape(%q, %q, %v) ok = %v, want %v", tc.msgType, tc.direction, tc.hasDirection, ok, tc.wantOK)
			}
		})
	}
}

func TestInputValidatorAllowsWithinBurst(t *testing.T) {
	cfg := config.DefaultLimits()
	v := NewInputValidator(cfg)
	defer v.Stop()

	allowed := 0
	for i := 0; i < cfg.MaxInputBurst; i++ {
		if v.Allow("socket-1") {
			allowed++
		}
	}
	if allowed != cfg.MaxInputBurst {
		t.Errorf("expected %d allowed within burst, got %d", cfg.MaxInputBurst, allowed)
	}
	if v.Allow("socket-1") {
		t.Error("expected burst to be exhausted")
	}
}

func TestInputValidatorPerSocketIsolation(t *testing.T) {
	cfg := config.DefaultLimits()
	v := NewInputValidator(cfg)
	defer v.Stop()

	for i := 0; i < cfg.MaxInputBurst; i++ {
		v.Allow("socket-a")
	}
	if !v.Allow("socket-b") {
		t.Error("a different socket's burst should be independent")
	}
}

func TestInputValidatorForget(t *testing.T) {
	cfg := config.DefaultLimits()
	v := NewInputValidator(cfg)
	defer v.Stop()

	for i := 0; i < cfg.MaxInputBurst; i++ {
		v.Allow("socket-1")
	}
	v.Forget("socket-1")
	if !v.Allow("socket-1") {
		t.Error("forgetting a socket should reset its limiter")
	}
}
