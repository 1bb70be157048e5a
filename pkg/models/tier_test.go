package models

import (
	"testing"
	"time"
)

func TestTier_Valid(t *testing.T) {
	tests := []struct {
		name string
		tier Tier
		want bool
	}{
		{"code", TierCode, true},
		{"generative", TierGenerative, true},
		{"agentic", TierAgentic, true},
		{"human", TierHuman, true},
		{"empty", Tier(""), false},
		{"unknown", Tier("quantum"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tier.Valid(); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.tier, got, tt.want)
			}
		})
	}
}

func TestTierOrder(t *testing.T) {
	want := []Tier{TierCode, TierGenerative, TierAgentic, TierHuman}
	if len(TierOrder) != len(want) {
		t.Fatalf("TierOrder has %d tiers, want %d", len(TierOrder), len(want))
	}
	for i, tier := range want {
		if TierOrder[i] != tier {
			t.Errorf("TierOrder[%d] = %v, want %v", i, TierOrder[i], tier)
		}
	}
}

func TestDefaultTierTimeouts(t *testing.T) {
	tests := []struct {
		tier Tier
		want time.Duration
	}{
		{TierCode, 5 * time.Second},
		{TierGenerative, 30 * time.Second},
		{TierAgentic, 5 * time.Minute},
		{TierHuman, 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			if got := DefaultTierTimeouts[tt.tier]; got != tt.want {
				t.Errorf("DefaultTierTimeouts[%v] = %v, want %v", tt.tier, got, tt.want)
			}
		})
	}
}

func TestTier_Index(t *testing.T) {
	tests := []struct {
		tier Tier
		want int
	}{
		{TierCode, 0},
		{TierGenerative, 1},
		{TierAgentic, 2},
		{TierHuman, 3},
		{Tier("bogus"), -1},
	}

	for _, tt := range tests {
		if got := tt.tier.Index(); got != tt.want {
			t.Errorf("Index(%q) = %d, want %d", tt.tier, got, tt.want)
		}
	}
}

func TestTier_Next(t *testing.T) {
	tests := []struct {
		tier   Tier
		want   Tier
		wantOK bool
	}{
		{TierCode, TierGenerative, true},
		{TierGenerative, TierAgentic, true},
		{TierAgentic, TierHuman, true},
		{TierHuman, "", false},
		{Tier("bogus"), "", false},
	}

	for _, tt := range tests {
		got, ok := tt.tier.Next()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Next(%q) = (%v, %v), want (%v, %v)", tt.tier, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestEscalationEventKind(t *testing.T) {
	if got := EscalationEventKind(TierGenerative); got != EventKind("escalate-to-generative") {
		t.Errorf("EscalationEventKind(generative) = %q", got)
	}
	if got := EscalationEventKind(TierHuman); got != EventKind("escalate-to-human") {
		t.Errorf("EscalationEventKind(human) = %q", got)
	}
}
