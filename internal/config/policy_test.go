package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/cascade/pkg/models"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}

func TestLoadPolicy(t *testing.T) {
	path := writePolicy(t, `
name: refund-check
actor: payments
total_timeout: 10m
use_default_timeouts: true
tiers:
  code:
    label: rule engine
    timeout: 2s
    max_retries: 1
  generative:
    timeout: 45s
    max_retries: 2
    base_delay: 500ms
`)

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy() error: %v", err)
	}

	if p.Name != "refund-check" || p.Actor != "payments" {
		t.Errorf("name/actor = %q/%q", p.Name, p.Actor)
	}
	if p.TotalTimeout.Std() != 10*time.Minute {
		t.Errorf("total_timeout = %v", p.TotalTimeout.Std())
	}
	if !p.UseDefaultTimeouts {
		t.Error("use_default_timeouts should be true")
	}
	if p.Tiers["code"].Label != "rule engine" {
		t.Errorf("code label = %q", p.Tiers["code"].Label)
	}

	timeouts := p.Timeouts()
	if timeouts.Get(models.TierCode) != 2*time.Second {
		t.Errorf("code timeout = %v", timeouts.Get(models.TierCode))
	}
	if timeouts.Get(models.TierGenerative) != 45*time.Second {
		t.Errorf("generative timeout = %v", timeouts.Get(models.TierGenerative))
	}
	if timeouts.Get(models.TierHuman) != 0 {
		t.Errorf("human timeout = %v, want 0", timeouts.Get(models.TierHuman))
	}

	retry := p.Retry()
	code := retry.Get(models.TierCode)
	if code == nil || code.MaxRetries != 1 {
		t.Errorf("code retry = %+v", code)
	}
	gen := retry.Get(models.TierGenerative)
	if gen == nil || gen.MaxRetries != 2 || gen.BaseDelay != 500*time.Millisecond {
		t.Errorf("generative retry = %+v", gen)
	}
	if retry.Get(models.TierAgentic) != nil {
		t.Error("agentic retry should be nil")
	}
}

func TestLoadPolicy_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "actor: x\n"},
		{"unknown tier", "name: p\ntiers:\n  turbo:\n    max_retries: 1\n"},
		{"bad duration", "name: p\ntotal_timeout: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadPolicy(writePolicy(t, tt.content)); err == nil {
				t.Error("LoadPolicy() succeeded, want error")
			}
		})
	}
}
