package gateway

import (
	"encoding/json"
	"testing"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{GatewayID: "gw-1"}
	opts := cfg.RequestOptions()

	if opts.Gateway.ID != "gw-1" {
		t.Errorf("ID = %q, want gw-1", opts.Gateway.ID)
	}
	if opts.Gateway.SkipCache {
		t.Error("SkipCache should default to false")
	}
	if opts.Gateway.CacheTTL != 0 {
		t.Errorf("CacheTTL = %d, want 0", opts.Gateway.CacheTTL)
	}
}

func TestRequestOptions_JSONShape(t *testing.T) {
	cfg := Config{
		GatewayID: "gw-1",
		CacheTTL:  3600,
		SkipCache: true,
		Metadata:  map[string]string{"team": "payments"},
	}

	raw, err := json.Marshal(cfg.RequestOptions())
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	gw, ok := decoded["gateway"].(map[string]any)
	if !ok {
		t.Fatalf("no gateway block in %s", raw)
	}
	if gw["id"] != "gw-1" {
		t.Errorf("gateway.id = %v", gw["id"])
	}
	if gw["skipCache"] != true {
		t.Errorf("gateway.skipCache = %v, want true", gw["skipCache"])
	}
	if gw["cacheTtl"] != float64(3600) {
		t.Errorf("gateway.cacheTtl = %v, want 3600", gw["cacheTtl"])
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	cfg := Config{GatewayID: "gw-1"}

	type payload struct {
		Prompt string `json:"prompt"`
		Model  string `json:"model"`
	}
	p := payload{Prompt: "hello", Model: "m1"}

	k1, err := cfg.CacheKey(p)
	if err != nil {
		t.Fatalf("CacheKey() error: %v", err)
	}
	k2, err := cfg.CacheKey(p)
	if err != nil {
		t.Fatalf("CacheKey() error: %v", err)
	}
	if k1 != k2 {
		t.Errorf("identical payloads produced different keys: %s vs %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(k1))
	}

	// A different payload produces a different key.
	k3, err := cfg.CacheKey(payload{Prompt: "goodbye", Model: "m1"})
	if err != nil {
		t.Fatalf("CacheKey() error: %v", err)
	}
	if k3 == k1 {
		t.Error("different payloads produced the same key")
	}

	// So does a different gateway over the same payload.
	k4, err := Config{GatewayID: "gw-2"}.CacheKey(p)
	if err != nil {
		t.Fatalf("CacheKey() error: %v", err)
	}
	if k4 == k1 {
		t.Error("different gateways produced the same key")
	}
}

func TestCacheKey_MapOrderIndependent(t *testing.T) {
	cfg := Config{GatewayID: "gw-1"}

	// Maps with the same entries must hash identically, and a struct
	// must hash the same as its map equivalent.
	m := map[string]any{"b": 2, "a": 1, "c": map[string]any{"y": 2, "x": 1}}
	k1, err := cfg.CacheKey(m)
	if err != nil {
		t.Fatalf("CacheKey() error: %v", err)
	}

	type inner struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	s := struct {
		A int   `json:"a"`
		B int   `json:"b"`
		C inner `json:"c"`
	}{A: 1, B: 2, C: inner{X: 1, Y: 2}}
	k2, err := cfg.CacheKey(s)
	if err != nil {
		t.Fatalf("CacheKey() error: %v", err)
	}

	if k1 != k2 {
		t.Errorf("equivalent payloads produced different keys: %s vs %s", k1, k2)
	}
}

func TestCacheKey_RequiresGatewayID(t *testing.T) {
	if _, err := (Config{}).CacheKey("anything"); err == nil {
		t.Error("CacheKey() without gateway ID should fail")
	}
}
