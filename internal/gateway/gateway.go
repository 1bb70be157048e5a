// Package gateway shapes outbound generative requests for an AI
// gateway: a request-options fragment plus a deterministic cache key so
// identical requests can be deduplicated by whatever cache sits in
// front of the model call. It has no interaction with tier ordering or
// retries.
package gateway

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// Config describes the gateway a generative tier routes through.
type Config struct {
	// GatewayID identifies the gateway. Required for cache keys.
	GatewayID string
	// AccountID identifies the owning account, if the gateway needs it.
	AccountID string
	// CacheTTL is the cache lifetime in seconds. Defaults to 0.
	CacheTTL int
	// SkipCache bypasses the gateway cache. Defaults to false.
	SkipCache bool
	// Metadata carries opaque per-request metadata.
	Metadata map[string]string
}

// Options is the request-options fragment passed alongside a model
// invocation.
type Options struct {
	Gateway GatewayOptions `json:"gateway"`
}

// GatewayOptions is the gateway block inside Options.
type GatewayOptions struct {
	ID        string            `json:"id"`
	SkipCache bool              `json:"skipCache"`
	CacheTTL  int               `json:"cacheTtl"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// RequestOptions returns the options fragment for this gateway.
func (c Config) RequestOptions() Options {
	return Options{
		Gateway: GatewayOptions{
			ID:        c.GatewayID,
			SkipCache: c.SkipCache,
			CacheTTL:  c.CacheTTL,
			Metadata:  c.Metadata,
		},
	}
}

// CacheKey computes a deterministic key for the given request payload,
// scoped to this gateway. Identical payloads always produce identical
// keys regardless of map iteration order.
func (c Config) CacheKey(payload any) (string, error) {
	if c.GatewayID == "" {
		return "", fmt.Errorf("gateway id is required for cache keys")
	}

	canonical, err := canonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("serialize payload: %w", err)
	}

	h := blake3.New()
	h.Write([]byte(c.GatewayID))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalJSON produces a stable serialization: the payload is
// round-tripped through generic values so object keys are emitted in
// sorted order whether the input was a map or a struct.
func canonicalJSON(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
