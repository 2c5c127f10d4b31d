// Package ddp is the public entry point: it builds configured clients
// and re-exports the configuration types.
package ddp

import (
	"github.com/luciancaetano/ddpnet"
	"github.com/luciancaetano/ddpnet/internal/client"
	"github.com/luciancaetano/ddpnet/internal/websocket"
)

type Config = client.Config
type RateLimitConfig = websocket.RateLimitConfig

// New creates a client for cfg. The connection is not dialed until
// Connect is called.
//
// Example:
//
//	client, err := ddp.New(&ddp.Config{
//	    Server:   "wss://chat.example.com/websocket",
//	    Username: "bot",
//	    Password: "secret",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
func New(cfg *Config) (ddpnet.Client, error) {
	return client.New(cfg)
}

// DefaultRateLimitConfig returns an outbound limiter allowing 50 frames
// per second with burst of 100.
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with outbound rate limiting
// disabled, the default.
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
