package ddp

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML client configuration from path.
//
// Example file:
//
//	server: wss://chat.example.com/websocket
//	username: bot
//	password: secret
//	queue_size: 512
//	rate_limit:
//	  messages_per_second: 50
//	  burst: 100
//	  enabled: true
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Server == "" {
		return nil, fmt.Errorf("config %s: server is required", path)
	}
	return &cfg, nil
}
