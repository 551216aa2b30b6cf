package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"search": {
			"engines": {"tavily": {"api_key": "k"}}
		}
	}`)
	cfg := LoadConfig(path)

	if cfg.Server.Address != ":8100" {
		t.Fatalf("server.address = %q", cfg.Server.Address)
	}
	if cfg.Search.Meta.FusionStrategy != "llm" {
		t.Fatalf("fusion_strategy = %q", cfg.Search.Meta.FusionStrategy)
	}
	if cfg.Search.Meta.MaxLLMResults != 30 {
		t.Fatalf("max_llm_results = %d", cfg.Search.Meta.MaxLLMResults)
	}
	if cfg.Search.CacheTTL != 10*time.Minute {
		t.Fatalf("cache_ttl = %v", cfg.Search.CacheTTL)
	}
	if cfg.Search.Engines["tavily"].APIKey != "k" {
		t.Fatalf("engine credentials not loaded: %+v", cfg.Search.Engines)
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := writeConfig(t, `{
		"search": {
			"meta": {
				"fusion_strategy": "weighted",
				"weights": {"news": {"newsapi": 0.5}}
			}
		},
		"mcp": {
			"servers": {
				"files": {
					"enabled": true,
					"connection_type": "stdio",
					"prefix": "files_",
					"stdio_params": {"command": ["mcp-files"], "env": {"HOME": "/tmp"}}
				},
				"remote": {
					"enabled": true,
					"connection_type": "http_bearer",
					"url": "https://tools.example.com/rpc",
					"authentication": {"token": "secret"},
					"timeout": "45s"
				}
			}
		}
	}`)
	cfg := LoadConfig(path)

	if cfg.Search.Meta.Weights["news"]["newsapi"] != 0.5 {
		t.Fatalf("weights = %v", cfg.Search.Meta.Weights)
	}
	files := cfg.MCP.Servers["files"]
	if files.ConnectionType != "stdio" || len(files.Stdio.Command) != 1 {
		t.Fatalf("files server = %+v", files)
	}
	remote := cfg.MCP.Servers["remote"]
	if remote.URL == "" || remote.Authentication.Token != "secret" {
		t.Fatalf("remote server = %+v", remote)
	}
	if remote.Timeout != 45*time.Second {
		t.Fatalf("remote timeout = %v", remote.Timeout)
	}
}

func TestLoadConfigRejectsBadFusionStrategy(t *testing.T) {
	path := writeConfig(t, `{"search": {"meta": {"fusion_strategy": "vibes"}}}`)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on invalid fusion strategy")
		}
	}()
	LoadConfig(path)
}

func TestRedisConfig(t *testing.T) {
	t.Parallel()
	var r RedisConfig
	if r.Enabled() {
		t.Fatalf("empty redis config must be disabled")
	}
	r.Host = "localhost"
	if err := r.Validate(); err == nil {
		t.Fatalf("host without port must be invalid")
	}
	r.Port = "6379"
	if err := r.Validate(); err != nil {
		t.Fatalf("valid redis config rejected: %v", err)
	}
}
