package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerHost != "127.0.0.1" {
		t.Errorf("ServerHost = %q", cfg.ServerHost)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d", cfg.ServerPort)
	}
	if cfg.ListenAddr() != "127.0.0.1:8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr())
	}
	if cfg.BatchSize != 50 || cfg.QueueCapacity != 1000 {
		t.Errorf("writer defaults = %d/%d", cfg.BatchSize, cfg.QueueCapacity)
	}
	if cfg.LLMModel != "gemma3:4b" || cfg.EmbedModel != "nomic-embed-text" {
		t.Errorf("model defaults = %q/%q", cfg.LLMModel, cfg.EmbedModel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_HOST", "0.0.0.0")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CPU_SPIKE_THRESHOLD", "75.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr() != "0.0.0.0:9090" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr())
	}
	if cfg.CPUThreshold != 75.5 {
		t.Errorf("CPUThreshold = %v", cfg.CPUThreshold)
	}
}

func TestLoad_BadNumber(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed SERVER_PORT")
	}
}
