// ABOUTME: Optional YAML config file, layered under environment variables.
// ABOUTME: Grounded on the teacher's own yaml.v3 usage for its pipeline
// ABOUTME: config files.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the shape of an optional config.yaml in the config dir.
// Every field has an environment-variable equivalent that wins when set,
// matching the teacher's env-overrides-file convention.
type fileConfig struct {
	ListenAddr         string `yaml:"listen_addr"`
	DataDir            string `yaml:"data_dir"`
	PluginsDir         string `yaml:"plugins_dir"`
	MaxWorkflowRestarts *int  `yaml:"max_workflow_restarts"`
	ReactAgentMaxSteps *int   `yaml:"react_agent_max_steps"`
	AnthropicAPIKey    string `yaml:"anthropic_api_key"`
	PrimaryModel       string `yaml:"primary_model"`
	FallbackModel      string `yaml:"fallback_model"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// applyFileConfig sets process environment variables from cfg wherever the
// corresponding variable isn't already set, so the file acts as a default
// layer beneath whatever the environment already specifies.
func applyFileConfig(cfg fileConfig) {
	setIfAbsent("FLOWX_LISTEN_ADDR", cfg.ListenAddr)
	setIfAbsent("FLOWX_DATA_DIR", cfg.DataDir)
	setIfAbsent("FLOWX_PLUGINS_DIR", cfg.PluginsDir)
	setIfAbsent("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	setIfAbsent("FLOWX_PRIMARY_MODEL", cfg.PrimaryModel)
	setIfAbsent("FLOWX_FALLBACK_MODEL", cfg.FallbackModel)
	if cfg.MaxWorkflowRestarts != nil {
		setIfAbsent("MAX_WORKFLOW_RESTARTS", fmt.Sprintf("%d", *cfg.MaxWorkflowRestarts))
	}
	if cfg.ReactAgentMaxSteps != nil {
		setIfAbsent("REACT_AGENT_MAX_STEPS", fmt.Sprintf("%d", *cfg.ReactAgentMaxSteps))
	}
}

func setIfAbsent(key, value string) {
	if value == "" {
		return
	}
	if _, exists := os.LookupEnv(key); !exists {
		os.Setenv(key, value)
	}
}
