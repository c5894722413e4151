// Package config loads flowcanvas runtime settings from YAML or JSON.
//
// A Config is a loosely typed view over the decoded document; Settings is
// the typed result the CLI consumes.
//
//	cfg, err := config.FromFile("flowcanvas.yaml")
//	if err != nil {
//	    return err
//	}
//	settings, err := config.SettingsFrom(cfg)
//
// Example file:
//
//	endpoint: https://api.openai.com/v1/completions
//	timeout: 30s
//	log_level: debug
//	history_path: ./runs.db
//
// Keys can also be set through the environment with a FLOWCANVAS_ prefix
// (FLOWCANVAS_LOG_LEVEL=debug); FromEnv collects them and Merge lays them
// over a file.
package config
