// Package config handles configuration loading for the council client.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Every value has a default, so a missing file is not an error
// for LoadOrDefault.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COUNCIL_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/council/config.yaml
//  3. ~/.config/council/config.yaml
//
// Files ending in .toml are decoded as TOML; anything else is YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	server:
//	  url: "${COUNCIL_SERVER_URL}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	conversation:
//	  max_duration: "10m"
//
// # Example
//
//	server:
//	  url: "http://localhost:8000"
//	  request_timeout: "10s"
//
//	conversation:
//	  transport: "stream"   # or "batch"
//	  model: "gpt-4o"
//	  max_duration: "0s"    # disabled
//
//	sentinels:
//	  success:
//	    - "Both agents agree that the problem is solved."
//	  error_prefix: "Error:"
//
//	store:
//	  driver: "memory"      # or "sqlite"
//
//	render:
//	  format: "text"        # or "html"
//
//	logging:
//	  level: "warn"
//	  format: "text"
package config
