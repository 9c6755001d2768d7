// Package config handles configuration loading for the silverfox relay.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. Every field has a default, so an empty file is a valid config.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SILVERFOX_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/silverfox/relay.yaml
//  3. ~/.config/silverfox/relay.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	openclaw:
//	  url: "${OPENCLAW_URL}"
//
// Only the ${VAR_NAME} form is expanded. Unset variables become empty and
// then take the field default.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:3456"
//
//	database:
//	  path: "./data/silverfox.db"
//
//	openclaw:
//	  url: "http://localhost:8080"
//	  session_key: "agent:main:main"
//	  request_timeout: "10s"
//
//	relay:
//	  reply_timeout: "30s"
//	  poll_interval: "1s"
//	  status_interval: "5s"
//	  history_limit: 5
//	  fingerprint_capacity: 1000
//	  max_content_length: 10000
//
//	websocket:
//	  allowed_origins: []   # empty allows any origin
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: false
//	  path: "/metrics"
//
// # Validation
//
// Parse rejects malformed durations, a non-http(s) OpenClaw URL, a poll
// interval longer than the reply timeout, negative limits and unknown log
// levels.
package config
