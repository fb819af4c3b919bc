// Package config handles configuration loading for chatsync.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The file extension selects the format: .toml is parsed as TOML,
// anything else as YAML. Missing optional values get defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CHATSYNC_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/chatsync/config.yaml
//  3. ~/.config/chatsync/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  token: "${CHATSYNC_TOKEN}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  request_timeout: "15s"
//	sync:
//	  dedupe_ttl: "5m"
//
// # Configuration Sections
//
// Server endpoints:
//
//	server:
//	  base_url: "https://chat.example.com/api"   # required, http or https
//	  socket_url: "wss://chat.example.com/ws"    # optional, derived from base_url
//	  request_timeout: "15s"
//
// Conversation sync:
//
//	sync:
//	  dedupe_incoming: false   # drop redelivered live messages
//	  dedupe_ttl: "5m"
//	  dedupe_max: 1000
//
// Logging:
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text or json
//
// The same layout in TOML:
//
//	[server]
//	base_url = "http://localhost:5001"
//
//	[auth]
//	token = "${CHATSYNC_TOKEN}"
package config
