// Package config handles configuration loading for menu-gateway.
//
// # Configuration File
//
// The CLI looks for the file in this order:
//
//  1. Path from the MENU_GATEWAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/menu-gateway/gateway.yaml (~/.config when unset)
//
// Files ending in .toml are parsed as TOML; anything else is YAML. A .env
// file in the working directory is loaded first, so its values can feed
// ${VAR} references.
//
// # Example
//
//	server:
//	  http_addr: ":8080"
//	  replay_ttl: "5m"
//
//	backend:
//	  base_url: "https://orders.example.com"
//	  timeout: "30s"
//
//	session:
//	  backend: "sqlite"          # file | sqlite | redis
//	  path: "./sessions.db"
//	  mode: "shared"             # shared | per_connection
//
//	auth:
//	  jwt_secret: "${MENU_GATEWAY_JWT_SECRET}"
//
//	logging:
//	  level: "info"
//	  format: "text"             # text | json
//
// # Environment Variable Expansion
//
// ${VAR_NAME} anywhere in the file is replaced by the variable's value, or
// by the empty string when it is unset.
//
// # Durations
//
// replay_ttl, timeout and redis_ttl use time.ParseDuration syntax ("30s",
// "5m"). A replay_ttl of "0s" disables tools/call replay.
//
// # Relative Paths
//
// session.path, widgets.dir and tailscale.state_dir are resolved against the
// directory holding the config file.
package config
