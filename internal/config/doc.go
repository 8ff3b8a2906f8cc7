// Package config handles configuration loading for tatasbox.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from the TATASBOX_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/tatasbox/config.yaml
//  3. ~/.config/tatasbox/config.yaml
//
// Files ending in .toml are parsed as TOML; everything else as YAML.
//
// # Environment
//
// A .env file in the working directory is loaded before the config file.
// It never overrides variables that are already set. Values can then
// reference environment variables:
//
//	auth:
//	  jwt_secret: "${TATASBOX_JWT_SECRET}"
//
// PORT, when set, overrides server.http_addr as ":$PORT", and
// OPENAI_API_KEY fills llm.api_key when the file leaves it empty.
//
// # Durations
//
// Duration values use Go's time.ParseDuration syntax:
//
//	llm:
//	  timeout: "60s"
//	story:
//	  cache_ttl: "24h"
//
// # Example
//
//	server:
//	  http_addr: ":4000"
//	database:
//	  driver: sqlite          # sqlite | sqlite3 | postgres | redis | file | memory
//	  path: ~/.local/share/tatasbox/tatasbox.db
//	  encryption_key: "${TATASBOX_DB_KEY}"
//	auth:
//	  jwt_secret: "${TATASBOX_JWT_SECRET}"
//	ratelimit:
//	  requests_per_minute: 10
//	  burst: 3
//	journal:
//	  ephemeral_sweep: "0 4 * * *"
//	metrics:
//	  enabled: true
package config
