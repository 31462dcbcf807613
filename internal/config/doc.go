// Package config handles configuration loading for parley-gateway.
//
// # Configuration File
//
// Locations (in order):
//
//  1. Path from the --config flag
//  2. Path from PARLEY_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/parley/gateway.yaml
//  4. ~/.config/parley/gateway.yaml
//
// A missing file at one of the implicit locations is not an error;
// Default is used instead. Files ending in .toml are decoded as TOML.
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${PARLEY_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	database:
//	  driver: "sqlite"        # sqlite, postgres, memory
//	  path: "~/.local/share/parley/parley.db"
//	  dsn: "${DATABASE_URL}"  # postgres only
//	  op_timeout: "5s"
//	  read_retries: 3
//	  retry_backoff: "50ms"
//
//	analytics:
//	  kelly_cap: 0.25
//	  default_stake: 100
//	  tiers:
//	    - min_edge: 15
//	      tier: "maximum"
//	    - min_edge: 5
//	      tier: "solid"
//
//	logging:
//	  level: "info"           # debug, info, warn, error
//	  format: "text"          # text, json
//
//	metrics:
//	  enabled: true
//	  addr: "127.0.0.1:9464"
//	  path: "/metrics"
//
//	janitor:
//	  interval: "10m"         # 0 disables
//	  batch_size: 100
//
//	dedupe:
//	  ttl: "5m"
//	  max_size: 10000
//
// Durations use time.ParseDuration syntax.
package config
