// Package config loads and merges process configuration for discussiond,
// and manages its standard data/config/cache/state paths.
//
// # Configuration Loading
//
// Load reads from multiple sources in priority order, later sources
// overriding earlier ones:
//
//  1. Global config (~/.config/discussiond/discussiond.json[c])
//  2. Project config (<directory>/.discussiond/discussiond.json[c])
//  3. Environment variables (provider API keys, DISCUSSIOND_ADDR,
//     DISCUSSIOND_SCENARIO_DIR, WE_EVENT_LOG_MAX_SIZE)
//
// .jsonc files may contain // and /* */ comments, stripped before parsing.
//
// # Path Management
//
// Paths follows the XDG Base Directory Specification:
//   - Data: ~/.local/share/discussiond (XDG_DATA_HOME)
//   - Config: ~/.config/discussiond (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/discussiond (XDG_CACHE_HOME)
//   - State: ~/.local/state/discussiond (XDG_STATE_HOME)
package config
