// Package config provides 12-factor configuration management for Relay.
//
// Configuration is layered: Default() first, then an optional TOML file
// named by RELAY_CONFIG, then environment variables. Only variables that
// are actually set override earlier layers.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level, output format and guest sink buffer
//   - Runtime: Entry point name, invoke timeout, call stack limit
//   - Network: User agent, timeouts, rate limit, body cap, breaker
//   - Challenge: Interactive challenge timeout
//   - Cookies: Cookie jar persistence file
//   - Modules: Module catalog directory and glob
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables (section prefixed, e.g. RELAY_SERVER_PORT):
//   - RELAY_SERVER_PORT, RELAY_SERVER_HOST
//   - RELAY_LOGGING_LOG_LEVEL, RELAY_LOGGING_LOG_DEV
//   - RELAY_RUNTIME_INVOKE_TIMEOUT, RELAY_RUNTIME_ENTRY_POINT
//   - RELAY_NETWORK_USER_AGENT, RELAY_NETWORK_REQUEST_TIMEOUT
//   - RELAY_COOKIES_COOKIE_FILE, RELAY_MODULES_MODULE_DIR
//
// The bare names (PORT, LOG_LEVEL, ...) are accepted as fallbacks.
package config
