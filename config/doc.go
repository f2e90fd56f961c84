// Package config defines the daemon configuration and its loader. Values
// resolve in priority order: built-in defaults, then the YAML file, then
// environment variables with the XSTAGE prefix. The loaded configuration is
// validated before use.
package config
