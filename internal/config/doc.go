// Package config loads the daemon's JSON configuration and resolves the
// single active chain from the YAML chain definitions.
package config
