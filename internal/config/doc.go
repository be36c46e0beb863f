// Package config loads debugger settings from YAML and KDEBUG_* environment
// variables.
package config
