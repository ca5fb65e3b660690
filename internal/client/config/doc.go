// Package config loads runtime settings for the AuthKeeper CLI client.
//
// Values are resolved in order: built-in defaults, then an optional JSON
// file given with -c / -config, then short command-line flags. Later sources
// win.
package config
