// Package config defines the launcher settings and provides helpers to load,
// validate and save them in YAML format.
//
// Settings are layered: compiled defaults, then an optional YAML file, then
// LAUNCHPAD_* environment variables. The resulting Config is built once at
// startup and passed to every pipeline stage.
package config
