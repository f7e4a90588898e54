// Package confloader loads configuration with koanf.
//
// Sources, later ones overriding earlier ones:
//
//  1. The defaults already present in the target struct
//  2. A YAML file
//  3. Environment variables (WSMESH_ prefix)
//  4. Command-line overrides passed as a map
//
// Environment variable names map to keys by lowercasing and turning a
// double underscore into a level separator, so
// WSMESH_SESSION__SWEEP_INTERVAL sets session.sweep_interval.
//
// Watcher reports changes of the configuration file for hot reload.
package confloader
