// Package confloader loads configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Overrides (command-line flags)
//  2. Environment variables
//  3. Configuration file (YAML)
//  4. Default values already present in the target struct
//
// Environment variables carry the REGMESH_ prefix and use a double
// underscore between path segments, so REGMESH_DISTRO__VERIFY_INTERVAL
// sets distro.verify_interval. Watcher reports file changes so callers can
// reload hot settings such as log.level.
package confloader
