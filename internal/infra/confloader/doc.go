// Package confloader loads SimVault configuration.
//
// It merges multiple sources through koanf, with the priority
// (highest to lowest):
//
//  1. Command-line flags (merged via LoadMap)
//  2. Environment variables (SIMVAULT_ prefixed)
//  3. YAML configuration file
//  4. Default values
//
// A Watcher based on fsnotify reloads settings that can change at runtime,
// such as the log level.
package confloader
