// Package config defines the SimVault configuration structure.
//
// The structure is split across three files: spec.go declares the sections,
// default.go supplies the defaults, verify.go validates a loaded
// configuration before use.
package config
