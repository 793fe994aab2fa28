// Package buildinfo provides build information for SimVault.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/simvault-go/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
