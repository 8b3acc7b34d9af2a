// Package version holds the application version string.
package version

// Version can be overridden at build time:
//
//	go build -ldflags "-X github.com/netscane/rovel-desk/pkg/version.Version=..."
var Version = "0.3.1"
