// Package version provides build and version information for LockStep.
package version

// Version is the current release version of LockStep.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/LockStep/internal/version.Version=x.y.z"
var Version = "0.4.0"
