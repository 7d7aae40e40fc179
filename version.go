package reachctl

import "runtime"

// Version is the current version of reachctl
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string `json:"version"`
	// GoVersion is the toolchain the binary was built with
	GoVersion string `json:"go_version"`
	// Platform is GOOS/GOARCH
	Platform string `json:"platform"`
	// Backends lists the supported backends
	Backends []string `json:"backends"`
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Backends:  []string{BackendNative.String(), BackendContainer.String()},
	}
}
