// SPDX-License-Identifier: MIT
//
// Package build manages build metadata embedded into the binary at compile
// time via -ldflags: application name, build timestamp, Git commit, and
// semantic version. Defaults are used during development builds.
package build

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// Populated by -ldflags during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "soundviz",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// Initialize copies any ldflags-provided values over the development
// defaults. Call once, early in startup.
func Initialize() error {
	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildTime != "" {
		buildFlags.Time = buildTime
	}
	if buildCommit != "" {
		buildFlags.Commit = buildCommit
	}
	if buildVersion != "" {
		buildFlags.Version = buildVersion
	}
	return nil
}

// GetBuildFlags returns the resolved build metadata.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
