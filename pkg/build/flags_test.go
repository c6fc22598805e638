// SPDX-License-Identifier: MIT
package build

import "testing"

func TestInitializeDefaults(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	flags := GetBuildFlags()
	if flags.Name == "" {
		t.Error("build name is empty after Initialize")
	}
	if flags.Version == "" {
		t.Error("build version is empty after Initialize")
	}
}

func TestInitializeOverrides(t *testing.T) {
	buildName = "viztest"
	buildVersion = "1.2.3"
	t.Cleanup(func() {
		buildName = ""
		buildVersion = ""
	})

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	flags := GetBuildFlags()
	if flags.Name != "viztest" {
		t.Errorf("Name = %q, want %q", flags.Name, "viztest")
	}
	if flags.Version != "1.2.3" {
		t.Errorf("Version = %q, want %q", flags.Version, "1.2.3")
	}
}
