package ptyhost

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// EnvHelperPath overrides the helper binary resolution when set.
const EnvHelperPath = "HARNESS_PTYHELPER_PATH"

const fallbackHelperName = "harness-ptyhelper"

// ResolveHelperPath finds the ptyhelper binary. Resolution order, per
// spec.md §4.2: an explicit path argument, then $HARNESS_PTYHELPER_PATH,
// then a sibling of the current executable, then exec.LookPath as a
// best-effort fallback. Resolution never fails here — a missing helper
// surfaces at spawn time (Start), not at resolve time.
func ResolveHelperPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(EnvHelperPath); v != "" {
		return v
	}
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), "ptyhelper")
		if _, err := os.Stat(sibling); err == nil {
			return sibling
		}
	}
	if p, err := exec.LookPath(fallbackHelperName); err == nil {
		return p
	}
	return fallbackHelperName
}

// errHelperNotFound is returned from Start when the resolved binary can't
// be executed.
func errHelperNotFound(path string, cause error) error {
	return fmt.Errorf("ptyhelper binary %q not found or not executable: %w", path, cause)
}
