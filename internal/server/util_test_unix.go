//go:build !windows

package server

import "path/filepath"

// getPlatformAbsPath returns a clean absolute path on Unix.
func getPlatformAbsPath() string {
	return filepath.Join(string(filepath.Separator), "games", "Engine.ini")
}
