//go:build windows

package server

import "path/filepath"

// getPlatformAbsPath returns a clean absolute path on Windows.
func getPlatformAbsPath() string {
	return filepath.Join("C:\\", "WeGameApps", "Engine.ini")
}
