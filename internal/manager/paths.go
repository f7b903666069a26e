package manager

import (
	"os"
	"path/filepath"
)

// Paths is the on-disk layout below the application directory.
type Paths struct {
	AppDir       string `json:"app_dir"`
	PresetDir    string `json:"preset_dir"`
	BackupFile   string `json:"backup_file"`
	SettingsFile string `json:"settings_file"`
}

// NewPaths derives the layout from appDir. An empty appDir means the
// working directory.
func NewPaths(appDir string) Paths {
	if appDir == "" {
		if wd, err := os.Getwd(); err == nil {
			appDir = wd
		} else {
			appDir = "."
		}
	}
	return Paths{
		AppDir:       appDir,
		PresetDir:    filepath.Join(appDir, "ini", "v5"),
		BackupFile:   filepath.Join(appDir, "ini", "yuan", "Engine.ini"),
		SettingsFile: filepath.Join(appDir, "settings.json"),
	}
}
