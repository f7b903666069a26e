package client

import "time"

// Status mirrors the controller snapshot served by GET /status.
type Status struct {
	ConfigPath          string     `json:"config_path,omitempty"`
	BackupPath          string     `json:"backup_path"`
	BackupExists        bool       `json:"backup_exists"`
	Monitoring          bool       `json:"monitoring"`
	Target              string     `json:"target,omitempty"`
	Running             bool       `json:"running"`
	PID                 int32      `json:"pid,omitempty"`
	PendingRestoreAt    *time.Time `json:"pending_restore_at,omitempty"`
	LastRestoreAt       *time.Time `json:"last_restore_at,omitempty"`
	LastRestoreResult   string     `json:"last_restore_result,omitempty"`
	RestoreDelaySeconds int        `json:"restore_delay_seconds"`
}

// Settings mirrors settings.json.
type Settings struct {
	LastConfigPath      string   `json:"last_config_path"`
	LastSearchPaths     []string `json:"last_search_paths"`
	LastGameSearchPaths []string `json:"last_game_search_paths"`
	RestoreDelaySeconds int      `json:"restore_delay_seconds"`
}

// SearchRequest is the body of POST /search. Empty Roots reuse the last
// search paths on the server.
type SearchRequest struct {
	Roots  []string `json:"roots,omitempty"`
	Suffix string   `json:"suffix,omitempty"`
	First  bool     `json:"first,omitempty"`
	Global bool     `json:"global,omitempty"`
}

// SearchResult lists matched config files.
type SearchResult struct {
	Paths    []string `json:"paths"`
	Roots    []string `json:"roots"`
	FellBack bool     `json:"fell_back"`
}

// RestoreResult reports how far a restore got.
type RestoreResult struct {
	Copied   bool `json:"copied"`
	ReadOnly bool `json:"read_only"`
}

// Preset is one entry of GET /presets.
type Preset struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// PatchResult is returned by the anti-aliasing patch endpoints.
type PatchResult struct {
	Action  string `json:"action"`
	Path    string `json:"path"`
	Changed bool   `json:"changed"`
	Outcome string `json:"outcome,omitempty"`
	Status  string `json:"status"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}
