package main

import "time"

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

// SearchFlags Flag structs to decouple cobra from logic for testing.
type SearchFlags struct {
	Roots      []string
	Suffix     string
	First      bool
	Global     bool
	NoFallback bool
}

type BackupFlags struct {
	ConfigPath string
}

type RemoteFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

type RestoreFlags struct {
	RemoteFlags
}

type StatusFlags struct {
	RemoteFlags
	Local bool
}

type PresetFlags struct {
	Name string
}

type PatchFlags struct {
	Action string
}

type DelayFlags struct {
	Seconds int
	Set     bool
}

type ProbeFlags struct {
	ExePath string
	PIDFile string
}

type WatchFlags struct {
	ExePath  string
	Interval time.Duration
}

type MonitorFlags struct {
	RemoteFlags
	ExePath string
}

type ServeFlags struct {
	Daemonize bool
	LogFile   string
}

type TemplateCreateFlags struct {
	Type   string
	Output string
	AppDir string
	Force  bool
}
