package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"

	"github.com/loykin/iniguard/internal/config"
)

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(b))
}

// resolveRelative anchors relative file locations in cfg at AppDir.
func resolveRelative(cfg *config.Config) {
	cfg.Log.File = underDir(cfg.AppDir, cfg.Log.File)
	cfg.Server.PIDFile = underDir(cfg.AppDir, cfg.Server.PIDFile)
	cfg.Monitor.ExePath = underDir(cfg.AppDir, cfg.Monitor.ExePath)
	cfg.History.DSN = resolveDSN(cfg.AppDir, cfg.History.DSN)
	for i, d := range cfg.History.DSNs {
		cfg.History.DSNs[i] = resolveDSN(cfg.AppDir, d)
	}
}

func underDir(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// resolveDSN anchors relative SQLite files. Other schemes pass through.
func resolveDSN(dir, dsn string) string {
	dsn = strings.TrimSpace(dsn)
	lower := strings.ToLower(dsn)
	switch {
	case dsn == "":
		return dsn
	case strings.HasPrefix(lower, "sqlite://"):
		p := dsn[len("sqlite://"):]
		if p == ":memory:" || strings.HasPrefix(p, "file:") {
			return dsn
		}
		return "sqlite://" + underDir(dir, p)
	case !strings.Contains(dsn, "://"):
		return underDir(dir, dsn)
	}
	return dsn
}

// apiURL derives the local daemon URL from the server section.
func apiURL(cfg *config.Config) string {
	host, port, err := net.SplitHostPort(cfg.Server.Listen)
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	base := "/" + strings.Trim(cfg.Server.BasePath, "/")
	if base == "/" {
		base = ""
	}
	return "http://" + net.JoinHostPort(host, port) + base
}
