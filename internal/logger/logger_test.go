package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

func TestFileWriter_Defaults(t *testing.T) {
	if w := (Config{}).FileWriter(); w != nil {
		t.Fatalf("expected nil writer when File is empty")
	}
	w := Config{File: "x.log"}.FileWriter()
	l, ok := w.(*lj.Logger)
	if !ok {
		t.Fatalf("writer is not lumberjack.Logger")
	}
	if l.MaxSize != 10 || l.MaxBackups != 3 || l.MaxAge != 7 {
		t.Fatalf("unexpected defaults: size=%d backups=%d age=%d", l.MaxSize, l.MaxBackups, l.MaxAge)
	}
}

func TestFileWriter_Overrides(t *testing.T) {
	w := Config{File: "x.log", MaxSizeMB: 1, MaxBackups: 9, MaxAgeDays: 11, Compress: true}.FileWriter()
	l := w.(*lj.Logger)
	if l.MaxSize != 1 || l.MaxBackups != 9 || l.MaxAge != 11 || !l.Compress {
		t.Fatalf("unexpected overrides: size=%d backups=%d age=%d compress=%t", l.MaxSize, l.MaxBackups, l.MaxAge, l.Compress)
	}
}

func TestParseLevel(t *testing.T) {
	for in, ok := range map[string]bool{"": true, "DEBUG": true, "warn": true, "error": true, "loud": false} {
		if _, err := ParseLevel(in); (err == nil) != ok {
			t.Errorf("ParseLevel(%q) err=%v", in, err)
		}
	}
}

func TestNew_ConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "iniguard.log")
	var console bytes.Buffer

	log, closer, err := New(Config{File: file, Level: "debug"}, &console)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.With("component", "test").Debug("hello", "k", 1)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !strings.Contains(console.String(), `\x1b[36mDEBUG`) || !strings.Contains(console.String(), "hello") {
		t.Fatalf("console missing colored level: %q", console.String())
	}
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "msg=hello") || !strings.Contains(s, "component=test") || strings.Contains(s, "\033[") {
		t.Fatalf("unexpected file content: %q", s)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var console bytes.Buffer
	log, _, err := New(Config{Level: "warn", NoColor: true}, &console)
	if err != nil {
		t.Fatal(err)
	}
	log.Info("quiet")
	log.Warn("loud")
	if strings.Contains(console.String(), "quiet") || !strings.Contains(console.String(), "msg=loud") {
		t.Fatalf("level filter not applied: %q", console.String())
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, _, err := New(Config{Level: "nope"}, nil); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
