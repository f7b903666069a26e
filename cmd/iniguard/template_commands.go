package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/loykin/iniguard/pkg/template"
)

const defaultConfigName = "iniguard.toml"

// TemplateCreate writes a config skeleton of the requested type.
func (c *command) TemplateCreate(f TemplateCreateFlags) error {
	outputPath := f.Output
	if outputPath == "" {
		outputPath = defaultConfigName
	}

	if _, err := os.Stat(outputPath); err == nil && !f.Force {
		return fmt.Errorf("config file '%s' already exists (use --force to overwrite)", outputPath)
	}

	generator := template.NewGenerator()
	content, err := generator.GenerateTOML(template.TemplateType(f.Type), f.AppDir)
	if err != nil {
		return fmt.Errorf("failed to generate template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	_, _ = fmt.Fprintf(c.stdout(), "Config '%s' created: %s\n", f.Type, outputPath)
	_, _ = fmt.Fprintf(c.stdout(), "Edit it and start the daemon with: iniguard serve --config %s\n", outputPath)
	return nil
}
