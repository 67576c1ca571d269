package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nugget/servicebridge/examples"
)

// runInit writes the example configuration into dir. An existing file
// is never overwritten.
func runInit(w io.Writer, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	// The config may hold API keys.
	configPath := filepath.Join(dir, "servicebridge.yaml")
	written, err := writeIfMissing(configPath, examples.ConfigYAML, 0o600)
	if err != nil {
		return err
	}
	if written {
		fmt.Fprintf(w, "  ✓ %s\n", configPath)
	} else {
		fmt.Fprintf(w, "  - %s (exists, left unchanged)\n", configPath)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Set baseUrl and apiKey for MoviePilot in servicebridge.yaml, then run:")
	fmt.Fprintln(w, "  servicebridge tools")
	return nil
}

// writeIfMissing writes content to path only if the file does not already
// exist. It reports whether it wrote.
func writeIfMissing(path string, content []byte, perm os.FileMode) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, content, perm); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
