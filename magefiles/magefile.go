//go:build mage

// Package main contains Mage build targets for arxiv-registry developer tooling.
package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	"github.com/pdiddy/arxiv-registry/internal/registry"
)

// projectDirs lists the working directories a research project expects.
var projectDirs = []string{
	"notes",
	".secrets",
}

// registryPath is where the CLI keeps the registry by default.
var registryPath = filepath.Join("notes", registry.DefaultFile)

// Init creates the project directories and an up-to-date registry.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}

	store, err := registry.Open(registryPath, log.New(os.Stderr))
	if err != nil {
		return err
	}
	defer store.Close()
	version, err := store.Init(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Registry %s at schema version %d.\n", registryPath, version)
	return nil
}

const (
	binDir  = "bin"
	binName = "arxiv-registry"
	cmdPkg  = "./cmd/arxiv-registry"
)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Check builds the binary and runs the tests.
func Check() {
	mg.SerialDeps(Build, Test)
}

// Stats prints Go production/test LOC and, when the default registry
// exists, its row counts.
func Stats() error {
	prodLines, err := countGoLines(".", false)
	if err != nil {
		return err
	}
	testLines, err := countGoLines(".", true)
	if err != nil {
		return err
	}
	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)

	if _, err := os.Stat(registryPath); err != nil {
		return nil
	}
	store, err := registry.Open(registryPath, log.New(os.Stderr))
	if err != nil {
		return err
	}
	defer store.Close()
	st, err := store.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Registry works:                 %d\n", st.Items)
	fmt.Printf("Registry searches:              %d\n", st.Searches)
	fmt.Printf("Registry keys (exported):       %d (%d)\n", st.Keys, st.Exported)
	fmt.Printf("Registry fetches:               %d\n", st.Fetches)
	return nil
}

// countGoLines walks the directory tree and counts non-blank lines in Go files.
// If testOnly is true, count only _test.go files; otherwise count non-test .go files.
// Directories starting with "_" or "." are skipped, as the go tool does.
func countGoLines(root string, testOnly bool) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") != testOnly {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			if strings.TrimSpace(sc.Text()) != "" {
				total++
			}
		}
		return sc.Err()
	})
	return total, err
}
