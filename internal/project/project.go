// Package project models projects and their dependency manifests.
//
// In the multi layout a projects root holds one directory per project; in
// the single layout the working directory itself is the only project.
package project

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Errors returned by the model.
var (
	ErrDuplicate         = errors.New("a project with that name already exists")
	ErrNotFound          = errors.New("project not found")
	ErrNoProjectSelected = errors.New("no project selected")
	ErrInvalidName       = errors.New("invalid project name")
	ErrInvalidSpecifier  = errors.New("invalid dependency specifier")
)

// placeholderMarker appears in the dependency field's example text.
const placeholderMarker = "e.g.,"

// Project is one dependency-managed tree.
type Project struct {
	Name         string
	Dir          string
	ManifestPath string
	LockfilePath string
	// Source is the directory the import scanner runs against.
	Source   string
	Settings Settings
}

// HasManifest reports whether the manifest file exists.
func (p *Project) HasManifest() bool {
	return isFile(p.ManifestPath)
}

// HasLockfile reports whether the lockfile exists.
func (p *Project) HasLockfile() bool {
	return isFile(p.LockfilePath)
}

// ValidateSpecifier trims spec and rejects empty, placeholder or multi-line input.
func ValidateSpecifier(spec string) (string, error) {
	trimmed := strings.TrimSpace(spec)

	switch {
	case trimmed == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidSpecifier)
	case strings.Contains(trimmed, placeholderMarker):
		return "", fmt.Errorf("%w: placeholder text %q", ErrInvalidSpecifier, trimmed)
	case strings.ContainsAny(trimmed, "\r\n"):
		return "", fmt.Errorf("%w: contains a line break", ErrInvalidSpecifier)
	}

	return trimmed, nil
}

// AddDependency appends one specifier line to the manifest, creating it if needed.
// Existing lines are left untouched.
func (p *Project) AddDependency(spec string) (string, error) {
	clean, err := ValidateSpecifier(spec)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(p.ManifestPath), 0o755); err != nil {
		return "", fmt.Errorf("create project directory: %w", err)
	}

	prefix := ""

	if existing, readErr := os.ReadFile(p.ManifestPath); readErr == nil && len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
		prefix = "\n"
	}

	f, err := os.OpenFile(p.ManifestPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open manifest: %w", err)
	}

	if _, err := f.WriteString(prefix + clean + "\n"); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("append to manifest: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close manifest: %w", err)
	}

	return clean, nil
}

// ReplaceDependencies overwrites the manifest with exactly specs, in order.
// The file is replaced atomically.
func (p *Project) ReplaceDependencies(specs []string) error {
	var buf bytes.Buffer

	for _, spec := range specs {
		clean, err := ValidateSpecifier(spec)
		if err != nil {
			return err
		}

		buf.WriteString(clean)
		buf.WriteByte('\n')
	}

	return writeAtomic(p.ManifestPath, buf.Bytes())
}

// Dependencies reads the manifest, skipping blank and comment lines.
func (p *Project) Dependencies() ([]string, error) {
	f, err := os.Open(p.ManifestPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var specs []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		specs = append(specs, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return specs, nil
}

// Single returns the fixed project of the single layout rooted at dir.
func Single(dir, manifestName, lockName string) *Project {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	return &Project{
		Name:         filepath.Base(abs),
		Dir:          abs,
		ManifestPath: filepath.Join(abs, manifestName),
		LockfilePath: filepath.Join(abs, lockName),
		Source:       abs,
		Settings:     Settings{Source: "."},
	}
}

// ParseScanOutput splits scanner stdout into specifiers, one per non-empty line.
func ParseScanOutput(stdout string) []string {
	var specs []string

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		specs = append(specs, line)
	}

	return specs
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()

		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()

		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}

	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
