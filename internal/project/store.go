package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// selectionFile persists the active project name inside the projects root.
const selectionFile = ".selected"

// Files names the manifest and lockfile inside a project directory.
type Files struct {
	Manifest string
	Lockfile string
}

// Store is a projects root holding one directory per project.
type Store struct {
	root  string
	base  string
	files Files
	now   func() time.Time
}

// Open returns the Store rooted at root, creating it if missing. Relative
// roots and project sources resolve against the current working directory.
func Open(root string, files Files) (*Store, error) {
	base, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	if !filepath.IsAbs(root) {
		root = filepath.Join(base, root)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create projects root: %w", err)
	}

	return &Store{root: root, base: base, files: files, now: time.Now}, nil
}

// Root returns the absolute projects root.
func (s *Store) Root() string {
	return s.root
}

// ValidateName rejects names that cannot be used as a single directory.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, filepath.Separator):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	case strings.TrimSpace(name) != name:
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidName, name)
	}

	return nil
}

// List returns project names in sorted order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read projects root: %w", err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() || ValidateName(entry.Name()) != nil {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	return names, nil
}

// Exists reports whether a project named name exists.
func (s *Store) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(s.root, name))

	return err == nil && info.IsDir()
}

// Create makes a new project directory with its settings file. source is
// the scan target; "" means the working directory.
func (s *Store) Create(name, source string) (*Project, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, name)

	// Mkdir (not MkdirAll) so a concurrent create of the same name fails too.
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, name)
		}

		return nil, fmt.Errorf("create project directory: %w", err)
	}

	if source == "" {
		source = "."
	}

	settings := Settings{Source: source, CreatedAt: s.now().UTC().Truncate(time.Second)}
	if err := writeSettings(dir, settings); err != nil {
		return nil, err
	}

	return s.project(name, settings), nil
}

// Get returns the named project.
func (s *Store) Get(name string) (*Project, error) {
	if !s.Exists(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	settings, err := readSettings(filepath.Join(s.root, name))
	if err != nil {
		return nil, err
	}

	return s.project(name, settings), nil
}

func (s *Store) project(name string, settings Settings) *Project {
	dir := filepath.Join(s.root, name)

	source := settings.Source
	if !filepath.IsAbs(source) {
		source = filepath.Join(s.base, source)
	}

	return &Project{
		Name:         name,
		Dir:          dir,
		ManifestPath: filepath.Join(dir, s.files.Manifest),
		LockfilePath: filepath.Join(dir, s.files.Lockfile),
		Source:       source,
		Settings:     settings,
	}
}

func (s *Store) readSelection() string {
	data, err := os.ReadFile(filepath.Join(s.root, selectionFile))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

func (s *Store) writeSelection(name string) error {
	return writeAtomic(filepath.Join(s.root, selectionFile), []byte(name+"\n"))
}

// Session tracks the active project for one process.
type Session struct {
	mu      sync.Mutex
	store   *Store
	current *Project
}

// NewSession returns a multi-layout session, restoring the persisted selection
// when it still names an existing project.
func NewSession(store *Store) *Session {
	s := &Session{store: store}

	if name := store.readSelection(); name != "" {
		if p, err := store.Get(name); err == nil {
			s.current = p
		}
	}

	return s
}

// SingleSession returns a session that always has p selected.
func SingleSession(p *Project) *Session {
	return &Session{current: p}
}

// Store returns the projects store, or nil in the single layout.
func (s *Session) Store() *Store {
	return s.store
}

// IsSingle reports whether the session uses the single layout.
func (s *Session) IsSingle() bool {
	return s.store == nil
}

// Select sets and persists the active project.
func (s *Session) Select(name string) (*Project, error) {
	p, err := s.Use(name)
	if err != nil {
		return nil, err
	}

	if err := s.store.writeSelection(name); err != nil {
		return nil, fmt.Errorf("persist selection: %w", err)
	}

	return p, nil
}

// Use sets the active project for this process only.
func (s *Session) Use(name string) (*Project, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: the single layout has one fixed project", ErrNotFound)
	}

	p, err := s.store.Get(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()

	return p, nil
}

// Current returns the active project.
func (s *Session) Current() (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, ErrNoProjectSelected
	}

	return s.current, nil
}
