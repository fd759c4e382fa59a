// Package tools describes the external Python collaborators pyez delegates
// to: how to invoke them, how to recognize that one is missing, and which
// packages the sync step must leave installed.
package tools

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed collaborators/*.yaml
var collaboratorsFS embed.FS

//go:embed policy.yaml
var policyYAML []byte

// Well-known collaborator and action names.
const (
	Pip      = "pip"
	PipTools = "pip-tools"
	Pipreqs  = "pipreqs"

	ActionScan      = "scan"
	ActionScanWrite = "scan-write"
	ActionCompile   = "compile"
	ActionSync      = "sync"
	ActionList      = "list"
	ActionInstall   = "install"
	ActionVersion   = "version"
)

var placeholderRe = regexp.MustCompile(`\{([a-z]+)\}`)

var knownPlaceholders = map[string]bool{
	"dir":      true,
	"manifest": true,
	"lockfile": true,
	"package":  true,
}

// Collaborator describes one delegated tool, invoked as `python -m <module>`.
type Collaborator struct {
	Name        string            `yaml:"name"`
	DisplayName string            `yaml:"displayName"`
	Description string            `yaml:"description"`
	Package     string            `yaml:"package"`
	Module      string            `yaml:"module"`
	Match       []string          `yaml:"match"`
	MinVersion  string            `yaml:"minVersion"`
	Actions     map[string]Action `yaml:"actions"`
}

// Action is one invocation of a collaborator.
type Action struct {
	Description string   `yaml:"description"`
	Args        []string `yaml:"args"`
}

// Policy holds catalog-wide rules.
type Policy struct {
	MissingSignatures []string `yaml:"missingSignatures"`
	NeverUninstall    []string `yaml:"neverUninstall"`
}

// Catalog is the set of known collaborators.
type Catalog struct {
	collaborators map[string]*Collaborator
	policy        Policy
}

// Invocation is a fully expanded collaborator command, minus the interpreter.
type Invocation struct {
	Tool        string
	Description string
	Args        []string
}

// Default returns the embedded catalog. It panics if the embedded files are
// malformed, which is a build defect.
func Default() *Catalog {
	c, err := load(collaboratorsFS, "collaborators")
	if err != nil {
		panic(fmt.Sprintf("tools: %v", err))
	}

	return c
}

// Load returns the embedded catalog with any *.yaml files in overrideDir
// replacing embedded collaborators of the same name. A missing overrideDir
// is not an error.
func Load(overrideDir string) (*Catalog, error) {
	c := Default()

	if overrideDir == "" {
		return c, nil
	}

	if _, err := os.Stat(overrideDir); os.IsNotExist(err) {
		return c, nil
	}

	overrides, err := load(os.DirFS(overrideDir), ".")
	if err != nil {
		return nil, fmt.Errorf("load collaborator overrides from %s: %w", overrideDir, err)
	}

	for name, collab := range overrides.collaborators {
		c.collaborators[name] = collab
	}

	return c, nil
}

func load(fsys fs.FS, dir string) (*Catalog, error) {
	var policy Policy
	if err := yaml.Unmarshal(policyYAML, &policy); err != nil {
		return nil, fmt.Errorf("unmarshal policy: %w", err)
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read collaborators dir: %w", err)
	}

	specs := make(map[string]*Collaborator, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, readErr := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, entry.Name())))
		if readErr != nil {
			return nil, fmt.Errorf("read collaborator file %s: %w", entry.Name(), readErr)
		}

		var spec Collaborator
		if unmarshalErr := yaml.Unmarshal(data, &spec); unmarshalErr != nil {
			return nil, fmt.Errorf("unmarshal collaborator %s: %w", entry.Name(), unmarshalErr)
		}

		if validateErr := validate(&spec, entry.Name()); validateErr != nil {
			return nil, validateErr
		}

		if _, dup := specs[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate collaborator name %q in %s", spec.Name, entry.Name())
		}

		specs[spec.Name] = &spec
	}

	return &Catalog{collaborators: specs, policy: policy}, nil
}

func validate(spec *Collaborator, filename string) error {
	if spec.Name == "" {
		return fmt.Errorf("collaborator %s: name is required", filename)
	}

	if spec.Module == "" {
		return fmt.Errorf("collaborator %s: module is required", filename)
	}

	if spec.Package == "" {
		spec.Package = spec.Name
	}

	for action, def := range spec.Actions {
		for _, arg := range def.Args {
			for _, m := range placeholderRe.FindAllStringSubmatch(arg, -1) {
				if !knownPlaceholders[m[1]] {
					return fmt.Errorf("collaborator %s: action %s: unknown placeholder {%s}", filename, action, m[1])
				}
			}
		}
	}

	return nil
}

// Get returns the named collaborator.
func (c *Catalog) Get(name string) (*Collaborator, bool) {
	collab, ok := c.collaborators[name]
	return collab, ok
}

// Names returns all collaborator names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.collaborators))
	for name := range c.collaborators {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// NeverUninstall returns the packages the sync step must not remove.
func (c *Catalog) NeverUninstall() []string {
	return append([]string(nil), c.policy.NeverUninstall...)
}

// MissingSignatures returns the stderr fragments that indicate a missing module.
func (c *Catalog) MissingSignatures() []string {
	return append([]string(nil), c.policy.MissingSignatures...)
}

// IsMissingModule reports whether stderr carries a missing-module signature.
func (c *Catalog) IsMissingModule(stderr string) bool {
	for _, sig := range c.policy.MissingSignatures {
		if strings.Contains(stderr, sig) {
			return true
		}
	}

	return false
}

// ToolForArgs returns the collaborator run by args. Only the module named
// after -m is compared, against each collaborator's module and match tokens,
// so paths elsewhere in args never decide the tool. Collaborators without
// match tokens are never reported.
func (c *Catalog) ToolForArgs(args []string) (*Collaborator, bool) {
	module, ok := moduleArg(args)
	if !ok {
		return nil, false
	}

	for _, name := range c.Names() {
		collab := c.collaborators[name]
		if len(collab.Match) == 0 {
			continue
		}

		if collab.Module == module || slices.Contains(collab.Match, module) {
			return collab, true
		}
	}

	return nil, false
}

func moduleArg(args []string) (string, bool) {
	for i, arg := range args {
		if arg == "-m" && i+1 < len(args) {
			return args[i+1], true
		}
	}

	return "", false
}

// Invocation expands action of tool with vars. The returned Args start with
// "-m <module>" and are meant to follow the interpreter path.
func (c *Catalog) Invocation(tool, action string, vars map[string]string) (Invocation, error) {
	collab, ok := c.collaborators[tool]
	if !ok {
		return Invocation{}, fmt.Errorf("unknown collaborator %q", tool)
	}

	def, ok := collab.Actions[action]
	if !ok {
		return Invocation{}, fmt.Errorf("collaborator %q has no action %q", tool, action)
	}

	var missing error

	expand := func(s string) string {
		return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
			key := m[1 : len(m)-1]

			v, ok := vars[key]
			if !ok && missing == nil {
				missing = fmt.Errorf("collaborator %q action %q: missing value for {%s}", tool, action, key)
			}

			return v
		})
	}

	args := make([]string, 0, len(def.Args)+2)
	args = append(args, "-m", collab.Module)

	for _, arg := range def.Args {
		args = append(args, expand(arg))
	}

	desc := expand(def.Description)

	if missing != nil {
		return Invocation{}, missing
	}

	return Invocation{Tool: tool, Description: desc, Args: args}, nil
}
