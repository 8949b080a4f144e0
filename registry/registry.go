// ABOUTME: Builds the engine.HandlerRegistry from a compiled-in constructor
// ABOUTME: table and cross-checks it against on-disk plugin manifests.
// ABOUTME: Grounded on the Python original's backend/engine/registry.py
// ABOUTME: NodeRegistry.load_plugins, adapted for Go's lack of a safe
// ABOUTME: dynamic-import equivalent to importlib.import_module.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flowxcore/engine/engine"
)

// Constructor builds a NodeHandler instance. Built-in node types register a
// Constructor at package init via Register.
type Constructor func() engine.NodeHandler

var builtins = map[string]Constructor{}

// Register adds a compiled-in node-type constructor, called from each node
// package's init(). Panics on duplicate registration, since that can only
// happen from a programming error at build time, never from user input.
func Register(typ string, ctor Constructor) {
	if _, exists := builtins[typ]; exists {
		panic(fmt.Sprintf("registry: duplicate node type %q", typ))
	}
	builtins[typ] = ctor
}

// Manifest is a plugin directory's declared identity, matching the Python
// original's manifest.json shape: {"id": ..., "backend_class": ...}.
type Manifest struct {
	ID           string `json:"id"`
	BackendClass string `json:"backend_class"`
	Router       string `json:"router,omitempty"`
}

// Warning describes a manifest that could not be matched to a compiled-in
// handler. Surfaced at startup rather than failing the process, since a
// manifest for a not-yet-compiled plugin shouldn't take the whole daemon
// down.
type Warning struct {
	Path    string
	Message string
}

// Build constructs the fallback-free HandlerRegistry from every registered
// builtin, then scans pluginsDir (if non-empty) for manifest.json files and
// returns any that don't correspond to a registered type as Warnings.
func Build(pluginsDir string) (*engine.HandlerRegistry, []Warning) {
	reg := engine.NewHandlerRegistry("")
	for _, ctor := range builtins {
		reg.Register(ctor())
	}

	var warnings []Warning
	if pluginsDir == "" {
		return reg, warnings
	}

	entries, err := os.ReadDir(pluginsDir)
	if err != nil {
		return reg, warnings
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifestPath := filepath.Join(pluginsDir, entry.Name(), "manifest.json")
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			continue
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			warnings = append(warnings, Warning{Path: manifestPath, Message: fmt.Sprintf("invalid manifest json: %v", err)})
			continue
		}
		if _, ok := reg.Get(m.ID); !ok {
			warnings = append(warnings, Warning{
				Path:    manifestPath,
				Message: fmt.Sprintf("manifest declares node type %q (backend_class %q) with no compiled-in handler", m.ID, m.BackendClass),
			})
		}
	}

	return reg, warnings
}
