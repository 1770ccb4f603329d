package core

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/restfab/internal/schema"
)

// Operation names one generated endpoint.
type Operation string

const (
	OpList    Operation = "list"
	OpGet     Operation = "get"
	OpCreate  Operation = "create"
	OpReplace Operation = "replace"
	OpPatch   Operation = "patch"
	OpDelete  Operation = "delete"
	OpCSV     Operation = "csv"
)

// Operations lists every operation in route registration order.
var Operations = []Operation{OpList, OpCSV, OpCreate, OpGet, OpReplace, OpPatch, OpDelete}

// ParseOperation converts a name such as "delete" into an Operation.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Definition describes one REST resource over a mapped model.
type Definition struct {
	Name   string        // Registry key and default URL segment: "items"
	Label  string        // Display name: "Items"
	Model  *schema.Model // Reflected model
	Prefix string        // Mount path; defaults to "/" + Name

	// Only lists the operations to register; empty means all of them.
	Only []Operation

	// Exclude lists operations that are not registered, applied after Only.
	Exclude []Operation

	// ReadOnly lists columns left out of create, replace, patch and CSV
	// bodies. The primary key is always read-only.
	ReadOnly []string

	// UniqueIdentity allows identity routes to select a unique column with
	// ?by=<column> instead of the primary key.
	UniqueIdentity bool

	// DefaultLimit overrides the configured page size for List. Zero keeps
	// the configured value.
	DefaultLimit int

	// Preparer transforms validated CSV rows before the upsert.
	Preparer Preparer

	// Custom replaces the default Accessor calls of individual operations.
	Custom Overrides
}

// Allows reports whether op is enabled for the resource.
func (d Definition) Allows(op Operation) bool {
	if len(d.Only) > 0 && !slices.Contains(d.Only, op) {
		return false
	}
	for _, ex := range d.Exclude {
		if ex == op {
			return false
		}
	}
	return true
}

// Path returns the mount path of the resource.
func (d Definition) Path() string {
	if d.Prefix != "" {
		return d.Prefix
	}
	return "/" + d.Name
}

var (
	registry   = make(map[string]Definition)
	registryMu sync.RWMutex
)

// Register adds a resource definition to the registry.
// Name defaults to the model's table name. Panics if the name is already
// registered or the definition has no model.
func Register(def Definition) {
	if def.Model == nil {
		panic("register resource: nil model")
	}
	if def.Name == "" {
		def.Name = def.Model.Table
	}
	if def.Label == "" {
		def.Label = def.Model.Name
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Name]; exists {
		panic(fmt.Sprintf("resource already registered: %s", def.Name))
	}
	registry[def.Name] = def
}

// Get returns a resource definition by name.
func Get(name string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[name]
	return def, ok
}

// All returns all registered definitions sorted by name.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Count returns the number of registered resources.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered resources.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Definition)
}
