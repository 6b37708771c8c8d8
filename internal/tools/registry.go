// ABOUTME: Thread-safe registry of tool definitions exposed to the assistant runtime.
// ABOUTME: Handles registration, ordered listing, lookup and schema-level argument checks.

package tools

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tidwall/gjson"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// ErrInvalidArguments indicates arguments do not satisfy the tool's schema.
var ErrInvalidArguments = errors.New("invalid arguments")

// ErrInvalidDefinition indicates a definition is missing a name or has a bad schema.
var ErrInvalidDefinition = errors.New("invalid tool definition")

// Definition describes one tool.
type Definition struct {
	Name            string
	Description     string
	InputSchemaJSON string

	// OutputTemplate is the widget URI the runtime renders for this tool's results.
	OutputTemplate string
	// Invoking and Invoked are short status lines shown while and after the tool runs.
	Invoking string
	Invoked  string
}

// Meta returns the widget metadata advertised with the tool.
func (d *Definition) Meta() map[string]any {
	meta := map[string]any{
		"openai/widgetAccessible": true,
	}
	if d.OutputTemplate != "" {
		meta["openai/outputTemplate"] = d.OutputTemplate
	}
	if d.Invoking != "" {
		meta["openai/toolInvocation/invoking"] = d.Invoking
	}
	if d.Invoked != "" {
		meta["openai/toolInvocation/invoked"] = d.Invoked
	}
	return meta
}

// Registry holds tool definitions in registration order.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Definition
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Definition),
		logger: logger,
	}
}

// Register adds definitions. Either all are added or none are.
func (r *Registry) Register(defs ...*Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if def == nil || def.Name == "" {
			return fmt.Errorf("%w: missing name", ErrInvalidDefinition)
		}
		if !gjson.Valid(def.InputSchemaJSON) {
			return fmt.Errorf("%w: tool '%s' has malformed input schema", ErrInvalidDefinition, def.Name)
		}
		if _, exists := r.tools[def.Name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered", ErrToolCollision, def.Name)
		}
		if _, dup := batch[def.Name]; dup {
			return fmt.Errorf("%w: tool '%s' listed twice", ErrToolCollision, def.Name)
		}
		batch[def.Name] = struct{}{}
	}

	for _, def := range defs {
		r.tools[def.Name] = def
		r.order = append(r.order, def.Name)
	}

	r.logger.Info("=== TOOLS REGISTERED ===",
		"added", len(defs),
		"total_tools", len(r.tools),
	)
	return nil
}

// Get returns the definition for name, or nil.
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all definitions in registration order.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Validate checks that name is registered and args satisfy its schema.
// Empty args are treated as {}.
func (r *Registry) Validate(name string, args []byte) (*Definition, error) {
	def := r.Get(name)
	if def == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if len(args) == 0 || string(args) == "null" {
		args = []byte("{}")
	}
	if !gjson.ValidBytes(args) {
		return def, fmt.Errorf("%w: arguments are not valid JSON", ErrInvalidArguments)
	}
	input := gjson.ParseBytes(args)
	if !input.IsObject() {
		return def, fmt.Errorf("%w: arguments must be a JSON object", ErrInvalidArguments)
	}

	schema := gjson.Parse(def.InputSchemaJSON)

	for _, req := range schema.Get("required").Array() {
		field := req.String()
		if v := input.Get(field); !v.Exists() || v.Type == gjson.Null {
			return def, fmt.Errorf("%w: %s is required", ErrInvalidArguments, field)
		}
	}

	var typeErr error
	schema.Get("properties").ForEach(func(key, prop gjson.Result) bool {
		field := key.String()
		v := input.Get(field)
		if !v.Exists() || v.Type == gjson.Null {
			return true
		}
		if want := prop.Get("type").String(); want != "" && !matchesType(v, want) {
			typeErr = fmt.Errorf("%w: %s must be of type %s", ErrInvalidArguments, field, want)
			return false
		}
		return true
	})
	if typeErr != nil {
		return def, typeErr
	}

	return def, nil
}

// matchesType reports whether v has the JSON Schema primitive type want.
// Unknown types are accepted.
func matchesType(v gjson.Result, want string) bool {
	switch want {
	case "string":
		return v.Type == gjson.String
	case "number":
		return v.Type == gjson.Number
	case "integer":
		return v.Type == gjson.Number && v.Num == float64(int64(v.Num))
	case "boolean":
		return v.Type == gjson.True || v.Type == gjson.False
	case "array":
		return v.IsArray()
	case "object":
		return v.IsObject()
	default:
		return true
	}
}
