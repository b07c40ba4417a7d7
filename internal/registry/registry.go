// Package registry implements the Tool Registry: the single source of
// truth at runtime for "given a tool name, get an invocable handle and its
// schema." It layers three provenances (builtIn, userSupplied,
// synthesized) with lookup order userSupplied -> synthesized -> builtIn.
//
// Grounded on internal/agent/registry.go's mutex-guarded map and
// Register/Execute shape, and on mcp.go's callToolInServer name-dispatch
// switch for invoking a resolved handle; builtIn tools that are themselves
// MCP proxies are resolved through github.com/modelcontextprotocol/go-sdk,
// mirroring mcp.go/mcp_internal.go's MCP client usage (§B).
package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"taskforge/internal/model"
)

// Handle is an invocable tool. Builtin Go handles implement it directly;
// synthesized/user-supplied handles are compiled from source text by a
// Loader and also implement it.
type Handle interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// HandleFunc adapts a plain function to Handle.
type HandleFunc func(ctx context.Context, args map[string]any) (any, error)

func (f HandleFunc) Invoke(ctx context.Context, args map[string]any) (any, error) { return f(ctx, args) }

// Loader compiles source text into an invocable Handle. cmd/taskforged
// wires DockerLoader, which runs the source with `go run` inside a sandbox
// container; MCPLoader is an alternative; tests substitute a fake.
type Loader interface {
	Load(name, sourceText string) (Handle, error)
}

// entry is one provenance layer's record of a tool.
type entry struct {
	record model.ToolRecord
	handle Handle // nil until resolved/loaded
}

// Registry is the in-memory, three-provenance tool index.
type Registry struct {
	mu sync.RWMutex

	builtIn     map[string]*entry
	userSupplied map[string]*entry
	synthesized map[string]*entry

	loader  Loader
	catalog Saver

	// mirror, if set, is consulted by ExtractSource for in-memory-registered
	// handles whose source text was not captured at registration time.
	mirror map[string]string

	// loadGroup collapses concurrent Resolve calls that would otherwise
	// each invoke the Loader for the same not-yet-compiled tool name, since
	// multiple in-flight HTTP requests can reference the same
	// freshly-synthesized tool before its handle is cached.
	loadGroup singleflight.Group
}

// Saver is the subset of the catalog.Store the Registry needs to persist
// records; kept narrow so the Registry can be tested without a live store.
type Saver interface {
	Upsert(ctx context.Context, record model.CatalogRecord) error
}

// New constructs an empty Registry.
func New(loader Loader, catalog Saver) *Registry {
	return &Registry{
		builtIn:      map[string]*entry{},
		userSupplied: map[string]*entry{},
		synthesized:  map[string]*entry{},
		loader:       loader,
		catalog:      catalog,
		mirror:       map[string]string{},
	}
}

func (r *Registry) layer(p model.Provenance) map[string]*entry {
	switch p {
	case model.ProvenanceUserSupplied:
		return r.userSupplied
	case model.ProvenanceSynthesized:
		return r.synthesized
	default:
		return r.builtIn
	}
}

// Register stores or updates a tool record with an already-resolved
// handle (used for builtIn tools wired up at startup, and for handles the
// Loader has already produced). Re-registration with the same name
// replaces the record and invalidates any cached handle under that name —
// concretely, replacing the entry wholesale achieves both.
func (r *Registry) Register(record model.ToolRecord, handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	layer := r.layer(record.Provenance)
	layer[record.Name] = &entry{record: record, handle: handle}
}

// RegisterBuiltIn registers a Go-native handle with an explicit schema,
// inferring parameterSchema once at registration from sample if schema is
// nil — per spec.md §9's redesign note ("perform inference once at
// registration and freeze the result").
func (r *Registry) RegisterBuiltIn(name, description string, schema map[string]model.ParameterSchema, sample any, fn HandleFunc) {
	if schema == nil {
		schema = inferSchema(sample)
	}
	now := time.Now().UTC()
	record := model.ToolRecord{
		Name:            name,
		Description:     description,
		ParameterSchema: schema,
		Provenance:      model.ProvenanceBuiltIn,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.Register(record, fn)
}

// inferSchema reflects over sample's exported fields, reading a `tf:"name"`
// / `tf:"name,required"` tag convention analogous to mcp.go's
// jsonschema:"required,description=..." struct tags. Fields with no tag
// are keyed by their lowered Go name. Types unrecognized by the inspector
// are recorded as "any", matching spec.md §4.2.
func inferSchema(sample any) map[string]model.ParameterSchema {
	out := map[string]model.ParameterSchema{}
	if sample == nil {
		return out
	}
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.ToLower(f.Name)
		required := false
		if tag, ok := f.Tag.Lookup("tf"); ok {
			parts := splitTag(tag)
			if len(parts) > 0 && parts[0] != "" {
				name = parts[0]
			}
			for _, p := range parts[1:] {
				if p == "required" {
					required = true
				}
			}
		}
		out[name] = model.ParameterSchema{Type: goKindToType(f.Type.Kind()), Required: required}
	}
	return out
}

func splitTag(tag string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(tag); i++ {
		if i == len(tag) || tag[i] == ',' {
			out = append(out, tag[start:i])
			start = i + 1
		}
	}
	return out
}

func goKindToType(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "sequence"
	case reflect.Map, reflect.Struct:
		return "mapping"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	default:
		return "any"
	}
}

// List returns all records across all three provenances.
func (r *Registry) List() []model.ToolRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.ToolRecord
	for _, layer := range []map[string]*entry{r.builtIn, r.userSupplied, r.synthesized} {
		for _, e := range layer {
			out = append(out, e.record)
		}
	}
	return out
}

// Resolve returns an invocable handle for name, consulting provenances in
// priority order userSupplied -> synthesized -> builtIn. When a record is
// present but has no compiled handle, it loads one from SourceText via the
// Loader; a load failure is reported and the record is left unresolved.
func (r *Registry) Resolve(name string) (Handle, error) {
	r.mu.Lock()
	var pending *entry
	var sourceText string
	for _, p := range []model.Provenance{model.ProvenanceUserSupplied, model.ProvenanceSynthesized, model.ProvenanceBuiltIn} {
		e, ok := r.layer(p)[name]
		if !ok {
			continue
		}
		if e.handle != nil {
			r.mu.Unlock()
			return e.handle, nil
		}
		if e.record.SourceText == "" || r.loader == nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s has no compiled handle and no source text", model.ErrLoadTool, name)
		}
		pending, sourceText = e, e.record.SourceText
		break
	}
	r.mu.Unlock()

	if pending == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownTool, name)
	}

	// Collapse concurrent loads of the same not-yet-compiled tool: several
	// in-flight requests can race to resolve a handle just synthesized for
	// the same name.
	h, err, _ := r.loadGroup.Do(name, func() (any, error) {
		return r.loader.Load(name, sourceText)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrLoadTool, name, err)
	}

	handle := h.(Handle)
	r.mu.Lock()
	pending.handle = handle
	r.mu.Unlock()
	return handle, nil
}

// PriorSchema returns the parameter schema of an existing record under
// name, if any, across all provenances, feeding the Synthesizer's
// backward-compatibility rule (§4.3, §C supplemented "existing-function
// parameter parsing for extension").
func (r *Registry) PriorSchema(name string) (map[string]model.ParameterSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range []model.Provenance{model.ProvenanceUserSupplied, model.ProvenanceSynthesized, model.ProvenanceBuiltIn} {
		if e, ok := r.layer(p)[name]; ok {
			return e.record.ParameterSchema, true
		}
	}
	return nil, false
}

// Save persists record and handle: updates the in-memory index immediately
// (so subsequent Resolve calls in this or other plans see it), then writes
// through to the Catalog. A catalog write failure is non-fatal per §4.2's
// SaveError: the in-memory record is kept and the error is returned for
// the caller to attach as a warning.
func (r *Registry) Save(ctx context.Context, name string, handle Handle, description string, provenance model.Provenance, schema map[string]model.ParameterSchema, sourceText string) error {
	now := time.Now().UTC()
	record := model.ToolRecord{
		Name:            name,
		Description:     description,
		ParameterSchema: schema,
		SourceText:      sourceText,
		Provenance:      provenance,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.Register(record, handle)
	r.mu.Lock()
	r.mirror[name] = sourceText
	r.mu.Unlock()

	if r.catalog == nil {
		return nil
	}
	catRecord := model.CatalogRecord{
		Name:            name,
		Description:     description,
		ParameterSchema: schema,
		SourceText:      sourceText,
		Provenance:      provenance,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.catalog.Upsert(ctx, catRecord); err != nil {
		return fmt.Errorf("%w: %v", model.ErrCatalogSave, err)
	}
	return nil
}

// ExtractSource obtains the original source text of name: the record's
// stored SourceText when present; otherwise the text Save last recorded in
// the in-memory mirror map, else a minimal reconstructed stub. Nothing is
// read from disk.
func (r *Registry) ExtractSource(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range []model.Provenance{model.ProvenanceUserSupplied, model.ProvenanceSynthesized, model.ProvenanceBuiltIn} {
		if e, ok := r.layer(p)[name]; ok && e.record.SourceText != "" {
			return e.record.SourceText
		}
	}
	if text, ok := r.mirror[name]; ok {
		return text
	}
	return fmt.Sprintf("// reconstructed stub for %s: source unavailable\nfunc %s(args map[string]any) (any, error) { return nil, nil }\n", name, name)
}

// Describe returns a human-readable catalog summary for the transport to
// hand the parser (§C supplemented "tool documentation generation").
func (r *Registry) Describe() []ToolDoc {
	records := r.List()
	out := make([]ToolDoc, 0, len(records))
	for _, rec := range records {
		out = append(out, ToolDoc{Name: rec.Name, Description: rec.Description, Provenance: rec.Provenance})
	}
	return out
}

// ToolDoc is a human-readable summary of one registered tool.
type ToolDoc struct {
	Name        string
	Description string
	Provenance  model.Provenance
}
