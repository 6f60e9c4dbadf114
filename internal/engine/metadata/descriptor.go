package metadata

import "sync"

// Kind names a descriptor kind. It labels metrics, logs and history rows.
type Kind string

const (
	KindTypeSystem       Kind = "type_system"
	KindTypePriorities   Kind = "type_priorities"
	KindFsIndexes        Kind = "fs_index_collection"
	KindResourceManager  Kind = "resource_manager_configuration"
	KindExternalOverride Kind = "external_override_settings"
)

func (k Kind) String() string { return string(k) }

// MetaData is the descriptive header shared by all descriptor kinds.
type MetaData struct {
	Name        string
	Description string
	Version     string
	Vendor      string
}

// header holds the fields every importing descriptor has in common.
type header struct {
	MetaData

	// SourceLocator is the absolute locator the descriptor was parsed from,
	// or empty for descriptors built in code.
	SourceLocator string

	imports []*Import

	// mu serializes resolution of one descriptor instance.
	mu sync.Mutex
}

// Imports returns the declared imports. The slice is shared with the
// descriptor.
func (h *header) Imports() []*Import {
	return h.imports
}

// SetImports replaces the import list with a copy of imps. Imports without a
// source inherit the descriptor's locator.
func (h *header) SetImports(imps []*Import) {
	if len(imps) == 0 {
		h.imports = nil
		return
	}
	h.imports = make([]*Import, len(imps))
	copy(h.imports, imps)
	for _, imp := range h.imports {
		imp.SetSourceIfEmpty(h.SourceLocator)
	}
}

// AddImport appends one import declaration.
func (h *header) AddImport(imp *Import) {
	imp.SetSourceIfEmpty(h.SourceLocator)
	h.imports = append(h.imports, imp)
}

func (h *header) clearImports() {
	h.imports = nil
}

// indexOf returns the position of the first element of items for which match
// reports true, or -1.
func indexOf[T any](items []T, match func(T) bool) int {
	for i, it := range items {
		if match(it) {
			return i
		}
	}
	return -1
}

func cloneSlice[T interface{ Clone() T }](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = v.Clone()
	}
	return out
}
