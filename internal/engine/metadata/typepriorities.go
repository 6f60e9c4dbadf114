package metadata

import "context"

// TypePriorityList orders type names from highest to lowest priority.
type TypePriorityList struct {
	Types []string
}

func (l *TypePriorityList) Clone() *TypePriorityList {
	return &TypePriorityList{Types: append([]string(nil), l.Types...)}
}

func (l *TypePriorityList) AddType(name string) {
	l.Types = append(l.Types, name)
}

type TypePriorities struct {
	header
	lists []*TypePriorityList
}

func NewTypePriorities() *TypePriorities {
	return &TypePriorities{}
}

func (d *TypePriorities) Kind() Kind { return KindTypePriorities }

func (d *TypePriorities) PriorityLists() []*TypePriorityList {
	return d.lists
}

func (d *TypePriorities) SetPriorityLists(lists []*TypePriorityList) {
	d.lists = append([]*TypePriorityList(nil), lists...)
}

// AddPriorityList appends a list holding types, in order.
func (d *TypePriorities) AddPriorityList(types ...string) *TypePriorityList {
	l := &TypePriorityList{Types: append([]string(nil), types...)}
	d.lists = append(d.lists, l)
	return l
}

func (d *TypePriorities) ResolveImports(ctx context.Context) error {
	return d.ResolveImportsWith(ctx, nil)
}

func (d *TypePriorities) ResolveImportsWith(ctx context.Context, rm ResourceManager) error {
	_, err := d.resolve(ctx, nil, rm)
	return err
}

// ResolveImportsLegacy resolves with a caller-supplied set of locators that
// count as already imported.
//
// Deprecated: use ResolveImportsWith.
func (d *TypePriorities) ResolveImportsLegacy(ctx context.Context, alreadyImported []string, rm ResourceManager) error {
	_, err := d.resolve(ctx, alreadyImported, rm)
	return err
}

func (d *TypePriorities) resolve(ctx context.Context, alreadyImported []string, rm ResourceManager) (Stats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return NewImportResolver[*TypePriorityList](KindTypePriorities).Resolve(ctx, typePrioritiesAdapter{d}, alreadyImported, rm)
}
