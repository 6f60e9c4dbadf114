package metadata

import "context"

// Index kinds.
const (
	IndexKindSorted = "sorted"
	IndexKindSet    = "set"
	IndexKindBag    = "bag"
)

// Key comparators.
const (
	ComparatorStandard = "standard"
	ComparatorReverse  = "reverse"
)

// FsIndexKeyDescription is one sort key: either a feature with a comparator
// or, when TypePriority is set, the type priority ordering.
type FsIndexKeyDescription struct {
	FeatureName  string
	Comparator   string
	TypePriority bool
}

func (k *FsIndexKeyDescription) Clone() *FsIndexKeyDescription {
	c := *k
	return &c
}

type FsIndexDescription struct {
	Label     string
	TypeName  string
	IndexKind string
	Keys      []*FsIndexKeyDescription
}

func (i *FsIndexDescription) Clone() *FsIndexDescription {
	c := *i
	c.Keys = cloneSlice(i.Keys)
	return &c
}

func (i *FsIndexDescription) AddKey(featureName, comparator string) *FsIndexKeyDescription {
	if comparator == "" {
		comparator = ComparatorStandard
	}
	k := &FsIndexKeyDescription{FeatureName: featureName, Comparator: comparator}
	i.Keys = append(i.Keys, k)
	return k
}

type FsIndexCollection struct {
	header
	indexes []*FsIndexDescription
}

func NewFsIndexCollection() *FsIndexCollection {
	return &FsIndexCollection{}
}

func (d *FsIndexCollection) Kind() Kind { return KindFsIndexes }

func (d *FsIndexCollection) FsIndexes() []*FsIndexDescription {
	return d.indexes
}

func (d *FsIndexCollection) SetFsIndexes(indexes []*FsIndexDescription) {
	d.indexes = append([]*FsIndexDescription(nil), indexes...)
}

// AddFsIndex appends an index definition. An empty kind means sorted.
func (d *FsIndexCollection) AddFsIndex(label, typeName, kind string) *FsIndexDescription {
	if kind == "" {
		kind = IndexKindSorted
	}
	i := &FsIndexDescription{Label: label, TypeName: typeName, IndexKind: kind}
	d.indexes = append(d.indexes, i)
	return i
}

// FsIndex returns the first index labelled label, or nil.
func (d *FsIndexCollection) FsIndex(label string) *FsIndexDescription {
	if i := indexOf(d.indexes, func(x *FsIndexDescription) bool { return x.Label == label }); i >= 0 {
		return d.indexes[i]
	}
	return nil
}

func (d *FsIndexCollection) ResolveImports(ctx context.Context) error {
	return d.ResolveImportsWith(ctx, nil)
}

func (d *FsIndexCollection) ResolveImportsWith(ctx context.Context, rm ResourceManager) error {
	_, err := d.resolve(ctx, nil, rm)
	return err
}

// ResolveImportsLegacy resolves with a caller-supplied set of locators that
// count as already imported.
//
// Deprecated: use ResolveImportsWith.
func (d *FsIndexCollection) ResolveImportsLegacy(ctx context.Context, alreadyImported []string, rm ResourceManager) error {
	_, err := d.resolve(ctx, alreadyImported, rm)
	return err
}

func (d *FsIndexCollection) resolve(ctx context.Context, alreadyImported []string, rm ResourceManager) (Stats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return NewImportResolver[*FsIndexDescription](KindFsIndexes).Resolve(ctx, fsIndexAdapter{d}, alreadyImported, rm)
}
