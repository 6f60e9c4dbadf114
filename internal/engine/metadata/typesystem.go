package metadata

import "context"

// AllowedValue restricts a string subtype to an enumerated value.
type AllowedValue struct {
	String      string
	Description string
}

func (v *AllowedValue) Clone() *AllowedValue {
	c := *v
	return &c
}

type FeatureDescription struct {
	Name          string
	Description   string
	RangeTypeName string
	ElementType   string

	// MultipleReferencesAllowed is nil when the descriptor leaves it unset.
	MultipleReferencesAllowed *bool
}

func (f *FeatureDescription) Clone() *FeatureDescription {
	c := *f
	if f.MultipleReferencesAllowed != nil {
		b := *f.MultipleReferencesAllowed
		c.MultipleReferencesAllowed = &b
	}
	return &c
}

// TypeDescription declares one type of a type system.
type TypeDescription struct {
	Name          string
	Description   string
	SupertypeName string
	Features      []*FeatureDescription
	AllowedValues []*AllowedValue

	// SourceLocator records the descriptor which declared the type.
	SourceLocator string
}

// Clone returns a deep copy. Features and allowed values are copied too, so
// the clone shares no mutable state with the original.
func (t *TypeDescription) Clone() *TypeDescription {
	c := *t
	c.Features = cloneSlice(t.Features)
	c.AllowedValues = cloneSlice(t.AllowedValues)
	return &c
}

func (t *TypeDescription) AddFeature(name, description, rangeTypeName string) *FeatureDescription {
	f := &FeatureDescription{Name: name, Description: description, RangeTypeName: rangeTypeName}
	t.Features = append(t.Features, f)
	return f
}

func (t *TypeDescription) Feature(name string) *FeatureDescription {
	if i := indexOf(t.Features, func(f *FeatureDescription) bool { return f.Name == name }); i >= 0 {
		return t.Features[i]
	}
	return nil
}

// TypeSystemDescription is a list of type declarations plus imports of other
// type systems.
type TypeSystemDescription struct {
	header
	types []*TypeDescription
}

func NewTypeSystemDescription() *TypeSystemDescription {
	return &TypeSystemDescription{}
}

func (d *TypeSystemDescription) Kind() Kind { return KindTypeSystem }

func (d *TypeSystemDescription) Types() []*TypeDescription {
	return d.types
}

func (d *TypeSystemDescription) SetTypes(types []*TypeDescription) {
	d.types = append([]*TypeDescription(nil), types...)
}

// AddType appends a new type declaration and returns it.
func (d *TypeSystemDescription) AddType(name, description, supertypeName string) *TypeDescription {
	t := &TypeDescription{
		Name:          name,
		Description:   description,
		SupertypeName: supertypeName,
		SourceLocator: d.SourceLocator,
	}
	d.types = append(d.types, t)
	return t
}

// Type returns the first declaration of name, or nil.
func (d *TypeSystemDescription) Type(name string) *TypeDescription {
	if i := indexOf(d.types, func(t *TypeDescription) bool { return t.Name == name }); i >= 0 {
		return d.types[i]
	}
	return nil
}

// ResolveImports merges all transitively imported types into d using a
// default resource manager.
func (d *TypeSystemDescription) ResolveImports(ctx context.Context) error {
	return d.ResolveImportsWith(ctx, nil)
}

// ResolveImportsWith merges all transitively imported types into d. Imports
// are looked up and cached through rm.
func (d *TypeSystemDescription) ResolveImportsWith(ctx context.Context, rm ResourceManager) error {
	_, err := d.resolve(ctx, nil, rm)
	return err
}

// ResolveImportsLegacy resolves with a caller-supplied set of locators that
// count as already imported.
//
// Deprecated: use ResolveImportsWith.
func (d *TypeSystemDescription) ResolveImportsLegacy(ctx context.Context, alreadyImported []string, rm ResourceManager) error {
	_, err := d.resolve(ctx, alreadyImported, rm)
	return err
}

func (d *TypeSystemDescription) resolve(ctx context.Context, alreadyImported []string, rm ResourceManager) (Stats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return NewImportResolver[*TypeDescription](KindTypeSystem).Resolve(ctx, typeSystemAdapter{d}, alreadyImported, rm)
}
