package metadata

import (
	"context"

	"metadesc/internal/core/errors"
	"metadesc/internal/engine/resource"
)

// Adapter exposes one collectible list of a descriptor kind to the resolver.
// Adapters over imported descriptors are only read; ClearImports and
// SetCollectibles are called on the root alone.
type Adapter[T any] interface {
	Imports() []*Import
	ClearImports()
	Collectibles() []T
	SetCollectibles([]T)
	SourceLocator() string
	Unwrap() any

	// Load returns an adapter over the descriptor published at locator,
	// going through rm's import cache.
	Load(ctx context.Context, rm ResourceManager, locator string) (Adapter[T], error)
}

// loadAs loads locator through rm and checks that the cached descriptor is
// of kind D.
func loadAs[D any](ctx context.Context, rm ResourceManager, locator string, parse resource.ParseFunc) (D, error) {
	var zero D
	v, err := rm.Load(ctx, locator, parse)
	if err != nil {
		return zero, err
	}
	d, ok := v.(D)
	if !ok {
		return zero, errors.AddContext(
			errors.Newf(errors.CodeInvalidDescriptor, "descriptor is a %T, not a %T", v, zero),
			errors.CtxLocator, locator)
	}
	return d, nil
}

type typeSystemAdapter struct{ d *TypeSystemDescription }

func (a typeSystemAdapter) Imports() []*Import                    { return a.d.imports }
func (a typeSystemAdapter) ClearImports()                         { a.d.clearImports() }
func (a typeSystemAdapter) Collectibles() []*TypeDescription      { return a.d.types }
func (a typeSystemAdapter) SetCollectibles(ts []*TypeDescription) { a.d.types = ts }
func (a typeSystemAdapter) SourceLocator() string                 { return a.d.SourceLocator }
func (a typeSystemAdapter) Unwrap() any                           { return a.d }

func (a typeSystemAdapter) Load(ctx context.Context, rm ResourceManager, locator string) (Adapter[*TypeDescription], error) {
	d, err := loadAs[*TypeSystemDescription](ctx, rm, locator, parseTypeSystemAny)
	if err != nil {
		return nil, err
	}
	return typeSystemAdapter{d}, nil
}

type typePrioritiesAdapter struct{ d *TypePriorities }

func (a typePrioritiesAdapter) Imports() []*Import                     { return a.d.imports }
func (a typePrioritiesAdapter) ClearImports()                          { a.d.clearImports() }
func (a typePrioritiesAdapter) Collectibles() []*TypePriorityList      { return a.d.lists }
func (a typePrioritiesAdapter) SetCollectibles(ls []*TypePriorityList) { a.d.lists = ls }
func (a typePrioritiesAdapter) SourceLocator() string                  { return a.d.SourceLocator }
func (a typePrioritiesAdapter) Unwrap() any                            { return a.d }

func (a typePrioritiesAdapter) Load(ctx context.Context, rm ResourceManager, locator string) (Adapter[*TypePriorityList], error) {
	d, err := loadAs[*TypePriorities](ctx, rm, locator, parseTypePrioritiesAny)
	if err != nil {
		return nil, err
	}
	return typePrioritiesAdapter{d}, nil
}

type fsIndexAdapter struct{ d *FsIndexCollection }

func (a fsIndexAdapter) Imports() []*Import                       { return a.d.imports }
func (a fsIndexAdapter) ClearImports()                            { a.d.clearImports() }
func (a fsIndexAdapter) Collectibles() []*FsIndexDescription      { return a.d.indexes }
func (a fsIndexAdapter) SetCollectibles(is []*FsIndexDescription) { a.d.indexes = is }
func (a fsIndexAdapter) SourceLocator() string                    { return a.d.SourceLocator }
func (a fsIndexAdapter) Unwrap() any                              { return a.d }

func (a fsIndexAdapter) Load(ctx context.Context, rm ResourceManager, locator string) (Adapter[*FsIndexDescription], error) {
	d, err := loadAs[*FsIndexCollection](ctx, rm, locator, parseFsIndexCollectionAny)
	if err != nil {
		return nil, err
	}
	return fsIndexAdapter{d}, nil
}

// externalResourceAdapter and resourceBindingAdapter view the two lists of
// a resource manager configuration over the same import graph.
type externalResourceAdapter struct{ d *ResourceManagerConfiguration }

func (a externalResourceAdapter) Imports() []*Import { return a.d.imports }
func (a externalResourceAdapter) ClearImports()      { a.d.clearImports() }
func (a externalResourceAdapter) Collectibles() []*ExternalResourceDescription {
	return a.d.resources
}
func (a externalResourceAdapter) SetCollectibles(rs []*ExternalResourceDescription) {
	a.d.resources = rs
}
func (a externalResourceAdapter) SourceLocator() string { return a.d.SourceLocator }
func (a externalResourceAdapter) Unwrap() any           { return a.d }

func (a externalResourceAdapter) Load(ctx context.Context, rm ResourceManager, locator string) (Adapter[*ExternalResourceDescription], error) {
	d, err := loadAs[*ResourceManagerConfiguration](ctx, rm, locator, parseResourceManagerConfigurationAny)
	if err != nil {
		return nil, err
	}
	return externalResourceAdapter{d}, nil
}

type resourceBindingAdapter struct{ d *ResourceManagerConfiguration }

func (a resourceBindingAdapter) Imports() []*Import { return a.d.imports }
func (a resourceBindingAdapter) ClearImports()      { a.d.clearImports() }
func (a resourceBindingAdapter) Collectibles() []*ExternalResourceBinding {
	return a.d.bindings
}
func (a resourceBindingAdapter) SetCollectibles(bs []*ExternalResourceBinding) {
	a.d.bindings = bs
}
func (a resourceBindingAdapter) SourceLocator() string { return a.d.SourceLocator }
func (a resourceBindingAdapter) Unwrap() any           { return a.d }

func (a resourceBindingAdapter) Load(ctx context.Context, rm ResourceManager, locator string) (Adapter[*ExternalResourceBinding], error) {
	d, err := loadAs[*ResourceManagerConfiguration](ctx, rm, locator, parseResourceManagerConfigurationAny)
	if err != nil {
		return nil, err
	}
	return resourceBindingAdapter{d}, nil
}
