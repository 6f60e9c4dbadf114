package metadata

import "context"

// ExternalResourceDescription declares a named resource backed by a file URL.
type ExternalResourceDescription struct {
	Name               string
	Description        string
	FileURL            string
	ImplementationName string
}

func (r *ExternalResourceDescription) Clone() *ExternalResourceDescription {
	c := *r
	return &c
}

// ExternalResourceBinding binds a component resource key to a declared
// resource name.
type ExternalResourceBinding struct {
	Key          string
	ResourceName string
}

func (b *ExternalResourceBinding) Clone() *ExternalResourceBinding {
	c := *b
	return &c
}

// ResourceManagerConfiguration groups external resource declarations and
// their bindings. Both lists are merged from imports.
type ResourceManagerConfiguration struct {
	header
	resources []*ExternalResourceDescription
	bindings  []*ExternalResourceBinding
}

func NewResourceManagerConfiguration() *ResourceManagerConfiguration {
	return &ResourceManagerConfiguration{}
}

func (d *ResourceManagerConfiguration) Kind() Kind { return KindResourceManager }

func (d *ResourceManagerConfiguration) ExternalResources() []*ExternalResourceDescription {
	return d.resources
}

func (d *ResourceManagerConfiguration) SetExternalResources(rs []*ExternalResourceDescription) {
	d.resources = append([]*ExternalResourceDescription(nil), rs...)
}

func (d *ResourceManagerConfiguration) ExternalResourceBindings() []*ExternalResourceBinding {
	return d.bindings
}

func (d *ResourceManagerConfiguration) SetExternalResourceBindings(bs []*ExternalResourceBinding) {
	d.bindings = append([]*ExternalResourceBinding(nil), bs...)
}

func (d *ResourceManagerConfiguration) AddExternalResource(name, fileURL string) *ExternalResourceDescription {
	r := &ExternalResourceDescription{Name: name, FileURL: fileURL}
	d.resources = append(d.resources, r)
	return r
}

func (d *ResourceManagerConfiguration) AddExternalResourceBinding(key, resourceName string) *ExternalResourceBinding {
	b := &ExternalResourceBinding{Key: key, ResourceName: resourceName}
	d.bindings = append(d.bindings, b)
	return b
}

// ExternalResource returns the first resource named name, or nil.
func (d *ResourceManagerConfiguration) ExternalResource(name string) *ExternalResourceDescription {
	if i := indexOf(d.resources, func(r *ExternalResourceDescription) bool { return r.Name == name }); i >= 0 {
		return d.resources[i]
	}
	return nil
}

func (d *ResourceManagerConfiguration) ResolveImports(ctx context.Context) error {
	return d.ResolveImportsWith(ctx, nil)
}

func (d *ResourceManagerConfiguration) ResolveImportsWith(ctx context.Context, rm ResourceManager) error {
	_, err := d.resolve(ctx, nil, rm)
	return err
}

// ResolveImportsLegacy resolves with a caller-supplied set of locators that
// count as already imported and are not descended into. d's own locator is
// ignored if present.
//
// Deprecated: pre-seeding hides the collectibles of the named descriptors'
// imports. Use ResolveImportsWith.
func (d *ResourceManagerConfiguration) ResolveImportsLegacy(ctx context.Context, alreadyImported []string, rm ResourceManager) error {
	_, err := d.resolve(ctx, alreadyImported, rm)
	return err
}

// resolve runs one pass per collectible list over the same import graph and
// installs both results only when both passes succeed. The second pass is
// served from the import cache.
func (d *ResourceManagerConfiguration) resolve(ctx context.Context, alreadyImported []string, rm ResourceManager) (Stats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.imports) == 0 {
		return Stats{}, nil
	}
	if rm == nil {
		rm = defaultResourceManager()
	}

	resources, stats, err := NewImportResolver[*ExternalResourceDescription](KindResourceManager).
		Collect(ctx, externalResourceAdapter{d}, alreadyImported, rm)
	if err != nil {
		return stats, err
	}
	bindings, bindingStats, err := NewImportResolver[*ExternalResourceBinding](KindResourceManager).
		Collect(ctx, resourceBindingAdapter{d}, alreadyImported, rm)
	if err != nil {
		return bindingStats, err
	}

	d.resources = resources
	d.bindings = bindings
	d.clearImports()
	stats.Collected += bindingStats.Collected
	return stats, nil
}
