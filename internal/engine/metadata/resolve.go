package metadata

import (
	"context"

	"metadesc/internal/core/errors"
)

// Descriptor is implemented by every importing descriptor kind.
type Descriptor interface {
	Kind() Kind
	Imports() []*Import
	ResolveImports(ctx context.Context) error
	ResolveImportsWith(ctx context.Context, rm ResourceManager) error

	resolve(ctx context.Context, alreadyImported []string, rm ResourceManager) (Stats, error)
}

var (
	_ Descriptor = (*TypeSystemDescription)(nil)
	_ Descriptor = (*TypePriorities)(nil)
	_ Descriptor = (*FsIndexCollection)(nil)
	_ Descriptor = (*ResourceManagerConfiguration)(nil)
	_ Descriptor = (*ExternalOverrideSettings)(nil)
)

// Resolve resolves d through rm and reports what the traversal did.
func Resolve(ctx context.Context, d Descriptor, rm ResourceManager) (Stats, error) {
	return d.resolve(ctx, nil, rm)
}

// Parse decodes a descriptor of any supported kind, chosen by its root
// element.
func Parse(locator string, data []byte) (Descriptor, error) {
	root, err := RootElement(data)
	if err != nil {
		if locator != "" {
			err = errors.AddContext(err, errors.CtxLocator, locator)
		}
		return nil, err
	}
	switch root {
	case ElementTypeSystem:
		return asDescriptor(ParseTypeSystem(locator, data))
	case ElementTypePriorities:
		return asDescriptor(ParseTypePriorities(locator, data))
	case ElementFsIndexes:
		return asDescriptor(ParseFsIndexCollection(locator, data))
	case ElementResourceManager:
		return asDescriptor(ParseResourceManagerConfiguration(locator, data))
	case ElementExternalOverride:
		return asDescriptor(ParseExternalOverrideSettings(locator, data))
	default:
		err := errors.Newf(errors.CodeNotSupported, "unsupported descriptor element <%s>", root)
		err = errors.AddContext(err, errors.CtxElement, root)
		if locator != "" {
			err = errors.AddContext(err, errors.CtxLocator, locator)
		}
		return nil, err
	}
}

func asDescriptor[D Descriptor](d D, err error) (Descriptor, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Marshal encodes d in the schema of its kind.
func Marshal(d Descriptor) ([]byte, error) {
	switch v := d.(type) {
	case *TypeSystemDescription:
		return MarshalTypeSystem(v)
	case *TypePriorities:
		return MarshalTypePriorities(v)
	case *FsIndexCollection:
		return MarshalFsIndexCollection(v)
	case *ResourceManagerConfiguration:
		return MarshalResourceManagerConfiguration(v)
	case *ExternalOverrideSettings:
		return MarshalExternalOverrideSettings(v)
	default:
		return nil, errors.Newf(errors.CodeNotSupported, "cannot encode %T", d)
	}
}

// CollectibleCount returns the number of merged elements d holds.
func CollectibleCount(d Descriptor) int {
	switch v := d.(type) {
	case *TypeSystemDescription:
		return len(v.types)
	case *TypePriorities:
		return len(v.lists)
	case *FsIndexCollection:
		return len(v.indexes)
	case *ResourceManagerConfiguration:
		return len(v.resources) + len(v.bindings)
	case *ExternalOverrideSettings:
		if s := v.Resolved(); s != nil {
			return s.Len()
		}
		return 0
	default:
		return 0
	}
}
