package metadata

import (
	"context"
	"fmt"
	"strings"

	"metadesc/internal/core/errors"
	"metadesc/internal/engine/resource"
)

// DefaultImportSuffix is appended to by-name imports of XML descriptors.
const DefaultImportSuffix = ".xml"

// Import refers to another descriptor either by Location (relative or
// absolute) or by a dotted Name looked up on the data path. Exactly one of
// the two must be set.
type Import struct {
	Name     string
	Location string

	// SourceLocator is the locator of the descriptor that declared the
	// import; relative locations and diagnostics are based on it.
	SourceLocator string
}

func NewImportByName(name string) *Import {
	return &Import{Name: name}
}

func NewImportByLocation(location string) *Import {
	return &Import{Location: location}
}

// Validate reports a VALIDATION_ERROR unless exactly one of Name and
// Location is set.
func (i *Import) Validate() error {
	hasName := strings.TrimSpace(i.Name) != ""
	hasLocation := strings.TrimSpace(i.Location) != ""
	if hasName == hasLocation {
		return errors.AddContext(
			errors.New(errors.CodeValidationError, "import must declare exactly one of name or location"),
			errors.CtxImport, i.String())
	}
	return nil
}

// SetSourceIfEmpty fills in the declaring descriptor's locator for imports
// created in code.
func (i *Import) SetSourceIfEmpty(locator string) {
	if i.SourceLocator == "" {
		i.SourceLocator = locator
	}
}

func (i *Import) Clone() *Import {
	c := *i
	return &c
}

func (i *Import) String() string {
	switch {
	case i.Name != "" && i.Location != "":
		return fmt.Sprintf("name=%s location=%s", i.Name, i.Location)
	case i.Name != "":
		return "name=" + i.Name
	case i.Location != "":
		return "location=" + i.Location
	default:
		return "<empty import>"
	}
}

// FindAbsoluteLocator resolves the import to an absolute locator. base is the
// locator of the containing descriptor and is used when the import carries
// no source of its own; with neither, the working directory is the base.
func (i *Import) FindAbsoluteLocator(ctx context.Context, rm ResourceManager, suffix, base string) (string, error) {
	if err := i.Validate(); err != nil {
		return "", err
	}
	source := i.SourceLocator
	if source == "" {
		source = base
	}

	if loc := strings.TrimSpace(i.Location); loc != "" {
		if source == "" {
			cwd, err := resource.WorkingDirLocator()
			if err != nil {
				return "", errors.Wrap(err, errors.CodeImportUnreadable, "could not determine working directory")
			}
			source = cwd
		}
		abs, err := resource.ResolveReference(source, loc)
		if err != nil {
			return "", errors.AddContext(errors.AddContext(
				errors.Wrap(err, errors.CodeImportUnreadable, "malformed import location"),
				errors.CtxImport, i.String()), errors.CtxSource, sourceOrUnknown(source))
		}
		return abs, nil
	}

	if suffix == "" {
		suffix = DefaultImportSuffix
	}
	filename := strings.ReplaceAll(strings.TrimSpace(i.Name), ".", "/") + suffix
	if rm == nil {
		return "", errors.AddContext(
			errors.New(errors.CodeImportNotFound, "by-name import requires a resource manager"),
			errors.CtxImport, i.String())
	}
	abs, ok, err := rm.ResolveRelativePath(ctx, filename)
	if err != nil {
		return "", errors.AddContext(err, errors.CtxSource, sourceOrUnknown(source))
	}
	if !ok {
		err := errors.Newf(errors.CodeImportNotFound, "import by name %q not found as %s on the data path or through a name provider", i.Name, filename)
		err = errors.AddContext(err, errors.CtxPath, filename)
		return "", errors.AddContext(err, errors.CtxSource, sourceOrUnknown(source))
	}
	return abs, nil
}

func sourceOrUnknown(source string) string {
	if source == "" {
		return "<unknown>"
	}
	return source
}

func cloneImports(in []*Import) []*Import {
	if len(in) == 0 {
		return nil
	}
	out := make([]*Import, len(in))
	for i, imp := range in {
		out[i] = imp.Clone()
	}
	return out
}
