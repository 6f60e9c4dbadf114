package metadata

import (
	"context"
	"strings"

	"metadesc/internal/core/errors"
)

// SettingsImportSuffix is appended to by-name imports of settings files.
const SettingsImportSuffix = ".settings"

// ExternalOverrideSettings names settings files to import and carries inline
// settings text. Resolving it produces one Settings table.
type ExternalOverrideSettings struct {
	header

	// Settings is the inline settings text.
	Settings string

	settingsElements int
	importsElements  int

	resolved *Settings
}

func NewExternalOverrideSettings() *ExternalOverrideSettings {
	return &ExternalOverrideSettings{}
}

func (d *ExternalOverrideSettings) Kind() Kind { return KindExternalOverride }

// Resolved returns the table built by the last successful resolution, or nil.
func (d *ExternalOverrideSettings) Resolved() *Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolved
}

func (d *ExternalOverrideSettings) ResolveImports(ctx context.Context) error {
	return d.ResolveImportsWith(ctx, nil)
}

func (d *ExternalOverrideSettings) ResolveImportsWith(ctx context.Context, rm ResourceManager) error {
	_, err := d.resolve(ctx, nil, rm)
	return err
}

// resolve loads the imported settings files in declaration order and then
// the inline text. alreadyImported names settings files to skip.
func (d *ExternalOverrideSettings) resolve(ctx context.Context, alreadyImported []string, rm ResourceManager) (Stats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := Stats{Kind: KindExternalOverride}
	if d.settingsElements > 1 {
		return stats, d.duplicate("settings")
	}
	if d.importsElements > 1 {
		return stats, d.duplicate("imports")
	}
	for _, imp := range d.imports {
		if err := imp.Validate(); err != nil {
			return stats, errors.AddContext(err, errors.CtxSource, sourceOrUnknown(d.SourceLocator))
		}
	}
	if len(d.imports) > 0 && rm == nil {
		rm = defaultResourceManager()
	}

	skip := make(map[string]bool, len(alreadyImported))
	for _, loc := range alreadyImported {
		skip[loc] = true
	}

	result := NewSettings()
	if d.resolved != nil {
		result.Merge(d.resolved)
	}
	for _, imp := range d.imports {
		target, err := imp.FindAbsoluteLocator(ctx, rm, SettingsImportSuffix, d.SourceLocator)
		if err != nil {
			return stats, err
		}
		if skip[target] {
			continue
		}
		skip[target] = true
		loaded, err := loadAs[*Settings](ctx, rm, target, parseSettingsAny)
		if err != nil {
			return stats, loadError(err, imp, target, d.SourceLocator)
		}
		stats.ImportsFollowed++
		stats.Locators = append(stats.Locators, target)
		result.Merge(loaded)
	}

	if strings.TrimSpace(d.Settings) != "" {
		inline, err := ParseSettings(d.SourceLocator, []byte(d.Settings))
		if err != nil {
			return stats, err
		}
		result.Merge(inline)
	}

	d.resolved = result
	d.clearImports()
	stats.Collected = result.Len()
	return stats, nil
}

func (d *ExternalOverrideSettings) duplicate(element string) error {
	err := errors.Newf(errors.CodeDuplicateElement, "element <%s> may appear only once in external override settings", element)
	err = errors.AddContext(err, errors.CtxElement, element)
	return errors.AddContext(err, errors.CtxSource, sourceOrUnknown(d.SourceLocator))
}

func parseSettingsAny(locator string, data []byte) (any, error) {
	return ParseSettings(locator, data)
}
