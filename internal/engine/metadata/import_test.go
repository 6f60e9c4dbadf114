package metadata

import (
	"context"
	"testing"

	"metadesc/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImport_Validate(t *testing.T) {
	assert.NoError(t, NewImportByName("a.b").Validate())
	assert.NoError(t, NewImportByLocation("a.xml").Validate())

	both := &Import{Name: "a.b", Location: "a.xml"}
	assert.True(t, errors.IsCode(both.Validate(), errors.CodeValidationError))

	neither := &Import{}
	assert.True(t, errors.IsCode(neither.Validate(), errors.CodeValidationError))
}

func TestImport_FindAbsoluteLocatorByLocation(t *testing.T) {
	imp := NewImportByLocation("../shared/Types.xml")
	got, err := imp.FindAbsoluteLocator(context.Background(), nil, "", "file:///desc/ae/Main.xml")
	require.NoError(t, err)
	assert.Equal(t, "file:///desc/shared/Types.xml", got)

	// The import's own source wins over the base.
	imp.SourceLocator = "file:///other/x/Owner.xml"
	got, err = imp.FindAbsoluteLocator(context.Background(), nil, "", "file:///desc/ae/Main.xml")
	require.NoError(t, err)
	assert.Equal(t, "file:///other/shared/Types.xml", got)
}

func TestImport_FindAbsoluteLocatorByNameUsesSuffix(t *testing.T) {
	rm, _ := newManager(map[string]string{
		"mem://localhost/lib/org/example/Opts.settings": "a=1",
	})
	rm.SetDataPath("mem://localhost/lib")

	got, err := NewImportByName("org.example.Opts").FindAbsoluteLocator(context.Background(), rm, SettingsImportSuffix, "")
	require.NoError(t, err)
	assert.Equal(t, "mem://localhost/lib/org/example/Opts.settings", got)

	_, err = NewImportByName("org.example.Opts").FindAbsoluteLocator(context.Background(), rm, "", "")
	assert.True(t, errors.IsCode(err, errors.CodeImportNotFound))
}

func TestImport_SetSourceIfEmpty(t *testing.T) {
	imp := NewImportByLocation("a.xml")
	imp.SetSourceIfEmpty("file:///one.xml")
	imp.SetSourceIfEmpty("file:///two.xml")
	assert.Equal(t, "file:///one.xml", imp.SourceLocator)
}
