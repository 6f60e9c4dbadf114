package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeSystem_BuiltInCode(t *testing.T) {
	rm, _ := newManager(map[string]string{
		base + "A.xml": typeSystemXML([]string{"A1"}),
	})

	ts := NewTypeSystemDescription()
	ts.SourceLocator = base + "Built.xml"
	tok := ts.AddType("x.Token", "a token", "uima.tcas.Annotation")
	tok.AddFeature("pos", "part of speech", "uima.cas.String")
	ts.SetImports([]*Import{NewImportByLocation("A.xml")})

	require.NoError(t, ts.ResolveImportsWith(context.Background(), rm))
	assert.Equal(t, []string{"x.Token", "A1"}, typeNames(ts))
	require.NotNil(t, ts.Type("x.Token").Feature("pos"))
	assert.Equal(t, "uima.cas.String", ts.Type("x.Token").Feature("pos").RangeTypeName)
	assert.Empty(t, ts.Imports())

	// Setters copy the given slice.
	types := []*TypeDescription{{Name: "x.Only"}}
	ts.SetTypes(types)
	types[0] = &TypeDescription{Name: "x.Changed"}
	assert.Equal(t, []string{"x.Only"}, typeNames(ts))
}

func TestSetters_ReplaceCollectibles(t *testing.T) {
	tp := NewTypePriorities()
	tp.AddPriorityList("x.A", "x.B")
	tp.SetPriorityLists([]*TypePriorityList{{Types: []string{"x.C"}}})
	require.Len(t, tp.PriorityLists(), 1)
	assert.Equal(t, []string{"x.C"}, tp.PriorityLists()[0].Types)

	fs := NewFsIndexCollection()
	fs.AddFsIndex("tokens", "x.Token", "sorted").AddKey("begin", "standard")
	require.NotNil(t, fs.FsIndex("tokens"))
	fs.SetFsIndexes(nil)
	assert.Empty(t, fs.FsIndexes())

	rmc := NewResourceManagerConfiguration()
	rmc.AddExternalResource("dict", "file:dict.txt")
	rmc.AddExternalResourceBinding("Dictionary", "dict")
	rmc.SetExternalResources([]*ExternalResourceDescription{{Name: "other"}})
	rmc.SetExternalResourceBindings(nil)
	assert.Nil(t, rmc.ExternalResource("dict"))
	assert.NotNil(t, rmc.ExternalResource("other"))
	assert.Empty(t, rmc.ExternalResourceBindings())
}
