package metadata

import (
	"context"
	"testing"

	"metadesc/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullTypeSystem = `<?xml version="1.0" encoding="UTF-8"?>
<typeSystemDescription xmlns="http://uima.apache.org/resourceSpecifier">
  <name>Tokens</name>
  <description>Token types</description>
  <version>1.0</version>
  <vendor>example</vendor>
  <imports>
    <import name="org.example.Base"/>
    <import location="Other.xml"/>
  </imports>
  <types>
    <typeDescription>
      <name>org.example.Token</name>
      <description>A token</description>
      <supertypeName>uima.tcas.Annotation</supertypeName>
      <features>
        <featureDescription>
          <name>pos</name>
          <rangeTypeName>uima.cas.String</rangeTypeName>
        </featureDescription>
        <featureDescription>
          <name>children</name>
          <rangeTypeName>uima.cas.FSArray</rangeTypeName>
          <elementType>org.example.Token</elementType>
          <multipleReferencesAllowed>true</multipleReferencesAllowed>
        </featureDescription>
      </features>
    </typeDescription>
    <typeDescription>
      <name>org.example.Case</name>
      <supertypeName>uima.cas.String</supertypeName>
      <allowedValues>
        <value><string>upper</string></value>
        <value><string>lower</string><description>all lower</description></value>
      </allowedValues>
    </typeDescription>
  </types>
</typeSystemDescription>`

func TestParseTypeSystem(t *testing.T) {
	d, err := ParseTypeSystem(base+"Tokens.xml", []byte(fullTypeSystem))
	require.NoError(t, err)

	assert.Equal(t, MetaData{Name: "Tokens", Description: "Token types", Version: "1.0", Vendor: "example"}, d.MetaData)
	require.Len(t, d.Imports(), 2)
	assert.Equal(t, "org.example.Base", d.Imports()[0].Name)
	assert.Equal(t, "Other.xml", d.Imports()[1].Location)
	assert.Equal(t, base+"Tokens.xml", d.Imports()[1].SourceLocator)

	tok := d.Type("org.example.Token")
	require.NotNil(t, tok)
	assert.Equal(t, base+"Tokens.xml", tok.SourceLocator)
	require.Len(t, tok.Features, 2)
	assert.Nil(t, tok.Features[0].MultipleReferencesAllowed)
	require.NotNil(t, tok.Feature("children").MultipleReferencesAllowed)
	assert.True(t, *tok.Feature("children").MultipleReferencesAllowed)

	kase := d.Type("org.example.Case")
	require.Len(t, kase.AllowedValues, 2)
	assert.Equal(t, "all lower", kase.AllowedValues[1].Description)
}

func TestTypeSystem_RoundTrip(t *testing.T) {
	d, err := ParseTypeSystem(base+"Tokens.xml", []byte(fullTypeSystem))
	require.NoError(t, err)

	out, err := MarshalTypeSystem(d)
	require.NoError(t, err)
	assert.Contains(t, string(out), `xmlns="http://uima.apache.org/resourceSpecifier"`)

	again, err := ParseTypeSystem(base+"Tokens.xml", out)
	require.NoError(t, err)
	assert.Equal(t, d.MetaData, again.MetaData)
	assert.Equal(t, d.Types(), again.Types())
	assert.Equal(t, d.Imports(), again.Imports())
}

func TestMarshal_ResolvedDescriptorHasNoImports(t *testing.T) {
	rm, _ := newManager(map[string]string{
		base + "A.xml": typeSystemXML([]string{"A1"}),
	})
	root := mustParseTypeSystem(base+"Root.xml", typeSystemXML([]string{"R1"}, locImport("A.xml")))
	require.NoError(t, root.ResolveImportsWith(context.Background(), rm))

	out, err := Marshal(root)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<imports>")

	parsed, err := Parse(base+"Emitted.xml", out)
	require.NoError(t, err)
	ts, ok := parsed.(*TypeSystemDescription)
	require.True(t, ok)
	assert.Equal(t, []string{"R1", "A1"}, typeNames(ts))
	assert.Equal(t, 2, CollectibleCount(parsed))
}

func TestParse_DispatchesOnRootElement(t *testing.T) {
	tests := []struct {
		doc  string
		kind Kind
	}{
		{`<typeSystemDescription/>`, KindTypeSystem},
		{`<?xml version="1.0"?><!-- c --><typePriorities/>`, KindTypePriorities},
		{`<fsIndexCollection/>`, KindFsIndexes},
		{`<resourceManagerConfiguration/>`, KindResourceManager},
		{`<externalOverrideSettings/>`, KindExternalOverride},
	}
	for _, tt := range tests {
		d, err := Parse("", []byte(tt.doc))
		require.NoError(t, err, tt.doc)
		assert.Equal(t, tt.kind, d.Kind(), tt.doc)
	}

	_, err := Parse(base+"x.xml", []byte(`<analysisEngineDescription/>`))
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))

	_, err = Parse(base+"x.xml", []byte(``))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidDescriptor))
}

func TestParseTypeSystem_RejectsBadBoolean(t *testing.T) {
	_, err := ParseTypeSystem("", []byte(`<typeSystemDescription><types><typeDescription><name>a</name>
		<features><featureDescription><name>f</name><multipleReferencesAllowed>maybe</multipleReferencesAllowed></featureDescription></features>
		</typeDescription></types></typeSystemDescription>`))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidDescriptor))
}

func TestOtherKinds_RoundTrip(t *testing.T) {
	prio := NewTypePriorities()
	prio.Name = "prio"
	prio.AddPriorityList("a", "b")
	data, err := Marshal(prio)
	require.NoError(t, err)
	back, err := ParseTypePriorities("", data)
	require.NoError(t, err)
	assert.Equal(t, prio.PriorityLists(), back.PriorityLists())

	idx := NewFsIndexCollection()
	i := idx.AddFsIndex("l", "t", IndexKindSet)
	i.AddKey("begin", ComparatorReverse)
	i.Keys = append(i.Keys, &FsIndexKeyDescription{TypePriority: true})
	data, err = Marshal(idx)
	require.NoError(t, err)
	idxBack, err := ParseFsIndexCollection("", data)
	require.NoError(t, err)
	assert.Equal(t, idx.FsIndexes(), idxBack.FsIndexes())

	rmc := NewResourceManagerConfiguration()
	rmc.AddExternalResource("dict", "file:d.txt").ImplementationName = "x.Dict"
	rmc.AddExternalResourceBinding("k", "dict")
	data, err = Marshal(rmc)
	require.NoError(t, err)
	rmcBack, err := ParseResourceManagerConfiguration("", data)
	require.NoError(t, err)
	assert.Equal(t, rmc.ExternalResources(), rmcBack.ExternalResources())
	assert.Equal(t, rmc.ExternalResourceBindings(), rmcBack.ExternalResourceBindings())

	eos := NewExternalOverrideSettings()
	eos.AddImport(NewImportByName("org.example.Overrides"))
	eos.Settings = "a = 1"
	data, err = Marshal(eos)
	require.NoError(t, err)
	eosBack, err := ParseExternalOverrideSettings("", data)
	require.NoError(t, err)
	assert.Equal(t, "a = 1", eosBack.Settings)
	require.Len(t, eosBack.Imports(), 1)
	assert.Equal(t, "org.example.Overrides", eosBack.Imports()[0].Name)
}
