package metadata

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"metadesc/internal/core/errors"
)

// Namespace is the XML namespace written on descriptor root elements.
const Namespace = "http://uima.apache.org/resourceSpecifier"

// Root element names.
const (
	ElementTypeSystem       = "typeSystemDescription"
	ElementTypePriorities   = "typePriorities"
	ElementFsIndexes        = "fsIndexCollection"
	ElementResourceManager  = "resourceManagerConfiguration"
	ElementExternalOverride = "externalOverrideSettings"
)

type xmlImport struct {
	Name     string `xml:"name,attr,omitempty"`
	Location string `xml:"location,attr,omitempty"`
}

type xmlImports struct {
	Imports []xmlImport `xml:"import"`
}

type xmlHeader struct {
	Name        string `xml:"name,omitempty"`
	Description string `xml:"description,omitempty"`
	Version     string `xml:"version,omitempty"`
	Vendor      string `xml:"vendor,omitempty"`
}

type xmlTypeSystem struct {
	XMLName xml.Name `xml:"typeSystemDescription"`
	Xmlns   string   `xml:"xmlns,attr,omitempty"`
	xmlHeader
	Imports *xmlImports `xml:"imports"`
	Types   *struct {
		Types []xmlType `xml:"typeDescription"`
	} `xml:"types"`
}

type xmlType struct {
	Name          string `xml:"name"`
	Description   string `xml:"description,omitempty"`
	SupertypeName string `xml:"supertypeName,omitempty"`
	AllowedValues *struct {
		Values []xmlAllowedValue `xml:"value"`
	} `xml:"allowedValues"`
	Features *struct {
		Features []xmlFeature `xml:"featureDescription"`
	} `xml:"features"`
}

type xmlAllowedValue struct {
	String      string `xml:"string"`
	Description string `xml:"description,omitempty"`
}

type xmlFeature struct {
	Name                      string `xml:"name"`
	Description               string `xml:"description,omitempty"`
	RangeTypeName             string `xml:"rangeTypeName"`
	ElementType               string `xml:"elementType,omitempty"`
	MultipleReferencesAllowed string `xml:"multipleReferencesAllowed,omitempty"`
}

type xmlTypePriorities struct {
	XMLName xml.Name `xml:"typePriorities"`
	Xmlns   string   `xml:"xmlns,attr,omitempty"`
	xmlHeader
	Imports       *xmlImports `xml:"imports"`
	PriorityLists *struct {
		Lists []xmlPriorityList `xml:"priorityList"`
	} `xml:"priorityLists"`
}

type xmlPriorityList struct {
	Types []string `xml:"type"`
}

type xmlFsIndexCollection struct {
	XMLName xml.Name `xml:"fsIndexCollection"`
	Xmlns   string   `xml:"xmlns,attr,omitempty"`
	xmlHeader
	Imports   *xmlImports `xml:"imports"`
	FsIndexes *struct {
		Indexes []xmlFsIndex `xml:"fsIndexDescription"`
	} `xml:"fsIndexes"`
}

type xmlFsIndex struct {
	Label    string `xml:"label"`
	TypeName string `xml:"typeName"`
	Kind     string `xml:"kind,omitempty"`
	Keys     *struct {
		Keys []xmlFsIndexKey `xml:"fsIndexKey"`
	} `xml:"keys"`
}

type xmlFsIndexKey struct {
	FeatureName  string    `xml:"featureName,omitempty"`
	Comparator   string    `xml:"comparator,omitempty"`
	TypePriority *struct{} `xml:"typePriority"`
}

type xmlResourceManagerConfiguration struct {
	XMLName xml.Name `xml:"resourceManagerConfiguration"`
	Xmlns   string   `xml:"xmlns,attr,omitempty"`
	xmlHeader
	Imports *xmlImports `xml:"imports"`

	// Import is the single import element older descriptors use.
	Import *xmlImport `xml:"import"`

	Resources *struct {
		Resources []xmlExternalResource `xml:"externalResource"`
	} `xml:"externalResources"`
	Bindings *struct {
		Bindings []xmlResourceBinding `xml:"externalResourceBinding"`
	} `xml:"externalResourceBindings"`
}

type xmlExternalResource struct {
	Name          string `xml:"name"`
	Description   string `xml:"description,omitempty"`
	FileSpecifier *struct {
		FileURL string `xml:"fileUrl"`
	} `xml:"fileResourceSpecifier"`
	ImplementationName string `xml:"implementationName,omitempty"`
}

type xmlResourceBinding struct {
	Key          string `xml:"key"`
	ResourceName string `xml:"resourceName"`
}

type xmlExternalOverrideSettings struct {
	XMLName  xml.Name     `xml:"externalOverrideSettings"`
	Xmlns    string       `xml:"xmlns,attr,omitempty"`
	Imports  []xmlImports `xml:"imports"`
	Settings []string     `xml:"settings"`
}

func invalidDescriptor(err error, locator, element string) error {
	err = errors.Wrap(err, errors.CodeInvalidDescriptor, "malformed "+element)
	err = errors.AddContext(err, errors.CtxElement, element)
	if locator != "" {
		err = errors.AddContext(err, errors.CtxLocator, locator)
	}
	return err
}

func decodeImports(x *xmlImports, locator string) []*Import {
	if x == nil {
		return nil
	}
	out := make([]*Import, 0, len(x.Imports))
	for _, xi := range x.Imports {
		out = append(out, &Import{
			Name:          strings.TrimSpace(xi.Name),
			Location:      strings.TrimSpace(xi.Location),
			SourceLocator: locator,
		})
	}
	return out
}

func encodeImports(imps []*Import) *xmlImports {
	if len(imps) == 0 {
		return nil
	}
	x := &xmlImports{Imports: make([]xmlImport, 0, len(imps))}
	for _, imp := range imps {
		x.Imports = append(x.Imports, xmlImport{Name: imp.Name, Location: imp.Location})
	}
	return x
}

func (x xmlHeader) decode() MetaData {
	return MetaData{
		Name:        strings.TrimSpace(x.Name),
		Description: strings.TrimSpace(x.Description),
		Version:     strings.TrimSpace(x.Version),
		Vendor:      strings.TrimSpace(x.Vendor),
	}
}

func encodeHeader(m MetaData) xmlHeader {
	return xmlHeader{Name: m.Name, Description: m.Description, Version: m.Version, Vendor: m.Vendor}
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "could not encode descriptor")
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ParseTypeSystem decodes a typeSystemDescription document published at
// locator.
func ParseTypeSystem(locator string, data []byte) (*TypeSystemDescription, error) {
	var x xmlTypeSystem
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, invalidDescriptor(err, locator, ElementTypeSystem)
	}
	d := NewTypeSystemDescription()
	d.MetaData = x.xmlHeader.decode()
	d.SourceLocator = locator
	d.imports = decodeImports(x.Imports, locator)
	if x.Types != nil {
		for _, xt := range x.Types.Types {
			t := &TypeDescription{
				Name:          strings.TrimSpace(xt.Name),
				Description:   strings.TrimSpace(xt.Description),
				SupertypeName: strings.TrimSpace(xt.SupertypeName),
				SourceLocator: locator,
			}
			if xt.AllowedValues != nil {
				for _, v := range xt.AllowedValues.Values {
					t.AllowedValues = append(t.AllowedValues, &AllowedValue{
						String:      strings.TrimSpace(v.String),
						Description: strings.TrimSpace(v.Description),
					})
				}
			}
			if xt.Features != nil {
				for _, xf := range xt.Features.Features {
					f := &FeatureDescription{
						Name:          strings.TrimSpace(xf.Name),
						Description:   strings.TrimSpace(xf.Description),
						RangeTypeName: strings.TrimSpace(xf.RangeTypeName),
						ElementType:   strings.TrimSpace(xf.ElementType),
					}
					if s := strings.TrimSpace(xf.MultipleReferencesAllowed); s != "" {
						b, err := strconv.ParseBool(s)
						if err != nil {
							return nil, invalidDescriptor(err, locator, "multipleReferencesAllowed")
						}
						f.MultipleReferencesAllowed = &b
					}
					t.Features = append(t.Features, f)
				}
			}
			d.types = append(d.types, t)
		}
	}
	return d, nil
}

// MarshalTypeSystem encodes d, including any imports it still declares.
func MarshalTypeSystem(d *TypeSystemDescription) ([]byte, error) {
	x := xmlTypeSystem{Xmlns: Namespace, xmlHeader: encodeHeader(d.MetaData), Imports: encodeImports(d.imports)}
	if len(d.types) > 0 {
		x.Types = &struct {
			Types []xmlType `xml:"typeDescription"`
		}{}
		for _, t := range d.types {
			xt := xmlType{Name: t.Name, Description: t.Description, SupertypeName: t.SupertypeName}
			if len(t.AllowedValues) > 0 {
				xt.AllowedValues = &struct {
					Values []xmlAllowedValue `xml:"value"`
				}{}
				for _, v := range t.AllowedValues {
					xt.AllowedValues.Values = append(xt.AllowedValues.Values, xmlAllowedValue{String: v.String, Description: v.Description})
				}
			}
			if len(t.Features) > 0 {
				xt.Features = &struct {
					Features []xmlFeature `xml:"featureDescription"`
				}{}
				for _, f := range t.Features {
					xf := xmlFeature{Name: f.Name, Description: f.Description, RangeTypeName: f.RangeTypeName, ElementType: f.ElementType}
					if f.MultipleReferencesAllowed != nil {
						xf.MultipleReferencesAllowed = strconv.FormatBool(*f.MultipleReferencesAllowed)
					}
					xt.Features.Features = append(xt.Features.Features, xf)
				}
			}
			x.Types.Types = append(x.Types.Types, xt)
		}
	}
	return marshal(x)
}

func ParseTypePriorities(locator string, data []byte) (*TypePriorities, error) {
	var x xmlTypePriorities
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, invalidDescriptor(err, locator, ElementTypePriorities)
	}
	d := NewTypePriorities()
	d.MetaData = x.xmlHeader.decode()
	d.SourceLocator = locator
	d.imports = decodeImports(x.Imports, locator)
	if x.PriorityLists != nil {
		for _, xl := range x.PriorityLists.Lists {
			l := &TypePriorityList{}
			for _, t := range xl.Types {
				l.AddType(strings.TrimSpace(t))
			}
			d.lists = append(d.lists, l)
		}
	}
	return d, nil
}

func MarshalTypePriorities(d *TypePriorities) ([]byte, error) {
	x := xmlTypePriorities{Xmlns: Namespace, xmlHeader: encodeHeader(d.MetaData), Imports: encodeImports(d.imports)}
	if len(d.lists) > 0 {
		x.PriorityLists = &struct {
			Lists []xmlPriorityList `xml:"priorityList"`
		}{}
		for _, l := range d.lists {
			x.PriorityLists.Lists = append(x.PriorityLists.Lists, xmlPriorityList{Types: append([]string(nil), l.Types...)})
		}
	}
	return marshal(x)
}

func ParseFsIndexCollection(locator string, data []byte) (*FsIndexCollection, error) {
	var x xmlFsIndexCollection
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, invalidDescriptor(err, locator, ElementFsIndexes)
	}
	d := NewFsIndexCollection()
	d.MetaData = x.xmlHeader.decode()
	d.SourceLocator = locator
	d.imports = decodeImports(x.Imports, locator)
	if x.FsIndexes != nil {
		for _, xi := range x.FsIndexes.Indexes {
			kind := strings.TrimSpace(xi.Kind)
			if kind == "" {
				kind = IndexKindSorted
			}
			idx := &FsIndexDescription{
				Label:     strings.TrimSpace(xi.Label),
				TypeName:  strings.TrimSpace(xi.TypeName),
				IndexKind: kind,
			}
			if xi.Keys != nil {
				for _, xk := range xi.Keys.Keys {
					if xk.TypePriority != nil {
						idx.Keys = append(idx.Keys, &FsIndexKeyDescription{TypePriority: true})
						continue
					}
					idx.AddKey(strings.TrimSpace(xk.FeatureName), strings.TrimSpace(xk.Comparator))
				}
			}
			d.indexes = append(d.indexes, idx)
		}
	}
	return d, nil
}

func MarshalFsIndexCollection(d *FsIndexCollection) ([]byte, error) {
	x := xmlFsIndexCollection{Xmlns: Namespace, xmlHeader: encodeHeader(d.MetaData), Imports: encodeImports(d.imports)}
	if len(d.indexes) > 0 {
		x.FsIndexes = &struct {
			Indexes []xmlFsIndex `xml:"fsIndexDescription"`
		}{}
		for _, idx := range d.indexes {
			xi := xmlFsIndex{Label: idx.Label, TypeName: idx.TypeName, Kind: idx.IndexKind}
			if len(idx.Keys) > 0 {
				xi.Keys = &struct {
					Keys []xmlFsIndexKey `xml:"fsIndexKey"`
				}{}
				for _, k := range idx.Keys {
					if k.TypePriority {
						xi.Keys.Keys = append(xi.Keys.Keys, xmlFsIndexKey{TypePriority: &struct{}{}})
						continue
					}
					xi.Keys.Keys = append(xi.Keys.Keys, xmlFsIndexKey{FeatureName: k.FeatureName, Comparator: k.Comparator})
				}
			}
			x.FsIndexes.Indexes = append(x.FsIndexes.Indexes, xi)
		}
	}
	return marshal(x)
}

func ParseResourceManagerConfiguration(locator string, data []byte) (*ResourceManagerConfiguration, error) {
	var x xmlResourceManagerConfiguration
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, invalidDescriptor(err, locator, ElementResourceManager)
	}
	d := NewResourceManagerConfiguration()
	d.MetaData = x.xmlHeader.decode()
	d.SourceLocator = locator
	d.imports = decodeImports(x.Imports, locator)
	if x.Import != nil {
		d.imports = append(d.imports, decodeImports(&xmlImports{Imports: []xmlImport{*x.Import}}, locator)...)
	}
	if x.Resources != nil {
		for _, xr := range x.Resources.Resources {
			r := &ExternalResourceDescription{
				Name:               strings.TrimSpace(xr.Name),
				Description:        strings.TrimSpace(xr.Description),
				ImplementationName: strings.TrimSpace(xr.ImplementationName),
			}
			if xr.FileSpecifier != nil {
				r.FileURL = strings.TrimSpace(xr.FileSpecifier.FileURL)
			}
			d.resources = append(d.resources, r)
		}
	}
	if x.Bindings != nil {
		for _, xb := range x.Bindings.Bindings {
			d.bindings = append(d.bindings, &ExternalResourceBinding{
				Key:          strings.TrimSpace(xb.Key),
				ResourceName: strings.TrimSpace(xb.ResourceName),
			})
		}
	}
	return d, nil
}

func MarshalResourceManagerConfiguration(d *ResourceManagerConfiguration) ([]byte, error) {
	x := xmlResourceManagerConfiguration{Xmlns: Namespace, xmlHeader: encodeHeader(d.MetaData), Imports: encodeImports(d.imports)}
	if len(d.resources) > 0 {
		x.Resources = &struct {
			Resources []xmlExternalResource `xml:"externalResource"`
		}{}
		for _, r := range d.resources {
			xr := xmlExternalResource{Name: r.Name, Description: r.Description, ImplementationName: r.ImplementationName}
			if r.FileURL != "" {
				xr.FileSpecifier = &struct {
					FileURL string `xml:"fileUrl"`
				}{FileURL: r.FileURL}
			}
			x.Resources.Resources = append(x.Resources.Resources, xr)
		}
	}
	if len(d.bindings) > 0 {
		x.Bindings = &struct {
			Bindings []xmlResourceBinding `xml:"externalResourceBinding"`
		}{}
		for _, b := range d.bindings {
			x.Bindings.Bindings = append(x.Bindings.Bindings, xmlResourceBinding{Key: b.Key, ResourceName: b.ResourceName})
		}
	}
	return marshal(x)
}

// ParseExternalOverrideSettings decodes an externalOverrideSettings element.
// Repeated <imports> or <settings> elements are recorded and rejected when
// the settings are resolved.
func ParseExternalOverrideSettings(locator string, data []byte) (*ExternalOverrideSettings, error) {
	var x xmlExternalOverrideSettings
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, invalidDescriptor(err, locator, ElementExternalOverride)
	}
	d := NewExternalOverrideSettings()
	d.SourceLocator = locator
	d.importsElements = len(x.Imports)
	d.settingsElements = len(x.Settings)
	for i := range x.Imports {
		d.imports = append(d.imports, decodeImports(&x.Imports[i], locator)...)
	}
	if len(x.Settings) > 0 {
		d.Settings = x.Settings[0]
	}
	return d, nil
}

func MarshalExternalOverrideSettings(d *ExternalOverrideSettings) ([]byte, error) {
	x := xmlExternalOverrideSettings{Xmlns: Namespace}
	if imps := encodeImports(d.imports); imps != nil {
		x.Imports = []xmlImports{*imps}
	}
	if d.Settings != "" {
		x.Settings = []string{d.Settings}
	}
	return marshal(x)
}

// RootElement returns the local name of the document's root element.
func RootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", errors.New(errors.CodeInvalidDescriptor, "document has no root element")
		}
		if err != nil {
			return "", errors.Wrap(err, errors.CodeInvalidDescriptor, "malformed descriptor")
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

func parseTypeSystemAny(locator string, data []byte) (any, error) {
	return ParseTypeSystem(locator, data)
}

func parseTypePrioritiesAny(locator string, data []byte) (any, error) {
	return ParseTypePriorities(locator, data)
}

func parseFsIndexCollectionAny(locator string, data []byte) (any, error) {
	return ParseFsIndexCollection(locator, data)
}

func parseResourceManagerConfigurationAny(locator string, data []byte) (any, error) {
	return ParseResourceManagerConfiguration(locator, data)
}
