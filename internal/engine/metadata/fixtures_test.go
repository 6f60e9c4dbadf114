package metadata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"metadesc/internal/engine/resource"
)

const base = "mem://localhost/desc/"

// memFetcher serves descriptor documents from a map and counts fetches.
type memFetcher struct {
	mu      sync.Mutex
	files   map[string][]byte
	fetches map[string]int
	delay   time.Duration
}

func newMemFetcher(files map[string]string) *memFetcher {
	f := &memFetcher{files: make(map[string][]byte), fetches: make(map[string]int)}
	for k, v := range files {
		f.files[k] = []byte(v)
	}
	return f
}

func (f *memFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[locator]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", locator)
	}
	f.fetches[locator]++
	return data, nil
}

func (f *memFetcher) Exists(ctx context.Context, locator string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[locator]
	return ok, nil
}

func (f *memFetcher) count(locator string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[locator]
}

func newManager(files map[string]string, opts ...resource.Option) (*resource.Manager, *memFetcher) {
	f := newMemFetcher(files)
	return resource.New(append([]resource.Option{resource.WithFetcher(f)}, opts...)...), f
}

func locImport(location string) string {
	return fmt.Sprintf(`<import location=%q/>`, location)
}

func nameImport(name string) string {
	return fmt.Sprintf(`<import name=%q/>`, name)
}

// typeSystemXML renders a type system declaring the named types (each a
// subtype of uima.tcas.Annotation) and the given import elements.
func typeSystemXML(types []string, imports ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<typeSystemDescription xmlns="http://uima.apache.org/resourceSpecifier">`)
	b.WriteString(`<name>test</name>`)
	if len(imports) > 0 {
		b.WriteString("<imports>" + strings.Join(imports, "") + "</imports>")
	}
	if len(types) > 0 {
		b.WriteString("<types>")
		for _, t := range types {
			fmt.Fprintf(&b, "<typeDescription><name>%s</name><supertypeName>uima.tcas.Annotation</supertypeName></typeDescription>", t)
		}
		b.WriteString("</types>")
	}
	b.WriteString("</typeSystemDescription>")
	return b.String()
}

func mustParseTypeSystem(locator, doc string) *TypeSystemDescription {
	d, err := ParseTypeSystem(locator, []byte(doc))
	if err != nil {
		panic(err)
	}
	return d
}

func typeNames(d *TypeSystemDescription) []string {
	out := make([]string, 0, len(d.Types()))
	for _, t := range d.Types() {
		out = append(out, t.Name)
	}
	return out
}
