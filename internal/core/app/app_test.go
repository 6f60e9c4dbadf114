package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"metadesc/internal/core/config"

	"github.com/stretchr/testify/require"
)

const ns = "http://uima.apache.org/resourceSpecifier"

func typeSystem(types []string, imports ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?><typeSystemDescription xmlns=%q><name>ts</name>`, ns)
	if len(imports) > 0 {
		b.WriteString("<imports>")
		for _, imp := range imports {
			fmt.Fprintf(&b, `<import location=%q/>`, imp)
		}
		b.WriteString("</imports>")
	}
	b.WriteString("<types>")
	for _, t := range types {
		fmt.Fprintf(&b, "<typeDescription><name>%s</name><supertypeName>uima.tcas.Annotation</supertypeName></typeDescription>", t)
	}
	b.WriteString("</types></typeSystemDescription>")
	return b.String()
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func testConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.Paths.ProjectRoot = root
	cfg.Trace.Enabled = true
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	a, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}
