package metadata

import (
	"strings"
	"testing"

	"metadesc/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSettings = `
# comment
! another comment
context      = engine-1
path: /data/${context}
name value with spaces
empty =
long = first \
       second
list = [ a, b\,c , d ]
multi = [one
  two,
  three
]
escaped = cost \${context}
context = ignored
`

func TestSettings_Parse(t *testing.T) {
	s, err := ParseSettings("mem://localhost/x.settings", []byte(sampleSettings))
	require.NoError(t, err)

	tests := []struct {
		key, want string
	}{
		{"context", "engine-1"},
		{"path", "/data/engine-1"},
		{"name", "value with spaces"},
		{"empty", ""},
		{"long", "first second"},
		{"escaped", `cost \${context}`},
	}
	for _, tt := range tests {
		got, ok, err := s.Setting(tt.key)
		require.NoError(t, err, tt.key)
		require.True(t, ok, tt.key)
		assert.Equal(t, tt.want, got, tt.key)
	}

	list, ok, err := s.SettingArray("list")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b,c", "d"}, list)

	multi, _, err := s.SettingArray("multi")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, multi)

	assert.Equal(t, []string{"context", "empty", "escaped", "list", "long", "multi", "name", "path"}, s.Keys())
}

func TestSettings_TypeMismatch(t *testing.T) {
	s, err := ParseSettings("", []byte("scalar = 1\narray = [1, 2]\n"))
	require.NoError(t, err)

	_, _, err = s.Setting("array")
	assert.True(t, errors.IsCode(err, errors.CodeSettingsInvalid))
	_, _, err = s.SettingArray("scalar")
	assert.True(t, errors.IsCode(err, errors.CodeSettingsInvalid))

	_, ok, err := s.Setting("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettings_EmptyArray(t *testing.T) {
	s, err := ParseSettings("", []byte("none = []\n"))
	require.NoError(t, err)
	got, ok, err := s.SettingArray("none")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestSettings_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad name", "bad*name = 1\n"},
		{"unterminated array", "a = [1,\n2\n"},
		{"text after array", "a = [1] x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSettings("", []byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeSettingsInvalid))
		})
	}
}

func TestSettings_UndefinedAndSelfReferences(t *testing.T) {
	s, err := ParseSettings("", []byte("a = ${missing}\nb = ${c}\nc = ${b}\n"))
	require.NoError(t, err)

	_, _, err = s.Lookup("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	_, _, err = s.Lookup("b")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSettingsInvalid))
}

func TestSettings_MergeKeepsFirstDefinition(t *testing.T) {
	first := NewSettings()
	require.NoError(t, first.Load(strings.NewReader("a = 1\n")))
	second := NewSettings()
	require.NoError(t, second.Load(strings.NewReader("a = 2\nb = 3\n")))

	first.Merge(second)
	a, _, _ := first.Setting("a")
	b, _, _ := first.Setting("b")
	assert.Equal(t, "1", a)
	assert.Equal(t, "3", b)
}
