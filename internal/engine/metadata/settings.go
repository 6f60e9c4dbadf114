package metadata

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"metadesc/internal/core/errors"
)

const settingNamePunct = "./-~_"

var (
	settingSeparator = regexp.MustCompile(`\s*[:=\s]\s*`)
	settingReference = regexp.MustCompile(`\$\{.*?\}`)
)

// Settings is a table of external override values read from properties-like
// text. The first definition of a key wins; later ones are ignored.
//
// Values may reference other keys as ${key}. Array values are written in
// brackets, may span lines, and separate elements with commas.
type Settings struct {
	values map[string]string
	logger *slog.Logger
}

func NewSettings() *Settings {
	return &Settings{values: make(map[string]string), logger: slog.Default()}
}

// ParseSettings reads a settings file. locator only labels errors.
func ParseSettings(locator string, data []byte) (*Settings, error) {
	s := NewSettings()
	if err := s.Load(bytes.NewReader(data)); err != nil {
		if locator != "" {
			err = errors.AddContext(err, errors.CtxLocator, locator)
		}
		return nil, err
	}
	return s, nil
}

// Load adds the definitions read from r. Keys already present keep their
// value.
func (s *Settings) Load(r io.Reader) error {
	lr, err := newLineReader(r)
	if err != nil {
		return errors.Wrap(err, errors.CodeSettingsInvalid, "could not read settings")
	}
	for {
		line, ok := lr.logical()
		if !ok {
			return nil
		}
		name, value := line, ""
		if loc := settingSeparator.FindStringIndex(line); loc != nil {
			name, value = line[:loc[0]], line[loc[1]:]
		}
		if !validSettingName(name) {
			return errors.AddContext(
				errors.Newf(errors.CodeSettingsInvalid, "invalid name %q: characters must be alphanumeric or %s", name, settingNamePunct),
				errors.CtxElement, name)
		}
		if strings.HasPrefix(value, "[") {
			if value, err = lr.array(value); err != nil {
				return errors.AddContext(err, errors.CtxElement, name)
			}
		}
		s.put(name, value)
	}
}

func (s *Settings) put(name, value string) {
	if old, ok := s.values[name]; ok {
		if old != value {
			s.logger.Debug("external override ignored", "key", name, "value", value)
		}
		return
	}
	s.values[name] = value
}

// Merge copies the keys of other that s does not define yet.
func (s *Settings) Merge(other *Settings) {
	if other == nil {
		return
	}
	for _, k := range other.Keys() {
		s.put(k, other.values[k])
	}
}

// Keys returns the defined keys in sorted order.
func (s *Settings) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Settings) Len() int { return len(s.values) }

// Lookup returns the value of name with ${key} references substituted.
// Escape characters are kept. A reference to an undefined key is an error,
// as is a reference that leads back to itself.
func (s *Settings) Lookup(name string) (string, bool, error) {
	return s.lookup(name, map[string]bool{})
}

func (s *Settings) lookup(name string, active map[string]bool) (string, bool, error) {
	value, ok := s.values[name]
	if !ok {
		return "", false, nil
	}
	if active[name] {
		return "", false, errors.AddContext(
			errors.Newf(errors.CodeSettingsInvalid, "setting %q refers to itself", name),
			errors.CtxElement, name)
	}
	active[name] = true
	defer delete(active, name)

	matches := settingReference.FindAllStringIndex(value, -1)
	if len(matches) == 0 {
		return value, true, nil
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if isEscaped(value, m[0]) {
			// The reference text is copied literally with the rest of the value.
			b.WriteString(value[last : m[0]+1])
			last = m[0] + 1
			continue
		}
		b.WriteString(value[last:m[0]])
		key := value[m[0]+2 : m[1]-1]
		sub, found, err := s.lookup(key, active)
		if err != nil {
			return "", false, err
		}
		if !found {
			return "", false, errors.AddContext(
				errors.Newf(errors.CodeSettingsInvalid, "setting %q references the undefined setting %q", name, key),
				errors.CtxElement, name)
		}
		b.WriteString(sub)
		last = m[1]
	}
	b.WriteString(value[last:])
	return b.String(), true, nil
}

// Setting returns a scalar value. An array value is a type mismatch.
func (s *Settings) Setting(name string) (string, bool, error) {
	value, ok, err := s.Lookup(name)
	if err != nil || !ok {
		return "", ok, err
	}
	if isArrayValue(value) {
		return "", false, errors.AddContext(
			errors.Newf(errors.CodeSettingsInvalid, "setting %q is an array, not a scalar", name),
			errors.CtxElement, name)
	}
	return value, true, nil
}

// SettingArray returns the elements of an array value, trimmed and with
// escapes removed. A scalar value is a type mismatch.
func (s *Settings) SettingArray(name string) ([]string, bool, error) {
	value, ok, err := s.Lookup(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	if !isArrayValue(value) {
		return nil, false, errors.AddContext(
			errors.Newf(errors.CodeSettingsInvalid, "setting %q is a scalar, not an array", name),
			errors.CtxElement, name)
	}
	body := value[1 : len(value)-1]
	if body == "" {
		return []string{}, true, nil
	}

	var out []string
	var cur strings.Builder
	for _, tok := range strings.Split(body, ",") {
		cur.WriteString(tok)
		if endsWithEscape(tok) {
			cur.WriteByte(',')
			continue
		}
		out = append(out, unescape(strings.TrimSpace(cur.String())))
		cur.Reset()
	}
	if cur.Len() > 0 {
		out = append(out, unescape(strings.TrimSpace(cur.String())))
	}
	return out, true, nil
}

func isArrayValue(v string) bool {
	return len(v) >= 2 && v[0] == '[' && v[len(v)-1] == ']' && v[len(v)-2] != '\\'
}

func validSettingName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune(settingNamePunct, r) {
			return false
		}
	}
	return true
}

// isEscaped reports whether the byte at i is preceded by an odd number of
// backslashes.
func isEscaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func endsWithEscape(s string) bool {
	return isEscaped(s, len(s))
}

// unescape replaces each \x with x.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// lineReader yields logical lines: blank and comment lines are dropped,
// physical lines are trimmed, and a line ending in an unescaped backslash
// continues on the next one.
type lineReader struct {
	lines []string
	pos   int
}

func newLineReader(r io.Reader) (*lineReader, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &lineReader{lines: lines}, nil
}

func (lr *lineReader) physical() (string, bool) {
	if lr.pos >= len(lr.lines) {
		return "", false
	}
	l := lr.lines[lr.pos]
	lr.pos++
	return l, true
}

func (lr *lineReader) logical() (string, bool) {
	for {
		raw, ok := lr.physical()
		if !ok {
			return "", false
		}
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || trimmed[0] == '#' || trimmed[0] == '!' {
			continue
		}
		if !endsWithEscape(raw) {
			return trimmed, true
		}
		line := trimmed
		for {
			next, _ := lr.physical()
			line = line[:len(line)-1] + strings.TrimSpace(next)
			if !endsWithEscape(next) {
				return strings.TrimSpace(line), true
			}
		}
	}
}

// array joins the logical lines of a bracketed value, inserting commas
// between lines that do not end in one.
func (lr *lineReader) array(line string) (string, error) {
	var b strings.Builder
	for {
		end := strings.IndexByte(line, ']')
		for end >= 0 && isEscaped(line, end) {
			next := strings.IndexByte(line[end+1:], ']')
			if next < 0 {
				end = -1
				break
			}
			end += next + 1
		}
		if end >= 0 {
			if end+1 < len(line) {
				return "", errors.Newf(errors.CodeSettingsInvalid, "invalid characters %q after end of array", line[end+1:])
			}
			b.WriteString(line)
			return b.String(), nil
		}

		next, ok := lr.logical()
		if !ok {
			return "", errors.New(errors.CodeSettingsInvalid, "premature end of settings: missing ']'")
		}
		b.WriteString(line)
		last := len(line) - 1
		if !(line[last] == ',' && !isEscaped(line, last)) && line != "[" && next[0] != ']' {
			b.WriteByte(',')
		}
		line = next
	}
}
