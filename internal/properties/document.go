// Package properties reads and edits server.properties files without
// disturbing lines that are not being changed.
package properties

import (
	"bytes"
	"encoding/json"
	"strings"
)

type line struct {
	raw   string // original text without the line ending
	eol   string // "\r" when the file uses CRLF
	key   string
	value string
	entry bool
}

// Document is a parsed properties file. Comments, blank lines, ordering and
// duplicate keys are kept so that Bytes reproduces the input exactly when
// nothing has been changed.
type Document struct {
	lines []line
}

// Parse splits data into lines. It never fails: lines it does not understand
// are carried through untouched.
func Parse(data []byte) *Document {
	doc := &Document{}
	if len(data) == 0 {
		return doc
	}
	for _, raw := range strings.Split(string(data), "\n") {
		l := line{raw: raw}
		if strings.HasSuffix(raw, "\r") {
			l.raw = strings.TrimSuffix(raw, "\r")
			l.eol = "\r"
		}
		l.key, l.value, l.entry = parseEntry(l.raw)
		doc.lines = append(doc.lines, l)
	}
	return doc
}

func parseEntry(raw string) (key, value string, ok bool) {
	trimmed := strings.TrimLeft(raw, " \t")
	if trimmed == "" || trimmed[0] == '#' || trimmed[0] == '!' {
		return "", "", false
	}
	idx := strings.IndexByte(raw, '=')
	if idx <= 0 {
		return "", "", false
	}
	return raw[:idx], raw[idx+1:], true
}

func (d *Document) find(key string) int {
	for i, l := range d.lines {
		if l.entry && l.key == key {
			return i
		}
	}
	return -1
}

// Get returns the value of the first line defining key.
func (d *Document) Get(key string) (string, bool) {
	if i := d.find(key); i >= 0 {
		return d.lines[i].value, true
	}
	return "", false
}

// Set replaces the first line defining key with key=value. Keys that are not
// already present are left absent and Set reports false.
func (d *Document) Set(key, value string) bool {
	i := d.find(key)
	if i < 0 {
		return false
	}
	l := &d.lines[i]
	l.value = value
	l.raw = key + "=" + value
	return true
}

// Unset clears the value of key while keeping the key itself.
func (d *Document) Unset(key string) bool {
	return d.Set(key, "")
}

// Entries returns the key/value pairs in file order. When a key is defined
// more than once the first definition wins.
func (d *Document) Entries() Map {
	var m Map
	seen := make(map[string]bool)
	for _, l := range d.lines {
		if !l.entry || seen[l.key] {
			continue
		}
		seen[l.key] = true
		m.pairs = append(m.pairs, Pair{Key: l.key, Value: l.value})
	}
	return m
}

// Bytes renders the document.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	for i, l := range d.lines {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(l.raw)
		buf.WriteString(l.eol)
	}
	return buf.Bytes()
}

// Pair is a single key/value entry.
type Pair struct {
	Key   string
	Value string
}

// Map is an ordered set of properties. It encodes to a JSON object whose
// members follow file order.
type Map struct {
	pairs []Pair
}

// Get looks up key.
func (m Map) Get(key string) (string, bool) {
	for _, p := range m.pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Keys returns the keys in order.
func (m Map) Keys() []string {
	keys := make([]string, len(m.pairs))
	for i, p := range m.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Pairs returns a copy of the ordered entries.
func (m Map) Pairs() []Pair {
	return append([]Pair(nil), m.pairs...)
}

// Len returns the number of entries.
func (m Map) Len() int { return len(m.pairs) }

// Subset returns the entries of m whose keys appear in keys, in file order.
func (m Map) Subset(keys ...string) Map {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var out Map
	for _, p := range m.pairs {
		if want[p.Key] {
			out.pairs = append(out.pairs, p)
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m.pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
