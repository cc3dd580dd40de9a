package tokenstore

import "strings"

// entry is a single line of a dotenv-style file. Lines that are not plain
// KEY=VALUE assignments (comments, blanks, exports) keep their raw text and
// have an empty key.
type entry struct {
	raw   string
	key   string
	value string
}

// Document is an ordered view of a dotenv-style file. Assignments can be
// looked up and upserted by key; every other line survives a
// parse/serialize round trip byte for byte.
type Document struct {
	entries []entry
}

// ParseDocument parses file contents into a Document. It never fails:
// unrecognized lines are carried through verbatim.
func ParseDocument(data []byte) *Document {
	doc := &Document{}
	if len(data) == 0 {
		return doc
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	for _, raw := range lines {
		doc.entries = append(doc.entries, parseEntry(raw))
	}
	return doc
}

// parseEntry classifies a raw line. Only simple KEY=VALUE assignments with
// a bare identifier key participate in lookups.
func parseEntry(raw string) entry {
	idx := strings.IndexByte(raw, '=')
	if idx <= 0 {
		return entry{raw: raw}
	}

	key := raw[:idx]
	if strings.ContainsAny(key, " \t#") {
		return entry{raw: raw}
	}

	return entry{raw: raw, key: key, value: raw[idx+1:]}
}

// Get returns the value of the first assignment for key.
func (d *Document) Get(key string) (string, bool) {
	for _, e := range d.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return "", false
}

// Set upserts an assignment. The first occurrence is replaced in place,
// later duplicates are dropped, and a missing key is appended at the end.
// At most one line per key survives.
func (d *Document) Set(key, value string) {
	assignment := entry{raw: key + "=" + value, key: key, value: value}

	kept := d.entries[:0]
	replaced := false
	for _, e := range d.entries {
		if e.key != key {
			kept = append(kept, e)
			continue
		}
		if !replaced {
			kept = append(kept, assignment)
			replaced = true
		}
	}
	d.entries = kept

	if !replaced {
		d.entries = append(d.entries, assignment)
	}
}

// Serialize renders the document. A non-empty document always ends with a
// single trailing newline, so repeated upserts of identical values produce
// byte-identical files.
func (d *Document) Serialize() []byte {
	if len(d.entries) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, e := range d.entries {
		sb.WriteString(e.raw)
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}
