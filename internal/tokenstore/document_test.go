package tokenstore

import (
	"testing"
)

func TestParseDocumentRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "assignments only",
			input: "FOO=bar\nBAZ=qux\n",
		},
		{
			name:  "comments and blanks preserved",
			input: "# generated by deploy\n\nFOO=bar\n\n# trailing comment\n",
		},
		{
			name:  "export and malformed lines carried verbatim",
			input: "export FOO=bar\n=orphan\nnot an assignment\nKEY =spaced\n",
		},
		{
			name:  "value containing equals sign",
			input: "URL=https://example.com/?a=1&b=2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ParseDocument([]byte(tt.input))
			got := string(doc.Serialize())
			if got != tt.input {
				t.Errorf("round trip mismatch:\ngot:  %q\nwant: %q", got, tt.input)
			}
		})
	}
}

func TestParseDocumentMissingTrailingNewline(t *testing.T) {
	doc := ParseDocument([]byte("FOO=bar"))
	got := string(doc.Serialize())
	if got != "FOO=bar\n" {
		t.Errorf("expected trailing newline to be added, got %q", got)
	}
}

func TestDocumentGet(t *testing.T) {
	doc := ParseDocument([]byte("FOO=bar\n# FOO=commented\nEMPTY=\nexport SHELLY=x\n"))

	tests := []struct {
		key       string
		wantValue string
		wantFound bool
	}{
		{key: "FOO", wantValue: "bar", wantFound: true},
		{key: "EMPTY", wantValue: "", wantFound: true},
		{key: "SHELLY", wantFound: false}, // export lines are opaque
		{key: "MISSING", wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			value, found := doc.Get(tt.key)
			if found != tt.wantFound {
				t.Fatalf("Get(%q) found = %v, want %v", tt.key, found, tt.wantFound)
			}
			if value != tt.wantValue {
				t.Errorf("Get(%q) = %q, want %q", tt.key, value, tt.wantValue)
			}
		})
	}
}

func TestDocumentSet(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
		value string
		want  string
	}{
		{
			name:  "replace in place keeps position",
			input: "A=1\nFOO=old\nB=2\n",
			key:   "FOO",
			value: "new",
			want:  "A=1\nFOO=new\nB=2\n",
		},
		{
			name:  "missing key appended at end",
			input: "A=1\n# comment\n",
			key:   "FOO",
			value: "bar",
			want:  "A=1\n# comment\nFOO=bar\n",
		},
		{
			name:  "duplicates collapse to first occurrence",
			input: "FOO=one\nA=1\nFOO=two\nFOO=three\n",
			key:   "FOO",
			value: "final",
			want:  "FOO=final\nA=1\n",
		},
		{
			name:  "empty value keeps the line",
			input: "FOO=bar\n",
			key:   "FOO",
			value: "",
			want:  "FOO=\n",
		},
		{
			name:  "empty document gets single line",
			input: "",
			key:   "FOO",
			value: "bar",
			want:  "FOO=bar\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ParseDocument([]byte(tt.input))
			doc.Set(tt.key, tt.value)
			got := string(doc.Serialize())
			if got != tt.want {
				t.Errorf("Set(%q, %q) produced:\ngot:  %q\nwant: %q", tt.key, tt.value, got, tt.want)
			}
		})
	}
}

func TestDocumentSetIdempotent(t *testing.T) {
	doc := ParseDocument([]byte("# header\nFOO=bar\n"))
	doc.Set("FOO", "bar")
	first := string(doc.Serialize())

	doc.Set("FOO", "bar")
	second := string(doc.Serialize())

	if first != second {
		t.Errorf("repeated Set of identical value changed output:\nfirst:  %q\nsecond: %q", first, second)
	}
}

func TestSerializeEmptyDocument(t *testing.T) {
	doc := ParseDocument(nil)
	if got := doc.Serialize(); got != nil {
		t.Errorf("empty document should serialize to nil, got %q", got)
	}
}
