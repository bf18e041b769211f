package encoding

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestCanonicalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    string
		wantErr bool
	}{
		{
			name:  "simple object sorted keys",
			input: map[string]any{"z": 1, "a": 2, "m": 3},
			want:  `{"a":2,"m":3,"z":1}`,
		},
		{
			name:  "nested object sorted keys",
			input: map[string]any{"b": map[string]any{"d": 1, "c": 2}, "a": 3},
			want:  `{"a":3,"b":{"c":2,"d":1}}`,
		},
		{
			name:  "array preserved order",
			input: []any{3, 1, 2},
			want:  `[3,1,2]`,
		},
		{
			name:  "mixed types",
			input: map[string]any{"str": "hello", "num": 42, "bool": false, "null": nil},
			want:  `{"bool":false,"null":null,"num":42,"str":"hello"}`,
		},
		{
			name:  "empty object",
			input: map[string]any{},
			want:  `{}`,
		},
		{
			name:  "large integers keep precision",
			input: map[string]any{"n": uint64(18446744073709551615)},
			want:  `{"n":18446744073709551615}`,
		},
		{
			name:  "html characters unescaped",
			input: map[string]any{"html": "<b>&</b>"},
			want:  `{"html":"<b>&</b>"}`,
		},
		{
			name:  "decomposed text normalized to NFC",
			input: map[string]any{"name": "Cafe\u0301"},
			want:  "{\"name\":\"Caf\u00e9\"}",
		},
		{
			name: "business event payload",
			input: map[string]any{
				"business_id": "acme-1",
				"name":        "Acme",
				"tags":        []any{"retail", "b2b"},
			},
			want: `{"business_id":"acme-1","name":"Acme","tags":["retail","b2b"]}`,
		},
		{
			name:    "channel rejected",
			input:   make(chan int),
			wantErr: true,
		},
		{
			name:    "NaN rejected",
			input:   map[string]any{"x": math.NaN()},
			wantErr: true,
		},
		{
			name:    "function rejected",
			input:   func() {},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalJSON(tt.input)
			if tt.wantErr {
				var serr *SerializationError
				if !errors.As(err, &serr) {
					t.Fatalf("expected SerializationError, got %v", err)
				}
				if got != nil {
					t.Fatalf("expected no output on error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("CanonicalJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("CanonicalJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCanonicalJSONNumberSpellings(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: `{"n":100}`, want: `{"n":100}`},
		{raw: `{"n":1e2}`, want: `{"n":100}`},
		{raw: `{"n":1E+2}`, want: `{"n":100}`},
		{raw: `{"n":100.0}`, want: `{"n":100}`},
		{raw: `{"n":-0}`, want: `{"n":0}`},
		{raw: `{"n":1.50}`, want: `{"n":1.5}`},
		{raw: `{"n":15e-1}`, want: `{"n":1.5}`},
		{raw: `{"n":0.0000001}`, want: `{"n":1e-7}`},
		{raw: `{"n":18446744073709551615.0}`, want: `{"n":18446744073709551615}`},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := CanonicalJSON(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("CanonicalJSON(%s) error = %v", tt.raw, err)
			}
			if string(got) != tt.want {
				t.Fatalf("CanonicalJSON(%s) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestContentHashIgnoresNumberSpelling(t *testing.T) {
	want, err := ContentHash(map[string]any{"n": 100})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	for _, raw := range []string{`{"n":100}`, `{"n":1e2}`, `{"n":100.0}`} {
		got, err := ContentHash(json.RawMessage(raw))
		if err != nil {
			t.Fatalf("hash %s: %v", raw, err)
		}
		if got != want {
			t.Fatalf("hash of %s = %s, want %s", raw, got, want)
		}
	}
}

func TestCanonicalJSONRejectsHugeExponent(t *testing.T) {
	_, err := CanonicalJSON(json.RawMessage(`{"n":1e500}`))
	var serr *SerializationError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SerializationError, got %v", err)
	}
}

type failingMarshaler struct{}

func (failingMarshaler) MarshalJSON() ([]byte, error) {
	return nil, errors.New("boom")
}

func TestSerializationErrorUnwraps(t *testing.T) {
	_, err := ContentHash(failingMarshaler{})
	var serr *SerializationError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SerializationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected cause in message, got %v", err)
	}
	if errors.Unwrap(err) == nil {
		t.Fatal("expected wrapped cause")
	}
}

type node struct {
	Next *node `json:"next"`
}

func TestCanonicalJSONRejectsCycles(t *testing.T) {
	n := &node{}
	n.Next = n
	if _, err := CanonicalJSON(n); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestContentHashDeterministicAcrossInsertionOrder(t *testing.T) {
	first := map[string]any{}
	first["name"] = "Acme"
	first["id"] = "biz-1"
	first["address"] = map[string]any{"city": "Lisbon", "zip": "1000"}

	second := map[string]any{}
	second["address"] = map[string]any{"zip": "1000", "city": "Lisbon"}
	second["id"] = "biz-1"
	second["name"] = "Acme"

	h1, err := ContentHash(first)
	if err != nil {
		t.Fatalf("hash first: %v", err)
	}
	h2, err := ContentHash(second)
	if err != nil {
		t.Fatalf("hash second: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hashes differ: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestContentHashStructMatchesMap(t *testing.T) {
	type created struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	}
	fromStruct, err := ContentHash(created{Name: "Acme", ID: "biz-1"})
	if err != nil {
		t.Fatalf("hash struct: %v", err)
	}
	fromMap, err := ContentHash(map[string]any{"id": "biz-1", "name": "Acme"})
	if err != nil {
		t.Fatalf("hash map: %v", err)
	}
	if fromStruct != fromMap {
		t.Fatalf("struct hash %s != map hash %s", fromStruct, fromMap)
	}
}

func TestContentHashDiffersOnValueChange(t *testing.T) {
	h1, _ := ContentHash(map[string]any{"name": "Acme"})
	h2, _ := ContentHash(map[string]any{"name": "Acme Corp"})
	if h1 == h2 {
		t.Fatal("expected different hashes for different values")
	}
}

func TestHashBytesKnownVector(t *testing.T) {
	// sha256("{}")
	const want = "44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a"
	if got := HashBytes([]byte("{}")); got != want {
		t.Fatalf("HashBytes({}) = %s, want %s", got, want)
	}
}
