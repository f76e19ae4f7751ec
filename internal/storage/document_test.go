package storage

import (
	"encoding/json"
	"testing"
)

func TestMergeFields(t *testing.T) {
	doc := []byte(`{"name":"Friday Lunch","participants":[]}`)

	out, err := MergeFields(doc, map[string]json.RawMessage{
		"participants": json.RawMessage(`[{"userId":"a@x.com"}]`),
		"usuarios":     json.RawMessage(`[]`),
	})
	if err != nil {
		t.Fatalf("MergeFields failed: %v", err)
	}

	var got map[string]json.RawMessage
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output is not an object: %v", err)
	}
	if string(got["name"]) != `"Friday Lunch"` {
		t.Errorf("name changed: %s", got["name"])
	}
	if string(got["participants"]) != `[{"userId":"a@x.com"}]` {
		t.Errorf("participants not replaced: %s", got["participants"])
	}
	if string(got["usuarios"]) != `[]` {
		t.Errorf("usuarios not added: %s", got["usuarios"])
	}
}

func TestMergeFieldsRejectsNonObject(t *testing.T) {
	if _, err := MergeFields([]byte(`[1,2]`), nil); err == nil {
		t.Error("expected error for array document")
	}
}

func TestUnionArrays(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		add  []json.RawMessage
		want int
	}{
		{
			name: "missing field starts empty",
			doc:  `{}`,
			add:  []json.RawMessage{json.RawMessage(`{"a":1}`)},
			want: 1,
		},
		{
			name: "null field starts empty",
			doc:  `{"items":null}`,
			add:  []json.RawMessage{json.RawMessage(`{"a":1}`)},
			want: 1,
		},
		{
			name: "equal value with different key order is skipped",
			doc:  `{"items":[{"a":1,"b":2}]}`,
			add:  []json.RawMessage{json.RawMessage(`{ "b":2, "a":1 }`)},
			want: 1,
		},
		{
			name: "same identity but different value is appended",
			doc:  `{"items":[{"id":"x","n":1}]}`,
			add:  []json.RawMessage{json.RawMessage(`{"id":"x","n":2}`)},
			want: 2,
		},
		{
			name: "duplicates within one call collapse",
			doc:  `{"items":[]}`,
			add:  []json.RawMessage{json.RawMessage(`"p1"`), json.RawMessage(`"p1"`)},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := UnionArrays([]byte(tt.doc), map[string][]json.RawMessage{"items": tt.add})
			if err != nil {
				t.Fatalf("UnionArrays failed: %v", err)
			}
			var got struct {
				Items []json.RawMessage `json:"items"`
			}
			if err := json.Unmarshal(out, &got); err != nil {
				t.Fatalf("bad output: %v", err)
			}
			if len(got.Items) != tt.want {
				t.Errorf("items = %d, want %d (%s)", len(got.Items), tt.want, out)
			}
		})
	}
}

func TestUnionArraysRejectsNonArrayField(t *testing.T) {
	_, err := UnionArrays([]byte(`{"items":"nope"}`), map[string][]json.RawMessage{
		"items": {json.RawMessage(`1`)},
	})
	if err == nil {
		t.Error("expected error for non-array field")
	}
}
