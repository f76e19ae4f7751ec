package api

import "encoding/json"

// Codec encodes the plain message structs of this package as JSON. It
// replaces the protojson codec Connect registers under the same name.
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
