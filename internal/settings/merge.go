package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// deepMerge returns base with patch laid over it. Nested objects merge key by
// key; every other value, including false, 0 and arrays, replaces what base
// had. A JSON null in the patch leaves the base value alone.
func deepMerge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}

	for k, v := range patch {
		if v == nil {
			continue
		}

		pm, pok := v.(map[string]any)
		bm, bok := out[k].(map[string]any)

		if pok && bok {
			out[k] = deepMerge(bm, pm)
			continue
		}

		out[k] = v
	}

	return out
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	return m, nil
}

func decodeDocument(m map[string]any) (Document, error) {
	var doc Document

	raw, err := json.Marshal(m)
	if err != nil {
		return doc, err
	}

	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, err
	}

	return doc, nil
}

// checkPatch rejects unknown sections, unknown fields and mistyped values
// before anything is merged.
func checkPatch(patch map[string]any) error {
	for section := range patch {
		if !knownSection(section) {
			return fmt.Errorf("%w: %q", ErrUnknownSection, section)
		}
	}

	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}

	return nil
}

func knownSection(name string) bool {
	for _, s := range Sections {
		if s == name {
			return true
		}
	}

	return false
}
