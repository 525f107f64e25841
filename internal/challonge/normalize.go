package challonge

import (
	"encoding/json"
	"fmt"
)

// Challonge answers either with flat records or with each record nested under
// its type key ({"participant": {...}}), depending on API version and format
// flags. Everything the client returns passes through here first.

func unwrap(raw json.RawMessage, key string) json.RawMessage {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return raw
	}
	if inner, ok := wrapper[key]; ok && len(wrapper) == 1 {
		return inner
	}
	return raw
}

func decodeOne[T any](body []byte, key string) (*T, error) {
	var v T
	if err := json.Unmarshal(unwrap(body, key), &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

// decodeList also accepts the whole list wrapped under the plural key.
func decodeList[T any](body []byte, key string) ([]T, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		if err := json.Unmarshal(unwrap(body, key+"s"), &items); err != nil {
			return nil, fmt.Errorf("decode %s list: %w", key, err)
		}
	}

	out := make([]T, 0, len(items))
	for i, item := range items {
		var v T
		if err := json.Unmarshal(unwrap(item, key), &v); err != nil {
			return nil, fmt.Errorf("decode %s #%d: %w", key, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
