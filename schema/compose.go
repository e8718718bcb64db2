package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Compose embeds each extension schema under properties.<key> of base and
// returns the combined document.
func Compose(base []byte, extensions map[string][]byte) ([]byte, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(base, &doc); err != nil {
		return nil, fmt.Errorf("could not parse base schema: %w", err)
	}

	properties, ok := doc["properties"].(map[string]interface{})
	if !ok {
		properties = make(map[string]interface{})
		doc["properties"] = properties
	}

	keys := make([]string, 0, len(extensions))
	for key := range extensions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var ext map[string]interface{}
		if err := json.Unmarshal(extensions[key], &ext); err != nil {
			return nil, fmt.Errorf("could not parse %s schema: %w", key, err)
		}
		// nested documents must not redeclare the dialect
		delete(ext, "$schema")
		delete(ext, "$id")
		properties[key] = ext
	}

	return json.MarshalIndent(doc, "", "  ")
}
