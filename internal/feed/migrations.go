package feed

import (
	"encoding/json"
	"fmt"
)

const SchemaVersion = 2

// MigrateV1 converts the first saved layout, where each item carried a
// plain "likes" count, into the reactions object.
func MigrateV1(data json.RawMessage) (json.RawMessage, error) {
	var st struct {
		Residents json.RawMessage             `json:"residents"`
		Items     map[string][]map[string]any `json:"items"`
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode v1 feed: %w", err)
	}

	for _, list := range st.Items {
		for _, it := range list {
			likes, _ := it["likes"].(float64)
			if likes < 0 {
				likes = 0
			}
			delete(it, "likes")
			if _, ok := it["reactions"]; !ok {
				it["reactions"] = map[string]any{"heart": int(likes), "reacted_by_me": false}
			}
			if _, ok := it["tags"]; !ok {
				it["tags"] = []string{}
			}
		}
	}
	return json.Marshal(st)
}
