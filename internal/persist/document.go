package persist

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document is the envelope every store is saved in.
type Document struct {
	SchemaVersion int             `json:"schema_version"`
	Key           string          `json:"key"`
	SavedAt       time.Time       `json:"saved_at"`
	Data          json.RawMessage `json:"data"`
}

// Migration upgrades a document's data from version N to N+1.
type Migration func(data json.RawMessage) (json.RawMessage, error)

// Migrations maps a source version to the function that lifts it one step.
type Migrations map[int]Migration

// Upgrade walks doc forward to target one version at a time.
func (m Migrations) Upgrade(doc Document, target int) (Document, error) {
	if doc.SchemaVersion > target {
		return doc, fmt.Errorf("%s: schema version %d is newer than supported %d", doc.Key, doc.SchemaVersion, target)
	}
	for doc.SchemaVersion < target {
		fn, ok := m[doc.SchemaVersion]
		if !ok {
			return doc, fmt.Errorf("%s: no migration from schema version %d", doc.Key, doc.SchemaVersion)
		}
		data, err := fn(doc.Data)
		if err != nil {
			return doc, fmt.Errorf("%s: migrate from %d: %w", doc.Key, doc.SchemaVersion, err)
		}
		doc.Data = data
		doc.SchemaVersion++
	}
	return doc, nil
}
