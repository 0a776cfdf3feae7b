package schema

import "context"

// Document describes one table, column, or concept in the analytics schema.
// Documents are immutable once a snapshot is built; a rebuild produces a
// fresh set rather than mutating in place.
type Document struct {
	Table       string   `json:"table"`
	Column      string   `json:"column,omitempty"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases,omitempty"`
	DataType    string   `json:"data_type,omitempty"`
	RelatedTo   []string `json:"related_to,omitempty"` // "table" or "table.column" references
}

// ID returns a stable identifier for the document
func (d Document) ID() string {
	if d.Column != "" {
		return d.Table + "." + d.Column
	}

	return d.Table
}

// MetadataProvider supplies the current schema documents and version.
// Invoked on startup and on explicit refresh.
type MetadataProvider interface {
	CurrentSchema(ctx context.Context) (docs []Document, version string, err error)
}
