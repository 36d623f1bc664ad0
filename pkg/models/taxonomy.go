package models

import "time"

// TaxonomyKind selects the category or the tag tables.
type TaxonomyKind string

const (
	TaxonomyCategory TaxonomyKind = "category"
	TaxonomyTag      TaxonomyKind = "tag"
)

// Valid reports whether k names a known taxonomy.
func (k TaxonomyKind) Valid() bool {
	return k == TaxonomyCategory || k == TaxonomyTag
}

// Taxon is a category or tag. The id is generated once per (enterprise_id, text).
type Taxon struct {
	Kind         TaxonomyKind `json:"kind" db:"-"`
	EnterpriseID string       `json:"enterprise_id" db:"enterprise_id"`
	Text         string       `json:"text" db:"text"`
	ID           string       `json:"id" db:"id"`
	ParentID     *string      `json:"parent_id,omitempty" db:"parent_id"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}
