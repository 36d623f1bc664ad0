package models

// FieldChange is one column of a partial update.
type FieldChange struct {
	Column string
	Value  any
}

// Changes is an ordered set of changed columns. An empty set means no write.
type Changes []FieldChange

// Columns returns the changed column names in order.
func (c Changes) Columns() []string {
	cols := make([]string, 0, len(c))
	for _, fc := range c {
		cols = append(cols, fc.Column)
	}
	return cols
}

func (c Changes) Empty() bool {
	return len(c) == 0
}
