package domain

import "github.com/google/uuid"

type Book struct {
	ID     uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Title  string    `json:"title" gorm:"not null"`
	Author string    `json:"author" gorm:"not null"`
}

// BookPatch carries the fields of a partial update. Nil fields keep their
// stored value.
type BookPatch struct {
	Title  *string `json:"title,omitempty"`
	Author *string `json:"author,omitempty"`
}

func (p BookPatch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil
}

// Columns returns the column assignments for the present fields.
func (p BookPatch) Columns() map[string]any {
	cols := make(map[string]any, 2)
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Author != nil {
		cols["author"] = *p.Author
	}
	return cols
}

// Apply merges the present fields into b.
func (p BookPatch) Apply(b *Book) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
}
