package domain

import "time"

// FactCategory groups admin-curated knowledge facts.
type FactCategory string

const (
	FactCategoryPersonal      FactCategory = "personal"
	FactCategoryRelationships FactCategory = "relationships"
	FactCategoryPreferences   FactCategory = "preferences"
	FactCategoryOther         FactCategory = "other"
)

// KnowledgeFact is one admin-curated key/value pair the automation engine
// may quote verbatim. The engine never answers personal questions from
// outside this set.
type KnowledgeFact struct {
	ID        string
	AdminID   string
	Key       string
	Value     string
	Category  FactCategory
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Draft is a per-user unsent message for one chat.
type Draft struct {
	UserID    string
	ChatKind  ChatKind
	ChatID    string
	Content   string
	UpdatedAt time.Time
}
