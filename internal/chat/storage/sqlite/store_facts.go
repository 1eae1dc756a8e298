package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kothaapp/kotha/internal/chat/domain"
	"github.com/kothaapp/kotha/internal/chat/storage"
)

// FactsByAdmin returns the admin's facts as a lowercased key → value map.
func (s *Store) FactsByAdmin(ctx context.Context, adminID string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT key, value FROM knowledge_facts WHERE admin_id = ?
`, strings.TrimSpace(adminID))
	if err != nil {
		return nil, fmt.Errorf("list knowledge facts: %w", err)
	}
	defer rows.Close()

	facts := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan knowledge fact row: %w", err)
		}
		facts[strings.ToLower(key)] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge fact rows: %w", err)
	}
	return facts, nil
}

func (s *Store) PutFact(ctx context.Context, fact domain.KnowledgeFact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	fact.ID = strings.TrimSpace(fact.ID)
	fact.AdminID = strings.TrimSpace(fact.AdminID)
	fact.Key = strings.ToLower(strings.TrimSpace(fact.Key))
	fact.Value = strings.TrimSpace(fact.Value)
	if fact.ID == "" || fact.AdminID == "" || fact.Key == "" || fact.Value == "" {
		return fmt.Errorf("fact id, admin id, key, and value are required")
	}
	if fact.Category == "" {
		fact.Category = domain.FactCategoryOther
	}
	now := time.Now().UTC()
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = now
	}
	fact.UpdatedAt = now

	if _, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO knowledge_facts (id, admin_id, key, value, category, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(admin_id, key) DO UPDATE SET
		value = excluded.value,
		category = excluded.category,
		updated_at = excluded.updated_at
	`,
		fact.ID,
		fact.AdminID,
		fact.Key,
		fact.Value,
		string(fact.Category),
		toMillis(fact.CreatedAt),
		toMillis(fact.UpdatedAt),
	); err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put knowledge fact: %w", err)
	}
	return nil
}
