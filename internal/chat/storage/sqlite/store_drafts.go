package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kothaapp/kotha/internal/chat/domain"
	"github.com/kothaapp/kotha/internal/chat/storage"
)

func (s *Store) SaveDraft(ctx context.Context, draft domain.Draft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	draft.UserID = strings.TrimSpace(draft.UserID)
	draft.ChatID = strings.TrimSpace(draft.ChatID)
	if draft.UserID == "" || draft.ChatID == "" {
		return fmt.Errorf("draft user id and chat id are required")
	}
	if draft.UpdatedAt.IsZero() {
		draft.UpdatedAt = time.Now().UTC()
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO drafts (user_id, chat_kind, chat_id, content, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id, chat_kind, chat_id) DO UPDATE SET
		content = excluded.content,
		updated_at = excluded.updated_at
	`,
		draft.UserID,
		string(draft.ChatKind),
		draft.ChatID,
		draft.Content,
		toMillis(draft.UpdatedAt),
	); err != nil {
		return fmt.Errorf("put draft: %w", err)
	}
	return nil
}

func (s *Store) GetDraft(ctx context.Context, userID string, kind domain.ChatKind, chatID string) (domain.Draft, error) {
	if err := ctx.Err(); err != nil {
		return domain.Draft{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Draft{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id, chat_kind, chat_id, content, updated_at
FROM drafts
WHERE user_id = ? AND chat_kind = ? AND chat_id = ?
`, strings.TrimSpace(userID), string(kind), strings.TrimSpace(chatID))

	var draft domain.Draft
	var draftKind string
	var updatedAt int64
	if err := row.Scan(&draft.UserID, &draftKind, &draft.ChatID, &draft.Content, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Draft{}, storage.ErrNotFound
		}
		return domain.Draft{}, fmt.Errorf("get draft: %w", err)
	}
	draft.ChatKind = domain.ChatKind(draftKind)
	draft.UpdatedAt = fromMillis(updatedAt)
	return draft, nil
}
