package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kothaapp/kotha/internal/chat/domain"
	"github.com/kothaapp/kotha/internal/chat/storage"
)

func (s *Store) CreateMessage(ctx context.Context, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	message, err := normalizeMessage(message)
	if err != nil {
		return err
	}
	mentionsJSON, reactionsJSON, deletedForJSON, err := encodeMessageJSON(message)
	if err != nil {
		return err
	}

	var editedAt sql.NullInt64
	if message.EditedAt != nil {
		editedAt = sql.NullInt64{Int64: toMillis(*message.EditedAt), Valid: true}
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO messages (
		id, chat_kind, chat_id, sender_id, content, reply_to, mentions_json,
		is_automated, label, reactions_json, is_pinned, is_edited, edited_at,
		deleted_for_everyone, deleted_for_json, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		message.ID,
		string(message.ChatKind),
		message.ChatID,
		message.SenderID,
		message.Content,
		message.ReplyTo,
		mentionsJSON,
		boolToInt(message.IsAutomated),
		message.Label,
		reactionsJSON,
		boolToInt(message.IsPinned),
		boolToInt(message.IsEdited),
		editedAt,
		boolToInt(message.DeletedForEveryone),
		deletedForJSON,
		toMillis(message.CreatedAt),
	); err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put message: %w", err)
	}
	return nil
}

func (s *Store) FindMessage(ctx context.Context, kind domain.ChatKind, chatID, messageID string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Message{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, chat_kind, chat_id, sender_id, content, reply_to, mentions_json,
	is_automated, label, reactions_json, is_pinned, is_edited, edited_at,
	deleted_for_everyone, deleted_for_json, created_at
FROM messages
WHERE id = ? AND chat_kind = ? AND chat_id = ?
`, strings.TrimSpace(messageID), string(kind), strings.TrimSpace(chatID))
	message, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Message{}, storage.ErrNotFound
		}
		return domain.Message{}, fmt.Errorf("get message: %w", err)
	}
	return message, nil
}

// UpdateMessage overwrites the mutable lifecycle state of one message.
func (s *Store) UpdateMessage(ctx context.Context, message domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	message.ID = strings.TrimSpace(message.ID)
	if message.ID == "" {
		return fmt.Errorf("message id is required")
	}
	_, reactionsJSON, deletedForJSON, err := encodeMessageJSON(message)
	if err != nil {
		return err
	}

	var editedAt sql.NullInt64
	if message.EditedAt != nil {
		editedAt = sql.NullInt64{Int64: toMillis(*message.EditedAt), Valid: true}
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE messages
SET content = ?, reactions_json = ?, is_pinned = ?, is_edited = ?, edited_at = ?,
	deleted_for_everyone = ?, deleted_for_json = ?
WHERE id = ?
`,
		message.Content,
		reactionsJSON,
		boolToInt(message.IsPinned),
		boolToInt(message.IsEdited),
		editedAt,
		boolToInt(message.DeletedForEveryone),
		deletedForJSON,
		message.ID,
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update message rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListMessages returns the newest messages of a chat, oldest first.
func (s *Store) ListMessages(ctx context.Context, kind domain.ChatKind, chatID string, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, chat_kind, chat_id, sender_id, content, reply_to, mentions_json,
	is_automated, label, reactions_json, is_pinned, is_edited, edited_at,
	deleted_for_everyone, deleted_for_json, created_at
FROM messages
WHERE chat_kind = ? AND chat_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, string(kind), strings.TrimSpace(chatID), limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		message, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	// Rows arrive newest first; callers render oldest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func normalizeMessage(message domain.Message) (domain.Message, error) {
	message.ID = strings.TrimSpace(message.ID)
	message.ChatID = strings.TrimSpace(message.ChatID)
	message.SenderID = strings.TrimSpace(message.SenderID)
	if message.ID == "" || message.ChatID == "" || message.SenderID == "" {
		return domain.Message{}, fmt.Errorf("message id, chat id, and sender id are required")
	}
	if message.CreatedAt.IsZero() {
		return domain.Message{}, fmt.Errorf("created_at is required")
	}
	message.CreatedAt = message.CreatedAt.UTC()
	return message, nil
}

func encodeMessageJSON(message domain.Message) (mentions, reactions, deletedFor string, err error) {
	mentionsBytes, err := json.Marshal(emptySlice(message.Mentions))
	if err != nil {
		return "", "", "", fmt.Errorf("encode mentions: %w", err)
	}
	reactionsList := message.Reactions
	if reactionsList == nil {
		reactionsList = []domain.Reaction{}
	}
	reactionsBytes, err := json.Marshal(reactionsList)
	if err != nil {
		return "", "", "", fmt.Errorf("encode reactions: %w", err)
	}
	deletedForBytes, err := json.Marshal(emptySlice(message.DeletedFor))
	if err != nil {
		return "", "", "", fmt.Errorf("encode deleted-for list: %w", err)
	}
	return string(mentionsBytes), string(reactionsBytes), string(deletedForBytes), nil
}

func emptySlice(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func scanMessage(scan scanner) (domain.Message, error) {
	var message domain.Message
	var kind, mentionsJSON, reactionsJSON, deletedForJSON string
	var isAutomated, isPinned, isEdited, deletedForEveryone int
	var editedAt sql.NullInt64
	var createdAt int64
	if err := scan(
		&message.ID,
		&kind,
		&message.ChatID,
		&message.SenderID,
		&message.Content,
		&message.ReplyTo,
		&mentionsJSON,
		&isAutomated,
		&message.Label,
		&reactionsJSON,
		&isPinned,
		&isEdited,
		&editedAt,
		&deletedForEveryone,
		&deletedForJSON,
		&createdAt,
	); err != nil {
		return domain.Message{}, err
	}
	message.ChatKind = domain.ChatKind(kind)
	message.IsAutomated = isAutomated != 0
	message.IsPinned = isPinned != 0
	message.IsEdited = isEdited != 0
	message.DeletedForEveryone = deletedForEveryone != 0
	message.CreatedAt = fromMillis(createdAt)
	if editedAt.Valid {
		at := fromMillis(editedAt.Int64)
		message.EditedAt = &at
	}
	if err := json.Unmarshal([]byte(mentionsJSON), &message.Mentions); err != nil {
		return domain.Message{}, fmt.Errorf("decode mentions: %w", err)
	}
	if err := json.Unmarshal([]byte(reactionsJSON), &message.Reactions); err != nil {
		return domain.Message{}, fmt.Errorf("decode reactions: %w", err)
	}
	if err := json.Unmarshal([]byte(deletedForJSON), &message.DeletedFor); err != nil {
		return domain.Message{}, fmt.Errorf("decode deleted-for list: %w", err)
	}
	if len(message.Mentions) == 0 {
		message.Mentions = nil
	}
	if len(message.DeletedFor) == 0 {
		message.DeletedFor = nil
	}
	return message, nil
}
