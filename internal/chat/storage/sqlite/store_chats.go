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

// CreateChat persists a new chat with its member rows in one transaction.
func (s *Store) CreateChat(ctx context.Context, chat domain.Chat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	normalized, members, err := normalizeChat(chat)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chat write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback chat write: %v", cause, rollbackErr)
		}
		return cause
	}

	var pairKey sql.NullString
	if normalized.Kind == domain.ChatKindDirect {
		pairKey = sql.NullString{
			String: domain.PairKey(normalized.Participants[0], normalized.Participants[1]),
			Valid:  true,
		}
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO chats (
		id, kind, bot_mode, is_muted, is_favorite, relationship, dm_kind,
		pair_key, name, creator_id, last_message_at, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		normalized.ID,
		string(normalized.Kind),
		string(normalized.BotMode),
		boolToInt(normalized.IsMuted),
		boolToInt(normalized.IsFavorite),
		string(normalized.Relationship),
		string(normalized.DMKind),
		pairKey,
		normalized.Name,
		normalized.CreatorID,
		toMillis(normalized.LastMessageAt),
		toMillis(normalized.CreatedAt),
	); err != nil {
		if isUniqueConstraintError(err) {
			return rollbackWith(storage.ErrConflict)
		}
		return rollbackWith(fmt.Errorf("put chat: %w", err))
	}

	for _, member := range members {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_members (chat_id, user_id, joined_at) VALUES (?, ?, ?)
		`, normalized.ID, member.UserID, toMillis(member.JoinedAt)); err != nil {
			if isUniqueConstraintError(err) {
				return rollbackWith(storage.ErrConflict)
			}
			return rollbackWith(fmt.Errorf("put chat member: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chat write: %w", err)
	}
	return nil
}

// FindChat loads one chat by kind and ID, including members.
func (s *Store) FindChat(ctx context.Context, kind domain.ChatKind, chatID string) (domain.Chat, error) {
	if err := ctx.Err(); err != nil {
		return domain.Chat{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Chat{}, err
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return domain.Chat{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, kind, bot_mode, is_muted, is_favorite, relationship, dm_kind, name, creator_id, last_message_at, created_at
FROM chats
WHERE id = ? AND kind = ?
`, chatID, string(kind))
	chat, err := scanChat(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Chat{}, storage.ErrNotFound
		}
		return domain.Chat{}, fmt.Errorf("get chat: %w", err)
	}
	if err := s.loadMembers(ctx, &chat); err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// FindDMByPair loads the unique direct chat for an unordered user pair.
func (s *Store) FindDMByPair(ctx context.Context, userA, userB string) (domain.Chat, error) {
	if err := ctx.Err(); err != nil {
		return domain.Chat{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Chat{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, kind, bot_mode, is_muted, is_favorite, relationship, dm_kind, name, creator_id, last_message_at, created_at
FROM chats
WHERE pair_key = ?
`, domain.PairKey(userA, userB))
	chat, err := scanChat(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Chat{}, storage.ErrNotFound
		}
		return domain.Chat{}, fmt.Errorf("get dm by pair: %w", err)
	}
	if err := s.loadMembers(ctx, &chat); err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// UpdateChatSettings persists the mutable chat settings.
func (s *Store) UpdateChatSettings(ctx context.Context, chat domain.Chat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	chat.ID = strings.TrimSpace(chat.ID)
	if chat.ID == "" {
		return fmt.Errorf("chat id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE chats
SET bot_mode = ?, is_muted = ?, is_favorite = ?, relationship = ?, name = ?
WHERE id = ? AND kind = ?
`,
		string(chat.BotMode),
		boolToInt(chat.IsMuted),
		boolToInt(chat.IsFavorite),
		string(chat.Relationship),
		chat.Name,
		chat.ID,
		string(chat.Kind),
	)
	if err != nil {
		return fmt.Errorf("update chat settings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update chat settings rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// TouchLastMessage advances the chat's last-message timestamp.
func (s *Store) TouchLastMessage(ctx context.Context, kind domain.ChatKind, chatID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE chats SET last_message_at = ? WHERE id = ? AND kind = ?
`, toMillis(at), strings.TrimSpace(chatID), string(kind))
	if err != nil {
		return fmt.Errorf("touch last message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch last message rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AddGroupMember appends one membership row to a group chat.
func (s *Store) AddGroupMember(ctx context.Context, chatID string, member domain.GroupMember) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	chatID = strings.TrimSpace(chatID)
	member.UserID = strings.TrimSpace(member.UserID)
	if chatID == "" || member.UserID == "" {
		return fmt.Errorf("chat id and user id are required")
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO chat_members (chat_id, user_id, joined_at) VALUES (?, ?, ?)
`, chatID, member.UserID, toMillis(member.JoinedAt)); err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// RemoveGroupMember deletes one membership row from a group chat.
func (s *Store) RemoveGroupMember(ctx context.Context, chatID string, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM chat_members WHERE chat_id = ? AND user_id = ?
`, strings.TrimSpace(chatID), strings.TrimSpace(userID))
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove group member rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) loadMembers(ctx context.Context, chat *domain.Chat) error {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT user_id, joined_at FROM chat_members WHERE chat_id = ? ORDER BY joined_at ASC, user_id ASC
`, chat.ID)
	if err != nil {
		return fmt.Errorf("list chat members: %w", err)
	}
	defer rows.Close()

	var members []domain.GroupMember
	for rows.Next() {
		var member domain.GroupMember
		var joinedAt int64
		if err := rows.Scan(&member.UserID, &joinedAt); err != nil {
			return fmt.Errorf("scan chat member row: %w", err)
		}
		member.JoinedAt = fromMillis(joinedAt)
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate chat member rows: %w", err)
	}

	switch chat.Kind {
	case domain.ChatKindDirect:
		if len(members) != 2 {
			return fmt.Errorf("direct chat %s has %d members", chat.ID, len(members))
		}
		chat.Participants = [2]string{members[0].UserID, members[1].UserID}
	case domain.ChatKindGroup:
		chat.Members = members
	}
	return nil
}

func normalizeChat(chat domain.Chat) (domain.Chat, []domain.GroupMember, error) {
	chat.ID = strings.TrimSpace(chat.ID)
	if chat.ID == "" {
		return domain.Chat{}, nil, fmt.Errorf("chat id is required")
	}
	if chat.CreatedAt.IsZero() {
		return domain.Chat{}, nil, fmt.Errorf("created_at is required")
	}
	if chat.LastMessageAt.IsZero() {
		chat.LastMessageAt = chat.CreatedAt
	}
	chat.CreatedAt = chat.CreatedAt.UTC()
	chat.LastMessageAt = chat.LastMessageAt.UTC()
	if !domain.ValidBotMode(chat.BotMode) {
		return domain.Chat{}, nil, fmt.Errorf("bot mode %q is invalid", chat.BotMode)
	}

	switch chat.Kind {
	case domain.ChatKindDirect:
		first := strings.TrimSpace(chat.Participants[0])
		second := strings.TrimSpace(chat.Participants[1])
		if first == "" || second == "" || first == second {
			return domain.Chat{}, nil, fmt.Errorf("direct chat requires two distinct participants")
		}
		if !domain.ValidRelationshipType(chat.Relationship) {
			return domain.Chat{}, nil, fmt.Errorf("relationship %q is invalid", chat.Relationship)
		}
		members := []domain.GroupMember{
			{UserID: first, JoinedAt: chat.CreatedAt},
			{UserID: second, JoinedAt: chat.CreatedAt},
		}
		return chat, members, nil
	case domain.ChatKindGroup:
		chat.Name = strings.TrimSpace(chat.Name)
		chat.CreatorID = strings.TrimSpace(chat.CreatorID)
		if chat.Name == "" {
			return domain.Chat{}, nil, fmt.Errorf("group name is required")
		}
		if chat.CreatorID == "" {
			return domain.Chat{}, nil, fmt.Errorf("group creator is required")
		}
		if len(chat.Members) == 0 {
			return domain.Chat{}, nil, fmt.Errorf("group requires at least one member")
		}
		members := make([]domain.GroupMember, 0, len(chat.Members))
		for _, member := range chat.Members {
			userID := strings.TrimSpace(member.UserID)
			if userID == "" {
				return domain.Chat{}, nil, fmt.Errorf("group member user id is required")
			}
			joinedAt := member.JoinedAt
			if joinedAt.IsZero() {
				joinedAt = chat.CreatedAt
			}
			members = append(members, domain.GroupMember{UserID: userID, JoinedAt: joinedAt.UTC()})
		}
		return chat, members, nil
	}
	return domain.Chat{}, nil, fmt.Errorf("chat kind %q is invalid", chat.Kind)
}

func scanChat(scan scanner) (domain.Chat, error) {
	var chat domain.Chat
	var kind, botMode, relationship, dmKind string
	var isMuted, isFavorite int
	var lastMessageAt, createdAt int64
	if err := scan(
		&chat.ID,
		&kind,
		&botMode,
		&isMuted,
		&isFavorite,
		&relationship,
		&dmKind,
		&chat.Name,
		&chat.CreatorID,
		&lastMessageAt,
		&createdAt,
	); err != nil {
		return domain.Chat{}, err
	}
	chat.Kind = domain.ChatKind(kind)
	chat.BotMode = domain.BotMode(botMode)
	chat.Relationship = domain.RelationshipType(relationship)
	chat.DMKind = domain.DMKind(dmKind)
	chat.IsMuted = isMuted != 0
	chat.IsFavorite = isFavorite != 0
	chat.LastMessageAt = fromMillis(lastMessageAt)
	chat.CreatedAt = fromMillis(createdAt)
	return chat, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
