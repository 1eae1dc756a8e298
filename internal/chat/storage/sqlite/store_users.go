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

func (s *Store) FindIdentity(ctx context.Context, userID string) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Identity{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Identity{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, email, display_name, reply_name, role, verified, ghost_mode
FROM users
WHERE id = ?
`, userID)
	identity, err := scanIdentity(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Identity{}, storage.ErrNotFound
		}
		return domain.Identity{}, fmt.Errorf("get user: %w", err)
	}
	return identity, nil
}

// FindAdminForChat resolves the chat's single implicit admin: the first
// member holding the admin role.
func (s *Store) FindAdminForChat(ctx context.Context, chat domain.Chat) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Identity{}, err
	}
	memberIDs := chat.MemberIDs()
	if len(memberIDs) == 0 {
		return domain.Identity{}, storage.ErrNotFound
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(memberIDs)), ",")
	args := make([]any, 0, len(memberIDs))
	for _, id := range memberIDs {
		args = append(args, id)
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, email, display_name, reply_name, role, verified, ghost_mode
FROM users
WHERE role = 'admin' AND id IN (`+placeholders+`)
ORDER BY id ASC
LIMIT 1
`, args...)
	identity, err := scanIdentity(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Identity{}, storage.ErrNotFound
		}
		return domain.Identity{}, fmt.Errorf("get chat admin: %w", err)
	}
	return identity, nil
}

// PutIdentity upserts an identity row.
func (s *Store) PutIdentity(ctx context.Context, identity domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	identity.ID = strings.TrimSpace(identity.ID)
	identity.Email = strings.ToLower(strings.TrimSpace(identity.Email))
	if identity.ID == "" || identity.Email == "" {
		return fmt.Errorf("user id and email are required")
	}
	if identity.Role == "" {
		identity.Role = domain.RoleUser
	}
	now := toMillis(time.Now().UTC())

	if _, err := s.sqlDB.ExecContext(ctx, `
	INSERT INTO users (id, email, display_name, reply_name, role, verified, ghost_mode, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		email = excluded.email,
		display_name = excluded.display_name,
		reply_name = excluded.reply_name,
		role = excluded.role,
		verified = excluded.verified,
		ghost_mode = excluded.ghost_mode,
		updated_at = excluded.updated_at
	`,
		identity.ID,
		identity.Email,
		identity.DisplayName,
		identity.ReplyName,
		string(identity.Role),
		boolToInt(identity.Verified),
		boolToInt(identity.GhostMode),
		now,
		now,
	); err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func scanIdentity(scan scanner) (domain.Identity, error) {
	var identity domain.Identity
	var role string
	var verified, ghostMode int
	if err := scan(
		&identity.ID,
		&identity.Email,
		&identity.DisplayName,
		&identity.ReplyName,
		&role,
		&verified,
		&ghostMode,
	); err != nil {
		return domain.Identity{}, err
	}
	identity.Role = domain.Role(role)
	identity.Verified = verified != 0
	identity.GhostMode = ghostMode != 0
	return identity, nil
}
