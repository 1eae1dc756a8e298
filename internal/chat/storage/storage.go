// Package storage defines the persistence boundary for the realtime core.
//
// The core treats every store failure as non-retriable for the current
// request: errors surface to the caller, nothing auto-retries.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kothaapp/kotha/internal/chat/domain"
)

var (
	// ErrNotFound indicates a requested chat, message, user, or draft is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
)

// ChatStore persists direct and group chats.
type ChatStore interface {
	// CreateChat persists a new chat with its member rows.
	CreateChat(ctx context.Context, chat domain.Chat) error
	// FindChat loads one chat by kind and ID, including members.
	FindChat(ctx context.Context, kind domain.ChatKind, chatID string) (domain.Chat, error)
	// FindDMByPair loads the unique direct chat for an unordered user pair.
	FindDMByPair(ctx context.Context, userA, userB string) (domain.Chat, error)
	// UpdateChatSettings persists bot mode, mute/favorite flags, relationship
	// type, and group name changes.
	UpdateChatSettings(ctx context.Context, chat domain.Chat) error
	// TouchLastMessage advances the chat's last-message timestamp.
	TouchLastMessage(ctx context.Context, kind domain.ChatKind, chatID string, at time.Time) error
	// AddGroupMember appends one membership row to a group chat.
	AddGroupMember(ctx context.Context, chatID string, member domain.GroupMember) error
	// RemoveGroupMember deletes one membership row from a group chat.
	RemoveGroupMember(ctx context.Context, chatID string, userID string) error
}

// MessageStore persists messages and their lifecycle state.
type MessageStore interface {
	CreateMessage(ctx context.Context, message domain.Message) error
	FindMessage(ctx context.Context, kind domain.ChatKind, chatID, messageID string) (domain.Message, error)
	// UpdateMessage overwrites the mutable lifecycle state of one message.
	UpdateMessage(ctx context.Context, message domain.Message) error
	// ListMessages returns the newest messages of a chat, oldest first.
	ListMessages(ctx context.Context, kind domain.ChatKind, chatID string, limit int) ([]domain.Message, error)
}

// IdentityStore reads identities maintained by the external account flows.
type IdentityStore interface {
	FindIdentity(ctx context.Context, userID string) (domain.Identity, error)
	// FindAdminForChat resolves the chat's single implicit admin: the first
	// member holding the admin role.
	FindAdminForChat(ctx context.Context, chat domain.Chat) (domain.Identity, error)
	// PutIdentity upserts an identity row. The realtime core only uses this
	// from tests and seeding; account mutation is an external concern.
	PutIdentity(ctx context.Context, identity domain.Identity) error
}

// KnowledgeStore reads admin-curated facts for the automation engine.
type KnowledgeStore interface {
	// FactsByAdmin returns the admin's facts as a lowercased key → value map.
	FactsByAdmin(ctx context.Context, adminID string) (map[string]string, error)
	PutFact(ctx context.Context, fact domain.KnowledgeFact) error
}

// DraftStore persists per-user unsent drafts.
type DraftStore interface {
	SaveDraft(ctx context.Context, draft domain.Draft) error
	GetDraft(ctx context.Context, userID string, kind domain.ChatKind, chatID string) (domain.Draft, error)
}

// Store aggregates every persistence concern the realtime core consumes.
type Store interface {
	ChatStore
	MessageStore
	IdentityStore
	KnowledgeStore
	DraftStore
}
