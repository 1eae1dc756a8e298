// Package chats manages chat creation and settings: idempotent DM
// find-or-create, group lifecycle, and per-user drafts.
package chats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kothaapp/kotha/internal/chat/automation"
	"github.com/kothaapp/kotha/internal/chat/domain"
	"github.com/kothaapp/kotha/internal/chat/storage"
	apperrors "github.com/kothaapp/kotha/internal/platform/errors"
	"github.com/kothaapp/kotha/internal/platform/id"
)

// Service coordinates chat creation and settings against the store.
type Service struct {
	store storage.Store
	now   func() time.Time
}

// NewService builds a chats service. now defaults to time.Now.
func NewService(store storage.Store, now func() time.Time) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}, nil
}

// FindOrCreateDM returns the unique direct chat for the unordered user
// pair, creating it on first contact. Self-DMs are rejected.
func (s *Service) FindOrCreateDM(ctx context.Context, userID, otherUserID string) (domain.Chat, error) {
	userID = strings.TrimSpace(userID)
	otherUserID = strings.TrimSpace(otherUserID)
	if userID == "" || otherUserID == "" {
		return domain.Chat{}, apperrors.New(apperrors.CodeInvalidArgument, "both participants are required")
	}
	if userID == otherUserID {
		return domain.Chat{}, apperrors.New(apperrors.CodeInvalidArgument, "cannot open a chat with yourself")
	}

	existing, err := s.store.FindDMByPair(ctx, userID, otherUserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.Chat{}, apperrors.Wrap(apperrors.CodeStorageFailure, "look up dm", err)
	}

	chatID, err := id.NewID()
	if err != nil {
		return domain.Chat{}, fmt.Errorf("generate chat id: %w", err)
	}
	chat := domain.Chat{
		ID:           chatID,
		Kind:         domain.ChatKindDirect,
		BotMode:      domain.BotModeManual,
		Participants: [2]string{userID, otherUserID},
		Relationship: domain.RelationshipUnknown,
		DMKind:       domain.DMKindPersonal,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		// Lost a create race; the winner's chat is the canonical one.
		if errors.Is(err, storage.ErrConflict) {
			winner, findErr := s.store.FindDMByPair(ctx, userID, otherUserID)
			if findErr == nil {
				return winner, nil
			}
		}
		return domain.Chat{}, apperrors.Wrap(apperrors.CodeStorageFailure, "create dm", err)
	}
	return chat, nil
}

// SettingsUpdate carries a partial chat-settings change. Nil fields are
// left untouched.
type SettingsUpdate struct {
	BotMode      *domain.BotMode
	Relationship *domain.RelationshipType
	IsMuted      *bool
	IsFavorite   *bool
}

// UpdateSettings applies a settings change. Bot mode and relationship type
// require the admin role; mute and favorite are open to any member.
func (s *Service) UpdateSettings(ctx context.Context, requester domain.Identity, kind domain.ChatKind, chatID string, update SettingsUpdate) (domain.Chat, error) {
	chat, err := s.memberChat(ctx, requester.ID, kind, chatID)
	if err != nil {
		return domain.Chat{}, err
	}

	if update.BotMode != nil {
		if !requester.IsAdmin() {
			return domain.Chat{}, apperrors.New(apperrors.CodeNotAuthorized, "only an admin may change bot mode")
		}
		if !domain.ValidBotMode(*update.BotMode) {
			return domain.Chat{}, apperrors.New(apperrors.CodeInvalidArgument, "unrecognized bot mode")
		}
		chat.BotMode = *update.BotMode
	}
	if update.Relationship != nil {
		if chat.Kind != domain.ChatKindDirect {
			return domain.Chat{}, apperrors.New(apperrors.CodeInvalidArgument, "relationship type applies to direct chats only")
		}
		if !requester.IsAdmin() {
			return domain.Chat{}, apperrors.New(apperrors.CodeNotAuthorized, "only an admin may change relationship type")
		}
		if !domain.ValidRelationshipType(*update.Relationship) {
			return domain.Chat{}, apperrors.New(apperrors.CodeInvalidArgument, "unrecognized relationship type")
		}
		chat.Relationship = *update.Relationship
	}
	if update.IsMuted != nil {
		chat.IsMuted = *update.IsMuted
	}
	if update.IsFavorite != nil {
		chat.IsFavorite = *update.IsFavorite
	}

	if err := s.store.UpdateChatSettings(ctx, chat); err != nil {
		return domain.Chat{}, apperrors.Wrap(apperrors.CodeStorageFailure, "persist settings", err)
	}
	return chat, nil
}

// CreateGroup creates a group chat with the creator as its first member.
func (s *Service) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (domain.Chat, error) {
	creatorID = strings.TrimSpace(creatorID)
	name = strings.TrimSpace(name)
	if creatorID == "" || name == "" {
		return domain.Chat{}, apperrors.New(apperrors.CodeInvalidArgument, "creator and group name are required")
	}

	chatID, err := id.NewID()
	if err != nil {
		return domain.Chat{}, fmt.Errorf("generate chat id: %w", err)
	}
	now := s.now().UTC()
	members := []domain.GroupMember{{UserID: creatorID, JoinedAt: now}}
	seen := map[string]bool{creatorID: true}
	for _, memberID := range memberIDs {
		memberID = strings.TrimSpace(memberID)
		if memberID == "" || seen[memberID] {
			continue
		}
		seen[memberID] = true
		members = append(members, domain.GroupMember{UserID: memberID, JoinedAt: now})
	}

	chat := domain.Chat{
		ID:        chatID,
		Kind:      domain.ChatKindGroup,
		BotMode:   domain.BotModeManual,
		Name:      name,
		CreatorID: creatorID,
		Members:   members,
		CreatedAt: now,
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		return domain.Chat{}, apperrors.Wrap(apperrors.CodeStorageFailure, "create group", err)
	}
	return chat, nil
}

// RenameGroup changes a group's name. Creator only.
func (s *Service) RenameGroup(ctx context.Context, requesterID, chatID, name string) (domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Chat{}, apperrors.New(apperrors.CodeInvalidArgument, "group name is required")
	}
	chat, err := s.creatorChat(ctx, requesterID, chatID, "rename the group")
	if err != nil {
		return domain.Chat{}, err
	}
	chat.Name = name
	if err := s.store.UpdateChatSettings(ctx, chat); err != nil {
		return domain.Chat{}, apperrors.Wrap(apperrors.CodeStorageFailure, "persist rename", err)
	}
	return chat, nil
}

// AddGroupMember adds a user to a group. Creator only; re-adding an
// existing member is a no-op.
func (s *Service) AddGroupMember(ctx context.Context, requesterID, chatID, userID string) (domain.Chat, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Chat{}, apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	chat, err := s.creatorChat(ctx, requesterID, chatID, "change group membership")
	if err != nil {
		return domain.Chat{}, err
	}
	if chat.HasMember(userID) {
		return chat, nil
	}
	if err := s.store.AddGroupMember(ctx, chatID, domain.GroupMember{UserID: userID, JoinedAt: s.now().UTC()}); err != nil {
		if !errors.Is(err, storage.ErrConflict) {
			return domain.Chat{}, apperrors.Wrap(apperrors.CodeStorageFailure, "add member", err)
		}
	}
	return s.reloadGroup(ctx, chatID)
}

// RemoveGroupMember removes a user from a group. Creator only; the creator
// cannot be removed.
func (s *Service) RemoveGroupMember(ctx context.Context, requesterID, chatID, userID string) (domain.Chat, error) {
	chat, err := s.creatorChat(ctx, requesterID, chatID, "change group membership")
	if err != nil {
		return domain.Chat{}, err
	}
	if userID == chat.CreatorID {
		return domain.Chat{}, apperrors.New(apperrors.CodeInvalidArgument, "the creator cannot be removed")
	}
	if err := s.store.RemoveGroupMember(ctx, chatID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Chat{}, apperrors.New(apperrors.CodeNotFound, "member not found")
		}
		return domain.Chat{}, apperrors.Wrap(apperrors.CodeStorageFailure, "remove member", err)
	}
	return s.reloadGroup(ctx, chatID)
}

func (s *Service) reloadGroup(ctx context.Context, chatID string) (domain.Chat, error) {
	chat, err := s.store.FindChat(ctx, domain.ChatKindGroup, chatID)
	if err != nil {
		return domain.Chat{}, apperrors.Wrap(apperrors.CodeStorageFailure, "reload group", err)
	}
	return chat, nil
}

// SaveDraft applies any leading draft command and persists the draft for
// the (user, chat) pair.
func (s *Service) SaveDraft(ctx context.Context, userID string, kind domain.ChatKind, chatID, content string) (domain.Draft, error) {
	if _, err := s.memberChat(ctx, userID, kind, chatID); err != nil {
		return domain.Draft{}, err
	}
	draft := domain.Draft{
		UserID:    userID,
		ChatKind:  kind,
		ChatID:    chatID,
		Content:   automation.ProcessCommand(content),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.SaveDraft(ctx, draft); err != nil {
		return domain.Draft{}, apperrors.Wrap(apperrors.CodeStorageFailure, "persist draft", err)
	}
	return draft, nil
}

// GetDraft returns the user's saved draft for a chat, or an empty draft.
func (s *Service) GetDraft(ctx context.Context, userID string, kind domain.ChatKind, chatID string) (domain.Draft, error) {
	draft, err := s.store.GetDraft(ctx, userID, kind, chatID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Draft{UserID: userID, ChatKind: kind, ChatID: chatID}, nil
		}
		return domain.Draft{}, apperrors.Wrap(apperrors.CodeStorageFailure, "load draft", err)
	}
	return draft, nil
}

func (s *Service) memberChat(ctx context.Context, userID string, kind domain.ChatKind, chatID string) (domain.Chat, error) {
	chat, err := s.store.FindChat(ctx, kind, chatID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Chat{}, apperrors.New(apperrors.CodeNotFound, "chat not found")
		}
		return domain.Chat{}, apperrors.Wrap(apperrors.CodeStorageFailure, "load chat", err)
	}
	if !chat.HasMember(userID) {
		return domain.Chat{}, apperrors.New(apperrors.CodeNotFound, "chat not found")
	}
	return chat, nil
}

func (s *Service) creatorChat(ctx context.Context, requesterID, chatID, action string) (domain.Chat, error) {
	chat, err := s.memberChat(ctx, requesterID, domain.ChatKindGroup, chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if chat.CreatorID != requesterID {
		return domain.Chat{}, apperrors.New(apperrors.CodeNotAuthorized, "only the creator may "+action)
	}
	return chat, nil
}
