// Package message enforces the message lifecycle: send, time-boxed edit,
// soft delete, reactions, and pinning.
package message

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/kothaapp/kotha/internal/chat/domain"
	"github.com/kothaapp/kotha/internal/chat/storage"
	apperrors "github.com/kothaapp/kotha/internal/platform/errors"
	"github.com/kothaapp/kotha/internal/platform/id"
)

// lockStripes bounds memory for the per-message mutation locks. Two message
// IDs hashing to the same stripe serialize against each other, which is
// stricter than required and still correct.
const lockStripes = 64

// Service coordinates message mutations against the store. Mutations on the
// same message are serialized; different messages interleave freely.
type Service struct {
	store storage.Store
	now   func() time.Time
	locks [lockStripes]sync.Mutex
}

// NewService builds a message lifecycle service. now defaults to time.Now.
func NewService(store storage.Store, now func() time.Time) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}, nil
}

func (s *Service) lockFor(messageID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(messageID))
	return &s.locks[h.Sum32()%lockStripes]
}

// SendInput carries one send-message request.
type SendInput struct {
	ChatKind    domain.ChatKind
	ChatID      string
	Content     string
	ReplyTo     string
	Mentions    []string
	IsAutomated bool
	Label       string
}

// Send validates membership, persists a new message, and advances the chat's
// last-message timestamp.
func (s *Service) Send(ctx context.Context, senderID string, input SendInput) (domain.Message, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return domain.Message{}, apperrors.New(apperrors.CodeInvalidArgument, "message content is required")
	}

	chat, err := s.memberChat(ctx, senderID, input.ChatKind, input.ChatID)
	if err != nil {
		return domain.Message{}, err
	}

	mentions := input.Mentions
	if chat.Kind != domain.ChatKindGroup {
		mentions = nil
	}

	messageID, err := id.NewID()
	if err != nil {
		return domain.Message{}, fmt.Errorf("generate message id: %w", err)
	}

	now := s.now().UTC()
	msg := domain.Message{
		ID:          messageID,
		ChatKind:    chat.Kind,
		ChatID:      chat.ID,
		SenderID:    senderID,
		Content:     content,
		ReplyTo:     strings.TrimSpace(input.ReplyTo),
		Mentions:    mentions,
		IsAutomated: input.IsAutomated,
		Label:       input.Label,
		CreatedAt:   now,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return domain.Message{}, apperrors.Wrap(apperrors.CodeStorageFailure, "persist message", err)
	}
	if err := s.store.TouchLastMessage(ctx, chat.Kind, chat.ID, now); err != nil {
		return domain.Message{}, apperrors.Wrap(apperrors.CodeStorageFailure, "touch last message", err)
	}
	return msg, nil
}

// Edit replaces a message's content. Only the original sender may edit, and
// only within the edit window; globally deleted messages are immutable.
func (s *Service) Edit(ctx context.Context, requesterID string, kind domain.ChatKind, chatID, messageID, newContent string) (domain.Message, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return domain.Message{}, apperrors.New(apperrors.CodeInvalidArgument, "message content is required")
	}

	lock := s.lockFor(messageID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := s.findMessage(ctx, kind, chatID, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.SenderID != requesterID {
		return domain.Message{}, apperrors.New(apperrors.CodeNotAuthorized, "only the sender may edit a message")
	}
	now := s.now().UTC()
	if msg.DeletedForEveryone {
		return domain.Message{}, apperrors.New(apperrors.CodeNotAuthorized, "deleted messages cannot be edited")
	}
	if !msg.CanEdit(now) {
		return domain.Message{}, apperrors.New(apperrors.CodeEditWindowExpired, "edit window has expired")
	}

	msg.Content = newContent
	msg.IsEdited = true
	msg.EditedAt = &now
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return domain.Message{}, apperrors.Wrap(apperrors.CodeStorageFailure, "persist edit", err)
	}
	return msg, nil
}

// Delete soft-deletes a message. forEveryone hides it from the whole room and
// is irreversible; otherwise the requester is added to the message's hidden
// list, idempotently. Only the sender may delete.
func (s *Service) Delete(ctx context.Context, requesterID string, kind domain.ChatKind, chatID, messageID string, forEveryone bool) (domain.Message, error) {
	lock := s.lockFor(messageID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := s.findMessage(ctx, kind, chatID, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.SenderID != requesterID {
		return domain.Message{}, apperrors.New(apperrors.CodeNotAuthorized, "only the sender may delete a message")
	}

	if forEveryone {
		msg.DeletedForEveryone = true
	} else if !msg.DeletedForUser(requesterID) {
		msg.DeletedFor = append(msg.DeletedFor, requesterID)
	}
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return domain.Message{}, apperrors.Wrap(apperrors.CodeStorageFailure, "persist delete", err)
	}
	return msg, nil
}

// AddReaction records a reaction, replacing any prior reaction by the same
// user on the same message. Any chat member may react.
func (s *Service) AddReaction(ctx context.Context, requesterID string, kind domain.ChatKind, chatID, messageID, emoji string) (domain.Message, error) {
	if !domain.AllowedReaction(emoji) {
		return domain.Message{}, apperrors.WithMetadata(
			apperrors.CodeInvalidArgument,
			"reaction emoji is not allowed",
			map[string]string{"Emoji": emoji},
		)
	}
	if _, err := s.memberChat(ctx, requesterID, kind, chatID); err != nil {
		return domain.Message{}, err
	}

	lock := s.lockFor(messageID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := s.findMessage(ctx, kind, chatID, messageID)
	if err != nil {
		return domain.Message{}, err
	}

	kept := msg.Reactions[:0]
	for _, reaction := range msg.Reactions {
		if reaction.UserID != requesterID {
			kept = append(kept, reaction)
		}
	}
	msg.Reactions = append(kept, domain.Reaction{UserID: requesterID, Emoji: emoji})

	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return domain.Message{}, apperrors.Wrap(apperrors.CodeStorageFailure, "persist reaction", err)
	}
	return msg, nil
}

// TogglePin flips a message's pinned flag. Any chat member may pin.
func (s *Service) TogglePin(ctx context.Context, requesterID string, kind domain.ChatKind, chatID, messageID string) (domain.Message, error) {
	if _, err := s.memberChat(ctx, requesterID, kind, chatID); err != nil {
		return domain.Message{}, err
	}

	lock := s.lockFor(messageID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := s.findMessage(ctx, kind, chatID, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	msg.IsPinned = !msg.IsPinned
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return domain.Message{}, apperrors.Wrap(apperrors.CodeStorageFailure, "persist pin", err)
	}
	return msg, nil
}

// ListMessages returns the chat's recent messages as the requester sees
// them: messages the requester hid locally are dropped, and globally deleted
// messages are kept as tombstones with blank content.
func (s *Service) ListMessages(ctx context.Context, requesterID string, kind domain.ChatKind, chatID string, limit int) ([]domain.Message, error) {
	if _, err := s.memberChat(ctx, requesterID, kind, chatID); err != nil {
		return nil, err
	}

	all, err := s.store.ListMessages(ctx, kind, chatID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageFailure, "list messages", err)
	}

	visible := make([]domain.Message, 0, len(all))
	for _, msg := range all {
		if msg.DeletedForUser(requesterID) {
			continue
		}
		if msg.DeletedForEveryone {
			msg.Content = ""
			msg.Reactions = nil
		}
		visible = append(visible, msg)
	}
	return visible, nil
}

// memberChat loads the chat and verifies membership. Non-members see the
// same NOT_FOUND as a missing chat, never a membership probe.
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

func (s *Service) findMessage(ctx context.Context, kind domain.ChatKind, chatID, messageID string) (domain.Message, error) {
	msg, err := s.store.FindMessage(ctx, kind, chatID, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Message{}, apperrors.New(apperrors.CodeNotFound, "message not found")
		}
		return domain.Message{}, apperrors.Wrap(apperrors.CodeStorageFailure, "load message", err)
	}
	return msg, nil
}
