package message

import (
	"context"
	"testing"
	"time"

	"github.com/kothaapp/kotha/internal/chat/domain"
	"github.com/kothaapp/kotha/internal/chat/storage/sqlite"
	apperrors "github.com/kothaapp/kotha/internal/platform/errors"
)

type fixture struct {
	service *Service
	store   *sqlite.Store
	now     *time.Time
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store, err := sqlite.Open(t.TempDir() + "/chat.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	f := fixture{store: store, now: &now}
	service, err := NewService(store, func() time.Time { return *f.now })
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.service = service

	if err := store.CreateChat(context.Background(), domain.Chat{
		ID:           "dm-1",
		Kind:         domain.ChatKindDirect,
		BotMode:      domain.BotModeManual,
		Participants: [2]string{"user-a", "user-b"},
		Relationship: domain.RelationshipFriend,
		DMKind:       domain.DMKindPersonal,
		CreatedAt:    now,
	}); err != nil {
		t.Fatalf("create chat: %v", err)
	}
	return f
}

func (f fixture) send(t *testing.T, sender, content string) domain.Message {
	t.Helper()
	msg, err := f.service.Send(context.Background(), sender, SendInput{
		ChatKind: domain.ChatKindDirect,
		ChatID:   "dm-1",
		Content:  content,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	return msg
}

func TestSendRequiresMembership(t *testing.T) {
	f := newFixture(t)

	msg := f.send(t, "user-a", "hello")
	if msg.ID == "" || msg.SenderID != "user-a" {
		t.Fatalf("message = %+v", msg)
	}

	chat, err := f.store.FindChat(context.Background(), domain.ChatKindDirect, "dm-1")
	if err != nil {
		t.Fatalf("find chat: %v", err)
	}
	if !chat.LastMessageAt.Equal(*f.now) {
		t.Fatalf("last_message_at = %v, want %v", chat.LastMessageAt, *f.now)
	}

	_, err = f.service.Send(context.Background(), "user-c", SendInput{
		ChatKind: domain.ChatKindDirect,
		ChatID:   "dm-1",
		Content:  "let me in",
	})
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("non-member send err = %v, want NOT_FOUND", err)
	}

	_, err = f.service.Send(context.Background(), "user-a", SendInput{
		ChatKind: domain.ChatKindDirect,
		ChatID:   "missing",
		Content:  "hello",
	})
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("missing chat send err = %v, want NOT_FOUND", err)
	}

	_, err = f.service.Send(context.Background(), "user-a", SendInput{
		ChatKind: domain.ChatKindDirect,
		ChatID:   "dm-1",
		Content:  "   ",
	})
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("blank content err = %v, want INVALID_ARGUMENT", err)
	}
}

func TestEditWindowAndAuthorization(t *testing.T) {
	f := newFixture(t)
	msg := f.send(t, "user-a", "first draft")

	_, err := f.service.Edit(context.Background(), "user-b", domain.ChatKindDirect, "dm-1", msg.ID, "hijack")
	if apperrors.CodeOf(err) != apperrors.CodeNotAuthorized {
		t.Fatalf("non-sender edit err = %v, want NOT_AUTHORIZED", err)
	}

	*f.now = f.now.Add(domain.EditWindow)
	edited, err := f.service.Edit(context.Background(), "user-a", domain.ChatKindDirect, "dm-1", msg.ID, "second draft")
	if err != nil {
		t.Fatalf("edit at window boundary: %v", err)
	}
	if !edited.IsEdited || edited.Content != "second draft" {
		t.Fatalf("edited = %+v", edited)
	}
	if edited.EditedAt == nil || !edited.EditedAt.Equal(*f.now) {
		t.Fatalf("edited_at = %v", edited.EditedAt)
	}

	*f.now = f.now.Add(time.Second)
	_, err = f.service.Edit(context.Background(), "user-a", domain.ChatKindDirect, "dm-1", msg.ID, "too late")
	if apperrors.CodeOf(err) != apperrors.CodeEditWindowExpired {
		t.Fatalf("late edit err = %v, want EDIT_WINDOW_EXPIRED", err)
	}

	_, err = f.service.Edit(context.Background(), "user-a", domain.ChatKindDirect, "dm-1", "missing", "nope")
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("missing message edit err = %v, want NOT_FOUND", err)
	}
}

func TestEditRejectedAfterGlobalDelete(t *testing.T) {
	f := newFixture(t)
	msg := f.send(t, "user-a", "soon gone")

	if _, err := f.service.Delete(context.Background(), "user-a", domain.ChatKindDirect, "dm-1", msg.ID, true); err != nil {
		t.Fatalf("delete for everyone: %v", err)
	}
	_, err := f.service.Edit(context.Background(), "user-a", domain.ChatKindDirect, "dm-1", msg.ID, "resurrect")
	if apperrors.CodeOf(err) != apperrors.CodeNotAuthorized {
		t.Fatalf("edit deleted err = %v, want NOT_AUTHORIZED", err)
	}
}

func TestDeleteForSelfIsIdempotent(t *testing.T) {
	f := newFixture(t)
	msg := f.send(t, "user-a", "hide me")

	for i := 0; i < 2; i++ {
		updated, err := f.service.Delete(context.Background(), "user-a", domain.ChatKindDirect, "dm-1", msg.ID, false)
		if err != nil {
			t.Fatalf("delete attempt %d: %v", i, err)
		}
		if len(updated.DeletedFor) != 1 || updated.DeletedFor[0] != "user-a" {
			t.Fatalf("deleted_for = %v, want [user-a]", updated.DeletedFor)
		}
		if updated.DeletedForEveryone {
			t.Fatal("per-user delete must not set the global flag")
		}
	}

	_, err := f.service.Delete(context.Background(), "user-b", domain.ChatKindDirect, "dm-1", msg.ID, false)
	if apperrors.CodeOf(err) != apperrors.CodeNotAuthorized {
		t.Fatalf("non-sender delete err = %v, want NOT_AUTHORIZED", err)
	}
}

func TestAddReactionReplacesPrior(t *testing.T) {
	f := newFixture(t)
	msg := f.send(t, "user-a", "react to this")

	if _, err := f.service.AddReaction(context.Background(), "user-b", domain.ChatKindDirect, "dm-1", msg.ID, "👍"); err != nil {
		t.Fatalf("first reaction: %v", err)
	}
	updated, err := f.service.AddReaction(context.Background(), "user-b", domain.ChatKindDirect, "dm-1", msg.ID, "❤️")
	if err != nil {
		t.Fatalf("second reaction: %v", err)
	}
	if len(updated.Reactions) != 1 {
		t.Fatalf("reactions = %v, want one entry", updated.Reactions)
	}
	if got, ok := updated.ReactionBy("user-b"); !ok || got.Emoji != "❤️" {
		t.Fatalf("reaction by user-b = (%v, %v), want ❤️", got, ok)
	}

	_, err = f.service.AddReaction(context.Background(), "user-b", domain.ChatKindDirect, "dm-1", msg.ID, "🙃")
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("unlisted emoji err = %v, want INVALID_ARGUMENT", err)
	}

	_, err = f.service.AddReaction(context.Background(), "user-c", domain.ChatKindDirect, "dm-1", msg.ID, "👍")
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("non-member reaction err = %v, want NOT_FOUND", err)
	}
}

func TestTogglePin(t *testing.T) {
	f := newFixture(t)
	msg := f.send(t, "user-a", "pin me")

	pinned, err := f.service.TogglePin(context.Background(), "user-b", domain.ChatKindDirect, "dm-1", msg.ID)
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	if !pinned.IsPinned {
		t.Fatal("expected message to be pinned")
	}
	unpinned, err := f.service.TogglePin(context.Background(), "user-b", domain.ChatKindDirect, "dm-1", msg.ID)
	if err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if unpinned.IsPinned {
		t.Fatal("expected message to be unpinned")
	}
}

func TestListMessagesAppliesVisibility(t *testing.T) {
	f := newFixture(t)

	kept := f.send(t, "user-a", "visible")
	hidden := f.send(t, "user-a", "hidden for sender")
	tomb := f.send(t, "user-b", "gone for all")

	if _, err := f.service.Delete(context.Background(), "user-a", domain.ChatKindDirect, "dm-1", hidden.ID, false); err != nil {
		t.Fatalf("delete for self: %v", err)
	}
	if _, err := f.service.Delete(context.Background(), "user-b", domain.ChatKindDirect, "dm-1", tomb.ID, true); err != nil {
		t.Fatalf("delete for everyone: %v", err)
	}

	forA, err := f.service.ListMessages(context.Background(), "user-a", domain.ChatKindDirect, "dm-1", 10)
	if err != nil {
		t.Fatalf("list for user-a: %v", err)
	}
	if len(forA) != 2 {
		t.Fatalf("user-a sees %d messages, want 2", len(forA))
	}
	if forA[0].ID != kept.ID {
		t.Fatalf("first visible = %q, want %q", forA[0].ID, kept.ID)
	}
	if forA[1].ID != tomb.ID || forA[1].Content != "" {
		t.Fatalf("tombstone = %+v, want blanked content", forA[1])
	}

	forB, err := f.service.ListMessages(context.Background(), "user-b", domain.ChatKindDirect, "dm-1", 10)
	if err != nil {
		t.Fatalf("list for user-b: %v", err)
	}
	if len(forB) != 3 {
		t.Fatalf("user-b sees %d messages, want 3", len(forB))
	}
}
