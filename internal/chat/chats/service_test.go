package chats

import (
	"context"
	"testing"
	"time"

	"github.com/kothaapp/kotha/internal/chat/domain"
	"github.com/kothaapp/kotha/internal/chat/storage/sqlite"
	apperrors "github.com/kothaapp/kotha/internal/platform/errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := sqlite.Open(t.TempDir() + "/chat.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	service, err := NewService(store, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestFindOrCreateDMIsIdempotent(t *testing.T) {
	service := newTestService(t)

	first, err := service.FindOrCreateDM(context.Background(), "user-a", "user-b")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := service.FindOrCreateDM(context.Background(), "user-b", "user-a")
	if err != nil {
		t.Fatalf("reversed lookup: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("dm ids differ: %q vs %q", first.ID, second.ID)
	}

	third, err := service.FindOrCreateDM(context.Background(), "user-a", "user-c")
	if err != nil {
		t.Fatalf("distinct pair create: %v", err)
	}
	if third.ID == first.ID {
		t.Fatal("distinct pair reused the same chat")
	}

	if _, err := service.FindOrCreateDM(context.Background(), "user-a", "user-a"); apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("self dm err = %v, want INVALID_ARGUMENT", err)
	}
}

func TestUpdateSettingsGating(t *testing.T) {
	service := newTestService(t)
	dm, err := service.FindOrCreateDM(context.Background(), "user-admin", "user-b")
	if err != nil {
		t.Fatalf("create dm: %v", err)
	}

	admin := domain.Identity{ID: "user-admin", Role: domain.RoleAdmin}
	member := domain.Identity{ID: "user-b", Role: domain.RoleUser}
	outsider := domain.Identity{ID: "user-z", Role: domain.RoleUser}

	mode := domain.BotModeAuto
	if _, err := service.UpdateSettings(context.Background(), member, domain.ChatKindDirect, dm.ID, SettingsUpdate{BotMode: &mode}); apperrors.CodeOf(err) != apperrors.CodeNotAuthorized {
		t.Fatalf("member bot-mode change err = %v, want NOT_AUTHORIZED", err)
	}

	rel := domain.RelationshipBrother
	updated, err := service.UpdateSettings(context.Background(), admin, domain.ChatKindDirect, dm.ID, SettingsUpdate{BotMode: &mode, Relationship: &rel})
	if err != nil {
		t.Fatalf("admin settings change: %v", err)
	}
	if updated.BotMode != domain.BotModeAuto || updated.Relationship != domain.RelationshipBrother {
		t.Fatalf("updated = %+v", updated)
	}

	fav := true
	withFav, err := service.UpdateSettings(context.Background(), member, domain.ChatKindDirect, dm.ID, SettingsUpdate{IsFavorite: &fav})
	if err != nil {
		t.Fatalf("member favorite change: %v", err)
	}
	if !withFav.IsFavorite {
		t.Fatal("expected favorite flag to be set")
	}

	if _, err := service.UpdateSettings(context.Background(), outsider, domain.ChatKindDirect, dm.ID, SettingsUpdate{IsFavorite: &fav}); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("outsider settings change err = %v, want NOT_FOUND", err)
	}

	badMode := domain.BotMode("loud")
	if _, err := service.UpdateSettings(context.Background(), admin, domain.ChatKindDirect, dm.ID, SettingsUpdate{BotMode: &badMode}); apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("bad bot mode err = %v, want INVALID_ARGUMENT", err)
	}
}

func TestGroupLifecycle(t *testing.T) {
	service := newTestService(t)

	group, err := service.CreateGroup(context.Background(), "user-a", "Weekend Plans", []string{"user-b", "user-b", "user-a"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if len(group.Members) != 2 {
		t.Fatalf("members = %v, want creator plus one", group.Members)
	}

	if _, err := service.RenameGroup(context.Background(), "user-b", group.ID, "Hijacked"); apperrors.CodeOf(err) != apperrors.CodeNotAuthorized {
		t.Fatalf("non-creator rename err = %v, want NOT_AUTHORIZED", err)
	}
	renamed, err := service.RenameGroup(context.Background(), "user-a", group.ID, "Trip Planning")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "Trip Planning" {
		t.Fatalf("name = %q", renamed.Name)
	}

	withC, err := service.AddGroupMember(context.Background(), "user-a", group.ID, "user-c")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if !withC.HasMember("user-c") {
		t.Fatal("expected user-c to be a member")
	}

	again, err := service.AddGroupMember(context.Background(), "user-a", group.ID, "user-c")
	if err != nil {
		t.Fatalf("re-add member: %v", err)
	}
	if len(again.Members) != 3 {
		t.Fatalf("members after re-add = %d, want 3", len(again.Members))
	}

	if _, err := service.RemoveGroupMember(context.Background(), "user-a", group.ID, "user-a"); apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("remove creator err = %v, want INVALID_ARGUMENT", err)
	}
	without, err := service.RemoveGroupMember(context.Background(), "user-a", group.ID, "user-c")
	if err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if without.HasMember("user-c") {
		t.Fatal("expected user-c to be removed")
	}
}

func TestDraftsApplyCommands(t *testing.T) {
	service := newTestService(t)
	dm, err := service.FindOrCreateDM(context.Background(), "user-a", "user-b")
	if err != nil {
		t.Fatalf("create dm: %v", err)
	}

	draft, err := service.SaveDraft(context.Background(), "user-a", domain.ChatKindDirect, dm.ID, "@fix meet me at noon")
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if draft.Content != "Meet me at noon." {
		t.Fatalf("draft content = %q", draft.Content)
	}

	got, err := service.GetDraft(context.Background(), "user-a", domain.ChatKindDirect, dm.ID)
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	if got.Content != "Meet me at noon." {
		t.Fatalf("stored draft = %q", got.Content)
	}

	empty, err := service.GetDraft(context.Background(), "user-b", domain.ChatKindDirect, dm.ID)
	if err != nil {
		t.Fatalf("get missing draft: %v", err)
	}
	if empty.Content != "" {
		t.Fatalf("missing draft content = %q, want empty", empty.Content)
	}

	if _, err := service.SaveDraft(context.Background(), "user-z", domain.ChatKindDirect, dm.ID, "hi"); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("outsider draft err = %v, want NOT_FOUND", err)
	}
}
