package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/kothaapp/kotha/internal/chat/automation"
	"github.com/kothaapp/kotha/internal/chat/chats"
	"github.com/kothaapp/kotha/internal/chat/domain"
	"github.com/kothaapp/kotha/internal/chat/message"
	"github.com/kothaapp/kotha/internal/chat/storage"
	apperrors "github.com/kothaapp/kotha/internal/platform/errors"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxDecodeErrorsPerConn = 3

	// automationActorID identifies the synthetic typing indicator emitted
	// while an automated reply is pending.
	automationActorID = "automation"

	repositoryTimeout = 5 * time.Second
)

func (c *core) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	identity, ok := identityFromConn(conn)
	if !ok {
		return
	}

	peer := newWSPeer(json.NewEncoder(conn))
	session := newWSSession(identity, peer)

	// Every connection gets a personal room so peers can be addressed
	// directly, then announces presence.
	personal := personalRoomKey(identity.ID)
	c.hub.room(personal).join(peer)
	session.trackRoom(personal)
	c.announcePresence("user-online", identity, peer, c.presence.markOnline(identity, peer))

	defer c.teardown(session)

	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = writeWSError(peer, "", apperrors.CodeInvalidArgument, "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(peer, frame.RequestID, apperrors.CodeInvalidArgument, "payload too large")
			continue
		}

		c.dispatch(session, frame)
	}
}

// teardown synchronously clears the connection's presence and typing
// contributions and forgets its room membership. Pending automated replies
// it triggered keep running; they are addressed to the chat, not the
// connection.
func (c *core) teardown(session *wsSession) {
	for _, key := range c.typing.clear(session.identity.ID) {
		c.hub.broadcast(key, typingFrame(session.identity.ID, key, false), session.peer)
	}
	for _, key := range session.joinedRooms() {
		c.hub.leave(key, session.peer)
	}
	c.announcePresence("user-offline", session.identity, session.peer, c.presence.markOffline(session.identity, session.peer))
}

func (c *core) announcePresence(event string, identity domain.Identity, origin *wsPeer, peers []*wsPeer) {
	if len(peers) == 0 {
		return
	}
	frame := wsFrame{Type: event, Payload: mustJSON(presencePayload{UserID: identity.ID})}
	for _, peer := range peers {
		if peer == origin {
			continue
		}
		_ = peer.writeFrame(frame)
	}
}

func (c *core) dispatch(session *wsSession, frame wsFrame) {
	switch frame.Type {
	case "join-dm":
		c.handleJoinDM(session, frame)
	case "join-group":
		c.handleJoinGroup(session, frame)
	case "typing-start":
		c.handleTyping(session, frame, true)
	case "typing-stop":
		c.handleTyping(session, frame, false)
	case "send-message":
		c.handleSendMessage(session, frame)
	case "edit-message":
		c.handleEditMessage(session, frame)
	case "delete-message":
		c.handleDeleteMessage(session, frame)
	case "add-reaction":
		c.handleAddReaction(session, frame)
	case "pin-message":
		c.handlePinMessage(session, frame)
	case "create-dm":
		c.handleCreateDM(session, frame)
	case "update-chat-settings":
		c.handleUpdateChatSettings(session, frame)
	case "create-group":
		c.handleCreateGroup(session, frame)
	case "rename-group":
		c.handleRenameGroup(session, frame)
	case "add-group-member":
		c.handleGroupMember(session, frame, true)
	case "remove-group-member":
		c.handleGroupMember(session, frame, false)
	case "save-draft":
		c.handleSaveDraft(session, frame)
	case "get-draft":
		c.handleGetDraft(session, frame)
	case "get-messages":
		c.handleGetMessages(session, frame)
	default:
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "unsupported frame type")
	}
}

// Joins are cheap and idempotent; membership is enforced per-operation, not
// at join time.
func (c *core) handleJoinDM(session *wsSession, frame wsFrame) {
	var payload joinDMPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || strings.TrimSpace(payload.DMID) == "" {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "dmId is required")
		return
	}
	dmID := strings.TrimSpace(payload.DMID)
	key := chatRoomKey(domain.ChatKindDirect, dmID)
	c.hub.room(key).join(session.peer)
	session.trackRoom(key)
	_ = session.peer.writeFrame(wsFrame{
		Type:      "dm-joined",
		RequestID: frame.RequestID,
		Payload:   mustJSON(joinDMPayload{DMID: dmID}),
	})
}

func (c *core) handleJoinGroup(session *wsSession, frame wsFrame) {
	var payload joinGroupPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || strings.TrimSpace(payload.GroupID) == "" {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "groupId is required")
		return
	}
	groupID := strings.TrimSpace(payload.GroupID)
	key := chatRoomKey(domain.ChatKindGroup, groupID)
	c.hub.room(key).join(session.peer)
	session.trackRoom(key)
	_ = session.peer.writeFrame(wsFrame{
		Type:      "group-joined",
		RequestID: frame.RequestID,
		Payload:   mustJSON(joinGroupPayload{GroupID: groupID}),
	})
}

func (c *core) handleTyping(session *wsSession, frame wsFrame, isTyping bool) {
	var payload typingPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid typing payload")
		return
	}
	kind, ok := domain.ParseChatKind(payload.ChatType)
	if !ok || strings.TrimSpace(payload.ChatID) == "" {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "chatType and chatId are required")
		return
	}
	chatID := strings.TrimSpace(payload.ChatID)

	var changed bool
	if isTyping {
		changed = c.typing.start(session.identity.ID, kind, chatID)
	} else {
		changed = c.typing.stop(session.identity.ID, kind, chatID)
	}
	if !changed {
		return
	}
	key := chatRoomKey(kind, chatID)
	c.hub.broadcast(key, typingFrame(session.identity.ID, key, isTyping), session.peer)
}

func typingFrame(userID, roomKey string, isTyping bool) wsFrame {
	chatType, chatID, _ := strings.Cut(roomKey, ":")
	return wsFrame{
		Type: "user-typing",
		Payload: mustJSON(userTypingPayload{
			UserID:   userID,
			ChatType: chatType,
			ChatID:   chatID,
			IsTyping: isTyping,
		}),
	}
}

func (c *core) handleSendMessage(session *wsSession, frame wsFrame) {
	var payload sendMessagePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid send payload")
		return
	}
	kind, ok := domain.ParseChatKind(payload.ChatType)
	if !ok {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "unrecognized chatType")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	msg, err := c.messages.Send(ctx, session.identity.ID, message.SendInput{
		ChatKind: kind,
		ChatID:   payload.ChatID,
		Content:  payload.Content,
		ReplyTo:  payload.ReplyTo,
		Mentions: payload.MentionedUsers,
	})
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}

	key := chatRoomKey(msg.ChatKind, msg.ChatID)
	c.hub.broadcast(key, wsFrame{Type: "new-message", Payload: mustJSON(msg)}, nil)

	c.maybeScheduleReply(ctx, msg)
}

func (c *core) handleEditMessage(session *wsSession, frame wsFrame) {
	var payload editMessagePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid edit payload")
		return
	}
	kind, ok := domain.ParseChatKind(payload.ChatType)
	if !ok {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "unrecognized chatType")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	msg, err := c.messages.Edit(ctx, session.identity.ID, kind, payload.ChatID, payload.MessageID, payload.Content)
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}

	key := chatRoomKey(msg.ChatKind, msg.ChatID)
	c.hub.broadcast(key, wsFrame{Type: "message-edited", Payload: mustJSON(msg)}, nil)
}

func (c *core) handleDeleteMessage(session *wsSession, frame wsFrame) {
	var payload deleteMessagePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid delete payload")
		return
	}
	kind, ok := domain.ParseChatKind(payload.ChatType)
	if !ok {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "unrecognized chatType")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	msg, err := c.messages.Delete(ctx, session.identity.ID, kind, payload.ChatID, payload.MessageID, payload.ForEveryone)
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}

	deleted := wsFrame{
		Type:      "message-deleted",
		RequestID: frame.RequestID,
		Payload:   mustJSON(messageDeletedPayload{MessageID: msg.ID, ForEveryone: payload.ForEveryone}),
	}
	if payload.ForEveryone {
		// Global deletes reach the whole room; a local hide is the
		// requester's business only.
		c.hub.broadcast(chatRoomKey(msg.ChatKind, msg.ChatID), deleted, nil)
		return
	}
	_ = session.peer.writeFrame(deleted)
}

func (c *core) handleAddReaction(session *wsSession, frame wsFrame) {
	var payload addReactionPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid reaction payload")
		return
	}
	kind, ok := domain.ParseChatKind(payload.ChatType)
	if !ok {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "unrecognized chatType")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	msg, err := c.messages.AddReaction(ctx, session.identity.ID, kind, payload.ChatID, payload.MessageID, payload.Emoji)
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}

	key := chatRoomKey(msg.ChatKind, msg.ChatID)
	c.hub.broadcast(key, wsFrame{
		Type:    "reaction-added",
		Payload: mustJSON(reactionAddedPayload{MessageID: msg.ID, Reactions: msg.Reactions}),
	}, nil)
}

func (c *core) handlePinMessage(session *wsSession, frame wsFrame) {
	var payload pinMessagePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid pin payload")
		return
	}
	kind, ok := domain.ParseChatKind(payload.ChatType)
	if !ok {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "unrecognized chatType")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	msg, err := c.messages.TogglePin(ctx, session.identity.ID, kind, payload.ChatID, payload.MessageID)
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}

	key := chatRoomKey(msg.ChatKind, msg.ChatID)
	c.hub.broadcast(key, wsFrame{
		Type:    "message-pinned",
		Payload: mustJSON(messagePinnedPayload{MessageID: msg.ID, IsPinned: msg.IsPinned}),
	}, nil)
}

func (c *core) handleCreateDM(session *wsSession, frame wsFrame) {
	var payload createDMPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid create-dm payload")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	chat, err := c.chats.FindOrCreateDM(ctx, session.identity.ID, payload.UserID)
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      "dm-ready",
		RequestID: frame.RequestID,
		Payload:   mustJSON(newChatPayload(chat)),
	})
}

func (c *core) handleUpdateChatSettings(session *wsSession, frame wsFrame) {
	var payload chatSettingsPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid settings payload")
		return
	}
	kind, ok := domain.ParseChatKind(payload.ChatType)
	if !ok {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "unrecognized chatType")
		return
	}

	update := chats.SettingsUpdate{IsMuted: payload.IsMuted, IsFavorite: payload.IsFavorite}
	if payload.BotMode != nil {
		mode := domain.BotMode(*payload.BotMode)
		update.BotMode = &mode
	}
	if payload.Relationship != nil {
		relationship := domain.RelationshipType(*payload.Relationship)
		update.Relationship = &relationship
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	chat, err := c.chats.UpdateSettings(ctx, session.identity, kind, payload.ChatID, update)
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      "chat-settings-updated",
		RequestID: frame.RequestID,
		Payload:   mustJSON(newChatPayload(chat)),
	})
}

func (c *core) handleCreateGroup(session *wsSession, frame wsFrame) {
	var payload createGroupPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid create-group payload")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	chat, err := c.chats.CreateGroup(ctx, session.identity.ID, payload.Name, payload.MemberIDs)
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      "group-created",
		RequestID: frame.RequestID,
		Payload:   mustJSON(newChatPayload(chat)),
	})
}

func (c *core) handleRenameGroup(session *wsSession, frame wsFrame) {
	var payload renameGroupPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid rename-group payload")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	chat, err := c.chats.RenameGroup(ctx, session.identity.ID, payload.GroupID, payload.Name)
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}
	c.broadcastGroupUpdate(chat)
}

func (c *core) handleGroupMember(session *wsSession, frame wsFrame, add bool) {
	var payload groupMemberPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid group member payload")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	var (
		chat domain.Chat
		err  error
	)
	if add {
		chat, err = c.chats.AddGroupMember(ctx, session.identity.ID, payload.GroupID, payload.UserID)
	} else {
		chat, err = c.chats.RemoveGroupMember(ctx, session.identity.ID, payload.GroupID, payload.UserID)
	}
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}
	c.broadcastGroupUpdate(chat)
}

// broadcastGroupUpdate tells the group room about name or membership changes.
func (c *core) broadcastGroupUpdate(chat domain.Chat) {
	key := chatRoomKey(chat.Kind, chat.ID)
	c.hub.broadcast(key, wsFrame{Type: "group-updated", Payload: mustJSON(newChatPayload(chat))}, nil)
}

func (c *core) handleSaveDraft(session *wsSession, frame wsFrame) {
	var payload saveDraftPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid draft payload")
		return
	}
	kind, ok := domain.ParseChatKind(payload.ChatType)
	if !ok {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "unrecognized chatType")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	draft, err := c.chats.SaveDraft(ctx, session.identity.ID, kind, payload.ChatID, payload.Content)
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      "draft-saved",
		RequestID: frame.RequestID,
		Payload: mustJSON(draftStatePayload{
			ChatType: string(draft.ChatKind),
			ChatID:   draft.ChatID,
			Content:  draft.Content,
		}),
	})
}

func (c *core) handleGetDraft(session *wsSession, frame wsFrame) {
	var payload getDraftPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid draft payload")
		return
	}
	kind, ok := domain.ParseChatKind(payload.ChatType)
	if !ok {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "unrecognized chatType")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	draft, err := c.chats.GetDraft(ctx, session.identity.ID, kind, payload.ChatID)
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      "draft",
		RequestID: frame.RequestID,
		Payload: mustJSON(draftStatePayload{
			ChatType: string(kind),
			ChatID:   strings.TrimSpace(payload.ChatID),
			Content:  draft.Content,
		}),
	})
}

func (c *core) handleGetMessages(session *wsSession, frame wsFrame) {
	var payload getMessagesPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "invalid get-messages payload")
		return
	}
	kind, ok := domain.ParseChatKind(payload.ChatType)
	if !ok {
		_ = writeWSError(session.peer, frame.RequestID, apperrors.CodeInvalidArgument, "unrecognized chatType")
		return
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	messages, err := c.messages.ListMessages(ctx, session.identity.ID, kind, payload.ChatID, payload.Limit)
	if err != nil {
		writeOperationError(session.peer, frame.RequestID, err)
		return
	}
	_ = session.peer.writeFrame(wsFrame{
		Type:      "message-history",
		RequestID: frame.RequestID,
		Payload: mustJSON(messageHistoryPayload{
			ChatType: string(kind),
			ChatID:   strings.TrimSpace(payload.ChatID),
			Messages: messages,
		}),
	})
}

// maybeScheduleReply consults the automation decision table after a
// successful send and schedules a delayed reply when it fires. Failures
// here are logged, never surfaced to the sender.
func (c *core) maybeScheduleReply(ctx context.Context, msg domain.Message) {
	if msg.IsAutomated {
		return
	}

	chat, err := c.store.FindChat(ctx, msg.ChatKind, msg.ChatID)
	if err != nil {
		log.Printf("automation: load chat %s: %v", msg.ChatID, err)
		return
	}
	admin, err := c.store.FindAdminForChat(ctx, chat)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("automation: resolve admin for chat %s: %v", chat.ID, err)
		}
		return
	}

	isAdminActive := msg.SenderID == admin.ID && c.presence.isOnline(admin.ID)
	if !automation.ShouldAutoReply(chat.BotMode, isAdminActive) {
		return
	}

	roomKey := chatRoomKey(chat.Kind, chat.ID)
	c.scheduler.Schedule(msg.ID, automation.Delivery{
		SetTyping: func(on bool) {
			c.hub.broadcast(roomKey, typingFrame(automationActorID, roomKey, on), nil)
		},
		Send: func(sendCtx context.Context) error {
			return c.sendAutomatedReply(sendCtx, chat, admin, msg)
		},
	})
}

func (c *core) sendAutomatedReply(ctx context.Context, chat domain.Chat, admin domain.Identity, trigger domain.Message) error {
	reply, err := c.engine.ComposeReply(ctx, trigger.Content, chat.Relationship, admin.ID)
	if err != nil {
		return err
	}
	msg, err := c.messages.Send(ctx, admin.ID, message.SendInput{
		ChatKind:    chat.Kind,
		ChatID:      chat.ID,
		Content:     reply,
		IsAutomated: true,
		Label:       automation.ReplyLabel(chat.Kind, chat.DMKind),
	})
	if err != nil {
		return err
	}
	c.hub.broadcast(chatRoomKey(chat.Kind, chat.ID), wsFrame{Type: "new-message", Payload: mustJSON(msg)}, nil)
	return nil
}

func (c *core) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), repositoryTimeout)
}
