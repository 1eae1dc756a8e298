package app

import (
	"encoding/json"
	"log"
	"time"

	"github.com/kothaapp/kotha/internal/chat/domain"
	apperrors "github.com/kothaapp/kotha/internal/platform/errors"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// Client → server payloads.

type joinDMPayload struct {
	DMID string `json:"dmId"`
}

type joinGroupPayload struct {
	GroupID string `json:"groupId"`
}

type typingPayload struct {
	ChatType string `json:"chatType"`
	ChatID   string `json:"chatId"`
}

type sendMessagePayload struct {
	Content        string   `json:"content"`
	ChatType       string   `json:"chatType"`
	ChatID         string   `json:"chatId"`
	ReplyTo        string   `json:"replyTo,omitempty"`
	MentionedUsers []string `json:"mentionedUsers,omitempty"`
}

type editMessagePayload struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
	ChatType  string `json:"chatType"`
	ChatID    string `json:"chatId"`
}

type deleteMessagePayload struct {
	MessageID   string `json:"messageId"`
	ForEveryone bool   `json:"forEveryone"`
	ChatType    string `json:"chatType"`
	ChatID      string `json:"chatId"`
}

type addReactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	ChatType  string `json:"chatType"`
	ChatID    string `json:"chatId"`
}

type pinMessagePayload struct {
	MessageID string `json:"messageId"`
	ChatType  string `json:"chatType"`
	ChatID    string `json:"chatId"`
}

type createDMPayload struct {
	UserID string `json:"userId"`
}

type chatSettingsPayload struct {
	ChatType     string  `json:"chatType"`
	ChatID       string  `json:"chatId"`
	BotMode      *string `json:"botMode,omitempty"`
	Relationship *string `json:"relationshipType,omitempty"`
	IsMuted      *bool   `json:"isMuted,omitempty"`
	IsFavorite   *bool   `json:"isFavorite,omitempty"`
}

type createGroupPayload struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
}

type renameGroupPayload struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
}

type groupMemberPayload struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

type saveDraftPayload struct {
	ChatType string `json:"chatType"`
	ChatID   string `json:"chatId"`
	Content  string `json:"content"`
}

type getDraftPayload struct {
	ChatType string `json:"chatType"`
	ChatID   string `json:"chatId"`
}

type getMessagesPayload struct {
	ChatType string `json:"chatType"`
	ChatID   string `json:"chatId"`
	Limit    int    `json:"limit,omitempty"`
}

// Server → client payloads.

type presencePayload struct {
	UserID string `json:"userId"`
}

type userTypingPayload struct {
	UserID   string `json:"userId"`
	ChatType string `json:"chatType"`
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

type messageDeletedPayload struct {
	MessageID   string `json:"messageId"`
	ForEveryone bool   `json:"forEveryone"`
}

type reactionAddedPayload struct {
	MessageID string            `json:"messageId"`
	Reactions []domain.Reaction `json:"reactions"`
}

type messagePinnedPayload struct {
	MessageID string `json:"messageId"`
	IsPinned  bool   `json:"isPinned"`
}

type chatPayload struct {
	ID            string     `json:"id"`
	ChatType      string     `json:"chatType"`
	BotMode       string     `json:"botMode"`
	IsMuted       bool       `json:"isMuted"`
	IsFavorite    bool       `json:"isFavorite"`
	Relationship  string     `json:"relationshipType,omitempty"`
	DMKind        string     `json:"dmKind,omitempty"`
	Participants  []string   `json:"participants,omitempty"`
	Name          string     `json:"name,omitempty"`
	CreatorID     string     `json:"creatorId,omitempty"`
	MemberIDs     []string   `json:"memberIds,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func newChatPayload(chat domain.Chat) chatPayload {
	payload := chatPayload{
		ID:         chat.ID,
		ChatType:   string(chat.Kind),
		BotMode:    string(chat.BotMode),
		IsMuted:    chat.IsMuted,
		IsFavorite: chat.IsFavorite,
		CreatedAt:  chat.CreatedAt,
	}
	if !chat.LastMessageAt.IsZero() {
		at := chat.LastMessageAt
		payload.LastMessageAt = &at
	}
	switch chat.Kind {
	case domain.ChatKindDirect:
		payload.Relationship = string(chat.Relationship)
		payload.DMKind = string(chat.DMKind)
		payload.Participants = chat.Participants[:]
	case domain.ChatKindGroup:
		payload.Name = chat.Name
		payload.CreatorID = chat.CreatorID
		payload.MemberIDs = chat.MemberIDs()
	}
	return payload
}

type draftStatePayload struct {
	ChatType string `json:"chatType"`
	ChatID   string `json:"chatId"`
	Content  string `json:"content"`
}

type messageHistoryPayload struct {
	ChatType string           `json:"chatType"`
	ChatID   string           `json:"chatId"`
	Messages []domain.Message `json:"messages"`
}

type messageErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeWSError(peer *wsPeer, requestID string, code apperrors.Code, message string) error {
	return peer.writeFrame(wsFrame{
		Type:      "message-error",
		RequestID: requestID,
		Payload: mustJSON(messageErrorPayload{
			Code:    code.WireCode(),
			Message: message,
		}),
	})
}

// writeOperationError converts an application error into a message-error
// frame for the requesting connection only.
func writeOperationError(peer *wsPeer, requestID string, err error) {
	_ = writeWSError(peer, requestID, apperrors.CodeOf(err), err.Error())
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
