// Package domain defines the chat platform's core entities: identities,
// direct and group chats, and messages with their lifecycle state.
package domain

import (
	"sort"
	"strings"
	"time"
)

// ChatKind is the closed set of chat variants. Every switch over a ChatKind
// must handle both values.
type ChatKind string

const (
	ChatKindDirect ChatKind = "dm"
	ChatKindGroup  ChatKind = "group"
)

// ParseChatKind validates a wire-level chat type string.
func ParseChatKind(value string) (ChatKind, bool) {
	switch ChatKind(strings.TrimSpace(value)) {
	case ChatKindDirect:
		return ChatKindDirect, true
	case ChatKindGroup:
		return ChatKindGroup, true
	}
	return "", false
}

// BotMode controls whether the automation engine replies in a chat.
type BotMode string

const (
	// BotModeManual never auto-replies.
	BotModeManual BotMode = "manual"
	// BotModeOn always auto-replies.
	BotModeOn BotMode = "on"
	// BotModeAuto replies only while the admin is not active.
	BotModeAuto BotMode = "auto"
)

// ValidBotMode reports whether the value is a recognized bot mode.
func ValidBotMode(value BotMode) bool {
	switch value {
	case BotModeManual, BotModeOn, BotModeAuto:
		return true
	}
	return false
}

// RelationshipType classifies a direct chat for automated-reply tone only.
type RelationshipType string

const (
	RelationshipCloseFriend RelationshipType = "close_friend"
	RelationshipBrother     RelationshipType = "brother"
	RelationshipSister      RelationshipType = "sister"
	RelationshipCrush       RelationshipType = "crush"
	RelationshipFriend      RelationshipType = "friend"
	RelationshipUnknown     RelationshipType = "unknown"
	RelationshipCustomer    RelationshipType = "customer"
)

// ValidRelationshipType reports whether the value is a recognized relationship.
func ValidRelationshipType(value RelationshipType) bool {
	switch value {
	case RelationshipCloseFriend, RelationshipBrother, RelationshipSister,
		RelationshipCrush, RelationshipFriend, RelationshipUnknown,
		RelationshipCustomer:
		return true
	}
	return false
}

// DMKind controls whether automated replies into a direct chat carry a
// disclosure label. Personal DMs stay unlabeled.
type DMKind string

const (
	DMKindSupport  DMKind = "support"
	DMKindOwner    DMKind = "owner"
	DMKindPersonal DMKind = "personal"
)

// GroupMember records one group membership.
type GroupMember struct {
	UserID   string
	JoinedAt time.Time
}

// Chat is the tagged union of the two chat variants. Kind selects which
// variant-specific fields are meaningful: direct chats carry exactly two
// members plus Relationship/DMKind; group chats carry Name, CreatorID, and
// an open member list.
type Chat struct {
	ID      string
	Kind    ChatKind
	BotMode BotMode
	IsMuted bool
	// IsFavorite is a per-chat flag surfaced in chat lists.
	IsFavorite    bool
	LastMessageAt time.Time
	CreatedAt     time.Time

	// Direct variant fields.
	Participants [2]string
	Relationship RelationshipType
	DMKind       DMKind

	// Group variant fields.
	Name      string
	CreatorID string
	Members   []GroupMember
}

// PairKey returns the canonical unordered-pair key for two user IDs.
// DMs are unique per pair regardless of argument order.
func PairKey(a, b string) string {
	pair := []string{strings.TrimSpace(a), strings.TrimSpace(b)}
	sort.Strings(pair)
	return pair[0] + ":" + pair[1]
}

// HasMember reports whether the user belongs to the chat.
func (c Chat) HasMember(userID string) bool {
	switch c.Kind {
	case ChatKindDirect:
		return c.Participants[0] == userID || c.Participants[1] == userID
	case ChatKindGroup:
		for _, member := range c.Members {
			if member.UserID == userID {
				return true
			}
		}
		return false
	}
	return false
}

// MemberIDs returns all member user IDs for either chat variant.
func (c Chat) MemberIDs() []string {
	switch c.Kind {
	case ChatKindDirect:
		return []string{c.Participants[0], c.Participants[1]}
	case ChatKindGroup:
		ids := make([]string, 0, len(c.Members))
		for _, member := range c.Members {
			ids = append(ids, member.UserID)
		}
		return ids
	}
	return nil
}

// OtherParticipant returns the direct-chat peer of the given user.
// The second result is false for group chats or non-members.
func (c Chat) OtherParticipant(userID string) (string, bool) {
	if c.Kind != ChatKindDirect {
		return "", false
	}
	switch userID {
	case c.Participants[0]:
		return c.Participants[1], true
	case c.Participants[1]:
		return c.Participants[0], true
	}
	return "", false
}
