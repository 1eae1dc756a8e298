package domain

import "time"

// EditWindow is how long after creation a sender may still edit a message.
const EditWindow = 3 * time.Minute

// AllowedReactions is the closed set of reaction emoji.
var AllowedReactions = []string{"👍", "❤️", "😂", "😮", "😢"}

// AllowedReaction reports whether the emoji is in the reaction whitelist.
func AllowedReaction(emoji string) bool {
	for _, allowed := range AllowedReactions {
		if emoji == allowed {
			return true
		}
	}
	return false
}

// Reaction is one user's reaction to a message. A user contributes at most
// one live reaction per message; a new reaction replaces the previous one.
type Reaction struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// Message is one chat message and its full lifecycle state.
//
// Deletion state is two independent axes: DeletedForEveryone hides the
// message from the whole room, DeletedFor hides it only from the listed
// users. Neither implies the other. Content is immutable once
// DeletedForEveryone is set.
type Message struct {
	ID       string   `json:"id"`
	ChatKind ChatKind `json:"chatType"`
	ChatID   string   `json:"chatId"`
	SenderID string   `json:"senderId"`
	Content  string   `json:"content"`
	// ReplyTo references another message in the same chat, or is empty.
	ReplyTo string `json:"replyTo,omitempty"`
	// Mentions lists mentioned user IDs; populated for group chats only.
	Mentions []string `json:"mentionedUsers,omitempty"`

	IsAutomated bool `json:"isAutomated"`
	// Label discloses an automated reply in non-personal DMs, e.g.
	// "Reply · Support". Empty otherwise.
	Label string `json:"label,omitempty"`

	Reactions []Reaction `json:"reactions"`
	IsPinned  bool       `json:"isPinned"`

	IsEdited bool       `json:"isEdited"`
	EditedAt *time.Time `json:"editedAt,omitempty"`

	DeletedForEveryone bool     `json:"deletedForEveryone"`
	DeletedFor         []string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// CanEdit reports whether the message content may still change at the given
// instant. Globally deleted messages are terminal for mutation.
func (m Message) CanEdit(now time.Time) bool {
	if m.DeletedForEveryone {
		return false
	}
	return now.Sub(m.CreatedAt) <= EditWindow
}

// DeletedForUser reports whether the user opted out of seeing this message.
func (m Message) DeletedForUser(userID string) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return true
		}
	}
	return false
}

// ReactionBy returns the user's live reaction, if any.
func (m Message) ReactionBy(userID string) (Reaction, bool) {
	for _, reaction := range m.Reactions {
		if reaction.UserID == userID {
			return reaction, true
		}
	}
	return Reaction{}, false
}
