package automation

import (
	"strings"
	"unicode"
)

// Draft commands are deterministic, pure text transforms with no chat-state
// dependency. A draft starting with a recognized @tag is rewritten; anything
// else passes through untouched.

const shortWordLimit = 10

// ProcessCommand applies a leading @fix, @emoji, @short, or @polite command
// to the draft text and returns the rewritten draft.
func ProcessCommand(draft string) string {
	trimmed := strings.TrimSpace(draft)
	tag, rest, found := strings.Cut(trimmed, " ")
	if !found {
		return draft
	}
	rest = strings.TrimSpace(rest)
	switch tag {
	case "@fix":
		return FixGrammar(rest)
	case "@emoji":
		return AddEmoji(rest)
	case "@short":
		return Shorten(rest)
	case "@polite":
		return MakePolite(rest)
	}
	return draft
}

// FixGrammar capitalizes the first letter and ensures terminal punctuation.
// Idempotent.
func FixGrammar(text string) string {
	fixed := capitalizeFirst(strings.TrimSpace(text))
	if fixed == "" {
		return fixed
	}
	if !strings.ContainsAny(fixed[len(fixed)-1:], ".!?") {
		fixed += "."
	}
	return fixed
}

var emojiByKeyword = []struct {
	keyword string
	emoji   string
}{
	{"happy", " 😊"},
	{"sad", " 😢"},
	{"love", " ❤️"},
	{"laugh", " 😂"},
	{"great", " 👍"},
	{"thanks", " 🙏"},
	{"okay", " 👌"},
}

// AddEmoji appends one emoji matched from a fixed keyword map, defaulting
// to 👍.
func AddEmoji(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range emojiByKeyword {
		if strings.Contains(lower, entry.keyword) {
			return text + entry.emoji
		}
	}
	return text + " 👍"
}

// Shorten truncates to the first ten whitespace-delimited words plus an
// ellipsis; shorter texts pass through unchanged.
func Shorten(text string) string {
	words := strings.Fields(text)
	if len(words) <= shortWordLimit {
		return text
	}
	return strings.Join(words[:shortWordLimit], " ") + "..."
}

// MakePolite prepends "Please" and appends "Thank you." when missing, then
// re-capitalizes.
func MakePolite(text string) string {
	polite := text
	lower := strings.ToLower(polite)
	if !strings.Contains(lower, "please") && !strings.Contains(polite, "कृपया") {
		polite = "Please " + strings.ToLower(polite)
	}
	if !strings.Contains(strings.ToLower(polite), "thank") && !strings.Contains(polite, "धन्यवाद") {
		polite += ". Thank you."
	}
	return capitalizeFirst(polite)
}

func capitalizeFirst(text string) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return text
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
