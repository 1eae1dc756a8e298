// Package automation decides whether and how to auto-reply on behalf of an
// absent admin: a decision table over bot mode and admin activity, a
// rule-based language and emotion classifier, and template- or
// fact-grounded reply composition with human-like delivery timing.
package automation

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kothaapp/kotha/internal/chat/domain"
	"github.com/kothaapp/kotha/internal/chat/storage"
)

// Engine composes automated replies from admin-curated knowledge facts and
// fixed templates.
type Engine struct {
	cache *factCache
}

// NewEngine builds an engine over the knowledge store. now defaults to
// time.Now and drives fact-cache expiry only.
func NewEngine(store storage.KnowledgeStore, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{cache: newFactCache(store, now)}
}

// ShouldAutoReply is the whole decision surface: manual never replies, on
// always replies, auto replies only while the admin is not active.
func ShouldAutoReply(botMode domain.BotMode, isAdminActive bool) bool {
	switch botMode {
	case domain.BotModeManual:
		return false
	case domain.BotModeOn:
		return true
	case domain.BotModeAuto:
		return !isAdminActive
	}
	return false
}

// ComposeReply builds the reply text for an incoming message. Knowledge
// facts answer first and verbatim; emotional messages get an empathetic
// template; greetings get a relationship-toned template; questions with no
// fact match get the per-language "not sure" fallback, everything else a
// generic acknowledgement. The engine never invents facts.
func (e *Engine) ComposeReply(ctx context.Context, content string, relationship domain.RelationshipType, adminID string) (string, error) {
	lang := DetectLanguage(content)
	emotion := DetectEmotion(content)

	facts, err := e.cache.facts(ctx, adminID)
	if err != nil {
		return "", err
	}
	lower := strings.ToLower(content)
	keys := make([]string, 0, len(facts))
	for key := range facts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if strings.Contains(lower, key) {
			return facts[key], nil
		}
	}

	switch emotion {
	case EmotionSad, EmotionTired, EmotionStressed, EmotionAngry:
		return emotionalReply(emotion, lang), nil
	}

	if isGreeting(content) {
		return greetingReply(relationship, lang), nil
	}
	if strings.Contains(content, "?") {
		return fallbackReply(lang), nil
	}
	return acknowledgementReply(lang), nil
}

var labelCaser = cases.Title(language.English)

// ReplyLabel returns the disclosure label for an automated reply, or empty
// for personal DMs and group chats.
func ReplyLabel(kind domain.ChatKind, dmKind domain.DMKind) string {
	if kind != domain.ChatKindDirect || dmKind == domain.DMKindPersonal || dmKind == "" {
		return ""
	}
	return "Reply · " + labelCaser.String(string(dmKind))
}
