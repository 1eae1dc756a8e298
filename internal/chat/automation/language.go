package automation

import (
	"regexp"
	"strings"
)

// Language is the closed set of reply languages the engine can produce.
type Language string

const (
	LanguageEnglish  Language = "english"
	LanguageHindi    Language = "hindi"
	LanguageBengali  Language = "bengali"
	LanguageHinglish Language = "hinglish"
	LanguageBenglish Language = "benglish"
)

// Emotion is a detected emotional register. Empty means none detected.
type Emotion string

const (
	EmotionSad      Emotion = "sad"
	EmotionTired    Emotion = "tired"
	EmotionStressed Emotion = "stressed"
	EmotionAngry    Emotion = "angry"
	EmotionHappy    Emotion = "happy"
)

var (
	hindiScript   = regexp.MustCompile(`[\x{0900}-\x{097F}]`)
	bengaliScript = regexp.MustCompile(`[\x{0980}-\x{09FF}]`)
	latinScript   = regexp.MustCompile(`[a-zA-Z]`)
)

// DetectLanguage classifies text by script ranges. Mixed-script forms win
// over pure-script forms; empty or unmatched text is english.
func DetectLanguage(text string) Language {
	if strings.TrimSpace(text) == "" {
		return LanguageEnglish
	}
	hasLatin := latinScript.MatchString(text)
	if hasLatin && hindiScript.MatchString(text) {
		return LanguageHinglish
	}
	if hasLatin && bengaliScript.MatchString(text) {
		return LanguageBenglish
	}
	if hindiScript.MatchString(text) {
		return LanguageHindi
	}
	if bengaliScript.MatchString(text) {
		return LanguageBengali
	}
	return LanguageEnglish
}

// emotionOrder fixes the scan priority; the first category with a keyword
// hit wins.
var emotionOrder = []Emotion{EmotionSad, EmotionTired, EmotionStressed, EmotionAngry, EmotionHappy}

var emotionKeywords = map[Emotion][]string{
	EmotionSad:      {"sad", "upset", "down", "depressed", "unhappy", "crying", "दुखी", "উদাস"},
	EmotionTired:    {"tired", "exhausted", "sleepy", "weary", "थका", "ক্লান্ত"},
	EmotionStressed: {"stressed", "anxious", "worried", "nervous", "तनाव", "চাপ"},
	EmotionAngry:    {"angry", "mad", "furious", "annoyed", "गुस्सा", "রাগ"},
	EmotionHappy:    {"happy", "excited", "joy", "glad", "खुश", "আনন্দ"},
}

// DetectEmotion scans the fixed keyword lexicon in priority order and
// returns the first matching category, or empty.
func DetectEmotion(text string) Emotion {
	lower := strings.ToLower(text)
	for _, emotion := range emotionOrder {
		for _, keyword := range emotionKeywords[emotion] {
			if strings.Contains(lower, keyword) {
				return emotion
			}
		}
	}
	return ""
}
