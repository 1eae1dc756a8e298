package automation

import (
	"strings"

	"github.com/kothaapp/kotha/internal/chat/domain"
)

// Reply templates. The engine only ever answers from these templates or
// from verbatim knowledge-fact values; it never fabricates content.

var fallbackReplies = map[Language]string{
	LanguageEnglish:  "I'm not sure about that yet.",
	LanguageHindi:    "मुझे इसके बारे में अभी तक पता नहीं है।",
	LanguageBengali:  "আমি এখনও এটি সম্পর্কে নিশ্চিত নই।",
	LanguageHinglish: "Mujhe iske bare mein abhi tak pata nahi hai.",
	LanguageBenglish: "Ami ekhono eta somporke nischit noi.",
}

var emotionalReplies = map[Emotion]map[Language]string{
	EmotionSad: {
		LanguageEnglish:  "I'm here for you. Want to talk about it?",
		LanguageHindi:    "मैं यहाँ हूँ। बात करना चाहोगे?",
		LanguageBengali:  "আমি এখানে আছি। কথা বলতে চাও?",
		LanguageHinglish: "Main yahan hoon. Baat karni hai?",
		LanguageBenglish: "Ami ekhane achi. Kotha bolte chao?",
	},
	EmotionStressed: {
		LanguageEnglish:  "Take a deep breath. Everything will be okay.",
		LanguageHindi:    "एक गहरी सांस लो। सब ठीक हो जाएगा।",
		LanguageBengali:  "একটা গভীর শ্বাস নাও। সব ঠিক হয়ে যাবে।",
		LanguageHinglish: "Ek deep breath lo. Sab theek ho jayega.",
		LanguageBenglish: "Ekta deep breath nao. Sob thik hoye jabe.",
	},
	EmotionTired: {
		LanguageEnglish:  "You should rest. Take care of yourself.",
		LanguageHindi:    "तुम्हें आराम करना चाहिए। अपना ख्याल रखो।",
		LanguageBengali:  "তোমার বিশ্রাম নেওয়া উচিত। নিজের যত্ন নাও।",
		LanguageHinglish: "Tumhe rest karna chahiye. Apna khayal rakho.",
		LanguageBenglish: "Tomar rest neoa uchit. Nije r jotno nao.",
	},
}

// emotionalReply resolves (emotion, language) with english then a neutral
// acknowledgement as fallbacks. Angry has no dedicated template.
func emotionalReply(emotion Emotion, lang Language) string {
	byLang, ok := emotionalReplies[emotion]
	if !ok {
		return "I understand."
	}
	if reply, ok := byLang[lang]; ok {
		return reply
	}
	if reply, ok := byLang[LanguageEnglish]; ok {
		return reply
	}
	return "I understand."
}

var greetingWords = []string{"hi", "hello", "hey", "नमस्ते", "হাই", "হ্যালো"}

func isGreeting(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range greetingWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

var greetingReplies = map[domain.RelationshipType]map[Language]string{
	domain.RelationshipCloseFriend: {
		LanguageEnglish:  "Hey! What's up?",
		LanguageHindi:    "अरे! क्या चल रहा है?",
		LanguageBengali:  "হেই! কী চলছে?",
		LanguageHinglish: "Hey! Kya chal raha hai?",
		LanguageBenglish: "Hey! Ki cholche?",
	},
	domain.RelationshipBrother: {
		LanguageEnglish:  "Hey bro! How's it going?",
		LanguageHindi:    "अरे भाई! कैसा चल रहा है?",
		LanguageBengali:  "হে ভাই! কেমন চলছে?",
		LanguageHinglish: "Hey bhai! Kaisa chal raha hai?",
		LanguageBenglish: "Hey bhai! Kemon cholche?",
	},
	domain.RelationshipSister: {
		LanguageEnglish:  "Hi! How are you?",
		LanguageHindi:    "नमस्ते! कैसी हो?",
		LanguageBengali:  "হাই! কেমন আছো?",
		LanguageHinglish: "Hi! Kaisi ho?",
		LanguageBenglish: "Hi! Kemon acho?",
	},
	domain.RelationshipCrush: {
		LanguageEnglish:  "Hi there! How have you been?",
		LanguageHindi:    "नमस्ते! कैसे हो?",
		LanguageBengali:  "হ্যালো! কেমন আছেন?",
		LanguageHinglish: "Hi! Kaise ho?",
		LanguageBenglish: "Hello! Kemon achen?",
	},
	domain.RelationshipCustomer: {
		LanguageEnglish:  "Hello! How can I help you today?",
		LanguageHindi:    "नमस्ते! आज मैं आपकी कैसे मदद कर सकता हूं?",
		LanguageBengali:  "হ্যালো! আজ আমি আপনাকে কীভাবে সাহায্য করতে পারি?",
		LanguageHinglish: "Hello! Aaj main aapki kaise madad kar sakta hoon?",
		LanguageBenglish: "Hello! Aj ami apnake kibhabe shahajjo korte pari?",
	},
}

func greetingReply(relationship domain.RelationshipType, lang Language) string {
	byLang, ok := greetingReplies[relationship]
	if !ok {
		return "Hello!"
	}
	if reply, ok := byLang[lang]; ok {
		return reply
	}
	if reply, ok := byLang[LanguageEnglish]; ok {
		return reply
	}
	return "Hello!"
}

var acknowledgementReplies = map[Language]string{
	LanguageEnglish:  "Got it. Let me know if you need anything.",
	LanguageHindi:    "समझ गया। अगर कुछ चाहिए तो बताना।",
	LanguageBengali:  "বুঝলাম। কিছু লাগলে বলো।",
	LanguageHinglish: "Samajh gaya. Agar kuch chahiye to batana.",
	LanguageBenglish: "Bujhlam. Kichu lagle bolo.",
}

func acknowledgementReply(lang Language) string {
	if reply, ok := acknowledgementReplies[lang]; ok {
		return reply
	}
	return acknowledgementReplies[LanguageEnglish]
}

func fallbackReply(lang Language) string {
	if reply, ok := fallbackReplies[lang]; ok {
		return reply
	}
	return fallbackReplies[LanguageEnglish]
}
