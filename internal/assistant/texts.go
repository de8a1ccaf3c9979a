package assistant

import (
	"fmt"

	"avt-guide/internal/chat"
)

type localized struct {
	greeting    string
	limitNotice string
	apology     string
	suggestions [4]string
}

var texts = map[string]localized{
	chat.LocaleEnglish: {
		greeting:    "Hello! I'm AVT Guide, your virtual travel companion. Where would you like to go?",
		limitNotice: "You have reached the daily limit of %d messages. Please come back tomorrow to continue our conversation.",
		apology:     "I apologize, but I'm having trouble connecting right now. Please try again in a moment.",
		suggestions: [4]string{"✈️ Plan a trip", "🌐 Explore in 360°", "🗺️ Tourist circuits", "⚖️ Compare offers"},
	},
	chat.LocaleFrench: {
		greeting:    "Bonjour ! Je suis AVT Guide, votre compagnon de voyage virtuel. Où aimeriez-vous aller ?",
		limitNotice: "Vous avez atteint la limite quotidienne de %d messages. Revenez demain pour poursuivre notre conversation.",
		apology:     "Je suis désolé, j'ai du mal à me connecter pour le moment. Veuillez réessayer dans un instant.",
		suggestions: [4]string{"✈️ Planifier un voyage", "🌐 Explorer en 360°", "🗺️ Circuits touristiques", "⚖️ Comparer les offres"},
	},
	chat.LocaleArabic: {
		greeting:    "مرحباً! أنا AVT Guide، رفيقك الافتراضي في السفر. إلى أين تود الذهاب؟",
		limitNotice: "لقد بلغت الحد اليومي البالغ %d رسالة. يرجى العودة غداً لمواصلة محادثتنا.",
		apology:     "عذراً، أواجه صعوبة في الاتصال حالياً. يرجى المحاولة مرة أخرى بعد قليل.",
		suggestions: [4]string{"✈️ خطط لرحلة", "🌐 استكشف بتقنية 360°", "🗺️ مسارات سياحية", "⚖️ قارن العروض"},
	},
}

var suggestionIcons = [4]string{
	"/images/chatbot/Plan.png",
	"/images/chatbot/Explore.png",
	"/images/chatbot/Tourist.png",
	"/images/chatbot/Compare.png",
}

func textsFor(locale string) localized {
	return texts[chat.NormalizeLocale(locale, chat.LocaleEnglish)]
}

// Greeting is the seed message of a new conversation.
func Greeting(locale string) string { return textsFor(locale).greeting }

func Apology(locale string) string { return textsFor(locale).apology }

func LimitNotice(locale string, limit int) string {
	return fmt.Sprintf(textsFor(locale).limitNotice, limit)
}

// DefaultSuggestions are the chips shown before the model proposes any.
func DefaultSuggestions(locale string) []chat.Suggestion {
	t := textsFor(locale)
	out := make([]chat.Suggestion, 0, len(t.suggestions))
	for i, label := range t.suggestions {
		out = append(out, chat.Suggestion{Label: label, Value: label, Icon: suggestionIcons[i]})
	}
	return out
}
