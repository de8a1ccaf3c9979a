// Package advisor writes clarifying questions when a search finds nothing.
package advisor

import (
	"fmt"
	"strings"

	"avt-guide/internal/chat"
)

// MaxQuestions is how many clarifying questions one reply carries.
const MaxQuestions = 2

type texts struct {
	intro       string
	destination string
	budget      string
	dates       string
	experience  string
	flexible    string
}

var catalogue = map[string]texts{
	chat.LocaleEnglish: {
		intro:       "I couldn't find any travel deals matching your search. To help me find the perfect options for you, could you provide more details?",
		destination: "What destination are you interested in? (e.g., a specific city, country, or region)",
		budget:      "What's your budget range for this trip?",
		dates:       "When are you planning to travel? (specific dates or month)",
		experience:  "What type of experience are you looking for? (adventure, relaxation, cultural, etc.)",
		flexible:    "Are you flexible with your travel dates or destination?",
	},
	chat.LocaleFrench: {
		intro:       "Je n'ai trouvé aucune offre de voyage correspondant à votre recherche. Pour m'aider à trouver les meilleures options pour vous, pourriez-vous me donner plus de détails ?",
		destination: "Quelle destination vous intéresse ? (par exemple une ville, un pays ou une région)",
		budget:      "Quel est votre budget pour ce voyage ?",
		dates:       "Quand prévoyez-vous de voyager ? (dates précises ou mois)",
		experience:  "Quel type d'expérience recherchez-vous ? (aventure, détente, culture, etc.)",
		flexible:    "Êtes-vous flexible sur vos dates ou votre destination ?",
	},
	chat.LocaleArabic: {
		intro:       "لم أجد أي عروض سفر تطابق بحثك. لمساعدتي في إيجاد أفضل الخيارات لك، هل يمكنك تقديم المزيد من التفاصيل؟",
		destination: "ما هي الوجهة التي تهمك؟ (مثلاً مدينة أو بلد أو منطقة معينة)",
		budget:      "ما هي ميزانيتك لهذه الرحلة؟",
		dates:       "متى تخطط للسفر؟ (تواريخ محددة أو شهر)",
		experience:  "ما نوع التجربة التي تبحث عنها؟ (مغامرة، استرخاء، ثقافة، إلخ)",
		flexible:    "هل أنت مرن بخصوص تواريخ السفر أو الوجهة؟",
	},
}

// Advice is the paragraph appended to an empty search reply.
type Advice struct {
	Text     string
	Emphasis []string
	FollowUp string
}

// Advise asks about what the search lacked, in the order destination,
// budget, dates. When nothing is missing it asks about preferences instead.
func Advise(locale string, p chat.FilterParams) Advice {
	t := catalogue[chat.NormalizeLocale(locale, chat.LocaleEnglish)]

	var qs []string
	if !p.HasDestination() {
		qs = append(qs, t.destination)
	}
	if !p.HasBudget() {
		qs = append(qs, t.budget)
	}
	if !p.HasDates() {
		qs = append(qs, t.dates)
	}
	if len(qs) == 0 {
		qs = append(qs, t.experience, t.flexible)
	}
	if len(qs) > MaxQuestions {
		qs = qs[:MaxQuestions]
	}

	var sb strings.Builder
	sb.WriteString(t.intro)
	sb.WriteString("\n")
	for i, q := range qs {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, q)
	}
	return Advice{Text: sb.String(), Emphasis: qs, FollowUp: qs[0]}
}

// Apply appends the advice as a new paragraph and replaces the follow-up
// question.
func Apply(r *chat.Response, a Advice) {
	r.Content.Paragraphs = append(r.Content.Paragraphs, chat.Paragraph{
		Text:     a.Text,
		Emphasis: append([]string(nil), a.Emphasis...),
	})
	q := a.FollowUp
	r.Content.FollowUpQuestion = &q
}
