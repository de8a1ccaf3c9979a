package chat

import "strings"

const (
	LocaleEnglish = "en"
	LocaleFrench  = "fr"
	LocaleArabic  = "ar"
)

var supportedLocales = map[string]bool{
	LocaleEnglish: true,
	LocaleFrench:  true,
	LocaleArabic:  true,
}

// NormalizeLocale maps "fr-FR", "FR" and friends to a supported locale code,
// or returns fallback.
func NormalizeLocale(locale, fallback string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	if supportedLocales[l] {
		return l
	}
	if supportedLocales[fallback] {
		return fallback
	}
	return LocaleEnglish
}

func IsSupportedLocale(locale string) bool { return supportedLocales[locale] }
