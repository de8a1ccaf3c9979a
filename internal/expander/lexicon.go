package expander

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Term maps one lookup key to its localized search variants.
type Term struct {
	Key string   `toml:"key"`
	EN  []string `toml:"en"`
	FR  []string `toml:"fr"`
	AR  []string `toml:"ar"`
}

// Variants lists the English, French and Arabic forms in that order.
func (t Term) Variants() []string {
	out := make([]string, 0, len(t.EN)+len(t.FR)+len(t.AR))
	out = append(out, t.EN...)
	out = append(out, t.FR...)
	return append(out, t.AR...)
}

// Lexicon holds the ordered location and activity tables.
type Lexicon struct {
	Locations  []Term `toml:"locations"`
	Activities []Term `toml:"activities"`
}

// LoadLexicon reads a TOML lexicon. An empty path returns DefaultLexicon.
func LoadLexicon(path string) (Lexicon, error) {
	if path == "" {
		return DefaultLexicon(), nil
	}
	var lex Lexicon
	if _, err := toml.DecodeFile(path, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("decode lexicon %s: %w", path, err)
	}
	if len(lex.Locations) == 0 && len(lex.Activities) == 0 {
		return Lexicon{}, fmt.Errorf("lexicon %s has no terms", path)
	}
	return lex, nil
}

func DefaultLexicon() Lexicon {
	tn := Term{EN: []string{"Tunisia"}, FR: []string{"Tunisie"}, AR: []string{"تونس"}}
	dz := Term{EN: []string{"Algeria"}, FR: []string{"Algérie"}, AR: []string{"الجزائر"}}
	ma := Term{EN: []string{"Morocco"}, FR: []string{"Maroc"}, AR: []string{"المغرب"}}
	eg := Term{EN: []string{"Egypt"}, FR: []string{"Égypte"}, AR: []string{"مصر"}}
	fr := Term{EN: []string{"France"}, FR: []string{"France"}, AR: []string{"فرنسا"}}

	beach := Term{EN: []string{"beach", "seaside"}, FR: []string{"plage", "littoral"}, AR: []string{"شاطئ", "ساحل"}}
	hotel := Term{EN: []string{"hotel"}, FR: []string{"hôtel"}, AR: []string{"فندق"}}
	mountain := Term{EN: []string{"mountain"}, FR: []string{"montagne"}, AR: []string{"جبل"}}
	sport := Term{EN: []string{"sport"}, FR: []string{"sport"}, AR: []string{"رياضة"}}

	return Lexicon{
		Locations: []Term{
			keyed("tunisia", tn), keyed("tunisian", tn),
			keyed("algeria", dz), keyed("algerian", dz),
			keyed("morocco", ma), keyed("moroccan", ma),
			keyed("egypt", eg), keyed("egyptian", eg),
			keyed("france", fr), keyed("french", fr),
		},
		Activities: []Term{
			keyed("beach", beach), keyed("beaches", beach),
			{Key: "seaside", EN: []string{"seaside", "beach"}, FR: []string{"littoral", "plage"}, AR: []string{"ساحل", "شاطئ"}},
			{Key: "coast", EN: []string{"coast", "coastal"}, FR: []string{"côte", "littoral"}, AR: []string{"ساحل"}},
			{Key: "coastal", EN: []string{"coastal", "coast"}, FR: []string{"côtier", "littoral"}, AR: []string{"ساحلي"}},
			{Key: "desert", EN: []string{"desert", "Sahara"}, FR: []string{"désert", "Sahara"}, AR: []string{"صحراء"}},
			{Key: "sahara", EN: []string{"Sahara", "desert"}, FR: []string{"Sahara", "désert"}, AR: []string{"صحراء"}},
			keyed("hotel", hotel), keyed("hotels", hotel),
			keyed("mountain", mountain), keyed("mountains", mountain),
			{Key: "hiking", EN: []string{"hiking"}, FR: []string{"randonnée"}, AR: []string{"مشي"}},
			keyed("sport", sport), keyed("sports", sport),
			{Key: "water", EN: []string{"water"}, FR: []string{"eau"}, AR: []string{"ماء"}},
			{Key: "adventure", EN: []string{"adventure"}, FR: []string{"aventure"}, AR: []string{"مغامرة"}},
			{Key: "tour", EN: []string{"tour"}, FR: []string{"circuit"}, AR: []string{"جولة"}},
			{Key: "trip", EN: []string{"trip"}, FR: []string{"voyage"}, AR: []string{"رحلة"}},
		},
	}
}

func keyed(key string, t Term) Term {
	t.Key = key
	return t
}
