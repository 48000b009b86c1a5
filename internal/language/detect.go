// Package language guesses the language of an email body from a small keyword
// vocabulary. The result is a hint for extraction and never gates anything.
package language

import (
	"strings"
	"unicode"

	"github.com/joseph-ayodele/purchase-sync/constants"
)

var vocabulary = map[constants.Language][]string{
	constants.LanguageNorwegian: {
		"og", "ikke", "jeg", "du", "med", "til", "er", "av", "på", "det",
		"ordre", "bestilling", "kjøp", "takk", "levering", "pris", "totalt", "beløp",
		"kvittering", "faktura", "sendt", "mottatt", "varen", "frakt", "mva", "hilsen",
	},
	constants.LanguageEnglish: {
		"the", "and", "you", "your", "for", "with", "this", "that", "is", "of",
		"order", "thank", "thanks", "shipping", "delivery", "total", "receipt", "invoice",
		"purchase", "price", "items", "shipped", "tax", "payment", "regards",
	},
	constants.LanguageSwedish: {
		"och", "inte", "jag", "med", "till", "är", "av", "på", "det", "för",
		"beställning", "köp", "tack", "leverans", "pris", "totalt", "summa", "kvitto",
		"faktura", "skickad", "varor", "frakt", "moms", "hälsningar", "din",
	},
	constants.LanguageDanish: {
		"og", "ikke", "jeg", "med", "til", "er", "af", "på", "det", "for",
		"ordre", "bestilling", "køb", "tak", "levering", "pris", "total", "beløb",
		"kvittering", "faktura", "sendt", "modtaget", "varen", "fragt", "moms", "hilsen",
	},
}

var lexicon = buildLexicon()

func buildLexicon() map[constants.Language]map[string]struct{} {
	out := make(map[constants.Language]map[string]struct{}, len(vocabulary))
	for lang, words := range vocabulary {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		out[lang] = set
	}
	return out
}

// Detect scores each language by keyword hits. Ties go to the first language
// in no, en, sv, da order; no hits at all yield "other".
func Detect(text string) constants.Language {
	scores := Scores(text)
	best := constants.LanguageOther
	bestScore := 0
	for _, lang := range constants.DetectableLanguages {
		if s := scores[lang]; s > bestScore {
			best, bestScore = lang, s
		}
	}
	return best
}

// Scores returns the keyword hit count per language.
func Scores(text string) map[constants.Language]int {
	scores := make(map[constants.Language]int, len(lexicon))
	for _, tok := range tokenize(text) {
		for lang, set := range lexicon {
			if _, ok := set[tok]; ok {
				scores[lang]++
			}
		}
	}
	return scores
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
