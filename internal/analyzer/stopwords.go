package analyzer

// Stop-word lists are fixed per language. They intentionally cover only the
// highest-frequency function words; BM25's IDF handles the long tail.

var englishStopWords = map[string]struct{}{
	"about": {}, "after": {}, "all": {}, "also": {}, "and": {}, "any": {},
	"are": {}, "been": {}, "before": {}, "being": {}, "but": {}, "can": {},
	"could": {}, "did": {}, "does": {}, "each": {}, "for": {}, "from": {},
	"had": {}, "has": {}, "have": {}, "her": {}, "here": {}, "him": {},
	"his": {}, "how": {}, "into": {}, "its": {}, "may": {}, "more": {},
	"most": {}, "not": {}, "now": {}, "one": {}, "only": {}, "other": {},
	"our": {}, "out": {}, "over": {}, "said": {}, "she": {}, "should": {},
	"some": {}, "such": {}, "than": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"those": {}, "through": {}, "under": {}, "upon": {}, "very": {},
	"was": {}, "were": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"while": {}, "who": {}, "whom": {}, "why": {}, "will": {}, "with": {},
	"would": {}, "you": {}, "your": {},
}

var spanishStopWords = map[string]struct{}{
	"algo": {}, "ante": {}, "antes": {}, "aquel": {}, "como": {},
	"con": {}, "contra": {}, "cual": {}, "cuando": {}, "del": {},
	"desde": {}, "donde": {}, "durante": {}, "ella": {}, "ellas": {},
	"ellos": {}, "entre": {}, "era": {}, "eran": {}, "ese": {}, "eso": {},
	"esta": {}, "estaba": {}, "este": {}, "esto": {}, "estos": {},
	"fue": {}, "fueron": {}, "hacia": {}, "hasta": {}, "las": {},
	"les": {}, "los": {}, "mas": {}, "mientras": {}, "muy": {},
	"nos": {}, "nunca": {}, "otra": {}, "otro": {}, "para": {}, "pero": {},
	"por": {}, "porque": {}, "que": {}, "ser": {}, "sin": {}, "sobre": {},
	"son": {}, "su": {}, "sus": {}, "también": {}, "tiene": {},
	"tienen": {}, "todo": {}, "todos": {}, "una": {}, "uno": {}, "unos": {},
}

func stopWordsFor(lang Language) map[string]struct{} {
	switch lang {
	case Spanish:
		return spanishStopWords
	default:
		return englishStopWords
	}
}
