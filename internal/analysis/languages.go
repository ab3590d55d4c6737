package analysis

// Interrogatives maps a language tag to the question words recognized by
// the parser. Model output mixes languages freely, so the parser always
// matches against every configured set, not just the session language.
type Interrogatives map[string][]string

// DefaultInterrogatives covers the supported filing languages.
func DefaultInterrogatives() Interrogatives {
	return Interrogatives{
		"en": {"what", "who", "when", "where", "why", "how", "which"},
		"hi": {"क्या", "कौन", "कब", "कहाँ", "कहां", "क्यों", "कैसे"},
		"bn": {"কি", "কে", "কখন", "কোথায়", "কেন", "কিভাবে"},
		"ta": {"என்ன", "யார்", "எப்போது", "எங்கே", "ஏன்", "எப்படி"},
		"mr": {"काय", "कोण", "कधी", "कुठे", "का", "कसे"},
	}
}

// All flattens every configured keyword into one list.
func (i Interrogatives) All() []string {
	var out []string
	for _, words := range i {
		out = append(out, words...)
	}
	return out
}
