package preferences

import "regexp"

// rule maps a lowercase trigger substring to a value. Tables are slices so
// evaluation order is fixed: for format and language the last matching rule
// in table order wins, whatever the order of words in the text.
type rule struct {
	trigger string
	value   string
}

var keywordTags = []rule{
	{"space", "space"},
	{"planet", "space"},
	{"rocket", "space"},
	{"astronaut", "space"},
	{"animal", "animals"},
	{"dog", "animals"},
	{"cat", "animals"},
	{"dinosaur", "animals"},
	{"mystery", "mystery"},
	{"detective", "mystery"},
	{"sports", "sports"},
	{"soccer", "sports"},
	{"basketball", "sports"},
	{"baseball", "sports"},
	{"magic", "fantasy"},
	{"dragon", "fantasy"},
	{"fairy", "fantasy"},
	{"robot", "science"},
	{"science", "science"},
	{"history", "history"},
}

var formatWords = []rule{
	{"picture", FormatPicture},
	{"chapter", FormatChapter},
	{"graphic", FormatGraphic},
	{"comic", FormatGraphic},
}

var languageWords = []rule{
	{"spanish", "Spanish"},
	{"english", "English"},
	{"bilingual", "Bilingual"},
}

// ageRe matches the first 1-2 digit number, optionally followed by an age
// unit. Any bare number matches, not only ones next to age words.
var ageRe = regexp.MustCompile(`\b(\d{1,2})\s*(?:years|yrs|yo|y/o)?\b`)
