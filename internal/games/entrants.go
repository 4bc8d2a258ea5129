package games

import "fmt"

// DefaultPalette is the lane colour rotation used when none is configured.
var DefaultPalette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8",
	"#F06292", "#AED581", "#7986CB", "#9575CD", "#4DB6AC",
}

// DefaultNamePattern names unnamed horses by lane number.
const DefaultNamePattern = "Horse %d"

// BuildEntrants pairs up to count names with palette colours. Blank or
// missing names fall back to namePattern with the 1-based lane number.
func BuildEntrants(count int, names []string, palette []string, namePattern string) []Entrant {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	if namePattern == "" {
		namePattern = DefaultNamePattern
	}

	entrants := make([]Entrant, count)
	for i := range entrants {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		if name == "" {
			name = fmt.Sprintf(namePattern, i+1)
		}
		entrants[i] = Entrant{Name: name, Color: palette[i%len(palette)]}
	}
	return entrants
}
