package usecase

import "strings"

// speciesMarkers maps each recognized domestic-pet species to the lowercase
// substrings that identify it in owner text. Order matters: the first
// matching species wins when inferring from symptoms.
var speciesMarkers = []struct {
	species string
	markers []string
}{
	{"perro", []string{"perro", "perra", "cachorro", "canino"}},
	{"gato", []string{"gato", "gata", "gatito", "felino", "minino"}},
	{"conejo", []string{"conejo", "coneja"}},
	{"ave", []string{"ave", "pajaro", "pájaro", "loro", "periquito", "canario"}},
	{"hamster", []string{"hamster", "hámster"}},
	{"huron", []string{"huron", "hurón"}},
	{"tortuga", []string{"tortuga"}},
}

// NormalizeSpecies maps free-form species input onto the recognized set.
// It returns "" when the input names no recognized domestic pet.
func NormalizeSpecies(input string) string {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return ""
	}
	for _, entry := range speciesMarkers {
		for _, marker := range entry.markers {
			if strings.Contains(text, marker) {
				return entry.species
			}
		}
	}
	return ""
}

// InferSpecies guesses the species from symptom text, e.g. "mi perro tiene
// convulsiones" infers "perro". Returns "" when nothing matches.
func InferSpecies(symptoms string) string {
	return NormalizeSpecies(symptoms)
}
