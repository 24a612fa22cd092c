package meal

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Severity grades how strongly a user reacts to an allergen.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// ErrUnknownSeverity is returned for severities other than High, Medium and Low.
var ErrUnknownSeverity = errors.New("unknown severity")

// ParseSeverity accepts any casing of High, Medium or Low. An empty value is Low.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return SeverityHigh, nil
	case "medium":
		return SeverityMedium, nil
	case "low", "":
		return SeverityLow, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownSeverity, s)
}

// Allergen is one entry of a user's allergen list.
type Allergen struct {
	ID       string   `json:"_id,omitempty"`
	Owner    string   `json:"email"`
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
	Notes    string   `json:"notes,omitempty"`
}

// CommonAllergens is the quick-add list offered next to the allergen list.
var CommonAllergens = []string{
	"Milk", "Eggs", "Fish", "Shellfish", "Tree nuts",
	"Peanuts", "Wheat", "Soybeans", "Sesame",
}

// AllergenNames returns the names of allergens in list order.
func AllergenNames(allergens []Allergen) []string {
	names := make([]string, 0, len(allergens))
	for _, a := range allergens {
		names = append(names, a.Name)
	}
	return names
}

// FindConflicts returns the allergens that occur in the ingredient list, in the
// order they were declared.
//
// Matching is whole-word and case-insensitive. Ingredient text and allergen
// names are split into words on anything that is not a letter or digit, and an
// allergen matches an ingredient when its words occur consecutively in that
// ingredient. Words compare equal after plural folding, so "Peanuts" matches
// "peanut butter" and "Eggs" matches "egg", while "Egg" does not match
// "eggplant" and "nut" does not match "nutmeg". Words ending in "ie" fold
// like their "ies" plurals, so "Cookie" matches "chocolate cookies".
//
// Qualifiers are not understood: "Gluten" matches "gluten-free bread".
func FindConflicts(ingredients []string, allergens []string) []string {
	if len(ingredients) == 0 || len(allergens) == 0 {
		return []string{}
	}

	tokenized := make([][]string, 0, len(ingredients))
	for _, ing := range ingredients {
		if words := stems(ing); len(words) > 0 {
			tokenized = append(tokenized, words)
		}
	}

	conflicts := []string{}
	seen := make(map[string]bool)
	for _, name := range allergens {
		needle := stems(name)
		if len(needle) == 0 {
			continue
		}
		key := strings.Join(needle, " ")
		if seen[key] {
			continue
		}
		for _, words := range tokenized {
			if containsRun(words, needle) {
				conflicts = append(conflicts, name)
				seen[key] = true
				break
			}
		}
	}
	return conflicts
}

func containsRun(words, needle []string) bool {
	for i := 0; i+len(needle) <= len(words); i++ {
		match := true
		for j := range needle {
			if words[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func stems(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(s)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		fields[i] = singular(f)
	}
	return fields
}

// singular folds the common English plural endings.
func singular(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && (strings.HasSuffix(w, "shes") || strings.HasSuffix(w, "ches") ||
		strings.HasSuffix(w, "xes") || strings.HasSuffix(w, "sses")):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "ie"):
		return w[:len(w)-2] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}
