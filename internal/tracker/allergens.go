package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nutritrack/internal/meal"
)

var (
	// ErrEmptyAllergenName is returned before any network call when an
	// allergen has no name.
	ErrEmptyAllergenName = errors.New("allergen name is required")
	// ErrNotCommonAllergen is returned when quick-add is given a name that is
	// not on the common list.
	ErrNotCommonAllergen = errors.New("not a common allergen")
)

// Allergens lists the user's allergens. A non-empty query keeps only names or
// notes containing it, ignoring case.
func (s *Service) Allergens(ctx context.Context, email, query string) ([]meal.Allergen, error) {
	list, err := s.backend.ListAllergens(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch allergens: %w", err)
	}
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]meal.Allergen, 0, len(list))
	for _, a := range list {
		if query == "" ||
			strings.Contains(strings.ToLower(a.Name), query) ||
			strings.Contains(strings.ToLower(a.Notes), query) {
			out = append(out, a)
		}
	}
	return out, nil
}

// AddAllergen validates and stores a free-form allergen. Free-form entries
// may repeat an existing name.
func (s *Service) AddAllergen(ctx context.Context, email, name, severity, notes string) (*meal.Allergen, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyAllergenName
	}
	sev, err := meal.ParseSeverity(severity)
	if err != nil {
		return nil, err
	}
	created, err := s.backend.CreateAllergen(ctx, &meal.Allergen{
		Owner:    email,
		Name:     name,
		Severity: sev,
		Notes:    strings.TrimSpace(notes),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add allergen: %w", err)
	}
	s.log.WithField("email", email).WithField("allergen", name).Info("allergen added")
	return created, nil
}

// QuickAdd adds names from the common allergen list with Low severity,
// skipping any the user already has under the same name in any casing. It
// returns the allergens actually created.
func (s *Service) QuickAdd(ctx context.Context, email string, names ...string) ([]meal.Allergen, error) {
	canonical := make([]string, 0, len(names))
	for _, n := range names {
		c, ok := commonName(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotCommonAllergen, n)
		}
		canonical = append(canonical, c)
	}

	existing, err := s.backend.ListAllergens(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch allergens: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, a := range existing {
		have[strings.ToLower(strings.TrimSpace(a.Name))] = true
	}

	added := []meal.Allergen{}
	for _, name := range canonical {
		key := strings.ToLower(name)
		if have[key] {
			continue
		}
		created, err := s.backend.CreateAllergen(ctx, &meal.Allergen{Owner: email, Name: name, Severity: meal.SeverityLow})
		if err != nil {
			return added, fmt.Errorf("failed to add allergen %s: %w", name, err)
		}
		have[key] = true
		added = append(added, *created)
	}
	return added, nil
}

// RemoveAllergen deletes an allergen by id.
func (s *Service) RemoveAllergen(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("allergen id is required")
	}
	if err := s.backend.DeleteAllergen(ctx, id); err != nil {
		return fmt.Errorf("failed to delete allergen: %w", err)
	}
	return nil
}

func commonName(name string) (string, bool) {
	for _, c := range meal.CommonAllergens {
		if strings.EqualFold(c, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return "", false
}
