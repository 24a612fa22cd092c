package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nutritrack/internal/meal"
	"nutritrack/internal/platform/backend"
)

// ErrIncompleteProfile is returned when a profile is saved without its
// required fields.
var ErrIncompleteProfile = errors.New("profile is incomplete")

// ProfileView is what the profile view shows. Create is set when the user has
// no profile yet.
type ProfileView struct {
	Profile meal.Profile `json:"profile"`
	Create  bool         `json:"create"`
}

// HasProfile reports whether the user has completed their profile.
func (s *Service) HasProfile(ctx context.Context, email string) (bool, error) {
	ok, err := s.backend.HasDetails(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to check profile: %w", err)
	}
	return ok, nil
}

// Profile loads the user's profile, or an empty one in create mode.
func (s *Service) Profile(ctx context.Context, email string) (*ProfileView, error) {
	p, err := s.backend.GetProfile(ctx, email)
	if errors.Is(err, backend.ErrProfileNotFound) {
		return &ProfileView{Profile: meal.Profile{Email: email, Goals: []string{}, DietaryPreferences: []string{}}, Create: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return &ProfileView{Profile: *p}, nil
}

// SaveProfile stores p under the session email, whatever email p carries.
func (s *Service) SaveProfile(ctx context.Context, email string, p meal.Profile) (*meal.Profile, error) {
	p.Email = email
	p.Goals = compact(p.Goals)
	p.DietaryPreferences = compact(p.DietaryPreferences)
	if missing := p.MissingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteProfile, strings.Join(missing, ", "))
	}
	saved, err := s.backend.SaveProfile(ctx, &p)
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return saved, nil
}

// compact trims values and drops blanks.
func compact(values []string) []string {
	out := []string{}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
