package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"nutritrack/internal/meal"
)

// ErrInvalidPlan is returned for plans with a bad date or no meals.
var ErrInvalidPlan = errors.New("invalid meal plan")

// Planner is the meal planner view: every plan keyed by date, and today's.
type Planner struct {
	Plans map[string]meal.Plan `json:"plans"`
	Dates []string             `json:"dates"`
	Today *meal.Plan           `json:"today,omitempty"`
}

// Planner loads the user's plans. today is the viewer's date.
func (s *Service) Planner(ctx context.Context, email string, today time.Time) (*Planner, error) {
	plans, err := s.backend.ListMealPlans(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch meal plans: %w", err)
	}
	out := &Planner{Plans: make(map[string]meal.Plan, len(plans)), Dates: []string{}}
	for _, p := range plans {
		if _, seen := out.Plans[p.Date]; !seen {
			out.Dates = append(out.Dates, p.Date)
		}
		out.Plans[p.Date] = p
	}
	sort.Strings(out.Dates)
	if p, ok := out.Plans[today.Format(meal.PlanDateLayout)]; ok {
		out.Today = &p
	}
	return out, nil
}

// SavePlan validates and stores a plan for its date under email.
func (s *Service) SavePlan(ctx context.Context, email string, p meal.Plan) (*meal.Plan, error) {
	p.Owner = email
	p.Date = strings.TrimSpace(p.Date)
	p.Breakfast = strings.TrimSpace(p.Breakfast)
	p.Lunch = strings.TrimSpace(p.Lunch)
	p.Dinner = strings.TrimSpace(p.Dinner)

	if _, err := time.Parse(meal.PlanDateLayout, p.Date); err != nil {
		return nil, fmt.Errorf("%w: date %q must be yyyy-MM-dd", ErrInvalidPlan, p.Date)
	}
	if p.Breakfast == "" && p.Lunch == "" && p.Dinner == "" {
		return nil, fmt.Errorf("%w: at least one meal is required", ErrInvalidPlan)
	}
	saved, err := s.backend.SaveMealPlan(ctx, &p)
	if err != nil {
		return nil, fmt.Errorf("failed to save meal plan: %w", err)
	}
	return saved, nil
}
