package tracker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"nutritrack/internal/meal"
)

// RecentMealCount is how many meals the dashboard lists.
const RecentMealCount = 3

// Dashboard is the landing view of a signed-in user.
type Dashboard struct {
	Date      string             `json:"date"`
	Summary   meal.DailySummary  `json:"summary"`
	Today     []meal.Entry       `json:"today"`
	Recent    []meal.Entry       `json:"recent"`
	Allergens []meal.Allergen    `json:"allergens"`
	Weekly    []meal.DayCalories `json:"weekly"`
}

// Dashboard loads the meal log, allergens and weekly totals concurrently and
// summarizes today in loc. A nil loc means the server's local zone.
func (s *Service) Dashboard(ctx context.Context, email string, loc *time.Location) (*Dashboard, error) {
	if loc == nil {
		loc = time.Local
	}
	var (
		entries   []meal.Entry
		allergens []meal.Allergen
		weekly    []meal.WeeklyPoint
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if entries, err = s.backend.ListMealLogs(gctx, email); err != nil {
			return fmt.Errorf("failed to fetch meal logs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if allergens, err = s.backend.ListAllergens(gctx, email); err != nil {
			return fmt.Errorf("failed to fetch allergens: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if weekly, err = s.backend.WeeklyCalories(gctx, email); err != nil {
			return fmt.Errorf("failed to fetch weekly totals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.WithError(err).WithField("email", email).Warn("dashboard load failed")
		return nil, err
	}

	today := s.now().In(loc)
	todays := meal.Today(entries, today)
	if todays == nil {
		todays = []meal.Entry{}
	}
	if allergens == nil {
		allergens = []meal.Allergen{}
	}
	return &Dashboard{
		Date:      today.Format(meal.PlanDateLayout),
		Summary:   meal.SummarizeToday(entries, today),
		Today:     todays,
		Recent:    meal.Recent(entries, RecentMealCount),
		Allergens: allergens,
		Weekly:    meal.ReshapeWeekly(weekly),
	}, nil
}

// Weekly returns the backend's per-day calorie totals unchanged.
func (s *Service) Weekly(ctx context.Context, email string) ([]meal.DayCalories, error) {
	points, err := s.backend.WeeklyCalories(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weekly totals: %w", err)
	}
	return meal.ReshapeWeekly(points), nil
}
