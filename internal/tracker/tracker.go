// Package tracker implements the dashboard, allergen book, profile and meal
// planner on top of the NutriTrack backend.
package tracker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"nutritrack/internal/meal"
)

// Backend is the subset of the backend client the tracker needs.
type Backend interface {
	HasDetails(ctx context.Context, email string) (bool, error)
	GetProfile(ctx context.Context, email string) (*meal.Profile, error)
	SaveProfile(ctx context.Context, p *meal.Profile) (*meal.Profile, error)
	ListAllergens(ctx context.Context, email string) ([]meal.Allergen, error)
	CreateAllergen(ctx context.Context, a *meal.Allergen) (*meal.Allergen, error)
	DeleteAllergen(ctx context.Context, id string) error
	ListMealLogs(ctx context.Context, email string) ([]meal.Entry, error)
	WeeklyCalories(ctx context.Context, email string) ([]meal.WeeklyPoint, error)
	ListMealPlans(ctx context.Context, email string) ([]meal.Plan, error)
	SaveMealPlan(ctx context.Context, p *meal.Plan) (*meal.Plan, error)
}

// Service serves the read and edit views of a signed-in user.
type Service struct {
	backend Backend
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewService returns a Service backed by b.
func NewService(b Backend, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{backend: b, log: log, now: time.Now}
}
