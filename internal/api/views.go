package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"nutritrack/internal/meal"
	"nutritrack/internal/scan"
	"nutritrack/internal/session"
)

// ScanView is the state of the scan tab.
type ScanView struct {
	Busy      bool         `json:"busy"`
	Allergens []string     `json:"allergens"`
	Last      *scan.Result `json:"last,omitempty"`
}

// AllergenView is the allergen tab: the user's list and the quick-add list.
type AllergenView struct {
	Allergens []meal.Allergen `json:"allergens"`
	Common    []string        `json:"common"`
}

type locationKey struct{}

func withLocation(ctx context.Context, loc *time.Location) context.Context {
	return context.WithValue(ctx, locationKey{}, loc)
}

func locationFrom(ctx context.Context) *time.Location {
	if loc, ok := ctx.Value(locationKey{}).(*time.Location); ok {
		return loc
	}
	return time.Local
}

// Views returns the renderer of every view. The table is rebuilt per call
// so renderers always see the handler's current collaborators.
func (h *Handler) Views() session.Table {
	return session.Table{
		session.ViewLogin: func(ctx context.Context, s *session.Session) (any, error) {
			return gin.H{"message": "Please sign in to continue."}, nil
		},
		session.ViewDashboard: func(ctx context.Context, s *session.Session) (any, error) {
			return h.Tracker.Dashboard(ctx, s.Email, locationFrom(ctx))
		},
		session.ViewScan: func(ctx context.Context, s *session.Session) (any, error) {
			p, err := h.App.Pipeline(ctx, s.Email)
			if err != nil {
				return nil, err
			}
			return ScanView{Busy: p.Busy(), Allergens: p.Allergens(), Last: p.Last()}, nil
		},
		session.ViewPlanner: func(ctx context.Context, s *session.Session) (any, error) {
			return h.Tracker.Planner(ctx, s.Email, time.Now().In(locationFrom(ctx)))
		},
		session.ViewAllergens: func(ctx context.Context, s *session.Session) (any, error) {
			list, err := h.Tracker.Allergens(ctx, s.Email, "")
			if err != nil {
				return nil, err
			}
			return AllergenView{Allergens: list, Common: meal.CommonAllergens}, nil
		},
		session.ViewChat: func(ctx context.Context, s *session.Session) (any, error) {
			return gin.H{"greeting": ChatGreeting}, nil
		},
		session.ViewProfile: func(ctx context.Context, s *session.Session) (any, error) {
			return h.Tracker.Profile(ctx, s.Email)
		},
		session.ViewSettings: func(ctx context.Context, s *session.Session) (any, error) {
			return gin.H{"email": s.Email, "expiresAt": s.ExpiresAt}, nil
		},
	}
}
