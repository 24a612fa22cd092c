package tracker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutritrack/internal/logging"
	"nutritrack/internal/meal"
	"nutritrack/internal/platform/backend"
)

type mockBackend struct {
	hasDetails   bool
	profile      *meal.Profile
	profileErr   error
	savedProfile *meal.Profile
	allergens    []meal.Allergen
	created      []meal.Allergen
	deleted      []string
	logs         []meal.Entry
	logsErr      error
	weekly       []meal.WeeklyPoint
	plans        []meal.Plan
	savedPlan    *meal.Plan
}

func (m *mockBackend) HasDetails(ctx context.Context, email string) (bool, error) {
	return m.hasDetails, nil
}

func (m *mockBackend) GetProfile(ctx context.Context, email string) (*meal.Profile, error) {
	return m.profile, m.profileErr
}

func (m *mockBackend) SaveProfile(ctx context.Context, p *meal.Profile) (*meal.Profile, error) {
	m.savedProfile = p
	return p, nil
}

func (m *mockBackend) ListAllergens(ctx context.Context, email string) ([]meal.Allergen, error) {
	return m.allergens, nil
}

func (m *mockBackend) CreateAllergen(ctx context.Context, a *meal.Allergen) (*meal.Allergen, error) {
	out := *a
	out.ID = fmt.Sprintf("a%d", len(m.created)+1)
	m.created = append(m.created, out)
	return &out, nil
}

func (m *mockBackend) DeleteAllergen(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockBackend) ListMealLogs(ctx context.Context, email string) ([]meal.Entry, error) {
	return m.logs, m.logsErr
}

func (m *mockBackend) WeeklyCalories(ctx context.Context, email string) ([]meal.WeeklyPoint, error) {
	return m.weekly, nil
}

func (m *mockBackend) ListMealPlans(ctx context.Context, email string) ([]meal.Plan, error) {
	return m.plans, nil
}

func (m *mockBackend) SaveMealPlan(ctx context.Context, p *meal.Plan) (*meal.Plan, error) {
	m.savedPlan = p
	return p, nil
}

func newService(be *mockBackend, now time.Time) *Service {
	s := NewService(be, logging.Discard())
	s.now = func() time.Time { return now }
	return s
}

func TestDashboard(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, loc)
	be := &mockBackend{
		logs: []meal.Entry{
			{DishName: "Oats", Calories: 300, Protein: 10.4, Carbs: 50.2, Fat: 5.5, Timestamp: time.Date(2024, 3, 10, 7, 0, 0, 0, loc)},
			{DishName: "Salad", Calories: 350, Protein: 30.3, Carbs: 12.4, Fat: 18.1, Timestamp: time.Date(2024, 3, 10, 12, 0, 0, 0, loc)},
			{DishName: "Late snack", Calories: 200, Timestamp: time.Date(2024, 3, 9, 23, 59, 0, 0, loc)},
			{DishName: "Old", Calories: 900, Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, loc)},
		},
		allergens: []meal.Allergen{{Name: "Peanuts"}},
		weekly:    []meal.WeeklyPoint{{Day: "Sat", Calories: 1900, Protein: 80}, {Day: "Sun", Calories: 650}},
	}

	d, err := newService(be, now).Dashboard(context.Background(), "alex@example.com", loc)
	require.NoError(t, err)

	assert.Equal(t, "2024-03-10", d.Date)
	assert.Equal(t, meal.DailySummary{Calories: 650, Protein: 41, Carbs: 63, Fat: 24, Target: 2000}, d.Summary)
	assert.Len(t, d.Today, 2)
	require.Len(t, d.Recent, 3)
	assert.Equal(t, "Salad", d.Recent[0].DishName)
	assert.Equal(t, "Late snack", d.Recent[2].DishName)
	assert.Equal(t, []meal.DayCalories{{Day: "Sat", Calories: 1900}, {Day: "Sun", Calories: 650}}, d.Weekly)
	assert.Equal(t, "Peanuts", d.Allergens[0].Name)
}

func TestDashboard_Empty(t *testing.T) {
	d, err := newService(&mockBackend{}, time.Now()).Dashboard(context.Background(), "alex@example.com", time.UTC)
	require.NoError(t, err)

	assert.Equal(t, meal.DailySummary{Target: 2000}, d.Summary)
	assert.Empty(t, d.Today)
	assert.NotNil(t, d.Allergens)
}

func TestDashboard_FetchError(t *testing.T) {
	be := &mockBackend{logsErr: errors.New("backend down")}

	_, err := newService(be, time.Now()).Dashboard(context.Background(), "alex@example.com", time.UTC)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "meal logs")
}

func TestAllergens_Search(t *testing.T) {
	be := &mockBackend{allergens: []meal.Allergen{
		{Name: "Peanuts", Notes: "Avoid all tree nuts"},
		{Name: "Lactose", Notes: "Small amounts ok"},
		{Name: "Gluten"},
	}}
	s := newService(be, time.Now())

	all, err := s.Allergens(context.Background(), "a@b.c", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := s.Allergens(context.Background(), "a@b.c", "NUT")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Peanuts", got[0].Name)
}

func TestAddAllergen(t *testing.T) {
	be := &mockBackend{allergens: []meal.Allergen{{Name: "Peanuts"}}}
	s := newService(be, time.Now())

	_, err := s.AddAllergen(context.Background(), "a@b.c", "   ", "High", "")
	assert.ErrorIs(t, err, ErrEmptyAllergenName)

	_, err = s.AddAllergen(context.Background(), "a@b.c", "Celery", "extreme", "")
	assert.Error(t, err)
	assert.Empty(t, be.created)

	a, err := s.AddAllergen(context.Background(), "a@b.c", " Peanuts ", "", "again")
	require.NoError(t, err)
	assert.Equal(t, "Peanuts", a.Name)
	assert.Equal(t, meal.SeverityLow, a.Severity)
	assert.Equal(t, "a@b.c", a.Owner)
}

func TestQuickAdd(t *testing.T) {
	be := &mockBackend{allergens: []meal.Allergen{{Name: "peanuts"}}}
	s := newService(be, time.Now())

	added, err := s.QuickAdd(context.Background(), "a@b.c", "Peanuts", "sesame", "Sesame")
	require.NoError(t, err)

	require.Len(t, added, 1)
	assert.Equal(t, "Sesame", added[0].Name)
	assert.Len(t, be.created, 1)

	_, err = s.QuickAdd(context.Background(), "a@b.c", "Celery")
	assert.ErrorIs(t, err, ErrNotCommonAllergen)
}

func TestRemoveAllergen(t *testing.T) {
	be := &mockBackend{}
	s := newService(be, time.Now())

	require.NoError(t, s.RemoveAllergen(context.Background(), "a1"))
	assert.Equal(t, []string{"a1"}, be.deleted)
	assert.Error(t, s.RemoveAllergen(context.Background(), ""))
}

func TestProfile(t *testing.T) {
	be := &mockBackend{profileErr: backend.ErrProfileNotFound}
	s := newService(be, time.Now())

	v, err := s.Profile(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.True(t, v.Create)
	assert.Equal(t, "new@example.com", v.Profile.Email)

	be.profileErr = nil
	be.profile = &meal.Profile{Name: "Alex"}
	v, err = s.Profile(context.Background(), "alex@example.com")
	require.NoError(t, err)
	assert.False(t, v.Create)
	assert.Equal(t, "Alex", v.Profile.Name)
}

func TestSaveProfile(t *testing.T) {
	be := &mockBackend{}
	s := newService(be, time.Now())

	_, err := s.SaveProfile(context.Background(), "alex@example.com", meal.Profile{Name: "Alex"})
	assert.ErrorIs(t, err, ErrIncompleteProfile)
	assert.Nil(t, be.savedProfile)

	p := meal.Profile{
		Name: "Alex", Email: "spoofed@example.com", Phone: "555", Location: "Oslo", Height: "180", Weight: "75",
		Goals: []string{"lose weight", " "},
	}
	saved, err := s.SaveProfile(context.Background(), "alex@example.com", p)
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", saved.Email)
	assert.Equal(t, []string{"lose weight"}, saved.Goals)
	assert.Equal(t, []string{}, saved.DietaryPreferences)
}

func TestPlanner(t *testing.T) {
	be := &mockBackend{plans: []meal.Plan{
		{Date: "2024-03-12", Dinner: "Soup"},
		{Date: "2024-03-10", Breakfast: "Oats"},
	}}
	s := newService(be, time.Now())

	p, err := s.Planner(context.Background(), "a@b.c", time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-03-10", "2024-03-12"}, p.Dates)
	require.NotNil(t, p.Today)
	assert.Equal(t, "Oats", p.Today.Breakfast)
}

func TestSavePlan(t *testing.T) {
	be := &mockBackend{}
	s := newService(be, time.Now())

	_, err := s.SavePlan(context.Background(), "a@b.c", meal.Plan{Date: "10/03/2024", Lunch: "Wrap"})
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = s.SavePlan(context.Background(), "a@b.c", meal.Plan{Date: "2024-03-10", Lunch: "  "})
	assert.ErrorIs(t, err, ErrInvalidPlan)
	assert.Nil(t, be.savedPlan)

	saved, err := s.SavePlan(context.Background(), "a@b.c", meal.Plan{Date: "2024-03-10", Lunch: " Wrap "})
	require.NoError(t, err)
	assert.Equal(t, "Wrap", saved.Lunch)
	assert.Equal(t, "a@b.c", saved.Owner)
}
