package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutritrack/internal/meal"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestHasDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/hasdetails", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a+b@example.com", r.URL.Query().Get("email"))
		writeJSON(w, http.StatusOK, map[string]bool{"exists": true})
	})
	c := newTestClient(t, mux)

	exists, err := c.HasDetails(context.Background(), "a+b@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") == "new@example.com" {
			writeJSON(w, http.StatusOK, map[string]string{"message": "Profile not found."})
			return
		}
		writeJSON(w, http.StatusOK, meal.Profile{ID: "p1", Name: "Alex", Email: "alex@example.com", Goals: []string{"lose weight"}})
	})
	c := newTestClient(t, mux)

	p, err := c.GetProfile(context.Background(), "alex@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alex", p.Name)
	assert.Equal(t, []string{"lose weight"}, p.Goals)

	_, err = c.GetProfile(context.Background(), "new@example.com")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestAllergens(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/allergens", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, []meal.Allergen{{ID: "1", Name: "Peanuts", Severity: meal.SeverityHigh}})
		case http.MethodPost:
			var in map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "alex@example.com", in["email"])
			assert.Equal(t, "Medium", in["severity"])
			writeJSON(w, http.StatusCreated, meal.Allergen{ID: "2", Owner: in["email"], Name: in["name"], Severity: meal.Severity(in["severity"])})
		}
	})
	mux.HandleFunc("/api/allergens/2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux)

	list, err := c.ListAllergens(context.Background(), "alex@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Peanuts", list[0].Name)

	created, err := c.CreateAllergen(context.Background(), &meal.Allergen{Owner: "alex@example.com", Name: "Lactose", Severity: meal.SeverityMedium})
	require.NoError(t, err)
	assert.Equal(t, "2", created.ID)

	assert.NoError(t, c.DeleteAllergen(context.Background(), "2"))
}

func TestCreateMealLog(t *testing.T) {
	ts := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/foodLog", func(w http.ResponseWriter, r *http.Request) {
		var in meal.Entry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Empty(t, in.ID)
		in.ID = "m1"
		writeJSON(w, http.StatusCreated, in)
	})
	c := newTestClient(t, mux)

	e := &meal.Entry{Owner: "alex@example.com", DishName: "Toast", Calories: 120, Ingredients: []string{"bread"}, ServingSize: "1 slice", Healthiness: 5, Timestamp: ts}
	saved, err := c.CreateMealLog(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, "m1", saved.ID)
	assert.True(t, ts.Equal(saved.Timestamp))
}

func TestCreateMealLog_Incomplete(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", time.Second)

	_, err := c.CreateMealLog(context.Background(), &meal.Entry{DishName: "Toast"})

	assert.Error(t, err)
}

func TestStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/foodlog", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c := newTestClient(t, mux)

	_, err := c.ListMealLogs(context.Background(), "alex@example.com")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Contains(t, se.Body, "boom")
}

func TestWeeklyAndPlans(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/weeklycalo", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []meal.WeeklyPoint{{Day: "Mon", Calories: 1800}})
	})
	mux.HandleFunc("/api/mealPlanner", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var p meal.Plan
			require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			p.ID = "plan1"
			writeJSON(w, http.StatusOK, p)
			return
		}
		writeJSON(w, http.StatusOK, []meal.Plan{{Date: "2024-03-10", Breakfast: "Oats"}})
	})
	c := newTestClient(t, mux)

	week, err := c.WeeklyCalories(context.Background(), "alex@example.com")
	require.NoError(t, err)
	assert.Equal(t, float64(1800), week[0].Calories)

	plans, err := c.ListMealPlans(context.Background(), "alex@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Oats", plans[0].Breakfast)

	saved, err := c.SaveMealPlan(context.Background(), &meal.Plan{Owner: "alex@example.com", Date: "2024-03-11", Dinner: "Soup"})
	require.NoError(t, err)
	assert.Equal(t, "plan1", saved.ID)
}
