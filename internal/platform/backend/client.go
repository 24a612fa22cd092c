// Package backend is the client for the NutriTrack REST backend that stores
// profiles, allergens, meal logs and meal plans.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"nutritrack/internal/meal"
)

// ErrProfileNotFound is returned when the user has not created a profile yet.
var ErrProfileNotFound = errors.New("profile not found")

const profileNotFoundMessage = "Profile not found."

// StatusError is returned for any non-2xx reply.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: received status code %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the backend over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

func byEmail(email string) url.Values {
	return url.Values{"email": {email}}
}

// HasDetails reports whether the user has completed their profile.
func (c *Client) HasDetails(ctx context.Context, email string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/hasdetails", byEmail(email), nil, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// GetProfile fetches the user's profile or ErrProfileNotFound.
func (c *Client) GetProfile(ctx context.Context, email string) (*meal.Profile, error) {
	var out struct {
		meal.Profile
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodGet, "/api/profile", byEmail(email), nil, &out)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	if out.Message == profileNotFoundMessage {
		return nil, ErrProfileNotFound
	}
	return &out.Profile, nil
}

// SaveProfile creates or replaces the profile and returns the stored copy.
func (c *Client) SaveProfile(ctx context.Context, p *meal.Profile) (*meal.Profile, error) {
	var out meal.Profile
	if err := c.do(ctx, http.MethodPost, "/api/profile", nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAllergens returns the user's allergens in the order they were added.
func (c *Client) ListAllergens(ctx context.Context, email string) ([]meal.Allergen, error) {
	var out []meal.Allergen
	if err := c.do(ctx, http.MethodGet, "/api/allergens", byEmail(email), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAllergen stores a new allergen and returns it with its id.
func (c *Client) CreateAllergen(ctx context.Context, a *meal.Allergen) (*meal.Allergen, error) {
	in := struct {
		Name     string        `json:"name"`
		Severity meal.Severity `json:"severity"`
		Notes    string        `json:"notes"`
		Email    string        `json:"email"`
	}{a.Name, a.Severity, a.Notes, a.Owner}

	var out meal.Allergen
	if err := c.do(ctx, http.MethodPost, "/api/allergens", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAllergen removes an allergen by id.
func (c *Client) DeleteAllergen(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/allergens/"+url.PathEscape(id), nil, nil, nil)
}

// ListMealLogs returns every meal the user has logged.
func (c *Client) ListMealLogs(ctx context.Context, email string) ([]meal.Entry, error) {
	var out []meal.Entry
	if err := c.do(ctx, http.MethodGet, "/api/foodlog", byEmail(email), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMealLog persists a meal log entry. The returned entry carries the id
// assigned by the backend.
func (c *Client) CreateMealLog(ctx context.Context, e *meal.Entry) (*meal.Entry, error) {
	if !e.Complete() {
		return nil, errors.New("meal log entry is incomplete")
	}
	var out meal.Entry
	if err := c.do(ctx, http.MethodPost, "/api/foodLog", nil, e, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("backend did not assign an id to the meal log entry")
	}
	return &out, nil
}

// WeeklyCalories returns the backend's per-day totals for the last week.
func (c *Client) WeeklyCalories(ctx context.Context, email string) ([]meal.WeeklyPoint, error) {
	var out []meal.WeeklyPoint
	if err := c.do(ctx, http.MethodGet, "/api/weeklycalo", byEmail(email), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMealPlans returns the user's plans.
func (c *Client) ListMealPlans(ctx context.Context, email string) ([]meal.Plan, error) {
	var out []meal.Plan
	if err := c.do(ctx, http.MethodGet, "/api/mealPlanner", byEmail(email), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveMealPlan stores the plan for its date.
func (c *Client) SaveMealPlan(ctx context.Context, p *meal.Plan) (*meal.Plan, error) {
	var out meal.Plan
	if err := c.do(ctx, http.MethodPost, "/api/mealPlanner", nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
