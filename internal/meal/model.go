package meal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidAnalysis is returned when an analysis fails numeric validation.
var ErrInvalidAnalysis = errors.New("invalid meal analysis")

// Entry is one logged meal as stored by the backend.
type Entry struct {
	ID          string    `json:"_id,omitempty"`
	Owner       string    `json:"email"`
	DishName    string    `json:"dishName"`
	Calories    float64   `json:"calories"`
	Protein     float64   `json:"protein"`
	Carbs       float64   `json:"carbs"`
	Fat         float64   `json:"fat"`
	Ingredients []string  `json:"ingredients"`
	ServingSize string    `json:"servingSize"`
	Healthiness int       `json:"healthiness"`
	Timestamp   time.Time `json:"timestamp"`
}

// Complete reports whether every field but the id is present.
func (e *Entry) Complete() bool {
	return e.Owner != "" && e.DishName != "" && len(e.Ingredients) > 0 &&
		e.ServingSize != "" && e.Healthiness != 0 && !e.Timestamp.IsZero()
}

// Image is a captured photo, whichever way it was captured.
type Image struct {
	Data     []byte
	MIMEType string
}

// Format returns the image subtype, e.g. "png" for "image/png".
func (i Image) Format() string {
	return strings.TrimPrefix(i.MIMEType, "image/")
}

// Analysis is the structured result of analyzing a food photo.
type Analysis struct {
	ImageHash   string   `json:"image_hash,omitempty" db:"image_hash"`
	DishName    string   `json:"dish_name" db:"dish_name"`
	Calories    float64  `json:"calories" db:"calories"`
	Protein     float64  `json:"protein" db:"protein"`
	Carbs       float64  `json:"carbs" db:"carbs"`
	Fat         float64  `json:"fat" db:"fat"`
	Ingredients []string `json:"ingredients" db:"-"`
	ServingSize string   `json:"serving_size" db:"serving_size"`
	Healthiness int      `json:"healthiness" db:"healthiness"`
}

// UnmarshalJSON implements the json.Unmarshaler interface for Analysis.
// Models occasionally quote numbers, so numeric fields accept both forms.
func (a *Analysis) UnmarshalJSON(data []byte) error {
	type Alias Analysis
	aux := &struct {
		Calories    json.Number `json:"calories"`
		Protein     json.Number `json:"protein"`
		Carbs       json.Number `json:"carbs"`
		Fat         json.Number `json:"fat"`
		Healthiness json.Number `json:"healthiness"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if a.Calories, err = number(aux.Calories, true); err != nil {
		return fmt.Errorf("calories: %w", err)
	}
	if a.Protein, err = number(aux.Protein, false); err != nil {
		return fmt.Errorf("protein: %w", err)
	}
	if a.Carbs, err = number(aux.Carbs, false); err != nil {
		return fmt.Errorf("carbs: %w", err)
	}
	if a.Fat, err = number(aux.Fat, false); err != nil {
		return fmt.Errorf("fat: %w", err)
	}
	score, err := number(aux.Healthiness, true)
	if err != nil {
		return fmt.Errorf("healthiness: %w", err)
	}
	if score != math.Trunc(score) {
		return fmt.Errorf("healthiness: %v is not a whole number", score)
	}
	a.Healthiness = int(score)
	a.DishName = strings.TrimSpace(a.DishName)
	return nil
}

func number(n json.Number, required bool) (float64, error) {
	s := strings.Trim(strings.TrimSpace(n.String()), `"`)
	if s == "" {
		if required {
			return 0, errors.New("missing")
		}
		return 0, nil
	}
	return json.Number(s).Float64()
}

// Validate rejects analyses that cannot become a meal log entry.
func (a *Analysis) Validate() error {
	switch {
	case a.DishName == "":
		return fmt.Errorf("%w: dish name missing", ErrInvalidAnalysis)
	case a.Calories < 0 || a.Protein < 0 || a.Carbs < 0 || a.Fat < 0:
		return fmt.Errorf("%w: negative nutrition values", ErrInvalidAnalysis)
	case a.Healthiness < 1 || a.Healthiness > 10:
		return fmt.Errorf("%w: healthiness %d out of range", ErrInvalidAnalysis, a.Healthiness)
	case len(a.Ingredients) == 0:
		return fmt.Errorf("%w: no ingredients", ErrInvalidAnalysis)
	}
	return nil
}

// Entry builds the meal log entry for owner captured at ts.
func (a *Analysis) Entry(owner string, ts time.Time) *Entry {
	ingredients := make([]string, len(a.Ingredients))
	copy(ingredients, a.Ingredients)
	return &Entry{
		Owner:       owner,
		DishName:    a.DishName,
		Calories:    a.Calories,
		Protein:     a.Protein,
		Carbs:       a.Carbs,
		Fat:         a.Fat,
		Ingredients: ingredients,
		ServingSize: a.ServingSize,
		Healthiness: a.Healthiness,
		Timestamp:   ts,
	}
}

// Profile holds the user details the profile view edits.
type Profile struct {
	ID                 string   `json:"_id,omitempty"`
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	Phone              string   `json:"phone"`
	Location           string   `json:"location"`
	Height             string   `json:"height"`
	Weight             string   `json:"weight"`
	Goals              []string `json:"goals"`
	DietaryPreferences []string `json:"dietaryPreferences"`
}

// MissingFields lists the required profile fields that are blank.
func (p *Profile) MissingFields() []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"name", p.Name},
		{"phone", p.Phone},
		{"location", p.Location},
		{"height", p.Height},
		{"weight", p.Weight},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// PlanDateLayout is the key format of meal plans.
const PlanDateLayout = "2006-01-02"

// Plan is the planned breakfast, lunch and dinner for one date.
type Plan struct {
	ID        string `json:"_id,omitempty"`
	Owner     string `json:"email"`
	Date      string `json:"date"`
	Breakfast string `json:"breakfast"`
	Lunch     string `json:"lunch"`
	Dinner    string `json:"dinner"`
}

// WeeklyPoint is one day of server-aggregated totals.
type WeeklyPoint struct {
	Day      string  `json:"day"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}
