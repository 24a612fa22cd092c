package meal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisUnmarshal(t *testing.T) {
	raw := `{"dish_name":" Grilled Chicken Salad ","calories":350,"protein":"32.5","carbs":12,"fat":18,
		"ingredients":["chicken","lettuce","peanut dressing"],"serving_size":"1 bowl (250g)","healthiness":8}`

	var a Analysis
	require.NoError(t, json.Unmarshal([]byte(raw), &a))

	assert.Equal(t, "Grilled Chicken Salad", a.DishName)
	assert.Equal(t, float64(350), a.Calories)
	assert.Equal(t, 32.5, a.Protein)
	assert.Equal(t, []string{"chicken", "lettuce", "peanut dressing"}, a.Ingredients)
	assert.Equal(t, 8, a.Healthiness)
	assert.NoError(t, a.Validate())
}

func TestAnalysisUnmarshal_NonNumeric(t *testing.T) {
	var a Analysis
	err := json.Unmarshal([]byte(`{"dish_name":"Soup","calories":"about 200","healthiness":5}`), &a)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"dish_name":"Soup","healthiness":5}`), &a)
	assert.Error(t, err, "calories are required")
}

func TestAnalysisValidate(t *testing.T) {
	valid := Analysis{DishName: "Toast", Calories: 120, Ingredients: []string{"bread"}, ServingSize: "1 slice", Healthiness: 5}
	assert.NoError(t, valid.Validate())

	negative := valid
	negative.Fat = -1
	assert.True(t, errors.Is(negative.Validate(), ErrInvalidAnalysis))

	score := valid
	score.Healthiness = 11
	assert.True(t, errors.Is(score.Validate(), ErrInvalidAnalysis))

	unnamed := valid
	unnamed.DishName = ""
	assert.True(t, errors.Is(unnamed.Validate(), ErrInvalidAnalysis))
}

func TestAnalysisEntry(t *testing.T) {
	ts := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	a := Analysis{DishName: "Toast", Calories: 120, Ingredients: []string{"bread"}, ServingSize: "1 slice", Healthiness: 5}

	e := a.Entry("alex@example.com", ts)

	assert.Empty(t, e.ID)
	assert.True(t, e.Complete())
	assert.Equal(t, ts, e.Timestamp)

	// entries do not share the analysis' slice
	e.Ingredients[0] = "butter"
	assert.Equal(t, "bread", a.Ingredients[0])
}

func TestProfileMissingFields(t *testing.T) {
	p := Profile{Name: "Alex", Phone: "123", Height: "180"}
	assert.Equal(t, []string{"location", "weight"}, p.MissingFields())
}
