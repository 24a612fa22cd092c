package meal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFood is returned when the AI service says the photo shows no food.
	ErrNotFood = errors.New("image does not contain food")
	// ErrMalformedAnalysis is returned when the AI reply is not the expected JSON.
	ErrMalformedAnalysis = errors.New("malformed analysis response")
)

// AnalysisPrompt is the fixed instruction sent with every food photo.
const AnalysisPrompt = `Analyze the food in this image and return a single, clean JSON object with the following keys and data types: ` +
	`'dish_name' (string), 'calories' (number, estimated kcal for one serving), 'protein' (number, grams), 'carbs' (number, grams), ` +
	`'fat' (number, grams), 'ingredients' (array of strings), 'serving_size' (string, the recommended serving size according to USDA ` +
	`dietary guidelines) and 'healthiness' (integer from 1 to 10, 10 being the healthiest). ` +
	`If the image does not contain food, respond only with {"error": "Not a food image"}. ` +
	`The JSON response should be clean and not contain any markdown formatting (e.g., ` + "```json" + `).`

// ParseAnalysis extracts an Analysis from a model reply. The reply may be
// wrapped in markdown or prose; the outermost JSON object is used.
func ParseAnalysis(text string) (*Analysis, error) {
	startIndex := strings.Index(text, "{")
	endIndex := strings.LastIndex(text, "}")
	if startIndex == -1 || endIndex == -1 || startIndex > endIndex {
		return nil, fmt.Errorf("%w: could not find JSON object in response: %s", ErrMalformedAnalysis, text)
	}
	cleanJSON := text[startIndex : endIndex+1]

	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(cleanJSON), &probe); err == nil && probe.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFood, probe.Error)
	}

	var a Analysis
	if err := json.Unmarshal([]byte(cleanJSON), &a); err != nil {
		return nil, fmt.Errorf("%w: %v. Raw response: %s", ErrMalformedAnalysis, err, cleanJSON)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}
