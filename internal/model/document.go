package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Meal type values recognized in template metadata.
const (
	MealTypeBreakfast = "breakfast"
	MealTypeLunch     = "lunch"
	MealTypeDinner    = "dinner"
	MealTypeSnack     = "snack"
)

// Diet type values recognized in template metadata and user profiles.
const (
	DietVegetarian    = "vegetarian"
	DietNonVegetarian = "non-vegetarian"
	DietVegan         = "vegan"
	DietJain          = "jain"
	DietEggetarian    = "eggetarian"
)

// AllStates marks a template that applies to every region; a state-specific
// variant of the same dish always supersedes it.
const AllStates = "All States"

// Metadata is the typed view of a template document's metadata. Keys the
// engine does not recognize are preserved in Extra so they survive the
// round-trip through the index.
type Metadata struct {
	MealName       string                 `json:"mealName"`
	State          string                 `json:"state"`
	MealType       string                 `json:"mealType"`
	DietType       string                 `json:"dietType"`
	GI             string                 `json:"gi"`
	Ingredients    string                 `json:"ingredients"`
	Protein        float64                `json:"protein"`
	Carbs          float64                `json:"carbs"`
	Fats           float64                `json:"fats"`
	Fiber          float64                `json:"fiber"`
	Calories       float64                `json:"calories"`
	PrepTime       string                 `json:"prepTime"`
	BudgetFriendly bool                   `json:"budgetFriendly"`
	BudgetMin      float64                `json:"budgetMin"`
	BudgetMax      float64                `json:"budgetMax"`
	Category       string                 `json:"category"`
	Extra          map[string]interface{} `json:"-"`
}

// Document is a meal template retrieved from the vector index. Content is the
// canonical text; Metadata is the deserialized scalar view.
type Document struct {
	ID       string
	Content  string
	Metadata Metadata
}

// ScoredDoc is a Document with its similarity score and, after re-ranking,
// the combined score and per-feature contributions.
type ScoredDoc struct {
	Document
	SemanticScore float64
	RerankScore   float64
	FeatureScores map[string]float64
}

// Flatten converts Metadata to the flat map the index stores. Sequence values
// are joined with ", "; nested structures are serialized to JSON strings; the
// index only stores scalars.
func (m Metadata) Flatten() map[string]interface{} {
	out := map[string]interface{}{
		"mealName":       m.MealName,
		"state":          m.State,
		"mealType":       m.MealType,
		"dietType":       m.DietType,
		"gi":             m.GI,
		"ingredients":    m.Ingredients,
		"protein":        m.Protein,
		"carbs":          m.Carbs,
		"fats":           m.Fats,
		"fiber":          m.Fiber,
		"calories":       m.Calories,
		"prepTime":       m.PrepTime,
		"budgetFriendly": m.BudgetFriendly,
		"budgetMin":      m.BudgetMin,
		"budgetMax":      m.BudgetMax,
		"category":       m.Category,
	}
	for k, v := range m.Extra {
		out[k] = flattenValue(v)
	}
	return out
}

func flattenValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string, bool, float64, float32, int, int64:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// MetadataFromMap rebuilds the typed view from the flat map returned by the
// index. Unrecognized keys land in Extra.
func MetadataFromMap(raw map[string]interface{}) Metadata {
	m := Metadata{Extra: make(map[string]interface{})}
	for k, v := range raw {
		switch k {
		case "mealName":
			m.MealName = asString(v)
		case "state":
			m.State = asString(v)
		case "mealType":
			m.MealType = asString(v)
		case "dietType":
			m.DietType = asString(v)
		case "gi":
			m.GI = asString(v)
		case "ingredients":
			m.Ingredients = asString(v)
		case "protein":
			m.Protein = asFloat(v)
		case "carbs":
			m.Carbs = asFloat(v)
		case "fats":
			m.Fats = asFloat(v)
		case "fiber":
			m.Fiber = asFloat(v)
		case "calories":
			m.Calories = asFloat(v)
		case "prepTime":
			m.PrepTime = asString(v)
		case "budgetFriendly":
			m.BudgetFriendly = asBool(v)
		case "budgetMin":
			m.BudgetMin = asFloat(v)
		case "budgetMax":
			m.BudgetMax = asFloat(v)
		case "category":
			m.Category = asString(v)
		default:
			m.Extra[k] = v
		}
	}
	return m
}

func asString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func asFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		var f float64
		fmt.Sscanf(val, "%f", &f)
		return f
	default:
		return 0
	}
}

func asBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "true")
	default:
		return false
	}
}
