package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
)

// Prompt budget. Token accounting is approximate: 1 token ≈ 4 characters.
const (
	maxPromptDocs    = 20
	promptTokenLimit = 50000
	charsPerToken    = 4
)

// ketoGrainBan lists ingredient tokens never allowed in a keto plan.
var ketoGrainBan = []string{"rice", "roti", "wheat", "bread", "potato", "corn"}

// veganBan lists animal-product tokens for vegan profiles.
var veganBan = []string{
	"milk", "paneer", "curd", "yogurt", "ghee", "butter", "cheese", "cream",
	"egg", "chicken", "mutton", "fish", "prawn", "meat", "honey",
}

// jainBan lists root vegetables and alliums excluded from jain diets.
var jainBan = []string{
	"onion", "garlic", "potato", "carrot", "radish", "beetroot", "ginger", "turnip",
}

// nonVegBan lists meat tokens excluded from vegetarian and eggetarian plans.
var nonVegBan = []string{"chicken", "mutton", "fish", "prawn", "meat", "beef", "pork"}

// PromptBuilder assembles the single generation prompt. The forbidden list
// goes first after the role line; long-context models weigh late instructions
// more than early ones, so negatives must not trail the excerpts.
type PromptBuilder struct {
	maxDocs    int
	tokenLimit int
}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{maxDocs: maxPromptDocs, tokenLimit: promptTokenLimit}
}

// ForbiddenItems derives the negative ingredient/dish list from the profile
// and request. Order is deterministic: diet class bans, keto bans, then
// allergies and explicit restrictions.
func ForbiddenItems(user *model.User, req *model.PlanRequest) []string {
	var items []string
	seen := make(map[string]bool)
	add := func(vals ...string) {
		for _, v := range vals {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			items = append(items, v)
		}
	}

	switch strings.ToLower(user.DietType) {
	case model.DietVegetarian:
		add(nonVegBan...)
		add("egg")
	case model.DietEggetarian:
		add(nonVegBan...)
	case model.DietVegan:
		add(veganBan...)
	case model.DietJain:
		add(nonVegBan...)
		add("egg")
		add(jainBan...)
	}

	if req.IsKeto {
		add(ketoGrainBan...)
	}

	add(user.Allergies...)
	add(req.Restrictions...)
	return items
}

// Build assembles the prompt from the profile, derived targets and the
// re-ranked template excerpts. Returns the prompt and how many excerpts made
// it in after the token budget was applied.
func (b *PromptBuilder) Build(user *model.User, req *model.PlanRequest, targets model.MacroTargets, docs []model.ScoredDoc) (string, int) {
	forbidden := ForbiddenItems(user, req)

	var sb strings.Builder

	sb.WriteString("You are an empathetic dietary assistant for women managing PCOS. ")
	sb.WriteString(fmt.Sprintf(
		"Create a meal plan as structured JSON only: exactly %d days, each with exactly %d meals.\n\n",
		req.Duration, targets.MealsPerDay))

	if len(forbidden) > 0 {
		sb.WriteString("STRICTLY FORBIDDEN dishes and ingredients. Never include any of these in any form:\n")
		for _, item := range forbidden {
			sb.WriteString("- " + item + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("HARD CONSTRAINTS:\n")
	sb.WriteString(fmt.Sprintf("- Diet type: %s\n", user.DietType))
	if req.IsKeto {
		sb.WriteString(fmt.Sprintf("- Ketogenic plan: net carbs per meal must stay at or below %.0f g\n",
			targets.KetoCarbAllowance))
	}
	sb.WriteString(fmt.Sprintf("- Per-meal targets: protein %.0f g (±%.1f g), carbs %.0f g (±%.1f g), fats %.0f g (±%.1f g)\n",
		targets.PerMealGrams.Protein, targets.PerMealTol.Protein,
		targets.PerMealGrams.Carbs, targets.PerMealTol.Carbs,
		targets.PerMealGrams.Fats, targets.PerMealTol.Fats))
	sb.WriteString(fmt.Sprintf("- Total daily calories: %.0f kcal\n", targets.DailyCalories))
	if req.Budget > 0 {
		sb.WriteString(fmt.Sprintf("- Budget: at most %.0f per day\n", req.Budget))
	}
	sb.WriteString("\n")

	constraintsLen := sb.Len()

	// Excerpts fill whatever budget remains after constraints and schema.
	// Truncation drops least-ranked docs, never constraints or the forbidden
	// block.
	var excerpts []string
	limit := b.maxDocs
	if limit > len(docs) {
		limit = len(docs)
	}
	for _, doc := range docs[:limit] {
		excerpts = append(excerpts, formatExcerpt(doc))
	}

	tail := b.buildTail(user, req)
	budgetChars := b.tokenLimit*charsPerToken - constraintsLen - len(tail)

	used := 0
	var excerptBlock strings.Builder
	excerptBlock.WriteString("REFERENCE MEAL TEMPLATES (authentic regional dishes, use as inspiration):\n")
	for _, ex := range excerpts {
		if excerptBlock.Len()+len(ex) > budgetChars {
			break
		}
		excerptBlock.WriteString(ex)
		used++
	}
	if used > 0 {
		sb.WriteString(excerptBlock.String())
		sb.WriteString("\n")
	}

	sb.WriteString(tail)
	return sb.String(), used
}

func formatExcerpt(doc model.ScoredDoc) string {
	m := doc.Metadata
	return fmt.Sprintf("- %s (%s, %s): protein %.0fg, carbs %.0fg, fats %.0fg, %.0f kcal, GI %s. %s\n",
		m.MealName, m.State, m.MealType,
		m.Protein, m.Carbs, m.Fats, m.Calories, m.GI,
		firstLine(doc.Content))
}

func firstLine(content string) string {
	line := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		line = content[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) > 120 {
		line = line[:120]
	}
	return line
}

func (b *PromptBuilder) buildTail(user *model.User, req *model.PlanRequest) string {
	var sb strings.Builder

	if len(user.Symptoms) > 0 || len(user.Goals) > 0 {
		sb.WriteString("GUIDANCE:\n")
		if len(user.Symptoms) > 0 {
			sb.WriteString("- Symptoms to address: " + strings.Join(user.Symptoms, ", ") + "\n")
		}
		if len(user.Goals) > 0 {
			sb.WriteString("- Goals: " + strings.Join(user.Goals, ", ") + "\n")
		}
		sb.WriteString("\n")
	}

	if len(req.Labs) > 0 {
		names := make([]string, 0, len(req.Labs))
		for name := range req.Labs {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("LAB VALUES:\n")
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("- %s: %.1f\n", name, req.Labs[name]))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`OUTPUT FORMAT: respond with JSON only, no prose, matching exactly:
{
  "days": [
    {
      "day": 1,
      "meals": [
        {
          "mealType": "breakfast",
          "name": "...",
          "ingredients": [{"item": "...", "quantity": "...", "unit": "..."}],
          "macros": {"protein": 0, "carbs": 0, "fats": 0},
          "calories": 0,
          "gi": "Low",
          "prepTime": "20 mins",
          "tip": "..."
        }
      ]
    }
  ]
}
`)
	return sb.String()
}
