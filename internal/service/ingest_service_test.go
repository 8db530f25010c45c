package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
)

const punjabTemplates = `# Punjab Meal Templates

## **Palak Paneer**
- Meal Type: lunch
- Diet Type: vegetarian
- GI: Low
- Protein: 18g
- Carbs: 12g
- Fats: 22g
- Fiber: 4g
- Calories: 318
- Ingredients: paneer, spinach, cream
- Prep Time: 30 mins
- Budget: 60-80

## Dal Makhani
- Meal Type: dinner
- Diet: vegetarian
- Glycemic Index: medium
- Protein: 14g
- Carbs: 35g
- Fats: 15g
- Calories: 331

## Mystery Dish
- Meal Type: snack
- Protein: 5g
`

func TestParseTemplateFile(t *testing.T) {
	docs, skipped := ParseTemplateFile(punjabTemplates, "Punjab")

	require.Len(t, docs, 2)
	assert.Equal(t, 1, skipped, "sections without GI are skipped")

	palak := docs[0]
	assert.Equal(t, "Palak Paneer", palak.Metadata.MealName, "stars are stripped")
	assert.Equal(t, "Punjab", palak.Metadata.State)
	assert.Equal(t, "lunch", palak.Metadata.MealType)
	assert.Equal(t, "vegetarian", palak.Metadata.DietType)
	assert.Equal(t, "Low", palak.Metadata.GI)
	assert.Equal(t, 18.0, palak.Metadata.Protein)
	assert.Equal(t, 12.0, palak.Metadata.Carbs)
	assert.Equal(t, 22.0, palak.Metadata.Fats)
	assert.Equal(t, 4.0, palak.Metadata.Fiber)
	assert.Equal(t, 318.0, palak.Metadata.Calories)
	assert.Equal(t, "paneer, spinach, cream", palak.Metadata.Ingredients)
	assert.Equal(t, "30 mins", palak.Metadata.PrepTime)
	assert.Equal(t, 60.0, palak.Metadata.BudgetMin)
	assert.Equal(t, 80.0, palak.Metadata.BudgetMax)
	assert.Contains(t, palak.Content, "Palak Paneer")

	dal := docs[1]
	assert.Equal(t, "Medium", dal.Metadata.GI, "moderate normalizes to Medium")
	assert.Equal(t, "vegetarian", dal.Metadata.DietType, "Diet is an alias for Diet Type")
}

func TestStateFromFilename(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"punjab.md", "Punjab"},
		{"tamil_nadu.md", "Tamil Nadu"},
		{"tamil-nadu.txt", "Tamil Nadu"},
		{"all_states.md", model.AllStates},
		{"ALL_STATES.md", model.AllStates},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stateFromFilename(tt.file), tt.file)
	}
}

func TestIngestDirEndToEnd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "punjab.md"), []byte(punjabTemplates), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o644))

	index := &fakeIndex{}
	svc := NewIngestService(NewEmbedder(&fakeEmbedClient{}, EmbedderConfig{}), index, nil)

	stats, err := svc.IngestDir(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files, "non-template files are ignored")
	assert.Equal(t, 2, stats.Meals)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Upserted)

	index.mu.Lock()
	defer index.mu.Unlock()
	require.Len(t, index.upserted, 2)
	assert.NotEmpty(t, index.upserted[0].ID)
	assert.Len(t, index.upserted[0].Vector, 3)
}

func TestIngestReusesStableIDs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "punjab.md"), []byte(punjabTemplates), 0o644))

	index := &fakeIndex{}
	svc := NewIngestService(NewEmbedder(&fakeEmbedClient{}, EmbedderConfig{}), index, nil)

	_, err := svc.IngestDir(context.Background(), dir)
	require.NoError(t, err)
	_, err = svc.IngestDir(context.Background(), dir)
	require.NoError(t, err)

	index.mu.Lock()
	defer index.mu.Unlock()
	require.Len(t, index.upserted, 4)
	assert.Equal(t, index.upserted[0].ID, index.upserted[2].ID, "re-ingestion keeps ids stable")
}

func TestIngestMissingDir(t *testing.T) {
	svc := NewIngestService(NewEmbedder(&fakeEmbedClient{}, EmbedderConfig{}), &fakeIndex{}, nil)

	_, err := svc.IngestDir(context.Background(), "/does/not/exist")

	assert.Error(t, err)
}
