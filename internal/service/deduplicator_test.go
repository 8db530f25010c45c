package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
)

func scored(name, state string, score float64) model.ScoredDoc {
	return model.ScoredDoc{
		Document: model.Document{
			ID:       name + "/" + state,
			Metadata: model.Metadata{MealName: name, State: state},
		},
		SemanticScore: score,
	}
}

func TestDedupSuppressesAllStatesWhenSpecificExists(t *testing.T) {
	d := NewDeduplicator()
	docs := []model.ScoredDoc{
		scored("Palak Paneer", "All States", 0.81),
		scored("Palak Paneer", "Punjab", 0.76),
	}

	out := d.Apply(docs)

	assert.Len(t, out, 1)
	assert.Equal(t, "Punjab", out[0].Metadata.State)

	stats := d.Stats()
	assert.Equal(t, int64(1), stats.AllStatesDropped)
}

func TestDedupKeepsBestPerState(t *testing.T) {
	d := NewDeduplicator()
	docs := []model.ScoredDoc{
		scored("Dal Tadka", "Punjab", 0.6),
		scored("Dal Tadka", "Punjab", 0.9),
		scored("Dal Tadka", "Gujarat", 0.7),
	}

	out := d.Apply(docs)

	assert.Len(t, out, 2)
	byState := map[string]float64{}
	for _, doc := range out {
		byState[doc.Metadata.State] = doc.SemanticScore
	}
	assert.Equal(t, 0.9, byState["Punjab"])
	assert.Equal(t, 0.7, byState["Gujarat"])
}

func TestDedupKeepsSingleAllStatesWhenNoSpecific(t *testing.T) {
	d := NewDeduplicator()
	docs := []model.ScoredDoc{
		scored("Masala Oats", "All States", 0.5),
		scored("Masala Oats", "All States", 0.8),
	}

	out := d.Apply(docs)

	assert.Len(t, out, 1)
	assert.Equal(t, 0.8, out[0].SemanticScore)
}

func TestDedupNameNormalization(t *testing.T) {
	d := NewDeduplicator()
	docs := []model.ScoredDoc{
		scored("palak paneer", "All States", 0.9),
		scored("Palak Paneer  ", "Punjab", 0.5),
	}

	out := d.Apply(docs)

	assert.Len(t, out, 1)
	assert.Equal(t, "Punjab", out[0].Metadata.State)
}

func TestDedupOutputNeverLargerThanInput(t *testing.T) {
	d := NewDeduplicator()
	docs := []model.ScoredDoc{
		scored("A", "Punjab", 0.1),
		scored("B", "Kerala", 0.2),
		scored("A", "Punjab", 0.3),
		scored("C", "All States", 0.4),
	}

	out := d.Apply(docs)

	assert.LessOrEqual(t, len(out), len(docs))
	// Distinct dishes all survive.
	names := map[string]bool{}
	for _, doc := range out {
		names[doc.Metadata.MealName] = true
	}
	assert.Len(t, names, 3)
}

func TestDedupSimpleModeKeepsFirstOccurrence(t *testing.T) {
	d := NewDeduplicator()
	docs := []model.ScoredDoc{
		scored("Idli", "All States", 0.3),
		scored("Idli", "Tamil Nadu", 0.9),
		scored("Idli", "All States", 0.8),
	}

	out := d.ApplySimple(docs)

	// No All-States rule: both keys survive, first occurrence wins.
	assert.Len(t, out, 2)
	assert.Equal(t, 0.3, out[0].SemanticScore)
	assert.Equal(t, "Tamil Nadu", out[1].Metadata.State)
}

func TestDedupStatsRate(t *testing.T) {
	d := NewDeduplicator()
	d.Apply([]model.ScoredDoc{
		scored("A", "Punjab", 0.5),
		scored("A", "Punjab", 0.6),
	})

	stats := d.Stats()
	assert.Equal(t, int64(2), stats.DocsIn)
	assert.Equal(t, int64(1), stats.DocsOut)
	assert.Equal(t, 0.5, stats.DuplicationRate)
}
