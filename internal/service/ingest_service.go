package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	apperrors "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/errors"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/model"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/logger"
	"go.uber.org/zap"
)

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Files    int `json:"files"`
	Meals    int `json:"meals"`
	Skipped  int `json:"skipped"`
	Upserted int `json:"upserted"`
}

// IngestService parses human-readable meal template files and loads them
// into the vector index. Template files are one per region: the file name
// (minus extension, underscores as spaces) is the state, "all_states" maps
// to the universal bucket. Each "## Meal Name" section carries "- Field:
// value" metadata lines.
type IngestService struct {
	embedder *Embedder
	index    VectorIndex
	dedup    *Deduplicator
}

func NewIngestService(embedder *Embedder, index VectorIndex, dedup *Deduplicator) *IngestService {
	if dedup == nil {
		dedup = NewDeduplicator()
	}
	return &IngestService{embedder: embedder, index: index, dedup: dedup}
}

// IngestDir parses every .md and .txt file under dir and upserts the parsed
// templates. Returns per-run statistics.
func (s *IngestService) IngestDir(ctx context.Context, dir string) (IngestStats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return IngestStats{}, apperrors.Wrap(err, apperrors.ErrInvalidParam, "failed to read template directory")
	}

	var stats IngestStats
	var docs []model.Document
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return stats, apperrors.Wrap(err, apperrors.ErrInvalidParam,
				fmt.Sprintf("failed to read template file %s", name))
		}
		parsed, skipped := ParseTemplateFile(string(data), stateFromFilename(name))
		docs = append(docs, parsed...)
		stats.Skipped += skipped
		stats.Files++
	}
	stats.Meals = len(docs)

	// Simple dedup on (mealName, state): repeated sections within or across
	// files keep the first occurrence.
	scored := make([]model.ScoredDoc, len(docs))
	for i, d := range docs {
		scored[i] = model.ScoredDoc{Document: d}
	}
	scored = s.dedup.ApplySimple(scored)

	if len(scored) == 0 {
		return stats, nil
	}

	texts := make([]string, len(scored))
	for i, d := range scored {
		texts[i] = d.Content
	}
	vecs, err := s.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return stats, err
	}

	records := make([]IndexRecord, len(scored))
	for i, d := range scored {
		records[i] = IndexRecord{
			ID:       templateID(d.Metadata),
			Vector:   vecs[i],
			Content:  d.Content,
			Metadata: d.Metadata,
		}
	}
	if err := s.index.Upsert(ctx, records); err != nil {
		return stats, err
	}
	stats.Upserted = len(records)

	logger.Info("template ingestion complete",
		zap.Int("files", stats.Files),
		zap.Int("meals", stats.Meals),
		zap.Int("skipped", stats.Skipped),
		zap.Int("upserted", stats.Upserted),
	)
	return stats, nil
}

// templateID is stable across re-ingestion so upserts replace rather than
// duplicate.
func templateID(m model.Metadata) string {
	name := strings.ToLower(strings.TrimSpace(m.MealName))
	state := strings.ToLower(strings.TrimSpace(m.State))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name+"|"+state)).String()
}

func stateFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	if strings.EqualFold(base, "all states") {
		return model.AllStates
	}
	return titleCase(base)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var (
	sectionRe = regexp.MustCompile(`(?m)^##\s+(.+)$`)
	fieldRe   = regexp.MustCompile(`(?m)^-\s*([A-Za-z ]+):\s*(.+)$`)
	starRe    = regexp.MustCompile(`\*+`)
)

// ParseTemplateFile splits a region file into meal documents. Sections
// without a name or a GI field are skipped and counted. Star annotations are
// stripped everywhere.
func ParseTemplateFile(content, state string) ([]model.Document, int) {
	content = starRe.ReplaceAllString(content, "")

	headers := sectionRe.FindAllStringSubmatchIndex(content, -1)
	var docs []model.Document
	skipped := 0

	for i, h := range headers {
		name := strings.TrimSpace(content[h[2]:h[3]])
		bodyStart := h[1]
		bodyEnd := len(content)
		if i+1 < len(headers) {
			bodyEnd = headers[i+1][0]
		}
		body := strings.TrimSpace(content[bodyStart:bodyEnd])

		meta, ok := parseMealFields(body)
		if name == "" || !ok {
			skipped++
			continue
		}
		meta.MealName = name
		meta.State = state

		docs = append(docs, model.Document{
			Content:  name + "\n" + body,
			Metadata: meta,
		})
	}
	return docs, skipped
}

// parseMealFields reads "- Field: value" lines. GI is required; everything
// else defaults to zero values.
func parseMealFields(body string) (model.Metadata, bool) {
	meta := model.Metadata{}
	hasGI := false

	for _, m := range fieldRe.FindAllStringSubmatch(body, -1) {
		key := strings.ToLower(strings.TrimSpace(m[1]))
		value := strings.TrimSpace(m[2])
		switch key {
		case "gi", "glycemic index":
			meta.GI = normalizeGI(value)
			hasGI = meta.GI != ""
		case "meal type":
			meta.MealType = strings.ToLower(value)
		case "diet type", "diet":
			meta.DietType = strings.ToLower(value)
		case "protein":
			meta.Protein = parseGrams(value)
		case "carbs", "carbohydrates":
			meta.Carbs = parseGrams(value)
		case "fats", "fat":
			meta.Fats = parseGrams(value)
		case "fiber", "fibre":
			meta.Fiber = parseGrams(value)
		case "calories":
			meta.Calories = parseGrams(value)
		case "ingredients", "main ingredients":
			meta.Ingredients = value
		case "prep time", "preparation time":
			meta.PrepTime = value
		case "budget":
			meta.BudgetMin, meta.BudgetMax = parseBudgetRange(value)
			meta.BudgetFriendly = meta.BudgetMax > 0 && meta.BudgetMax <= 100
		case "category":
			meta.Category = value
		}
	}
	return meta, hasGI
}

func normalizeGI(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return "Low"
	case "medium", "moderate":
		return "Medium"
	case "high":
		return "High"
	default:
		return ""
	}
}

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

func parseGrams(value string) float64 {
	m := numberRe.FindString(value)
	if m == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(m, 64)
	return f
}

// parseBudgetRange reads "40-60" or a single number.
func parseBudgetRange(value string) (float64, float64) {
	nums := numberRe.FindAllString(value, 2)
	switch len(nums) {
	case 0:
		return 0, 0
	case 1:
		f, _ := strconv.ParseFloat(nums[0], 64)
		return f, f
	default:
		lo, _ := strconv.ParseFloat(nums[0], 64)
		hi, _ := strconv.ParseFloat(nums[1], 64)
		return lo, hi
	}
}
