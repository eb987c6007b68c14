package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/Entervio/entervio/internal/ai"
	"github.com/Entervio/entervio/internal/utils"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type jsonGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema) (string, error)
}

// Planner asks Gemini to turn a free-text query plus a profile summary into
// structured search variations. It implements ai.Reasoner.
type Planner struct {
	generator jsonGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

var variationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"keywords": {
			Type:        genai.TypeString,
			Description: "Main keywords for this variation (e.g. 'Développeur Python', 'Commercial').",
		},
		"location_raw": {
			Type:        genai.TypeString,
			Nullable:    genai.Ptr(true),
			Description: "The place name if mentioned, exactly as the user wrote it (e.g. 'Lyon', 'Sud').",
		},
		"location_type": {
			Type:        genai.TypeString,
			Enum:        []string{"region", "department", "commune", "unknown"},
			Description: "Administrative level of location_raw. 'unknown' when unsure.",
		},
		"experience_level": {
			Type:     genai.TypeString,
			Nullable: genai.Ptr(true),
			Enum:     []string{"none", "junior", "mid", "senior"},
		},
		"experience_requirement": {
			Type:     genai.TypeString,
			Nullable: genai.Ptr(true),
			Enum:     []string{"beginner_ok", "desired", "required"},
		},
		"contract_type": {
			Type:        genai.TypeString,
			Nullable:    genai.Ptr(true),
			Description: "Contract code: CDI, CDD, MIS or ALE.",
		},
		"full_time": {
			Type:     genai.TypeBoolean,
			Nullable: genai.Ptr(true),
		},
	},
	Required: []string{"keywords"},
}

var planSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"variations": {
			Type:        genai.TypeArray,
			Items:       variationSchema,
			Description: "1 to 3 focused search variations, precise to broad.",
		},
		"rationale": {
			Type:        genai.TypeString,
			Nullable:    genai.Ptr(true),
			Description: "Short explanation of the plan.",
		},
	},
	Required: []string{"variations"},
}

func NewPlanner(generator jsonGenerator, logger *zap.Logger, maxLogLength int) *Planner {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Planner{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Plan requests search variations for the query. It returns an error when
// the model call fails or its output holds no usable variation; recovery is
// the caller's concern.
func (p *Planner) Plan(ctx context.Context, query, profileSummary string) (*ai.SearchPlan, error) {
	prompt := buildPrompt(query, profileSummary)

	p.logger.Debug("gemini plan request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, p.maxLogLen)),
	)

	raw, err := p.generator.GenerateJSON(ctx, promptTemplate, prompt, planSchema)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("gemini plan response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, p.maxLogLen)),
	)

	plan, err := parsePlan(raw)
	if err != nil {
		return nil, err
	}

	return plan, nil
}

func buildPrompt(query, profileSummary string) string {
	var builder strings.Builder
	builder.WriteString("User query: ")
	builder.WriteString(strings.TrimSpace(query))
	builder.WriteString("\n\nCandidate profile:\n")
	builder.WriteString(strings.TrimSpace(profileSummary))
	return builder.String()
}

func parsePlan(raw string) (*ai.SearchPlan, error) {
	cleaned := extractJSON(raw)

	var data any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	plan := &ai.SearchPlan{}

	var rawVariations any = data
	if obj, ok := data.(map[string]any); ok {
		rawVariations = obj["variations"]
		if rationale, ok := obj["rationale"].(string); ok {
			plan.Rationale = strings.TrimSpace(rationale)
		}
	}

	for _, item := range flattenVariations(rawVariations) {
		variation, err := decodeVariation(item)
		if err != nil {
			return nil, fmt.Errorf("decode variation: %w", err)
		}
		variation.Keywords = strings.TrimSpace(variation.Keywords)
		if variation.Keywords == "" {
			continue
		}
		plan.Variations = append(plan.Variations, variation)
	}

	if len(plan.Variations) == 0 {
		return nil, fmt.Errorf("gemini response contained no usable variations")
	}

	return plan, nil
}

// flattenVariations unwraps arbitrarily nested arrays depth-first, so the
// result is always a flat list of variation objects.
func flattenVariations(raw any) []map[string]any {
	var flat []map[string]any

	switch val := raw.(type) {
	case []any:
		for _, item := range val {
			flat = append(flat, flattenVariations(item)...)
		}
	case map[string]any:
		flat = append(flat, val)
	}

	return flat
}

func decodeVariation(raw map[string]any) (ai.Variation, error) {
	var variation ai.Variation

	cfg := &mapstructure.DecoderConfig{
		Result:           &variation,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return variation, err
	}
	if err := decoder.Decode(raw); err != nil {
		return variation, err
	}

	return variation, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
