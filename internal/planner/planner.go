package planner

import (
	"context"
	"strings"

	"github.com/Entervio/entervio/internal/ai"
	"go.uber.org/zap"
)

// At most this many variations are searched, however many the model emits.
const maxVariations = 3

// Planner turns a user query and profile summary into search variations. It
// never fails: any reasoning failure degrades to a single literal-keyword
// variation, so a search always has something to run.
type Planner struct {
	reasoner ai.Reasoner
	logger   *zap.Logger
}

func New(reasoner ai.Reasoner, logger *zap.Logger) *Planner {
	return &Planner{
		reasoner: reasoner,
		logger:   logger,
	}
}

// Predict returns 1 to 3 variations for the query.
func (p *Planner) Predict(ctx context.Context, query, profileSummary string) []ai.Variation {
	if p.reasoner == nil {
		p.logger.Warn("no reasoner configured, using literal query")
		return []ai.Variation{fallbackVariation(query)}
	}

	plan, err := p.reasoner.Plan(ctx, query, profileSummary)
	if err != nil {
		p.logger.Error("query planning failed, using literal query", zap.Error(err))
		return []ai.Variation{fallbackVariation(query)}
	}

	variations := plan.Variations
	if len(variations) == 0 {
		return []ai.Variation{fallbackVariation(query)}
	}
	if len(variations) > maxVariations {
		p.logger.Debug("capping variations",
			zap.Int("received", len(variations)),
			zap.Int("kept", maxVariations),
		)
		variations = variations[:maxVariations]
	}

	if plan.Rationale != "" {
		p.logger.Debug("planner rationale", zap.String("rationale", plan.Rationale))
	}

	p.logger.Info("planned search variations", zap.Int("count", len(variations)))

	return variations
}

func fallbackVariation(query string) ai.Variation {
	return ai.Variation{
		Keywords:     strings.TrimSpace(query),
		LocationType: "unknown",
	}
}
