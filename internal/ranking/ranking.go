package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Entervio/entervio/internal/ai"
	"github.com/Entervio/entervio/internal/francetravail"
	"github.com/Entervio/entervio/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// Embedding model input limits, in runes. Titles are never truncated.
	maxProfileRunes     = 8000
	maxDescriptionRunes = 2000

	// A job with no title and a description under this length carries too
	// little signal to embed.
	minDescriptionRunes = 10

	// One embedding batch; overflow is kept in the output unranked.
	maxBatchSize = 100

	queryWeight   = 0.7
	profileWeight = 0.3
)

const (
	reasonExcellent = "excellent match"
	reasonStrong    = "strong match"
	reasonModerate  = "moderate match"
	reasonLimited   = "limited relevance"
	reasonNotRanked = "not ranked"
)

// Ranker orders job offers by embedding similarity against the candidate
// profile and, when present, the user query. It degrades to a no-op when the
// embedder is missing or failing; ranking never loses offers.
type Ranker struct {
	embedder ai.Embedder
	logger   *zap.Logger
}

func New(embedder ai.Embedder, logger *zap.Logger) *Ranker {
	return &Ranker{
		embedder: embedder,
		logger:   logger,
	}
}

// Rank annotates every offer with a relevance score and reasoning, then
// returns them sorted descending by score. Offers that could not be embedded
// are appended at the end with score 0. The input order breaks ties.
func (r *Ranker) Rank(ctx context.Context, profileSummary string, offers *francetravail.Offers, query string) *francetravail.Offers {
	if offers == nil || offers.Len() == 0 {
		return offers
	}
	if r.embedder == nil {
		r.logger.Warn("no embedder configured, skipping ranking")
		return offers
	}

	query = strings.TrimSpace(query)

	r.logger.Info("ranking offers",
		zap.Int("count", offers.Len()),
		zap.Bool("hybrid", query != ""),
	)

	var ranked []*francetravail.Offer
	var rankedTexts []string
	var unranked []*francetravail.Offer

	for _, offer := range offers.Items {
		desc := utils.TruncateRunes(offer.Description, maxDescriptionRunes)
		if offer.Intitule == "" && utf8.RuneCountInString(desc) < minDescriptionRunes {
			unranked = append(unranked, offer)
			continue
		}
		if len(ranked) == maxBatchSize {
			unranked = append(unranked, offer)
			continue
		}
		ranked = append(ranked, offer)
		rankedTexts = append(rankedTexts, fmt.Sprintf("Title: %s\nDescription: %s", offer.Intitule, desc))
	}

	if len(ranked) == 0 {
		return offers
	}
	if len(unranked) > 0 {
		r.logger.Warn("some offers will not be ranked",
			zap.Int("ranked", len(ranked)),
			zap.Int("unranked", len(unranked)),
		)
	}

	profileText := utils.TruncateRunes(profileSummary, maxProfileRunes)

	var profileVec, queryVec []float32
	var jobVecs [][]float32

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vecs, err := r.embedder.Embed(gctx, ai.TaskTypeQuery, []string{profileText})
		if err != nil {
			return fmt.Errorf("embed profile: %w", err)
		}
		if len(vecs) != 1 {
			return fmt.Errorf("embed profile: expected 1 vector, got %d", len(vecs))
		}
		profileVec = vecs[0]
		return nil
	})
	if query != "" {
		g.Go(func() error {
			vecs, err := r.embedder.Embed(gctx, ai.TaskTypeQuery, []string{query})
			if err != nil {
				return fmt.Errorf("embed query: %w", err)
			}
			if len(vecs) != 1 {
				return fmt.Errorf("embed query: expected 1 vector, got %d", len(vecs))
			}
			queryVec = vecs[0]
			return nil
		})
	}
	g.Go(func() error {
		vecs, err := r.embedder.Embed(gctx, ai.TaskTypeDocument, rankedTexts)
		if err != nil {
			return fmt.Errorf("embed offers: %w", err)
		}
		if len(vecs) != len(rankedTexts) {
			return fmt.Errorf("embed offers: expected %d vectors, got %d", len(rankedTexts), len(vecs))
		}
		jobVecs = vecs
		return nil
	})

	if err := g.Wait(); err != nil {
		r.logger.Error("ranking failed, returning offers unranked", zap.Error(err))
		return offers
	}

	for i, offer := range ranked {
		profileScore := cosine(jobVecs[i], profileVec) * 100

		var final float64
		if queryVec != nil {
			queryScore := cosine(jobVecs[i], queryVec) * 100
			final = queryWeight*queryScore + profileWeight*profileScore
		} else {
			final = profileScore
		}

		score := clampScore(int(math.Round(final)))
		offer.RelevanceScore = score
		offer.RelevanceReasoning = reasoning(score, query != "")
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})

	for _, offer := range unranked {
		offer.RelevanceScore = 0
		offer.RelevanceReasoning = reasonNotRanked
	}

	items := make([]*francetravail.Offer, 0, len(ranked)+len(unranked))
	items = append(items, ranked...)
	items = append(items, unranked...)

	if len(items) > 0 {
		r.logger.Info("offers ranked", zap.Int("top_score", items[0].RelevanceScore))
	}

	return &francetravail.Offers{Items: items}
}

// cosine returns the cosine similarity of two vectors, or 0 when either has
// zero norm or their lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func reasoning(score int, hasQuery bool) string {
	var label string
	switch {
	case score >= 85:
		label = reasonExcellent
	case score >= 70:
		label = reasonStrong
	case score >= 50:
		label = reasonModerate
	default:
		label = reasonLimited
	}

	if score >= 60 {
		if hasQuery {
			label += " • aligned with your search"
		} else {
			label += " • aligned with your profile"
		}
	}

	return label
}
