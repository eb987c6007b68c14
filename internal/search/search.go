package search

import (
	"context"
	"strings"

	"github.com/Entervio/entervio/internal/ai"
	"github.com/Entervio/entervio/internal/candidate"
	"github.com/Entervio/entervio/internal/francetravail"
	"github.com/Entervio/entervio/internal/geo"
	"github.com/Entervio/entervio/internal/planner"
	"github.com/Entervio/entervio/internal/ranking"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Used for planning when the user gave no query; the ranker still receives
// the raw (empty) query so scoring stays profile-only.
const defaultPlanningQuery = "Find jobs matching my profile"

type locationResolver interface {
	Resolve(ctx context.Context, raw string, hint geo.Hint) geo.Location
}

type offerSearcher interface {
	Search(ctx context.Context, req francetravail.SearchRequest) (*francetravail.Offers, error)
}

// Defaults are config-level request fields stamped onto every planned
// search. The national fallback ignores them and sends keywords only.
type Defaults struct {
	RadiusKM       int
	PublishedSince int
	Domain         string
	Sort           *int
}

// Service runs the whole smart-search pipeline: plan variations, resolve
// locations, fan searches out in parallel, merge, fall back nationally when
// everything came up empty, rank, and mark applied offers.
type Service struct {
	logger   *zap.Logger
	planner  *planner.Planner
	resolver locationResolver
	client   offerSearcher
	ranker   *ranking.Ranker

	// Defaults may be set before the first SmartSearch call.
	Defaults Defaults
}

func New(logger *zap.Logger, p *planner.Planner, resolver locationResolver, client offerSearcher, ranker *ranking.Ranker) *Service {
	return &Service{
		logger:   logger,
		planner:  p,
		resolver: resolver,
		client:   client,
		ranker:   ranker,
	}
}

// task is one concrete search against the job board. Tasks keep their
// submission order; the merge step relies on it.
type task struct {
	request francetravail.SearchRequest
	kind    string
}

// SmartSearch turns the profile and optional free-text query into a ranked,
// deduplicated, applied-annotated list of offers. Individual search failures
// contribute zero results; the only returned error is context cancellation.
func (s *Service) SmartSearch(ctx context.Context, profile *candidate.Profile, query string) (*francetravail.Offers, error) {
	query = strings.TrimSpace(query)
	profileSummary := profile.Summary()

	planningQuery := query
	if planningQuery == "" {
		planningQuery = defaultPlanningQuery
	}

	s.logger.Info("starting smart search", zap.String("query", planningQuery))

	variations := s.planner.Predict(ctx, planningQuery, profileSummary)
	tasks := s.buildTasks(ctx, variations)

	merged, err := s.runTasks(ctx, tasks)
	if err != nil {
		return nil, err
	}

	if merged.Len() == 0 {
		merged = s.nationalFallback(ctx, variations, planningQuery)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	ranked := s.ranker.Rank(ctx, profileSummary, merged, query)

	applied := profile.AppliedSet()
	for _, offer := range ranked.Items {
		_, ok := applied[offer.ID]
		offer.IsApplied = ok
	}

	return ranked, nil
}

// buildTasks resolves each variation's location and plans its searches: one
// primary task, plus a department-scoped fallback when a commune resolved
// with a parent department and the primary is not already department-wide.
func (s *Service) buildTasks(ctx context.Context, variations []ai.Variation) []task {
	var tasks []task

	for _, variation := range variations {
		req := requestFromVariation(variation)
		s.applyDefaults(&req)

		var resolved geo.Location
		if raw := strings.TrimSpace(variation.LocationRaw); raw != "" {
			resolved = s.resolver.Resolve(ctx, raw, hintFor(variation.LocationType))
			switch resolved.Kind {
			case geo.KindCommune:
				req.Commune = resolved.Code
			case geo.KindDepartment:
				req.Department = resolved.Code
			case geo.KindRegion:
				req.Region = resolved.Code
			}
		}

		tasks = append(tasks, task{request: req, kind: "primary"})

		if resolved.Kind == geo.KindCommune && resolved.DepartmentCode != "" && !req.DepartmentScoped() {
			fallback := req
			fallback.Commune = ""
			fallback.Distance = 0
			fallback.Region = ""
			fallback.Department = resolved.DepartmentCode
			tasks = append(tasks, task{request: fallback, kind: "department"})
		}
	}

	return tasks
}

// runTasks fires every task concurrently and merges the successes in task
// order, keeping the first occurrence of each offer id. A failed task is
// logged and contributes nothing; it never cancels its siblings.
func (s *Service) runTasks(ctx context.Context, tasks []task) (*francetravail.Offers, error) {
	s.logger.Info("executing search tasks", zap.Int("count", len(tasks)))

	results := make([]*francetravail.Offers, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tasks {
		g.Go(func() error {
			offers, err := s.client.Search(gctx, t.request)
			if err != nil {
				s.logger.Warn("search task failed",
					zap.Int("task", i),
					zap.String("kind", t.kind),
					zap.Error(err),
				)
				return nil
			}
			results[i] = offers
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := &francetravail.Offers{}
	seen := make(map[string]struct{})
	for i, res := range results {
		if res == nil {
			continue
		}
		added := 0
		for _, offer := range res.Items {
			if offer.ID == "" {
				continue
			}
			if _, ok := seen[offer.ID]; ok {
				continue
			}
			seen[offer.ID] = struct{}{}
			merged.Items = append(merged.Items, offer)
			added++
		}
		s.logger.Info("search task merged",
			zap.Int("task", i),
			zap.String("kind", tasks[i].kind),
			zap.Int("returned", res.Len()),
			zap.Int("new", added),
		)
	}

	return merged, nil
}

// nationalFallback issues the single last-resort unconstrained search. Its
// failure is logged and yields an empty result, never an error.
func (s *Service) nationalFallback(ctx context.Context, variations []ai.Variation, planningQuery string) *francetravail.Offers {
	keywords := planningQuery
	if len(variations) > 0 {
		keywords = variations[0].Keywords
	}

	s.logger.Info("no offers found in any scope, trying national search",
		zap.String("keywords", keywords),
	)

	offers, err := s.client.Search(ctx, francetravail.SearchRequest{Keywords: keywords})
	if err != nil {
		s.logger.Error("national fallback search failed", zap.Error(err))
		return &francetravail.Offers{}
	}

	s.logger.Info("national fallback done", zap.Int("found", offers.Len()))

	return offers
}

func (s *Service) applyDefaults(req *francetravail.SearchRequest) {
	if s.Defaults.RadiusKM > 0 {
		req.Distance = s.Defaults.RadiusKM
	}
	if s.Defaults.PublishedSince > 0 {
		req.PublishedSince = s.Defaults.PublishedSince
	}
	if s.Defaults.Domain != "" {
		req.Domain = s.Defaults.Domain
	}
	if s.Defaults.Sort != nil {
		req.Sort = s.Defaults.Sort
	}
}

func requestFromVariation(v ai.Variation) francetravail.SearchRequest {
	return francetravail.SearchRequest{
		Keywords:              v.Keywords,
		Experience:            francetravail.ExperienceLevel(v.ExperienceLevel),
		ExperienceRequirement: francetravail.ExperienceRequirement(v.ExperienceRequirement),
		ContractType:          v.ContractType,
		FullTime:              v.FullTime,
	}
}

func hintFor(locationType string) geo.Hint {
	switch locationType {
	case "region":
		return geo.HintRegion
	case "department", "departement":
		return geo.HintDepartment
	case "commune":
		return geo.HintCommune
	default:
		return geo.HintUnknown
	}
}
