package ai

import "context"

// Variation is one structured interpretation of the user's query, emitted by
// the reasoning model. Keywords range from precise inferred titles to broad
// literal terms, since the job board matches keywords literally.
type Variation struct {
	Keywords              string `mapstructure:"keywords"`
	LocationRaw           string `mapstructure:"location_raw"`
	LocationType          string `mapstructure:"location_type"`
	ExperienceLevel       string `mapstructure:"experience_level"`
	ExperienceRequirement string `mapstructure:"experience_requirement"`
	ContractType          string `mapstructure:"contract_type"`
	FullTime              *bool  `mapstructure:"full_time"`
}

// SearchPlan is the reasoning model's full answer: a flat list of variations
// plus an optional rationale that is only ever logged.
type SearchPlan struct {
	Variations []Variation
	Rationale  string
}

// Reasoner turns a free-text query and a profile summary into a search plan.
type Reasoner interface {
	Plan(ctx context.Context, query, profileSummary string) (*SearchPlan, error)
}

// Embedding task types, passed through to the embedding backend.
const (
	TaskTypeQuery    = "RETRIEVAL_QUERY"
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
)

// Embedder maps texts to vectors, one per input, order-preserving.
type Embedder interface {
	Embed(ctx context.Context, taskType string, texts []string) ([][]float32, error)
}
