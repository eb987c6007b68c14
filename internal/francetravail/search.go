package francetravail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Entervio/entervio/internal/utils"
	"go.uber.org/zap"
)

const (
	// The API caps page size at 50; one page is all the engine ever asks for.
	searchRange = "0-49"

	defaultRadiusKM = 25

	parisCommuneCode    = "75056"
	parisDepartmentCode = "75"
)

// ExperienceLevel is the engine's experience vocabulary, translated to the
// job board's numeric codes on request encoding.
type ExperienceLevel string

const (
	ExperienceNone   ExperienceLevel = "none"
	ExperienceJunior ExperienceLevel = "junior"
	ExperienceMid    ExperienceLevel = "mid"
	ExperienceSenior ExperienceLevel = "senior"
)

// Code returns the job board's code for the level, or "" when the level is
// unset or unrecognized.
func (l ExperienceLevel) Code() string {
	switch l {
	case ExperienceNone, ExperienceJunior:
		return "1"
	case ExperienceMid:
		return "2"
	case ExperienceSenior:
		return "3"
	default:
		return ""
	}
}

// ExperienceRequirement states how strictly the experience level is required.
type ExperienceRequirement string

const (
	ExperienceBeginnerOK ExperienceRequirement = "beginner_ok"
	ExperienceDesired    ExperienceRequirement = "desired"
	ExperienceRequired   ExperienceRequirement = "required"
)

func (r ExperienceRequirement) Code() string {
	switch r {
	case ExperienceBeginnerOK:
		return "D"
	case ExperienceDesired:
		return "S"
	case ExperienceRequired:
		return "E"
	default:
		return ""
	}
}

// SearchRequest describes one search against the job board. Zero values mean
// "no constraint"; FullTime and Sort are pointers because false and 0 are
// meaningful to the API.
type SearchRequest struct {
	Keywords string

	// Commune is an INSEE commune code. Distance widens the commune search
	// radius in kilometers; 0 falls back to the default of 25.
	Commune  string
	Distance int

	Department string
	Region     string

	Experience            ExperienceLevel
	ExperienceRequirement ExperienceRequirement
	ContractType          string
	FullTime              *bool
	Domain                string
	PublishedSince        int
	Sort                  *int
}

// normalized applies the geographic rewrite rules. A Paris commune code
// (75056 or any 75-prefixed arrondissement) becomes a department-level
// constraint on 75, since commune+radius under-returns for the capital. A
// bare 2-digit commune value is already a department code and is moved
// there. Any remaining commune gets the default radius.
func (r SearchRequest) normalized() SearchRequest {
	commune := strings.TrimSpace(r.Commune)
	if commune == "" {
		r.Commune = ""
		return r
	}

	switch {
	case commune == parisCommuneCode || strings.HasPrefix(commune, parisDepartmentCode):
		r.Commune = ""
		r.Distance = 0
		r.Department = parisDepartmentCode
	case isDepartmentCode(commune):
		r.Commune = ""
		r.Distance = 0
		r.Department = commune
	default:
		r.Commune = commune
		if r.Distance <= 0 {
			r.Distance = defaultRadiusKM
		}
	}

	return r
}

// DepartmentScoped reports whether the request, after normalization, queries
// at department level. The orchestrator uses it to skip redundant fallback
// searches.
func (r SearchRequest) DepartmentScoped() bool {
	return r.normalized().Department != ""
}

func (r SearchRequest) buildQuery() url.Values {
	r = r.normalized()

	q := url.Values{}
	q.Set("range", searchRange)
	if kw := strings.TrimSpace(r.Keywords); kw != "" {
		q.Set("motsCles", kw)
	}
	if r.Commune != "" {
		q.Set("commune", r.Commune)
		q.Set("distance", strconv.Itoa(r.Distance))
	}
	if r.Department != "" {
		q.Set("departement", r.Department)
	}
	if r.Region != "" {
		q.Set("region", r.Region)
	}
	if code := r.Experience.Code(); code != "" {
		q.Set("experience", code)
	}
	if code := r.ExperienceRequirement.Code(); code != "" {
		q.Set("experienceExigence", code)
	}
	if r.ContractType != "" {
		q.Set("typeContrat", r.ContractType)
	}
	if r.FullTime != nil {
		q.Set("tempsPlein", strconv.FormatBool(*r.FullTime))
	}
	if r.Domain != "" {
		q.Set("domaine", r.Domain)
	}
	if r.PublishedSince > 0 {
		q.Set("publieeDepuis", strconv.Itoa(r.PublishedSince))
	}
	if r.Sort != nil {
		q.Set("sort", strconv.Itoa(*r.Sort))
	}

	return q
}

func isDepartmentCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type searchResponse struct {
	Resultats []*Offer `json:"resultats"`
}

// Search issues one search call. A 204 from the API is a successful empty
// result; any other non-2xx is returned as a *StatusError.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*Offers, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL+searchPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.URL.RawQuery = req.buildQuery().Encode()

	c.logger.Debug("make search request", zap.String("url", httpReq.URL.String()))

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return &Offers{}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       utils.TruncateForLog(string(body), 200),
		}
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	return &Offers{Items: parsed.Resultats}, nil
}
