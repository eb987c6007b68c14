package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	apiURL      = "https://geo.api.gouv.fr"
	resultLimit = "10"
	// Queries shorter than this return too much noise from the geo source.
	minQueryLen = 2
)

// Kind classifies a resolved location by administrative level.
type Kind string

const (
	KindRegion     Kind = "region"
	KindDepartment Kind = "department"
	KindCommune    Kind = "commune"
	KindNone       Kind = "none"
)

// Hint is the caller's guess at the administrative level of a raw place
// name. It steers the lookup order but never restricts it.
type Hint string

const (
	HintRegion     Hint = "region"
	HintDepartment Hint = "department"
	HintCommune    Hint = "commune"
	HintUnknown    Hint = "unknown"
)

// Location is the outcome of resolving a raw place name. Kind is KindNone
// when nothing matched; callers must treat that as "no location constraint".
type Location struct {
	Kind Kind
	Code string
	Name string
	// DepartmentCode is the parent department of a resolved commune,
	// captured for the department-level fallback search. Empty otherwise.
	DepartmentCode string
}

// None reports whether the resolution produced no usable location.
func (l Location) None() bool {
	return l.Kind == KindNone || l.Code == ""
}

type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

func New(logger *zap.Logger) *Client {
	return &Client{
		logger: logger,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Resolve maps a free-text place name to a geographic code. The hinted kind
// is tried first, the remaining kinds follow in region, department, commune
// order, and the first non-empty match wins. Every lookup returns candidates
// ranked by the source; the top hit is always taken. Lookup failures are
// logged and treated as empty, so Resolve never fails.
func (c *Client) Resolve(ctx context.Context, raw string, hint Hint) Location {
	raw = strings.TrimSpace(raw)
	if utf8.RuneCountInString(raw) < minQueryLen {
		return Location{Kind: KindNone}
	}

	for _, kind := range lookupOrder(hint) {
		loc, err := c.lookup(ctx, kind, raw)
		if err != nil {
			c.logger.Warn("geo lookup failed",
				zap.String("query", raw),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			continue
		}
		if loc.None() {
			continue
		}

		c.logger.Info("resolved location",
			zap.String("query", raw),
			zap.String("kind", string(loc.Kind)),
			zap.String("code", loc.Code),
			zap.String("name", loc.Name),
		)
		return loc
	}

	c.logger.Warn("could not resolve location",
		zap.String("query", raw),
		zap.String("hint", string(hint)),
	)
	return Location{Kind: KindNone}
}

func lookupOrder(hint Hint) []Kind {
	switch hint {
	case HintDepartment:
		return []Kind{KindDepartment, KindRegion, KindCommune}
	case HintCommune:
		return []Kind{KindCommune, KindRegion, KindDepartment}
	default:
		return []Kind{KindRegion, KindDepartment, KindCommune}
	}
}

func (c *Client) lookup(ctx context.Context, kind Kind, query string) (Location, error) {
	none := Location{Kind: KindNone}

	switch kind {
	case KindCommune:
		hits, err := c.searchCommunes(ctx, query)
		if err != nil || len(hits) == 0 {
			return none, err
		}
		top := hits[0]
		return Location{
			Kind:           KindCommune,
			Code:           top.Code,
			Name:           top.Nom,
			DepartmentCode: top.Departement.Code,
		}, nil
	case KindDepartment:
		hits, err := c.searchPlaces(ctx, "/departements", query)
		if err != nil || len(hits) == 0 {
			return none, err
		}
		return Location{Kind: KindDepartment, Code: hits[0].Code, Name: hits[0].Nom}, nil
	case KindRegion:
		hits, err := c.searchPlaces(ctx, "/regions", query)
		if err != nil || len(hits) == 0 {
			return none, err
		}
		return Location{Kind: KindRegion, Code: hits[0].Code, Name: hits[0].Nom}, nil
	}

	return none, nil
}

type place struct {
	Nom  string `json:"nom"`
	Code string `json:"code"`
}

type commune struct {
	Nom          string   `json:"nom"`
	Code         string   `json:"code"`
	CodesPostaux []string `json:"codesPostaux"`
	Departement  place    `json:"departement"`
	Region       place    `json:"region"`
}

func (c *Client) searchCommunes(ctx context.Context, query string) ([]commune, error) {
	q := url.Values{}
	q.Set("fields", "nom,code,codesPostaux,departement,region")
	q.Set("boost", "population")
	q.Set("limit", resultLimit)
	if isPostalCode(query) {
		q.Set("codePostal", query)
	} else {
		q.Set("nom", query)
	}

	var hits []commune
	if err := c.getJSON(ctx, c.APIURL+"/communes", q, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

func (c *Client) searchPlaces(ctx context.Context, path, query string) ([]place, error) {
	q := url.Values{}
	q.Set("fields", "nom,code")
	q.Set("limit", resultLimit)
	q.Set("nom", query)

	var hits []place
	if err := c.getJSON(ctx, c.APIURL+path, q, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "application/json")
	req.URL.RawQuery = q.Encode()

	c.logger.Debug("make geo request", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

// isPostalCode reports whether the query looks like a French postal code.
func isPostalCode(s string) bool {
	if len(s) != 5 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
