// Package opensea is a read-only client for the OpenSea v2 collections API.
package opensea

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"scooby-agent/internal/integrations/httpclient"
	"scooby-agent/internal/integrations/paramstore"
)

const DefaultBaseURL = "https://api.opensea.io/api/v2"

// ErrUnsupportedOrderBy is returned by ListCollections for a sort field the
// API does not accept.
var ErrUnsupportedOrderBy = errors.New("opensea: unsupported order_by")

// OrderByFields lists the sort fields accepted by the collections endpoint.
var OrderByFields = []string{
	"created_date",
	"market_cap",
	"num_owners",
	"one_day_change",
	"seven_day_change",
	"seven_day_volume",
}

func ValidOrderBy(field string) bool {
	for _, f := range OrderByFields {
		if f == field {
			return true
		}
	}
	return false
}

type Contract struct {
	Address string `json:"address"`
	Chain   string `json:"chain"`
}

type Collection struct {
	Slug        string     `json:"collection"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	OpenSeaURL  string     `json:"opensea_url,omitempty"`
	Contracts   []Contract `json:"contracts,omitempty"`
}

// ContractAddress returns the first contract with a non-empty address.
func (c Collection) ContractAddress() (Contract, bool) {
	for _, ct := range c.Contracts {
		if strings.TrimSpace(ct.Address) != "" {
			return Contract{Address: strings.TrimSpace(ct.Address), Chain: strings.TrimSpace(ct.Chain)}, true
		}
	}
	return Contract{}, false
}

type ListEntry struct {
	Collection
	Stats *struct {
		SevenDayVolume *float64 `json:"seven_day_volume,omitempty"`
	} `json:"stats,omitempty"`
}

type CollectionList struct {
	Collections []ListEntry `json:"collections"`
	Next        string      `json:"next,omitempty"`
}

// Slugs returns the collection slugs in list order.
func (l CollectionList) Slugs() []string {
	out := make([]string, 0, len(l.Collections))
	for _, c := range l.Collections {
		if c.Slug != "" {
			out = append(out, c.Slug)
		}
	}
	return out
}

// FilterByVolume keeps entries whose seven day volume is at least minVolume.
// Entries without a volume figure are dropped.
func (l CollectionList) FilterByVolume(minVolume float64) CollectionList {
	out := CollectionList{Collections: make([]ListEntry, 0, len(l.Collections))}
	for _, c := range l.Collections {
		if c.Stats == nil || c.Stats.SevenDayVolume == nil {
			continue
		}
		if *c.Stats.SevenDayVolume >= minVolume {
			out.Collections = append(out.Collections, c)
		}
	}
	return out
}

type ListQuery struct {
	OrderBy   string
	Direction string
	Limit     int
	Chain     string
}

type StatsTotal struct {
	Volume     *float64 `json:"volume,omitempty"`
	Sales      *float64 `json:"sales,omitempty"`
	NumOwners  *int64   `json:"num_owners,omitempty"`
	MarketCap  *float64 `json:"market_cap,omitempty"`
	FloorPrice *float64 `json:"floor_price,omitempty"`
	AvgPrice   *float64 `json:"average_price,omitempty"`
}

type StatsInterval struct {
	Interval     string   `json:"interval"`
	Volume       *float64 `json:"volume,omitempty"`
	VolumeChange *float64 `json:"volume_change,omitempty"`
	Sales        *float64 `json:"sales,omitempty"`
}

type CollectionStats struct {
	Total     StatsTotal      `json:"total"`
	Intervals []StatsInterval `json:"intervals,omitempty"`
}

// Client talks to the OpenSea API. The API key is optional.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      paramstore.TokenSource
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if b := strings.TrimSpace(baseURL); b != "" {
			c.baseURL = b
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(token paramstore.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: httpclient.Default(),
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	return c
}

// GetCollection fetches one collection by slug. A full collection URL is
// accepted in place of the slug.
func (c *Client) GetCollection(ctx context.Context, slug string) (Collection, error) {
	slug, err := cleanSlug(slug)
	if err != nil {
		return Collection{}, err
	}
	raw, err := c.get(ctx, "/collections/"+url.PathEscape(slug), nil)
	if err != nil {
		return Collection{}, err
	}
	return decodeCollection(raw)
}

// ListCollections lists collections sorted by q.OrderBy.
func (c *Client) ListCollections(ctx context.Context, q ListQuery) (CollectionList, error) {
	if !ValidOrderBy(q.OrderBy) {
		return CollectionList{}, fmt.Errorf("%w: %q", ErrUnsupportedOrderBy, q.OrderBy)
	}
	params := url.Values{}
	params.Set("order_by", q.OrderBy)
	direction := strings.ToLower(strings.TrimSpace(q.Direction))
	if direction != "asc" {
		direction = "desc"
	}
	params.Set("order_direction", direction)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if ch := strings.TrimSpace(q.Chain); ch != "" {
		params.Set("chain", ch)
	}

	raw, err := c.get(ctx, "/collections", params)
	if err != nil {
		return CollectionList{}, err
	}
	var out CollectionList
	if err := json.Unmarshal(raw, &out); err != nil {
		return CollectionList{}, fmt.Errorf("opensea: decode collections: %w", err)
	}
	return out, nil
}

func (c *Client) GetCollectionStats(ctx context.Context, slug string) (CollectionStats, error) {
	slug, err := cleanSlug(slug)
	if err != nil {
		return CollectionStats{}, err
	}
	raw, err := c.get(ctx, "/collections/"+url.PathEscape(slug)+"/stats", nil)
	if err != nil {
		return CollectionStats{}, err
	}
	var out CollectionStats
	if err := json.Unmarshal(raw, &out); err != nil {
		return CollectionStats{}, fmt.Errorf("opensea: decode stats: %w", err)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := httpclient.NewJSONRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("opensea: %w", err)
	}
	if c.token != nil {
		key, err := c.token.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("opensea: resolve api key: %w", err)
		}
		if key != "" {
			req.Header.Set("x-api-key", key)
		}
	}
	raw, err := httpclient.Do(c.httpClient, req)
	if err != nil {
		return nil, fmt.Errorf("opensea: GET %s: %w", path, err)
	}
	return raw, nil
}

// decodeCollection accepts both the bare collection object and one wrapped
// as {"collection": {...}}.
func decodeCollection(raw []byte) (Collection, error) {
	var wrapper struct {
		Collection json.RawMessage `json:"collection"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return Collection{}, fmt.Errorf("opensea: decode collection: %w", err)
	}
	body := raw
	if trimmed := strings.TrimSpace(string(wrapper.Collection)); strings.HasPrefix(trimmed, "{") {
		body = wrapper.Collection
	}
	var out Collection
	if err := json.Unmarshal(body, &out); err != nil {
		return Collection{}, fmt.Errorf("opensea: decode collection: %w", err)
	}
	return out, nil
}

func cleanSlug(slug string) (string, error) {
	slug = strings.Trim(strings.TrimSpace(slug), "/")
	if i := strings.LastIndex(slug, "/"); i >= 0 {
		slug = slug[i+1:]
	}
	if slug == "" {
		return "", errors.New("opensea: invalid collection slug")
	}
	return slug, nil
}
