// Package pools is the client for the NFT pool service.
package pools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"scooby-agent/internal/integrations/httpclient"
	"scooby-agent/internal/integrations/paramstore"
)

// Chain ids understood by the pool service.
const (
	ChainShape        = 360
	ChainShapeSepolia = 11011
	DefaultChainID    = ChainShapeSepolia
)

// ChainID maps an OpenSea chain name to the pool service chain id.
func ChainID(chain string) int {
	switch strings.ToLower(strings.TrimSpace(chain)) {
	case "shape":
		return ChainShape
	case "shape-sepolia", "shapesepolia":
		return ChainShapeSepolia
	default:
		return DefaultChainID
	}
}

type CreateRequest struct {
	Name                 string  `json:"name"`
	NFTCollectionAddress string  `json:"nftCollectionAddress"`
	CreatorFee           float64 `json:"creatorFee"`
	BuyPrice             float64 `json:"buyPrice"`
	SellPrice            float64 `json:"sellPrice"`
	ChainID              int     `json:"chainId"`
	CollectionSlug       string  `json:"collection_slug"`
	WalletAddress        string  `json:"wallet_address,omitempty"`
}

type InvestRequest struct {
	PoolID        string  `json:"poolId"`
	Amount        float64 `json:"amount"`
	WalletAddress string  `json:"wallet_address,omitempty"`
}

type PoolStats struct {
	TotalParticipants int `json:"totalParticipants"`
	TotalTransactions int `json:"totalTransactions"`
}

type Pool struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	PoolAddress          string    `json:"poolAddress,omitempty"`
	NFTCollectionAddress string    `json:"nftCollectionAddress,omitempty"`
	PoolType             string    `json:"poolType,omitempty"`
	Status               string    `json:"status,omitempty"`
	ChainID              int       `json:"chainId,omitempty"`
	BuyPriceETH          string    `json:"buyPriceETH,omitempty"`
	SellPriceETH         string    `json:"sellPriceETH,omitempty"`
	CreatorFee           float64   `json:"creatorFee,omitempty"`
	CreatedAt            string    `json:"createdAt,omitempty"`
	Stats                PoolStats `json:"stats"`
}

type Investment struct {
	ID        string  `json:"id"`
	Amount    float64 `json:"amount"`
	AmountETH string  `json:"amountETH,omitempty"`
	TxHash    string  `json:"txHash,omitempty"`
}

type InvestResult struct {
	Success    bool       `json:"success"`
	Investment Investment `json:"investment"`
}

type CollectionPools struct {
	Success           bool   `json:"success"`
	CollectionAddress string `json:"collectionAddress"`
	Pools             []Pool `json:"pools"`
	TotalPools        int    `json:"totalPools"`
}

// Client calls the pool service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      paramstore.TokenSource
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient builds a pool client. token may be nil when the service needs no
// credential.
func NewClient(baseURL string, token paramstore.TokenSource, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("pools: base URL is required")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: httpclient.Default(),
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Create(ctx context.Context, in CreateRequest) (Pool, error) {
	var out Pool
	if err := c.do(ctx, http.MethodPost, "/pool/create", in, nil, &out); err != nil {
		return Pool{}, err
	}
	return out, nil
}

// Invest is sent as an internal call so the service trusts wallet_address.
func (c *Client) Invest(ctx context.Context, in InvestRequest) (InvestResult, error) {
	var out InvestResult
	headers := map[string]string{"x-internal-call": "true"}
	if err := c.do(ctx, http.MethodPost, "/pool/invest", in, headers, &out); err != nil {
		return InvestResult{}, err
	}
	return out, nil
}

func (c *Client) ListByCollection(ctx context.Context, address string) (CollectionPools, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return CollectionPools{}, errors.New("pools: collection address is required")
	}
	var out CollectionPools
	if err := c.do(ctx, http.MethodGet, "/pools/collection/"+url.PathEscape(address), nil, nil, &out); err != nil {
		return CollectionPools{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	req, err := httpclient.NewJSONRequest(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("pools: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.token != nil {
		tok, err := c.token.Token(ctx)
		if err != nil {
			return fmt.Errorf("pools: resolve token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	if err := httpclient.DoJSON(c.httpClient, req, out); err != nil {
		return fmt.Errorf("pools: %s %s: %w", method, path, err)
	}
	return nil
}
