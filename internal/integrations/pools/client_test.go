package pools

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"scooby-agent/internal/integrations/httpclient"
	"scooby-agent/internal/integrations/paramstore"
)

func TestChainID(t *testing.T) {
	cases := map[string]int{
		"shape":         360,
		" Shape ":       360,
		"shape-sepolia": 11011,
		"shapeSepolia":  11011,
		"ethereum":      11011,
		"":              11011,
	}
	for chain, want := range cases {
		require.Equal(t, want, ChainID(chain), "chain=%q", chain)
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ", nil)
	require.ErrorContains(t, err, "base URL is required")
}

func TestCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/pool/create", r.URL.Path)
		require.Equal(t, "Bearer pool-token", r.Header.Get("Authorization"))
		require.Empty(t, r.Header.Get("x-internal-call"))
		body, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{
			"name": "Penguin Pool",
			"nftCollectionAddress": "0xabc",
			"creatorFee": 2.5,
			"buyPrice": 0.1,
			"sellPrice": 0.2,
			"chainId": 11011,
			"collection_slug": "pudgypenguins",
			"wallet_address": "0xwallet"
		}`, string(body))
		_, _ = w.Write([]byte(`{"id": "clx1abc234", "name": "Penguin Pool", "poolAddress": "0xpool", "creatorFee": 2.5}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", paramstore.StaticToken("pool-token"), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	pool, err := c.Create(context.Background(), CreateRequest{
		Name: "Penguin Pool", NFTCollectionAddress: "0xabc", CreatorFee: 2.5,
		BuyPrice: 0.1, SellPrice: 0.2, ChainID: 11011, CollectionSlug: "pudgypenguins", WalletAddress: "0xwallet",
	})
	require.NoError(t, err)
	require.Equal(t, "clx1abc234", pool.ID)
	require.Equal(t, "0xpool", pool.PoolAddress)
}

func TestInvest_InternalHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pool/invest", r.URL.Path)
		require.Equal(t, "true", r.Header.Get("x-internal-call"))
		require.Empty(t, r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"poolId": "clx1abc234", "amount": 0.5, "wallet_address": "0xwallet"}`, string(body))
		_, _ = w.Write([]byte(`{"success": true, "investment": {"id": "tx1", "amount": 0.5, "txHash": "0xhash"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	res, err := c.Invest(context.Background(), InvestRequest{PoolID: "clx1abc234", Amount: 0.5, WalletAddress: "0xwallet"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "0xhash", res.Investment.TxHash)
}

func TestInvest_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "Pool not found"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	_, err = c.Invest(context.Background(), InvestRequest{PoolID: "nope", Amount: 1})

	var statusErr *httpclient.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, "Pool not found", statusErr.Message())
	require.Contains(t, err.Error(), "/pool/invest")
}

func TestListByCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/pools/collection/0xabcdef", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"success": true,
			"collectionAddress": "0xabcdef",
			"pools": [{"id": "p1", "name": "One", "buyPriceETH": "0.100000", "sellPriceETH": "0.200000", "stats": {"totalParticipants": 3}}],
			"totalPools": 1
		}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)
	res, err := c.ListByCollection(context.Background(), " 0xABCDEF ")
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalPools)
	require.Len(t, res.Pools, 1)
	require.Equal(t, "0.100000", res.Pools[0].BuyPriceETH)
	require.Equal(t, 3, res.Pools[0].Stats.TotalParticipants)

	_, err = c.ListByCollection(context.Background(), "")
	require.ErrorContains(t, err, "address is required")
}
