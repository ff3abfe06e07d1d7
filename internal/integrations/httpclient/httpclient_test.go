package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"a":1}`, string(body))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodPost, srv.URL, map[string]int{"a": 1})
	require.NoError(t, err)
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, DoJSON(srv.Client(), req, &out))
	require.True(t, out.OK)
}

func TestDo_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = Do(srv.Client(), req)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
	require.Equal(t, "slow down", statusErr.Message())
}

func TestStatusError_Message(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"error":{"message":"nested"}}`, "nested"},
		{`{"message":"plain message"}`, "plain message"},
		{`{"detail":"fastapi style"}`, "fastapi style"},
		{`gateway exploded`, "gateway exploded"},
		{``, "Bad Gateway"},
	}
	for _, tc := range cases {
		e := &StatusError{StatusCode: http.StatusBadGateway, Body: tc.body}
		require.Equal(t, tc.want, e.Message(), "body=%q", tc.body)
	}
}
