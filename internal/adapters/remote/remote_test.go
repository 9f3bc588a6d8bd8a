package remote_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Amund211/imagecache/internal/adapters/remote"
	"github.com/Amund211/imagecache/internal/domain"
	"github.com/Amund211/imagecache/internal/ratelimiting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockedHttpClient struct {
	t           *testing.T
	expectedURL string
	statusCode  int
	body        io.ReadCloser
	requestErr  error
}

func (m *mockedHttpClient) Do(req *http.Request) (*http.Response, error) {
	require.Equal(m.t, m.expectedURL, req.URL.String())
	require.Equal(m.t, remote.USER_AGENT, req.Header.Get("User-Agent"))

	if m.requestErr != nil {
		return nil, m.requestErr
	}

	return &http.Response{
		StatusCode: m.statusCode,
		Body:       m.body,
	}, nil
}

type cantRead struct{}

func (c cantRead) Read(p []byte) (n int, err error) {
	return 0, assert.AnError
}

func (c cantRead) Close() error {
	return nil
}

type rejectingRateLimiter struct{}

func (rejectingRateLimiter) Consume(key string) bool {
	return false
}

func (rejectingRateLimiter) Wait(ctx context.Context, key string) error {
	return assert.AnError
}

func TestFetch(t *testing.T) {
	t.Parallel()

	const url = "https://images.example.com/a.png"

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		fetcher := remote.New(&mockedHttpClient{
			t:           t,
			expectedURL: url,
			statusCode:  200,
			body:        io.NopCloser(bytes.NewBufferString("image-bytes")),
		}, ratelimiting.NewUnlimitedRateLimiter())

		data, err := fetcher.Fetch(t.Context(), url)
		require.NoError(t, err)
		require.Equal(t, "image-bytes", string(data))
	})

	t.Run("request error", func(t *testing.T) {
		t.Parallel()

		fetcher := remote.New(&mockedHttpClient{
			t:           t,
			expectedURL: url,
			requestErr:  assert.AnError,
		}, ratelimiting.NewUnlimitedRateLimiter())

		_, err := fetcher.Fetch(t.Context(), url)
		require.ErrorIs(t, err, domain.ErrNetwork)
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("body read error", func(t *testing.T) {
		t.Parallel()

		fetcher := remote.New(&mockedHttpClient{
			t:           t,
			expectedURL: url,
			statusCode:  200,
			body:        cantRead{},
		}, ratelimiting.NewUnlimitedRateLimiter())

		_, err := fetcher.Fetch(t.Context(), url)
		require.ErrorIs(t, err, domain.ErrNetwork)
		require.ErrorIs(t, err, assert.AnError)
	})

	for _, statusCode := range []int{404, 429, 500, 503} {
		t.Run(http.StatusText(statusCode), func(t *testing.T) {
			t.Parallel()

			fetcher := remote.New(&mockedHttpClient{
				t:           t,
				expectedURL: url,
				statusCode:  statusCode,
				body:        io.NopCloser(bytes.NewBufferString("nope")),
			}, ratelimiting.NewUnlimitedRateLimiter())

			_, err := fetcher.Fetch(t.Context(), url)
			require.ErrorIs(t, err, domain.ErrNetwork)
		})
	}

	t.Run("rate limited", func(t *testing.T) {
		t.Parallel()

		fetcher := remote.New(&mockedHttpClient{
			t:           t,
			expectedURL: url,
			requestErr:  nil,
		}, rejectingRateLimiter{})

		_, err := fetcher.Fetch(t.Context(), url)
		require.ErrorIs(t, err, domain.ErrNetwork)
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("malformed url", func(t *testing.T) {
		t.Parallel()

		fetcher := remote.New(&mockedHttpClient{t: t}, ratelimiting.NewUnlimitedRateLimiter())

		_, err := fetcher.Fetch(t.Context(), "not a url")
		require.ErrorIs(t, err, domain.ErrNetwork)
		require.ErrorIs(t, err, domain.ErrMalformedURL)
	})
}

func TestFetchWithServer(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path == "/slow.png" {
			time.Sleep(200 * time.Millisecond)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("served"))
	}))
	defer server.Close()

	t.Run("instrumented client", func(t *testing.T) {
		fetcher := remote.New(remote.NewHTTPClient(5*time.Second), ratelimiting.NewUnlimitedRateLimiter())

		data, err := fetcher.Fetch(t.Context(), server.URL+"/a.png")
		require.NoError(t, err)
		require.Equal(t, "served", string(data))
	})

	t.Run("client timeout", func(t *testing.T) {
		fetcher := remote.New(remote.NewHTTPClient(20*time.Millisecond), ratelimiting.NewUnlimitedRateLimiter())

		_, err := fetcher.Fetch(t.Context(), server.URL+"/slow.png")
		require.ErrorIs(t, err, domain.ErrNetwork)
	})

	require.GreaterOrEqual(t, requests.Load(), int32(1))
}
