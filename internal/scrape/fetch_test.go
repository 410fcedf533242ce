package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sh3rwan/erbil-api/pkg/models"
)

func newTestClient(srvURL string, opts ...Option) *Client {
	base := []Option{
		WithProfile(testProfile()),
		WithClock(func() time.Time { return testNow }),
	}
	return NewClient(srvURL, append(base, opts...)...)
}

func TestFetchExtractsBoard(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(combinedBoard))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "IA123", records[0].FlightNumber)
	assert.Equal(t, models.KindArrival, records[0].Kind)

	// Browser-like identification, never the default Go user agent.
	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.NotContains(t, gotUA, "Go-http-client")
}

func TestFetchCustomUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(combinedBoard))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, WithUserAgent("erbil-api-probe/1.0"))
	_, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "erbil-api-probe/1.0", gotUA)
}

func TestFetchNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Fetch(context.Background())
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusBadGateway, fe.Status)
	assert.Contains(t, fe.Error(), "unexpected status 502")
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(combinedBoard))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	var fe *FetchError
	assert.True(t, errors.As(err, &fe))
}

func TestFetchUnreachableHost(t *testing.T) {
	// Port 1 on loopback refuses connections immediately.
	client := newTestClient("http://127.0.0.1:1", WithTimeout(250*time.Millisecond))
	_, err := client.Fetch(context.Background())
	require.Error(t, err)

	var fe *FetchError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, 0, fe.Status)
}

func TestFetchEmptyBoardIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table class="board"><tbody></tbody></table></body></html>`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSetProfileSwapsAtomically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table class="newboard"><tbody>
<tr class="arrival"><td>14:30</td><td>IA123</td><td>Baghdad</td><td>Iraqi Airways</td><td>On Time</td></tr>
</tbody></table></body></html>`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	// Old profile misses the renamed table.
	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	p := testProfile()
	p.RowSelector = "table.newboard tbody tr"
	client.SetProfile(p)

	records, err = client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
