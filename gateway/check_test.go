package gateway

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func newID(t testing.TB, seed byte) cid.Cid {
	id, err := cid.Prefix{
		Version:  1,
		Codec:    cid.Raw,
		MhType:   multihash.SHA2_256,
		MhLength: -1,
	}.Sum(bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return id
}

type reply struct {
	status int
	err    error
}

func timeout() reply {
	return reply{err: &url.Error{Op: "Get", URL: "https://gateway", Err: context.DeadlineExceeded}}
}

// testGateways is a thread-safe HTTPClient serving requests to multiple
// endpoints. Replies are selected by the handler per request.
type testGateways struct {
	t       testing.TB
	handler func(host string, id string, n int) reply

	mtx      sync.Mutex
	requests map[string][]string
}

func newTestGateways(t testing.TB, handler func(host string, id string, n int) reply) *testGateways {
	return &testGateways{
		t:        t,
		handler:  handler,
		requests: make(map[string][]string),
	}
}

func (x *testGateways) Do(req *http.Request) (*http.Response, error) {
	require.Equal(x.t, http.MethodGet, req.Method)
	require.True(x.t, strings.HasPrefix(req.URL.Path, "/ipfs/"), req.URL.Path)
	require.True(x.t, strings.HasSuffix(req.URL.Path, "/"), req.URL.Path)

	id := strings.TrimSuffix(strings.TrimPrefix(req.URL.Path, "/ipfs/"), "/")
	host := req.URL.Scheme + "://" + req.URL.Host

	x.mtx.Lock()
	x.requests[host] = append(x.requests[host], id)
	n := len(x.requests[host]) - 1
	x.mtx.Unlock()

	r := x.handler(host, id, n)
	if r.err != nil {
		return nil, r.err
	}

	return &http.Response{StatusCode: r.status, Body: http.NoBody}, nil
}

func (x *testGateways) sent(host string) []string {
	x.mtx.Lock()
	defer x.mtx.Unlock()
	return append([]string(nil), x.requests[host]...)
}

// sleeps records backoff pauses without waiting.
type sleeps struct {
	mtx sync.Mutex
	n   int
	d   []time.Duration
}

func (x *sleeps) sleep(ctx context.Context, d time.Duration) error {
	x.mtx.Lock()
	x.n++
	x.d = append(x.d, d)
	x.mtx.Unlock()
	return ctx.Err()
}

func (x *sleeps) count() int {
	x.mtx.Lock()
	defer x.mtx.Unlock()
	return x.n
}

type testMetrics struct {
	mtx sync.Mutex
	m   map[string]map[Outcome]int
}

func (x *testMetrics) Checked(endpoint string, o Outcome) {
	x.mtx.Lock()
	defer x.mtx.Unlock()
	if x.m == nil {
		x.m = make(map[string]map[Outcome]int)
	}
	if x.m[endpoint] == nil {
		x.m[endpoint] = make(map[Outcome]int)
	}
	x.m[endpoint][o]++
}

func TestCheckAll(t *testing.T) {
	ctx := context.Background()
	ids := []cid.Cid{newID(t, 1), newID(t, 2), newID(t, 3)}

	newPrm := func(t *testing.T, c HTTPClient, s *sleeps) Prm {
		return Prm{
			Logger:  zaptest.NewLogger(t),
			Client:  c,
			Backoff: time.Second,
			sleep:   s.sleep,
		}
	}

	t.Run("all available", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		var s sleeps
		m := new(testMetrics)
		gws := newTestGateways(t, func(string, string, int) reply { return reply{status: http.StatusOK} })

		prm := newPrm(t, gws, &s)
		prm.Metrics = m

		rep, err := CheckAll(ctx, ids, []string{"gw1.example", "https://gw2.example/", "http://gw3.example"}, prm)
		require.NoError(t, err)
		require.True(t, rep.OK())
		require.Zero(t, s.count())

		for _, host := range []string{"https://gw1.example", "https://gw2.example", "http://gw3.example"} {
			require.Equal(t, []string{ids[0].String(), ids[1].String(), ids[2].String()}, gws.sent(host))
			require.Equal(t, len(ids), m.m[host][Available])
		}
	})

	t.Run("rate limited once", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		var s sleeps
		gws := newTestGateways(t, func(_ string, _ string, n int) reply {
			if n == 0 {
				return reply{status: http.StatusTooManyRequests}
			}
			return reply{status: http.StatusOK}
		})

		rep, err := CheckAll(ctx, ids[:1], []string{"gw.example"}, newPrm(t, gws, &s))
		require.NoError(t, err)
		require.True(t, rep.OK())
		require.Equal(t, []string{ids[0].String(), ids[0].String()}, gws.sent("https://gw.example"))
		require.Equal(t, 1, s.count())
		require.Equal(t, []time.Duration{time.Second}, s.d)
	})

	t.Run("rate limited goes to tail", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		var s sleeps
		gws := newTestGateways(t, func(_ string, _ string, n int) reply {
			if n == 0 {
				return reply{status: http.StatusTooManyRequests}
			}
			return reply{status: http.StatusOK}
		})

		_, err := CheckAll(ctx, ids, []string{"gw.example"}, newPrm(t, gws, &s))
		require.NoError(t, err)
		require.Equal(t, []string{
			ids[0].String(), ids[1].String(), ids[2].String(), ids[0].String(),
		}, gws.sent("https://gw.example"))
		require.Equal(t, 1, s.count())
	})

	t.Run("timeout retried first", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		var s sleeps
		gws := newTestGateways(t, func(_ string, _ string, n int) reply {
			if n < 2 {
				return timeout()
			}
			return reply{status: http.StatusOK}
		})

		_, err := CheckAll(ctx, ids, []string{"gw.example"}, newPrm(t, gws, &s))
		require.NoError(t, err)
		require.Equal(t, []string{
			ids[0].String(), ids[0].String(), ids[0].String(), ids[1].String(), ids[2].String(),
		}, gws.sent("https://gw.example"))
		require.Equal(t, 2, s.count())
	})

	t.Run("failure goes to tail without pause", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		var s sleeps
		gws := newTestGateways(t, func(_ string, id string, n int) reply {
			switch {
			case n == 0:
				return reply{status: http.StatusBadGateway}
			case n == 1:
				return reply{err: errors.New("connection reset")}
			default:
				return reply{status: http.StatusOK}
			}
		})

		_, err := CheckAll(ctx, ids, []string{"gw.example"}, newPrm(t, gws, &s))
		require.NoError(t, err)
		require.Equal(t, []string{
			ids[0].String(), ids[1].String(), ids[2].String(), ids[0].String(), ids[1].String(),
		}, gws.sent("https://gw.example"))
		require.Zero(t, s.count())
	})

	t.Run("independent endpoints", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		var s sleeps
		gws := newTestGateways(t, func(host string, _ string, n int) reply {
			if host == "https://slow.example" && n < 5 {
				return reply{status: http.StatusServiceUnavailable}
			}
			return reply{status: http.StatusOK}
		})

		rep, err := CheckAll(ctx, ids, []string{"slow.example", "fast.example", "fast.example/"}, newPrm(t, gws, &s))
		require.NoError(t, err)
		require.True(t, rep.OK())
		require.Len(t, gws.sent("https://fast.example"), len(ids))
		require.Len(t, gws.sent("https://slow.example"), len(ids)+5)
	})

	t.Run("attempt limit", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		var s sleeps
		gws := newTestGateways(t, func(host string, id string, _ int) reply {
			if host == "https://dead.example" || id == ids[1].String() {
				return reply{status: http.StatusInternalServerError}
			}
			return reply{status: http.StatusOK}
		})

		prm := newPrm(t, gws, &s)
		prm.MaxAttempts = 3

		rep, err := CheckAll(ctx, ids, []string{"dead.example", "alive.example"}, prm)
		require.NoError(t, err)
		require.False(t, rep.OK())
		require.Equal(t, map[string][]cid.Cid{
			"https://dead.example":  ids,
			"https://alive.example": {ids[1]},
		}, rep.Unresolved)
		require.Len(t, gws.sent("https://dead.example"), 3*len(ids))
		require.Len(t, gws.sent("https://alive.example"), len(ids)+2)
	})

	t.Run("always failing endpoint loops until cancelled", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		const minRequests = 100

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var s sleeps
		gws := newTestGateways(t, func(_ string, _ string, n int) reply {
			if n == minRequests {
				cancel()
			}
			if n%2 == 0 {
				return reply{status: http.StatusTooManyRequests}
			}
			return reply{status: http.StatusBadGateway}
		})

		rep, err := CheckAll(ctx, ids, []string{"dead.example"}, newPrm(t, gws, &s))
		require.ErrorIs(t, err, context.Canceled)
		require.ElementsMatch(t, ids, rep.Unresolved["https://dead.example"])
		require.Len(t, gws.sent("https://dead.example"), minRequests+1)
	})

	t.Run("retrieved content is resolved on cancel", func(t *testing.T) {
		defer goleak.VerifyNone(t)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var s sleeps
		m := new(testMetrics)
		gws := newTestGateways(t, func(_ string, id string, _ int) reply {
			if id == ids[1].String() {
				cancel()
			}
			return reply{status: http.StatusOK}
		})

		prm := newPrm(t, gws, &s)
		prm.Metrics = m

		rep, err := CheckAll(ctx, ids, []string{"gw.example"}, prm)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, map[string][]cid.Cid{"https://gw.example": {ids[2]}}, rep.Unresolved)
		require.Equal(t, []string{ids[0].String(), ids[1].String()}, gws.sent("https://gw.example"))
		require.Equal(t, 2, m.m["https://gw.example"][Available])
	})

	t.Run("no endpoints", func(t *testing.T) {
		rep, err := CheckAll(ctx, ids, nil, Prm{})
		require.NoError(t, err)
		require.True(t, rep.OK())
	})

	t.Run("no IDs", func(t *testing.T) {
		var s sleeps
		gws := newTestGateways(t, func(string, string, int) reply {
			t.Fatal("must not be called")
			return reply{}
		})

		rep, err := CheckAll(ctx, nil, []string{"gw.example"}, newPrm(t, gws, &s))
		require.NoError(t, err)
		require.True(t, rep.OK())
	})
}

func TestCheckAll_Server(t *testing.T) {
	ids := []cid.Cid{newID(t, 1), newID(t, 2)}

	var (
		mtx      sync.Mutex
		requests = make(map[string]int)
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mtx.Lock()
		requests[r.URL.Path]++
		n := requests[r.URL.Path]
		mtx.Unlock()

		switch {
		case r.URL.Path == "/ipfs/"+ids[0].String()+"/" && n == 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case r.URL.Path == "/ipfs/"+ids[1].String()+"/" && n == 1:
			<-r.Context().Done()
		default:
			_, _ = w.Write([]byte("content"))
		}
	}))
	t.Cleanup(srv.Close)

	rep, err := CheckAll(context.Background(), ids, []string{srv.URL}, Prm{
		Logger:  zaptest.NewLogger(t),
		Client:  srv.Client(),
		Timeout: 100 * time.Millisecond,
		Backoff: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.True(t, rep.OK())

	mtx.Lock()
	defer mtx.Unlock()
	require.Equal(t, map[string]int{
		"/ipfs/" + ids[0].String() + "/": 2,
		"/ipfs/" + ids[1].String() + "/": 2,
	}, requests)
}

func TestNormalizeEndpoint(t *testing.T) {
	for in, exp := range map[string]string{
		"":                      "",
		" ":                     "",
		"cloudflare-ipfs.com":   "https://cloudflare-ipfs.com",
		"cloudflare-ipfs.com/":  "https://cloudflare-ipfs.com",
		"http://localhost:8080": "http://localhost:8080",
		"https://ipfs.io/":      "https://ipfs.io",
		" https://dweb.link ":   "https://dweb.link",
	} {
		require.Equal(t, exp, NormalizeEndpoint(in), in)
	}
}

func TestOutcome_String(t *testing.T) {
	require.Equal(t, "available", Available.String())
	require.Equal(t, "rate limited", RateLimited.String())
	require.Equal(t, "timed out", TimedOut.String())
	require.Equal(t, "failed", Failed.String())
	require.Equal(t, "unknown outcome #42", Outcome(42).String())
}
