/*
Package gateway verifies that content is retrievable through public read
gateways.

CheckAll runs one worker per gateway endpoint. Each worker owns a queue of all
requested content IDs and requests them one by one until the queue is empty.
Only successfully retrieved IDs leave the queue: rate-limited ones go to the
tail after a backoff pause, timed out ones are retried first after the pause,
other failures go to the tail immediately.
*/
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Default [Prm] values.
const (
	DefaultTimeout = 5 * time.Second
	DefaultBackoff = 15 * time.Second
)

// Outcome is a result of the single retrieval check.
type Outcome uint8

const (
	// Available means content has been successfully retrieved.
	Available Outcome = iota
	// RateLimited means gateway responded with 429 status.
	RateLimited
	// TimedOut means retrieval has not finished within the timeout.
	TimedOut
	// Failed means any other status or transport failure.
	Failed
)

// String returns lowercase name of the outcome.
func (x Outcome) String() string {
	switch x {
	case Available:
		return "available"
	case RateLimited:
		return "rate limited"
	case TimedOut:
		return "timed out"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown outcome #%d", uint8(x))
	}
}

// HTTPClient sends HTTP requests. [http.Client] is a production
// implementation.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Metrics collects gateway check statistics.
type Metrics interface {
	// Checked is called after each retrieval check.
	Checked(endpoint string, o Outcome)
}

// Prm groups optional parameters of CheckAll.
type Prm struct {
	// Writes check progress into the log.
	Logger *zap.Logger

	// Sends HTTP requests. Defaults to [http.DefaultClient].
	Client HTTPClient

	// Timeout of the single retrieval check. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Pause after rate limiting or timeout. Defaults to DefaultBackoff.
	Backoff time.Duration

	// Limits number of checks of the single ID per endpoint. IDs reaching the
	// limit are reported as unresolved. Zero means no limit: while ctx is
	// alive, worker of the permanently failing endpoint never stops.
	MaxAttempts int

	// Optional metrics collector.
	Metrics Metrics

	sleep func(context.Context, time.Duration) error
}

// Report describes finished CheckAll run.
type Report struct {
	// IDs that have not been retrieved, by endpoint URL. Endpoints with all IDs
	// retrieved are not listed.
	Unresolved map[string][]cid.Cid
}

// OK checks whether all IDs have been retrieved from all endpoints.
func (x Report) OK() bool {
	return len(x.Unresolved) == 0
}

// CheckAll checks that every content ID may be retrieved via every endpoint.
// Endpoints without URL scheme are accessed via HTTPS, repeated endpoints are
// checked once. CheckAll returns when all workers have finished. If ctx is
// done, workers stop, IDs remaining in their queues are reported as
// unresolved and ctx error is returned.
func CheckAll(ctx context.Context, ids []cid.Cid, endpoints []string, prm Prm) (Report, error) {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}
	if prm.Client == nil {
		prm.Client = http.DefaultClient
	}
	if prm.Timeout <= 0 {
		prm.Timeout = DefaultTimeout
	}
	if prm.Backoff <= 0 {
		prm.Backoff = DefaultBackoff
	}
	if prm.sleep == nil {
		prm.sleep = sleep
	}

	var urls []string
	for i := range endpoints {
		u := NormalizeEndpoint(endpoints[i])
		if u != "" && !slices.Contains(urls, u) {
			urls = append(urls, u)
		}
	}

	var (
		g          errgroup.Group
		unresolved = make([][]cid.Cid, len(urls))
	)

	for i := range urls {
		w := worker{
			prm:      prm,
			endpoint: urls[i],
			log:      prm.Logger.With(zap.String("endpoint", urls[i])),
		}

		g.Go(func() error {
			var err error
			unresolved[i], err = w.run(ctx, ids)
			return err
		})
	}

	err := g.Wait()

	var res Report
	for i := range urls {
		if len(unresolved[i]) > 0 {
			if res.Unresolved == nil {
				res.Unresolved = make(map[string][]cid.Cid)
			}
			res.Unresolved[urls[i]] = unresolved[i]
		}
	}

	return res, err
}

// NormalizeEndpoint returns endpoint URL with scheme and without trailing
// slash. HTTPS scheme is used if not specified.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return ""
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	return endpoint
}

type worker struct {
	prm      Prm
	endpoint string
	log      *zap.Logger
}

// run checks all IDs and returns unresolved ones.
func (x worker) run(ctx context.Context, ids []cid.Cid) ([]cid.Cid, error) {
	var (
		queue      = slices.Clone(ids)
		unresolved []cid.Cid
		attempts   map[cid.Cid]int
	)

	if x.prm.MaxAttempts > 0 {
		attempts = make(map[cid.Cid]int)
	}

	x.log.Info("checking content availability...", zap.Int("ids", len(queue)))

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return append(unresolved, queue...), err
		}

		id := queue[0]
		queue = queue[1:]

		o, err := x.check(ctx, id)
		if o == Available {
			if x.prm.Metrics != nil {
				x.prm.Metrics.Checked(x.endpoint, o)
			}
			x.log.Debug("content is available", zap.Stringer("id", id), zap.Int("left", len(queue)))
			continue
		}

		// failures caused by the interruption say nothing about the gateway
		if ctxErr := ctx.Err(); ctxErr != nil {
			return append(append(unresolved, id), queue...), ctxErr
		}

		if x.prm.Metrics != nil {
			x.prm.Metrics.Checked(x.endpoint, o)
		}

		x.log.Debug("content check failed", zap.Stringer("id", id), zap.Stringer("outcome", o), zap.Error(err))

		if attempts != nil {
			attempts[id]++
			if attempts[id] >= x.prm.MaxAttempts {
				x.log.Warn("content is still unavailable, giving up",
					zap.Stringer("id", id), zap.Int("attempts", attempts[id]), zap.Error(err))
				unresolved = append(unresolved, id)
				continue
			}
		}

		switch o {
		case RateLimited:
			if err := x.prm.sleep(ctx, x.prm.Backoff); err != nil {
				return append(append(unresolved, queue...), id), err
			}
			queue = append(queue, id)
		case TimedOut:
			queue = slices.Insert(queue, 0, id)
			if err := x.prm.sleep(ctx, x.prm.Backoff); err != nil {
				return append(unresolved, queue...), err
			}
		default:
			queue = append(queue, id)
		}
	}

	if len(unresolved) > 0 {
		x.log.Info("content check finished with unresolved IDs", zap.Int("unresolved", len(unresolved)))
	} else {
		x.log.Info("all content is available")
	}

	return unresolved, nil
}

func (x worker) check(ctx context.Context, id cid.Cid) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, x.prm.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.endpoint+"/ipfs/"+id.String()+"/", nil)
	if err != nil {
		return Failed, fmt.Errorf("create request: %w", err)
	}

	resp, err := x.prm.Client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return TimedOut, err
		}
		return Failed, fmt.Errorf("send request: %w", err)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Available, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return RateLimited, errors.New("too many requests")
	default:
		return Failed, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var e net.Error
	return errors.As(err, &e) && e.Timeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
