package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"
)

// Default [ProbeConfig] values.
const (
	DefaultProbeTimeout = 2500 * time.Millisecond
	DefaultProbeRetries = 3
)

// ProbeConfig groups parameters of the block existence probing.
type ProbeConfig struct {
	// Base URL of the destination read endpoint.
	URL string
	// Timeout of the single check. Defaults to DefaultProbeTimeout.
	Timeout time.Duration
	// Maximum number of checks per block. Defaults to DefaultProbeRetries.
	Retries int
}

// HTTPClient sends HTTP requests. [http.Client] is a production
// implementation.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Prober checks whether blocks are already available at the destination.
type Prober struct {
	log    *zap.Logger
	client HTTPClient
	base   string

	timeout time.Duration
	retries int
}

// NewProber constructs Prober sending checks through the given client. Nil
// client is replaced with [http.DefaultClient], nil logger disables logging.
func NewProber(cfg ProbeConfig, client HTTPClient, log *zap.Logger) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultProbeRetries
	}

	return &Prober{
		log:     log,
		client:  client,
		base:    strings.TrimRight(cfg.URL, "/"),
		timeout: cfg.Timeout,
		retries: cfg.Retries,
	}
}

// Present checks whether block with the given ID may already be read from the
// destination. Present issues up to configured number of HEAD requests: status
// 200 means the block is present, 404 means it is definitely absent. Any other
// status, timeout or transport failure is retried, and when no attempt gives a
// definite answer, the block is considered absent.
//
// The only returned error is the one of ctx.
func (x *Prober) Present(ctx context.Context, id cid.Cid) (bool, error) {
	for attempt := 1; attempt <= x.retries; attempt++ {
		status, err := x.check(ctx, id)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}

		if err == nil {
			switch status {
			case http.StatusOK:
				return true, nil
			case http.StatusNotFound:
				return false, nil
			}

			err = fmt.Errorf("unexpected status code %d", status)
		}

		x.log.Debug("ambiguous block existence check, retrying",
			zap.Stringer("block", id), zap.Int("attempt", attempt), zap.Error(err))
	}

	x.log.Warn("block existence remains unknown, treating as absent",
		zap.Stringer("block", id), zap.Int("attempts", x.retries))

	return false, nil
}

func (x *Prober) check(ctx context.Context, id cid.Cid) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, x.base+"/ipfs/"+id.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("timeout %s exceeded: %w", x.timeout, err)
		}
		return 0, fmt.Errorf("send request: %w", err)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}

	return resp.StatusCode, nil
}
