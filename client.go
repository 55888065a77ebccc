package jimmy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/st-keller/jimmy-client/api"
	"github.com/st-keller/jimmy-client/cache"
	"github.com/st-keller/jimmy-client/diag"
	"github.com/st-keller/jimmy-client/poll"
	"github.com/st-keller/jimmy-client/sink"
	"github.com/st-keller/jimmy-client/transport"
	"github.com/st-keller/jimmy-client/types"
)

// DefaultMaxLogEntries is the size of the recent-logs ring buffer.
const DefaultMaxLogEntries = 100

// Config holds client configuration. Only BaseURL is required.
type Config struct {
	BaseURL        string        // Backend URL (e.g., "https://jimmy.example.com")
	ClientName     string        // Reported in User-Agent (default "jimmy-client")
	Version        string        // Reported in User-Agent (default "dev")
	CertPath       string        // Client certificate for mTLS (optional)
	KeyPath        string        // Client key for mTLS (optional)
	CAPath         string        // CA certificate for mTLS (optional)
	RequestTimeout time.Duration // Per-request timeout; zero means none
	MaxLogEntries  int           // Recent-logs capacity (default 100)

	Cache      cache.Store   // Question-text cache (default in-memory)
	Logger     *slog.Logger  // Process log (default discard)
	HTTPClient *http.Client  // Overrides the transport built from cert options
	PollOpts   []poll.Option // Extra scheduler options (clock, delay)
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("BaseURL required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("BaseURL invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BaseURL must be http or https, got %q", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("BaseURL missing host")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("RequestTimeout must be >= 0")
	}
	if c.MaxLogEntries < 0 {
		return fmt.Errorf("MaxLogEntries must be >= 0")
	}
	if c.HTTPClient == nil {
		if err := c.transportOptions().Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) transportOptions() transport.Options {
	return transport.Options{
		CertPath: c.CertPath,
		KeyPath:  c.KeyPath,
		CAPath:   c.CAPath,
		Timeout:  c.RequestTimeout,
	}
}

// Client runs searches against the Jimmy backend.
type Client struct {
	config    Config
	api       *api.Client
	cache     cache.Store
	sink      sink.Sink
	scheduler *poll.Scheduler
	info      diag.ClientInfo

	logs         *diag.RecentLogs
	connectivity *diag.ConnectivityTracker
}

// New creates a client that reports every event to s.
func New(config Config, s sink.Sink) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = diag.DiscardLogger()
	}
	maxEntries := config.MaxLogEntries
	if maxEntries == 0 {
		maxEntries = DefaultMaxLogEntries
	}
	logs := diag.NewRecentLogs(maxEntries, logger)
	connectivity := diag.NewConnectivityTracker()

	httpClient := config.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = transport.Build(config.transportOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to build HTTP client: %w", err)
		}
	}

	store := config.Cache
	if store == nil {
		store = cache.NewMemory()
	}

	info := diag.DetectClientInfo(config.ClientName, config.Version)
	apiClient := api.New(config.BaseURL, httpClient, info.UserAgent(), logs, connectivity)

	safeSink := sink.Safe(s, func(event string, recovered any, stack []byte) {
		logs.Error("Sink callback panicked", map[string]interface{}{
			"event": event,
			"panic": recovered,
			"stack": string(stack),
		})
	})

	opts := append([]poll.Option{poll.WithLogs(logs)}, config.PollOpts...)
	scheduler := poll.New(poll.CheckFunc(apiClient.Status), s, opts...)

	client := &Client{
		config:       config,
		api:          apiClient,
		cache:        store,
		sink:         safeSink,
		scheduler:    scheduler,
		info:         info,
		logs:         logs,
		connectivity: connectivity,
	}

	client.checkCertificate(time.Now())

	logs.Info("Jimmy client initialized", map[string]interface{}{
		"base_url":   config.BaseURL,
		"mtls":       config.transportOptions().MutualTLS(),
		"user_agent": info.UserAgent(),
	})

	return client, nil
}

// checkCertificate warns when the client certificate is expired or about to be.
func (c *Client) checkCertificate(now time.Time) {
	if c.config.CertPath == "" {
		return
	}

	cert, err := transport.InspectCertificate(c.config.CertPath, now)
	if err != nil {
		c.logs.Warn("Certificate check failed", map[string]interface{}{
			"path":  c.config.CertPath,
			"error": err.Error(),
		})
		return
	}

	switch {
	case cert.IsExpired:
		c.logs.Error("Client certificate expired", map[string]interface{}{
			"path":        cert.Path,
			"subject":     cert.Subject,
			"valid_until": cert.ValidUntil,
		})
	case cert.ExpiryWarning:
		c.logs.Warn("Client certificate expires soon", map[string]interface{}{
			"path":              cert.Path,
			"subject":           cert.Subject,
			"days_until_expiry": cert.DaysUntilExpiry,
		})
	}
}

// ResolveQuestion shows the text of question id. The cache is consulted
// first; a lookup result is written back. When the question cannot be
// found the sink gets the placeholder and the not-found answer, and the item
// is reset if it was being tracked.
func (c *Client) ResolveQuestion(ctx context.Context, id types.ItemID) (string, error) {
	text, ok, err := c.cache.Get(ctx, id)
	if err != nil {
		c.logs.Warn("Question cache read failed", map[string]interface{}{
			"item_id": id.String(),
			"error":   err.Error(),
		})
	}
	if ok {
		c.sink.Question(id, text)
		return text, nil
	}

	text, err = c.api.Question(ctx, id)
	if err != nil {
		c.logs.Warn("Question lookup failed", map[string]interface{}{
			"item_id": id.String(),
			"error":   err.Error(),
		})
		c.sink.Question(id, sink.QuestionPlaceholder)
		c.sink.Answer(sink.AnswerEvent{ID: id, Answer: sink.NotFoundAnswer, NotFound: true})
		c.scheduler.ResetItem(id)
		return "", fmt.Errorf("failed to resolve question %s: %w", id, err)
	}

	if err := c.cache.Put(ctx, id, text); err != nil {
		c.logs.Warn("Question cache write failed", map[string]interface{}{
			"item_id": id.String(),
			"error":   err.Error(),
		})
	}
	c.sink.Question(id, text)
	return text, nil
}

// Search resolves the question text and starts tracking id. Whatever was
// tracked before is dropped first, so it cannot answer while the lookup
// runs. Tracking does not start when the question cannot be resolved.
func (c *Client) Search(ctx context.Context, id types.ItemID) error {
	c.scheduler.Reset()
	if _, err := c.ResolveQuestion(ctx, id); err != nil {
		return err
	}
	return c.scheduler.StartTracking(id)
}

// Bump pays to move id to the front of the queue. A failed charge re-renders
// the offer with the error flag; the poll cycle is not disturbed.
func (c *Client) Bump(ctx context.Context, id types.ItemID, token string) error {
	c.sink.BumpPending(id)

	err := c.api.Charge(ctx, id, token)
	if err == nil {
		c.logs.Info("Escalation charge succeeded", map[string]interface{}{
			"item_id": id.String(),
		})
		c.sink.BumpComplete(id)
		return nil
	}

	c.logs.Warn("Escalation charge failed", map[string]interface{}{
		"item_id": id.String(),
		"error":   err.Error(),
	})

	if rerr := c.scheduler.Refresh(id, true); rerr != nil {
		// not tracked: no check will carry the flag, so render directly
		c.sink.Offer(sink.OfferEvent{ID: id, Position: -1, BumpError: true})
	}
	return fmt.Errorf("failed to bump question %s: %w", id, err)
}

// Recent returns recently answered searches.
func (c *Client) Recent(ctx context.Context) ([]types.RecentItem, error) {
	items, err := c.api.Recent(ctx)
	if err != nil {
		if !errors.Is(err, api.ErrUnavailable) {
			c.logs.Warn("Recent items request failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil, err
	}
	return items, nil
}

// Reset stops tracking the current question.
func (c *Client) Reset() {
	c.scheduler.Reset()
}

// Close stops the scheduler and releases the cache.
func (c *Client) Close() error {
	c.scheduler.Stop()
	if err := c.cache.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}
	c.logs.Info("Jimmy client closed", nil)
	return nil
}

// Logs returns the recent-logs buffer.
func (c *Client) Logs() *diag.RecentLogs {
	return c.logs
}

// Connectivity returns per-endpoint call statistics.
func (c *Client) Connectivity() *diag.ConnectivityTracker {
	return c.connectivity
}

// Scheduler returns the poll scheduler.
func (c *Client) Scheduler() *poll.Scheduler {
	return c.scheduler
}

// Info returns the client runtime info.
func (c *Client) Info() diag.ClientInfo {
	return c.info
}
