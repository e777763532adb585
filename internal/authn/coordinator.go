package authn

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"k8s.io/utils/clock"

	"tokensession/internal/jobs"
	"tokensession/internal/session"
	"tokensession/internal/tokenstore"
	"tokensession/pkg/oauth"
)

// Default timings of the session lifecycle.
const (
	DefaultRefreshLead             = 25 * time.Minute
	DefaultHardExpiryMargin        = 5 * time.Second
	DefaultRetryDelay              = 5 * time.Minute
	DefaultOnDemandRefreshInterval = 10 * time.Second
)

// TokenClient performs the token endpoint operations. *oauth.Client
// implements it.
type TokenClient interface {
	PasswordGrant(ctx context.Context, username, password string) (*oauth2.Token, error)
	RefreshGrant(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	Revoke(ctx context.Context, accessToken string) error
}

// Coordinator manages the token lifecycle of one session against one OAuth
// endpoint.
//
// All operations that change the session run as jobs on a FIFO serializer,
// so logins, refreshes, logouts and invalidations never interleave. Reads
// (State, Username, Token) never wait for the queue.
type Coordinator struct {
	endpoint    string
	endpointURL *url.URL
	storeKey    string

	client TokenClient
	store  tokenstore.Store
	clock  clock.WithDelayedExecution
	logger *slog.Logger

	jobs      *jobs.Serializer
	emitter   *session.Emitter
	machine   *session.Machine
	scheduler *ScheduledRefresh
	limiter   *rate.Limiter

	refreshLead      time.Duration
	hardExpiryMargin time.Duration
	retryDelay       time.Duration
	onDemandInterval time.Duration
	defaultLifetime  time.Duration

	httpClient    *http.Client
	clientID      string
	clientSecret  string
	baseTransport http.RoundTripper

	mu       sync.RWMutex
	record   *tokenstore.Record
	username string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock used for expiry computation and timers.
func WithClock(clk clock.WithDelayedExecution) Option {
	return func(c *Coordinator) {
		c.clock = clk
	}
}

// WithStore sets the persistent token store. Defaults to an in-memory store.
func WithStore(store tokenstore.Store) Option {
	return func(c *Coordinator) {
		c.store = store
	}
}

// WithTokenClient replaces the token endpoint client.
func WithTokenClient(client TokenClient) Option {
	return func(c *Coordinator) {
		c.client = client
	}
}

// WithHTTPClient sets the HTTP client used for token endpoint traffic.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Coordinator) {
		c.httpClient = httpClient
	}
}

// WithClientCredentials sets the client_id and client_secret sent with
// refresh grants.
func WithClientCredentials(clientID, clientSecret string) Option {
	return func(c *Coordinator) {
		c.clientID = clientID
		c.clientSecret = clientSecret
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithRefreshLead sets how long before expiry the proactive refresh runs.
func WithRefreshLead(d time.Duration) Option {
	return func(c *Coordinator) {
		c.refreshLead = d
	}
}

// WithHardExpiryMargin sets how long before expiry the token is treated as
// expired.
func WithHardExpiryMargin(d time.Duration) Option {
	return func(c *Coordinator) {
		c.hardExpiryMargin = d
	}
}

// WithRetryDelay sets the delay before retrying a transiently failed refresh.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		c.retryDelay = d
	}
}

// WithOnDemandRefreshInterval sets the minimum interval between refreshes
// triggered by outgoing requests. Zero disables throttling.
func WithOnDemandRefreshInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		c.onDemandInterval = d
	}
}

// WithDefaultTokenLifetime sets the lifetime assumed when a token response
// carries no expiry.
func WithDefaultTokenLifetime(d time.Duration) Option {
	return func(c *Coordinator) {
		c.defaultLifetime = d
	}
}

// WithBaseTransport sets the transport wrapped by HTTPClient.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Coordinator) {
		c.baseTransport = rt
	}
}

// New creates a coordinator for the OAuth endpoint. The session starts in
// NewSession; call UseLocalToken to resume a persisted session.
func New(endpoint string, opts ...Option) (*Coordinator, error) {
	endpoint = oauth.NormalizeEndpoint(endpoint)
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}
	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint %q: %w", endpoint, err)
	}
	// The endpoint host decides which requests receive the bearer token, so
	// it must be absolute.
	if (endpointURL.Scheme != "http" && endpointURL.Scheme != "https") || endpointURL.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q must be an absolute http(s) URL", ErrNoEndpoint, endpoint)
	}

	c := &Coordinator{
		endpoint:         endpoint,
		endpointURL:      endpointURL,
		storeKey:         tokenstore.Key(endpoint),
		clock:            clock.RealClock{},
		logger:           slog.Default(),
		refreshLead:      DefaultRefreshLead,
		hardExpiryMargin: DefaultHardExpiryMargin,
		retryDelay:       DefaultRetryDelay,
		onDemandInterval: DefaultOnDemandRefreshInterval,
		defaultLifetime:  oauth.DefaultTokenLifetime,
		clientID:         oauth.DefaultRefreshClientID,
		clientSecret:     oauth.DefaultRefreshClientSecret,
		baseTransport:    http.DefaultTransport,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		c.store = tokenstore.NewMemoryStore()
	}
	if c.client == nil {
		clientOpts := []oauth.ClientOption{
			oauth.WithLogger(c.logger),
			oauth.WithClientCredentials(c.clientID, c.clientSecret),
		}
		if c.httpClient != nil {
			clientOpts = append(clientOpts, oauth.WithHTTPClient(c.httpClient))
		}
		c.client = oauth.NewClient(endpoint, clientOpts...)
	}

	limit := rate.Inf
	if c.onDemandInterval > 0 {
		limit = rate.Every(c.onDemandInterval)
	}
	c.limiter = rate.NewLimiter(limit, 1)

	c.jobs = jobs.New(c.logger)
	c.scheduler = NewScheduledRefresh(c.clock)
	c.emitter = session.NewEmitter(c.logger)
	c.machine = session.NewMachine(c.emitter,
		session.WithLogger(c.logger),
		session.WithEventHandler(session.TokenExpired, c.onTokenExpired),
		session.WithEventHandler(session.TokenInvalidated, c.onTokenInvalidated),
		session.WithEventHandler(session.TokenValid, c.syncUsername),
		session.WithEnterHandler(session.LoggedIn, c.syncUsername),
		session.WithEnterHandler(session.LoggedOut, c.clearUsername),
	)

	return c, nil
}

// Endpoint returns the normalized OAuth endpoint URL.
func (c *Coordinator) Endpoint() string {
	return c.endpoint
}

// State returns the current session state.
func (c *Coordinator) State() session.State {
	return c.machine.State()
}

// LoggedIn reports whether the session holds a confirmed access token.
func (c *Coordinator) LoggedIn() bool {
	return c.machine.State() == session.LoggedIn
}

// IsNewSession reports whether no token has been seen yet.
func (c *Coordinator) IsNewSession() bool {
	return c.machine.State() == session.NewSession
}

// Username returns the username of the logged-in principal, or "".
func (c *Coordinator) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// Token returns a copy of the in-memory token record, or nil.
func (c *Coordinator) Token() *tokenstore.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record.Clone()
}

// OnStateChanged subscribes fn to state changes and returns a function that
// unsubscribes it. fn runs synchronously inside the transition and must not
// call operations that wait for the job queue.
func (c *Coordinator) OnStateChanged(fn func(session.State)) func() {
	return c.emitter.Subscribe(fn)
}

// Close cancels all timers. Queued timer work becomes a no-op.
func (c *Coordinator) Close() {
	c.scheduler.Cancel()
}

func (c *Coordinator) onTokenExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.record != nil {
		c.record.DropAccessToken()
	}
}

func (c *Coordinator) onTokenInvalidated() {
	c.mu.Lock()
	c.record = nil
	c.mu.Unlock()
	c.scheduler.Cancel()
}

func (c *Coordinator) syncUsername() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.record != nil {
		c.username = c.record.Username
	}
}

func (c *Coordinator) clearUsername() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = ""
}

func (c *Coordinator) snapshot() *tokenstore.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record.Clone()
}

func (c *Coordinator) setRecord(rec *tokenstore.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record = rec.Clone()
}

// recordFromToken builds a record from a token response. The expiry comes
// from expires_in on the coordinator's clock, falling back to the absolute
// expiry and then to the default lifetime. A response without a refresh
// token keeps previousRefresh.
func (c *Coordinator) recordFromToken(username string, rememberMe bool, token *oauth2.Token, previousRefresh string) *tokenstore.Record {
	now := c.clock.Now()
	var expiry time.Time
	switch {
	case token.ExpiresIn > 0:
		expiry = now.Add(time.Duration(token.ExpiresIn) * time.Second)
	case !token.Expiry.IsZero():
		expiry = token.Expiry
	default:
		expiry = now.Add(c.defaultLifetime)
	}

	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = previousRefresh
	}

	return &tokenstore.Record{
		Username:          username,
		AccessToken:       token.AccessToken,
		AccessTokenExpiry: expiry,
		RefreshToken:      refreshToken,
		RememberMe:        rememberMe,
	}
}

func (c *Coordinator) persist(ctx context.Context, rec *tokenstore.Record) {
	if err := c.store.Set(ctx, c.storeKey, rec); err != nil {
		c.logger.Warn("Failed to persist token record", "endpoint", c.endpoint, "error", err)
	}
}

func (c *Coordinator) removePersisted(ctx context.Context) {
	if err := c.store.Remove(ctx, c.storeKey); err != nil {
		c.logger.Warn("Failed to remove persisted token record", "endpoint", c.endpoint, "error", err)
	}
}

func (c *Coordinator) loadPersisted(ctx context.Context) *tokenstore.Record {
	rec, err := c.store.Get(ctx, c.storeKey)
	if err != nil {
		c.logger.Warn("Failed to read persisted token record", "endpoint", c.endpoint, "error", err)
		return nil
	}
	return rec
}

// confirm moves the session to LoggedIn for rec, passing through LoggingIn
// when needed, and arms the timers for its expiry.
func (c *Coordinator) confirm(rec *tokenstore.Record) {
	if s := c.machine.State(); s != session.LoggingIn && s != session.LoggedIn {
		c.machine.Fire(session.UseToken)
	}
	c.machine.Fire(session.TokenValid)
	c.armTimers(rec.AccessTokenExpiry)
}
