package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"fhir-gateway/internal/apierror"
	"fhir-gateway/internal/interfaces"
	"fhir-gateway/internal/models"
)

// Ensure CredentialProvider implements oauth2.TokenSource
var _ oauth2.TokenSource = (*CredentialProvider)(nil)

// State is the session's position in the token lifecycle
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StateRefreshing      State = "refreshing"
)

// RefreshPolicy decides whether ValidOrRefresh refreshes before returning credentials
type RefreshPolicy interface {
	ShouldRefresh(creds *models.Credentials, now time.Time) bool
}

// ManualRefresh never refreshes on its own; callers invoke Refresh explicitly
type ManualRefresh struct{}

// ShouldRefresh always returns false
func (ManualRefresh) ShouldRefresh(*models.Credentials, time.Time) bool {
	return false
}

// ExpiryRefresh refreshes once the access token is within Skew of its expiry
type ExpiryRefresh struct {
	Skew time.Duration
}

// ShouldRefresh reports a refreshable credential set that is expiring at now
func (p ExpiryRefresh) ShouldRefresh(creds *models.Credentials, now time.Time) bool {
	if creds.RefreshToken == "" {
		return false
	}
	return creds.ExpiredAt(now.Add(p.Skew))
}

// CredentialProvider owns the authoritative credentials of one session
type CredentialProvider struct {
	issuer interfaces.TokenIssuer
	source interfaces.SettingsSource
	store  interfaces.CredentialStore // optional
	policy RefreshPolicy
	clock  clock.Clock
	logger *zap.Logger

	group singleflight.Group

	// persistMu orders credential saves against Logout's delete
	persistMu sync.Mutex

	mu    sync.RWMutex
	creds *models.Credentials
	state State
	epoch uint64 // bumped by Logout; results of older logins and refreshes are dropped
}

// errLoggedOut reports a login or refresh that finished after a Logout
var errLoggedOut = fmt.Errorf("%w: session was logged out", apierror.ErrUnauthenticated)

// ProviderOption configures a CredentialProvider
type ProviderOption func(*CredentialProvider)

// WithCredentialStore persists credentials on every change
func WithCredentialStore(store interfaces.CredentialStore) ProviderOption {
	return func(p *CredentialProvider) {
		p.store = store
	}
}

// WithRefreshPolicy replaces the default ManualRefresh policy
func WithRefreshPolicy(policy RefreshPolicy) ProviderOption {
	return func(p *CredentialProvider) {
		p.policy = policy
	}
}

// WithProviderClock replaces the clock used by the refresh policy
func WithProviderClock(c clock.Clock) ProviderOption {
	return func(p *CredentialProvider) {
		p.clock = c
	}
}

// NewCredentialProvider creates an unauthenticated provider
func NewCredentialProvider(issuer interfaces.TokenIssuer, source interfaces.SettingsSource, logger *zap.Logger, opts ...ProviderOption) *CredentialProvider {
	p := &CredentialProvider{
		issuer: issuer,
		source: source,
		policy: ManualRefresh{},
		clock:  clock.New(),
		logger: logger,
		state:  StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Restore loads persisted credentials, if any
func (p *CredentialProvider) Restore(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	creds, err := p.store.LoadCredentials(ctx)
	if err != nil {
		return err
	}
	if creds == nil {
		return nil
	}

	p.mu.Lock()
	p.creds = creds
	p.state = StateAuthenticated
	p.mu.Unlock()

	p.logger.Info("Restored stored credentials", zap.Time("expiry", creds.Expiry))
	return nil
}

// Login acquires new credentials. Concurrent logins share one token request.
// A failed login leaves the previous credentials and state untouched.
func (p *CredentialProvider) Login(ctx context.Context) (*models.Credentials, error) {
	return p.shared(ctx, "login", StateAuthenticating, func(ctx context.Context) (*models.Credentials, error) {
		return p.issuer.AcquireToken(ctx, p.source)
	})
}

// Refresh exchanges the current refresh token for new credentials.
// On failure the stale credentials are kept.
func (p *CredentialProvider) Refresh(ctx context.Context) (*models.Credentials, error) {
	current, ok := p.Current()
	if !ok {
		return nil, apierror.ErrUnauthenticated
	}
	return p.shared(ctx, "refresh", StateRefreshing, func(ctx context.Context) (*models.Credentials, error) {
		return p.issuer.RefreshToken(ctx, current.RefreshToken, p.source)
	})
}

func (p *CredentialProvider) shared(ctx context.Context, key string, transient State, call func(context.Context) (*models.Credentials, error)) (*models.Credentials, error) {
	epoch := p.currentEpoch()
	ch := p.group.DoChan(fmt.Sprintf("%s:%d", key, epoch), func() (interface{}, error) {
		p.mu.Lock()
		if p.epoch != epoch {
			p.mu.Unlock()
			return nil, errLoggedOut
		}
		previous := p.state
		p.state = transient
		p.mu.Unlock()

		detached := context.WithoutCancel(ctx)
		creds, err := call(detached)
		if err != nil {
			p.mu.Lock()
			if p.epoch == epoch {
				p.state = previous
			}
			p.mu.Unlock()
			return nil, err
		}
		if !p.replace(detached, creds, epoch) {
			p.logger.Info("Discarding credentials issued after logout", zap.String("op", key))
			return nil, errLoggedOut
		}
		return creds, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Credentials), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *CredentialProvider) currentEpoch() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.epoch
}

// ValidOrRefresh returns the current credentials, refreshing first when the policy says so
func (p *CredentialProvider) ValidOrRefresh(ctx context.Context) (*models.Credentials, error) {
	current, ok := p.Current()
	if !ok {
		return nil, apierror.ErrUnauthenticated
	}
	if !p.policy.ShouldRefresh(current, p.clock.Now()) {
		return current, nil
	}

	p.logger.Debug("Refreshing expiring credentials", zap.Time("expiry", current.Expiry))
	return p.Refresh(ctx)
}

// Current returns the held credentials without refreshing
func (p *CredentialProvider) Current() (*models.Credentials, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.creds, p.creds != nil
}

// Set replaces the credentials wholesale, e.g. after an external refresh
func (p *CredentialProvider) Set(ctx context.Context, creds *models.Credentials) {
	p.replace(ctx, creds, p.currentEpoch())
}

// replace installs creds unless a Logout happened since epoch was read
func (p *CredentialProvider) replace(ctx context.Context, creds *models.Credentials, epoch uint64) bool {
	p.persistMu.Lock()
	defer p.persistMu.Unlock()

	p.mu.Lock()
	if p.epoch != epoch {
		p.mu.Unlock()
		return false
	}
	p.creds = creds
	p.state = StateAuthenticated
	p.mu.Unlock()

	if p.store == nil {
		return true
	}
	if err := p.store.SaveCredentials(ctx, creds); err != nil {
		p.logger.Warn("Failed to persist credentials", zap.Error(err))
	}
	return true
}

// Logout forgets the credentials and removes them from the store.
// Logins and refreshes still in flight complete for their callers with an error.
func (p *CredentialProvider) Logout(ctx context.Context) error {
	p.persistMu.Lock()
	defer p.persistMu.Unlock()

	p.mu.Lock()
	p.creds = nil
	p.state = StateUnauthenticated
	p.epoch++
	p.mu.Unlock()

	if p.store == nil {
		return nil
	}
	return p.store.DeleteCredentials(ctx)
}

// State returns the current lifecycle state
func (p *CredentialProvider) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Token implements oauth2.TokenSource
func (p *CredentialProvider) Token() (*oauth2.Token, error) {
	creds, err := p.ValidOrRefresh(context.Background())
	if err != nil {
		return nil, err
	}
	return creds.Token(), nil
}
