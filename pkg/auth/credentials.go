// Package auth manages per-athlete Strava credentials: freshness checks
// and token refresh against the upstream platform.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aceriverson/titlesv2/pkg/errs"
	"github.com/aceriverson/titlesv2/pkg/model"
	"github.com/aceriverson/titlesv2/pkg/strava"
)

// refreshSkew refreshes tokens expiring within the next minute, so a
// bearer returned here stays valid for the rest of the pipeline.
const refreshSkew = time.Minute

// CredentialStore is the slice of the user repository the manager needs.
type CredentialStore interface {
	GetCredential(ctx context.Context, owner int64) (*model.Credential, error)
	UpdateTokens(ctx context.Context, owner int64, accessToken, refreshToken string, expiresAt int64) error
}

// Refresher exchanges a refresh token upstream.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*strava.TokenResponse, error)
}

// Manager hands out valid bearer tokens. Refreshes for the same owner are
// serialised in-process; cross-process races are accepted at this scale.
type Manager struct {
	store     CredentialStore
	refresher Refresher
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewManager constructs a credential manager.
func NewManager(store CredentialStore, refresher Refresher, logger *slog.Logger) *Manager {
	return &Manager{
		store:     store,
		refresher: refresher,
		logger:    logger,
		locks:     make(map[int64]*sync.Mutex),
	}
}

func (m *Manager) ownerLock(owner int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[owner]
	if !ok {
		l = &sync.Mutex{}
		m.locks[owner] = l
	}
	return l
}

// EnsureValid returns the owner's credential with a usable access token.
// A missing record fails with ErrNoCredential; a failed upstream refresh
// fails with ErrRefresh. Either way the caller drops the event, no retry.
func (m *Manager) EnsureValid(ctx context.Context, owner int64) (*model.Credential, error) {
	lock := m.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	cred, err := m.store.GetCredential(ctx, owner)
	if err != nil {
		return nil, err
	}

	expiry := time.Unix(cred.ExpiresAt, 0)
	if time.Now().Add(refreshSkew).Before(expiry) {
		return cred, nil
	}

	m.logger.Info("access token expired, refreshing", "owner", owner)

	tok, err := m.refresher.RefreshToken(ctx, cred.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: owner %d: %v", errs.ErrRefresh, owner, err)
	}

	// Strava rotates refresh tokens; keep the old one if none came back.
	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = cred.RefreshToken
	}

	if err := m.store.UpdateTokens(ctx, owner, tok.AccessToken, refreshToken, tok.ExpiresAt); err != nil {
		return nil, fmt.Errorf("persist refreshed tokens: %w", err)
	}

	cred.AccessToken = tok.AccessToken
	cred.RefreshToken = refreshToken
	cred.ExpiresAt = tok.ExpiresAt
	return cred, nil
}
