package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"stockroom/internal/store"
	"stockroom/internal/types"
)

// Manager wires accounts and sessions over the store.
type Manager struct {
	store       *store.Store
	logger      *zap.Logger
	sessionTTL  time.Duration
	emailDomain string

	mu             sync.RWMutex
	adminUsernames []string
}

// Options configures a Manager.
type Options struct {
	SessionTTL     time.Duration
	EmailDomain    string
	AdminUsernames []string
}

// NewManager creates an auth manager.
func NewManager(st *store.Store, logger *zap.Logger, opts Options) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Manager{
		store:          st,
		logger:         logger,
		sessionTTL:     opts.SessionTTL,
		emailDomain:    opts.EmailDomain,
		adminUsernames: opts.AdminUsernames,
	}
}

// SetAdminUsernames replaces the admin list, used when the auth
// section of the config is reloaded. Takes effect on the next
// register or login.
func (m *Manager) SetAdminUsernames(usernames []string) {
	m.mu.Lock()
	m.adminUsernames = usernames
	m.mu.Unlock()
}

func (m *Manager) currentAdminUsernames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.adminUsernames
}

// Register creates a new account. The role is derived from the admin
// list unless an explicit role is given.
func (m *Manager) Register(ctx context.Context, username, password string, role types.Role) (*types.User, error) {
	username, err := NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}
	if role == "" {
		role = DeriveRole(username, m.currentAdminUsernames())
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &types.User{
		Username:     username,
		Email:        SyntheticEmail(username, m.emailDomain),
		Role:         role,
		PasswordHash: hash,
	}
	if err := m.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	m.logger.Info("user registered",
		zap.String("username", username),
		zap.String("role", string(user.Role)))
	return user, nil
}

// Login verifies credentials and mints a session. The error is the
// same for unknown users and bad passwords.
func (m *Manager) Login(ctx context.Context, username, password string) (*types.User, *types.Session, error) {
	username, err := NormalizeUsername(username)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	user, err := m.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !VerifyPassword(user.PasswordHash, password) {
		m.logger.Warn("login failed", zap.String("username", username))
		return nil, nil, ErrInvalidCredentials
	}

	// The admin list wins over the stored role so promoting someone in
	// config takes effect on their next login.
	if role := DeriveRole(username, m.currentAdminUsernames()); role == types.RoleAdmin && user.Role != types.RoleAdmin {
		if err := m.store.SetUserRole(ctx, user.ID, types.RoleAdmin); err == nil {
			user.Role = types.RoleAdmin
		}
	}

	sess, err := m.store.CreateSession(ctx, user.ID, m.sessionTTL)
	if err != nil {
		return nil, nil, err
	}

	m.logger.Info("login", zap.String("username", username))
	return user, sess, nil
}

// Authenticate resolves a session token to its user. Expired or
// unknown tokens return store.ErrNotFound.
func (m *Manager) Authenticate(ctx context.Context, token string) (*types.User, error) {
	sess, err := m.store.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	return m.store.GetUser(ctx, sess.UserID)
}

// Logout deletes the session.
func (m *Manager) Logout(ctx context.Context, token string) error {
	return m.store.DeleteSession(ctx, token)
}

// PurgeExpired removes expired sessions; called from the serve loop.
func (m *Manager) PurgeExpired(ctx context.Context) {
	n, err := m.store.PurgeExpiredSessions(ctx)
	if err != nil {
		m.logger.Error("session purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		m.logger.Debug("purged expired sessions", zap.Int64("count", n))
	}
}
