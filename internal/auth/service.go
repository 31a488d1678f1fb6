package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/TamirHazut/ERP/internal/ids"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuer     = "erp.localhost"

	refreshSecretBytes = 32
)

// Service issues, verifies and revokes token pairs. Access tokens are
// HS256 JWTs with materialized permissions; refresh tokens are opaque
// random secrets. The active pair per (tenant, user) lives in the
// TokenIndex, so revocation is a deletion there.
type Service struct {
	store Store
	index TokenIndex

	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		issuer = strings.TrimSpace(issuer)
		if issuer != "" {
			s.issuer = issuer
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, index TokenIndex, secret []byte, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if index == nil {
		return nil, errors.New("auth: token index is required")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	svc := &Service{
		store:      store,
		index:      index,
		secret:     secret,
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Login authenticates the user inside the tenant and issues a fresh
// token pair. The identifier is a username or, when it contains an
// "@", an email address. Any previously active pair for the user is
// replaced, so a user holds at most one live session.
func (s *Service) Login(ctx context.Context, tenantID, identifier, password string) (*TokenPair, error) {
	tenantID = strings.TrimSpace(tenantID)
	identifier = strings.TrimSpace(identifier)
	if tenantID == "" || identifier == "" || password == "" {
		return nil, fmt.Errorf("%w: tenant_id, identifier and password are required", ErrInvalidInput)
	}

	tenant, err := s.store.Tenants(ctx).Find(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.auditLoginDenied(ctx, tenantID, "", identifier)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if tenant.Status == TenantStatusSuspended || tenant.Status == TenantStatusInactive {
		s.auditLoginDenied(ctx, tenantID, "", identifier)
		return nil, ErrInvalidCredentials
	}

	user, err := s.findByIdentifier(ctx, tenantID, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn the same work as a real comparison to keep timing flat.
			_ = VerifyPassword("$2a$10$0000000000000000000000000000000000000000000000000000", password)
			s.auditLoginDenied(ctx, tenantID, "", identifier)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Status != UserStatusActive {
		s.auditLoginDenied(ctx, tenantID, user.ID, identifier)
		return nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		s.auditLoginDenied(ctx, tenantID, user.ID, identifier)
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, tenantID, user.ID, "auth.login", nil)
	return pair, nil
}

func (s *Service) findByIdentifier(ctx context.Context, tenantID, identifier string) (*User, error) {
	if strings.Contains(identifier, "@") {
		return s.store.Users(ctx).FindByEmail(ctx, tenantID, strings.ToLower(identifier))
	}
	return s.store.Users(ctx).FindByUsername(ctx, tenantID, identifier)
}

func (s *Service) auditLoginDenied(ctx context.Context, tenantID, userID, identifier string) {
	s.audit(ctx, tenantID, userID, "auth.login_denied", map[string]string{
		"identifier": identifier,
	})
}

// Refresh rotates the token pair. The owning user is resolved from
// the presented refresh token when userID is empty. The token must
// match the active one exactly; a stale token invalidates nothing.
// The swap itself is a conditional write keyed on the presented
// token, so a login landing mid-rotation keeps its pair and a
// replayed refresh token wins at most once.
func (s *Service) Refresh(ctx context.Context, tenantID, userID, refreshToken string) (*TokenPair, error) {
	tenantID = strings.TrimSpace(tenantID)
	userID = strings.TrimSpace(userID)
	refreshToken = strings.TrimSpace(refreshToken)
	if tenantID == "" || refreshToken == "" {
		return nil, fmt.Errorf("%w: tenant_id and refresh_token are required", ErrInvalidInput)
	}
	if userID == "" {
		owner, err := s.index.FindRefreshOwner(ctx, tenantID, refreshToken)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrInvalidToken
			}
			return nil, err
		}
		userID = owner
	}

	stored, err := s.index.Refresh(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
		return nil, ErrInvalidToken
	}

	user, err := s.store.Users(ctx).Find(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if user.Status != UserStatusActive {
		return nil, ErrInvalidToken
	}

	pair, err := s.mintPair(ctx, user)
	if err != nil {
		return nil, err
	}
	swapped, err := s.index.ReplacePair(ctx, tenantID, userID, refreshToken,
		pair.AccessToken, s.accessTTL, pair.RefreshToken, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("auth: rotate token pair: %w", err)
	}
	if !swapped {
		// The slot changed between validation and the swap.
		return nil, ErrInvalidToken
	}
	s.audit(ctx, tenantID, userID, "auth.refresh", nil)
	return pair, nil
}

// Verify validates the access token signature and lifetime, then
// confirms it is still the active token for its (tenant, user). A
// structurally valid token that was revoked or replaced fails here.
func (s *Service) Verify(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := s.parseAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	active, err := s.index.Access(ctx, claims.TenantID, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(active), []byte(accessToken)) != 1 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Logout drops the active pair for the user. Logging out without an
// active session is not an error.
func (s *Service) Logout(ctx context.Context, tenantID, userID string) error {
	tenantID = strings.TrimSpace(tenantID)
	userID = strings.TrimSpace(userID)
	if tenantID == "" || userID == "" {
		return fmt.Errorf("%w: tenant_id and user_id are required", ErrInvalidInput)
	}
	if err := s.index.DeletePair(ctx, tenantID, userID); err != nil {
		return err
	}
	s.audit(ctx, tenantID, userID, "auth.logout", nil)
	return nil
}

// Revoke invalidates the user's active session. Revoking an absent
// session succeeds (idempotent). When accessToken is supplied the
// deletion is conditional on it still being the active token, so a
// racing re-login is never clobbered; presenting a token that is no
// longer the active one fails ErrInvalidToken.
func (s *Service) Revoke(ctx context.Context, tenantID, userID, accessToken string) error {
	tenantID = strings.TrimSpace(tenantID)
	userID = strings.TrimSpace(userID)
	if tenantID == "" || userID == "" {
		return fmt.Errorf("%w: tenant_id and user_id are required", ErrInvalidInput)
	}
	if accessToken == "" {
		if err := s.index.DeletePair(ctx, tenantID, userID); err != nil {
			return err
		}
	} else {
		deleted, err := s.index.CompareAndDelete(ctx, tenantID, userID, accessToken)
		if err != nil {
			return err
		}
		if !deleted {
			if _, err := s.index.Access(ctx, tenantID, userID); errors.Is(err, ErrNotFound) {
				// Nothing to revoke.
				return nil
			} else if err != nil {
				return err
			}
			return ErrInvalidToken
		}
	}
	s.audit(ctx, tenantID, userID, "auth.revoke", nil)
	return nil
}

// RevokeTenant drops every active session in the tenant and returns
// how many access and refresh tokens were deleted. The counts differ
// when a session's access token already expired but its refresh token
// was still live. The sweep is a snapshot: logins that complete after
// the scan survive.
func (s *Service) RevokeTenant(ctx context.Context, tenantID string) (int64, int64, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return 0, 0, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	if _, err := s.store.Tenants(ctx).Find(ctx, tenantID); err != nil {
		return 0, 0, err
	}
	access, refresh, err := s.index.RevokeTenant(ctx, tenantID)
	if err != nil {
		return 0, 0, err
	}
	s.audit(ctx, tenantID, "", "auth.revoke_tenant", map[string]string{
		"access_tokens":  fmt.Sprintf("%d", access),
		"refresh_tokens": fmt.Sprintf("%d", refresh),
	})
	return access, refresh, nil
}

// resolveRoles loads the user's assigned role documents. Dangling
// assignments and inactive roles resolve to nothing.
func (s *Service) resolveRoles(ctx context.Context, user *User) ([]*Role, error) {
	roles := s.store.Roles(ctx)
	out := make([]*Role, 0, len(user.Roles))
	for _, a := range user.Roles {
		role, err := roles.Find(ctx, user.TenantID, a.RoleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if role.Status == RoleStatusInactive {
			continue
		}
		out = append(out, role)
	}
	return out, nil
}

// ResolveRoleNames returns the names of the user's live roles.
func (s *Service) ResolveRoleNames(ctx context.Context, user *User) ([]string, error) {
	roles, err := s.resolveRoles(ctx, user)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}

// ResolvePermissions returns the effective permission set for the
// user. Role ids expand to permission ids and then to permission
// strings at call time, so grant edits apply on the next check. Admin
// roles short-circuit to the wildcard; inactive permissions grant
// nothing. The result is sorted and deduplicated.
func (s *Service) ResolvePermissions(ctx context.Context, user *User) ([]string, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	roles, err := s.resolveRoles(ctx, user)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	if IsAdminRole(names) {
		return []string{PermissionWildcard}, nil
	}

	perms := s.store.Permissions(ctx)
	set := make(map[string]struct{})
	for _, role := range roles {
		for _, permID := range role.Permissions {
			perm, err := perms.Find(ctx, user.TenantID, permID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					// Dangling permission ids grant nothing.
					continue
				}
				return nil, err
			}
			if perm.Status == PermissionStatusInactive {
				continue
			}
			set[perm.Key()] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Service) issuePair(ctx context.Context, user *User) (*TokenPair, error) {
	pair, err := s.mintPair(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.index.PutPair(ctx, user.TenantID, user.ID, pair.AccessToken, s.accessTTL, pair.RefreshToken, s.refreshTTL); err != nil {
		return nil, fmt.Errorf("auth: store token pair: %w", err)
	}
	return pair, nil
}

// mintPair signs a fresh pair without touching the index; the caller
// decides whether to store it unconditionally or swap it in.
func (s *Service) mintPair(ctx context.Context, user *User) (*TokenPair, error) {
	roleNames, err := s.ResolveRoleNames(ctx, user)
	if err != nil {
		return nil, err
	}
	perms, err := s.ResolvePermissions(ctx, user)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	accessExp := now.Add(s.accessTTL)
	refreshExp := now.Add(s.refreshTTL)

	claims := &Claims{
		TenantID:    user.TenantID,
		Username:    user.Username,
		Email:       user.Email,
		Roles:       roleNames,
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: sign access token: %w", err)
	}

	refresh, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: refreshExp,
	}, nil
}

func (s *Service) parseAccessToken(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TenantID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) audit(ctx context.Context, tenantID, userID, action string, metadata map[string]string) {
	entry := &AuditEntry{
		ID:          ids.New(),
		OccurredAt:  s.now().UTC(),
		TenantID:    tenantID,
		ActorUserID: userID,
		Action:      action,
		Metadata:    metadata,
	}
	// Audit failures must not fail the operation itself.
	_ = s.store.Audit(ctx).Append(ctx, entry)
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
