package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/palisade-io/palisade/internal/domain"
)

// TenantResolver is the slice of the tenant store the authentication flow
// needs: an inactive or missing tenant refuses every login.
type TenantResolver interface {
	GetByID(ctx context.Context, tenantID uuid.UUID) (*domain.Tenant, error)
}

// dummyHash is a fixed Argon2id hash verified on the "user not found" branch
// so its latency matches the known-user path. The password behind it is
// random and discarded; no credential ever matches it.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$c29tZXNhbHRzb21lc2FsdA$RdescudvJCsgt3ub+b+dWRWJTmaaJObG"

// Service orchestrates the authentication flow. It is agnostic of the HTTP
// transport and of the concrete store implementations behind its interfaces.
type Service struct {
	users    UserRepository
	tenants  TenantResolver
	hasher   PasswordHasher
	mfa      *MFAService
	sessions *SessionManager
	rbac     *RBACService
	logger   *slog.Logger
}

func NewService(
	users UserRepository,
	tenants TenantResolver,
	hasher PasswordHasher,
	mfa *MFAService,
	sessions *SessionManager,
	rbac *RBACService,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		tenants:  tenants,
		hasher:   hasher,
		mfa:      mfa,
		sessions: sessions,
		rbac:     rbac,
		logger:   logger,
	}
}

// RegisterInput defines the data needed to register a new user.
type RegisterInput struct {
	Email    string
	Password string
	TenantID uuid.UUID
}

// Register creates an active user with no roles and MFA off.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if input.Email == "" || input.Password == "" {
		return nil, domain.E(domain.KindInvalidInput, "email and password are required")
	}
	if input.TenantID == uuid.Nil {
		return nil, domain.E(domain.KindInvalidInput, "tenant id is required")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "hashing failed", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		TenantID:     input.TenantID,
		Email:        input.Email,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return s.users.Create(ctx, user)
}

// Authenticate runs the login state machine:
//
//	user missing or inactive  -> Unauthenticated
//	password mismatch         -> Unauthenticated
//	MFA on, no code           -> MFARequired
//	MFA on, bad code          -> Unauthenticated
//	all pass                  -> update last_login, create session
//
// The missing-user and wrong-password branches are indistinguishable in
// timing: a dummy hash is verified when no user exists.
func (s *Service) Authenticate(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if creds.TenantID == uuid.Nil {
		return nil, domain.E(domain.KindInvalidInput, "tenant id is required")
	}

	tenant, err := s.tenants.GetByID(ctx, creds.TenantID)
	if err != nil && !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}
	if tenant == nil || !tenant.Active {
		// Still burn a hash verification so a probing client cannot tell a
		// dead tenant from bad credentials by latency.
		_, _ = s.hasher.Verify(creds.Password, dummyHash)
		return nil, domain.E(domain.KindUnauthenticated, "invalid credentials")
	}

	user, err := s.users.GetByEmail(ctx, creds.Email, creds.TenantID)
	if err != nil {
		return nil, err
	}

	if user == nil || !user.Active {
		_, _ = s.hasher.Verify(creds.Password, dummyHash)
		return nil, domain.E(domain.KindUnauthenticated, "invalid credentials")
	}

	match, err := s.hasher.Verify(creds.Password, user.PasswordHash)
	if err != nil {
		// The stored hash is corrupt. The server is broken, not the user.
		return nil, domain.Wrap(domain.KindInternal, "stored password hash unreadable", err)
	}
	if !match {
		return nil, domain.E(domain.KindUnauthenticated, "invalid credentials")
	}

	if user.MFAEnabled {
		if creds.MFACode == "" {
			return nil, domain.E(domain.KindMFARequired, "mfa code required")
		}
		if !s.mfa.ValidateCode(creds.MFACode, user.MFASecret) {
			return nil, domain.E(domain.KindUnauthenticated, "invalid credentials")
		}
	}

	// Best effort: a failed last_login write must not fail the login.
	if err := s.users.UpdateLastLogin(ctx, user.ID, user.TenantID); err != nil {
		s.logger.Warn("last_login_update_failed", "user_id", user.ID, "error", err)
	}

	session, err := s.sessions.Create(ctx, user)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "failed to create session", err)
	}
	return session, nil
}

// AuthenticateWithMFA runs the login state machine with an explicit second
// factor, for callers that collect the code in a separate prompt step.
func (s *Service) AuthenticateWithMFA(ctx context.Context, creds domain.Credentials, code string) (*domain.Session, error) {
	creds.MFACode = code
	return s.Authenticate(ctx, creds)
}

// ValidateSession is a thin delegate to the session manager.
func (s *Service) ValidateSession(ctx context.Context, token string) (*domain.Session, error) {
	return s.sessions.Validate(ctx, token)
}

// RefreshSession rotates the session with the given id.
func (s *Service) RefreshSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	return s.sessions.Refresh(ctx, sessionID)
}

// Logout revokes one session. Revoking an absent session is not an error.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID) error {
	err := s.sessions.Remove(ctx, sessionID)
	if domain.IsKind(err, domain.KindNotFound) {
		return nil
	}
	return err
}

// LogoutAll revokes every session the user holds. Idempotent.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.RemoveAllForUser(ctx, userID)
}

// CheckPermission delegates to the RBAC evaluator and its decision cache.
func (s *Service) CheckPermission(user *domain.User, action domain.Action, resource string) bool {
	return s.rbac.CheckPermission(user, action, resource)
}

// UpdateRoles replaces a user's roles and drops the user's cached RBAC
// decisions so revoked permissions stop deciding immediately.
func (s *Service) UpdateRoles(ctx context.Context, userID, tenantID uuid.UUID, roles []domain.Role) error {
	if err := s.users.SetRoles(ctx, userID, tenantID, roles); err != nil {
		return err
	}
	s.rbac.InvalidateUser(userID)
	return nil
}

// GetUser fetches a hydrated user inside the tenant-bound unit of work.
func (s *Service) GetUser(ctx context.Context, userID, tenantID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.E(domain.KindNotFound, "user not found")
	}
	return user, nil
}

// ListUsers returns the tenant's users, fully hydrated.
func (s *Service) ListUsers(ctx context.Context, tenantID uuid.UUID) ([]*domain.User, error) {
	return s.users.List(ctx, tenantID)
}

// DeleteUser removes the user and revokes every session it holds. The
// database cascades the role assignments; the session store is cleaned
// here because it lives outside the relational cascade.
func (s *Service) DeleteUser(ctx context.Context, userID, tenantID uuid.UUID) error {
	if err := s.users.Delete(ctx, userID, tenantID); err != nil {
		return err
	}
	if err := s.sessions.RemoveAllForUser(ctx, userID); err != nil {
		return err
	}
	s.rbac.InvalidateUser(userID)
	return nil
}

// PurgeTenantSessions revokes every session held by the tenant's users and
// drops their cached RBAC decisions. Tenant deletion calls this before the
// relational cascade removes the user rows: the session store is not part of
// that cascade.
func (s *Service) PurgeTenantSessions(ctx context.Context, tenantID uuid.UUID) error {
	users, err := s.users.List(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := s.sessions.RemoveAllForUser(ctx, u.ID); err != nil {
			return err
		}
		s.rbac.InvalidateUser(u.ID)
	}
	return nil
}

// EnableMFA verifies a first code against the pending secret and persists it.
// The secret is generated by BeginMFAEnrollment and only stored after proof.
func (s *Service) EnableMFA(ctx context.Context, userID, tenantID uuid.UUID, secret, code string) error {
	if !s.mfa.ValidateCode(code, secret) {
		return domain.E(domain.KindUnauthenticated, "invalid mfa code")
	}

	user, err := s.GetUser(ctx, userID, tenantID)
	if err != nil {
		return err
	}

	user.MFAEnabled = true
	user.MFASecret = secret
	_, err = s.users.Update(ctx, user)
	return err
}

// BeginMFAEnrollment generates a fresh secret and its provisioning URI.
// Nothing is persisted until EnableMFA proves possession.
func (s *Service) BeginMFAEnrollment(ctx context.Context, userID, tenantID uuid.UUID) (secret, uri string, err error) {
	user, err := s.GetUser(ctx, userID, tenantID)
	if err != nil {
		return "", "", err
	}

	secret, err = s.mfa.GenerateSecret()
	if err != nil {
		return "", "", domain.Wrap(domain.KindInternal, "failed to generate mfa secret", err)
	}
	return secret, s.mfa.ProvisioningURI(user.Email, secret), nil
}

// DisableMFA turns MFA off and discards the stored secret.
func (s *Service) DisableMFA(ctx context.Context, userID, tenantID uuid.UUID) error {
	user, err := s.GetUser(ctx, userID, tenantID)
	if err != nil {
		return err
	}

	user.MFAEnabled = false
	user.MFASecret = ""
	_, err = s.users.Update(ctx, user)
	return err
}
