package auth_test

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-io/palisade/internal/auth"
	"github.com/palisade-io/palisade/internal/domain"
)

// fakeUserRepo is an in-memory UserRepository with the same visibility
// rules as the tenant-bound Postgres implementation: every lookup is scoped
// to one tenant.
type fakeUserRepo struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*domain.User
	lastLoginErr  error
	lastLoginSets int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.TenantID == user.TenantID && strings.EqualFold(existing.Email, user.Email) {
			return nil, domain.E(domain.KindConflict, "email already registered for tenant")
		}
	}
	copied := *user
	r.users[user.ID] = &copied
	out := copied
	return &out, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string, tenantID uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.TenantID == tenantID && strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID, tenantID uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.TenantID != tenantID {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok || existing.TenantID != user.TenantID {
		return nil, domain.E(domain.KindNotFound, "user not found")
	}
	copied := *user
	r.users[user.ID] = &copied
	out := copied
	return &out, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, userID, tenantID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.TenantID != tenantID {
		return domain.E(domain.KindNotFound, "user not found")
	}
	delete(r.users, userID)
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, userID, tenantID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastLoginErr != nil {
		return r.lastLoginErr
	}
	if u, ok := r.users[userID]; ok && u.TenantID == tenantID {
		now := time.Now().UTC()
		u.LastLogin = &now
		r.lastLoginSets++
	}
	return nil
}

func (r *fakeUserRepo) List(_ context.Context, tenantID uuid.UUID) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.users {
		if u.TenantID == tenantID {
			copied := *u
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) SetRoles(_ context.Context, userID, tenantID uuid.UUID, roles []domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.TenantID != tenantID {
		return domain.E(domain.KindNotFound, "user not found")
	}
	u.Roles = roles
	return nil
}

// fakeTenants resolves tenants from a fixed map.
type fakeTenants struct {
	tenants map[uuid.UUID]*domain.Tenant
}

func (f *fakeTenants) GetByID(_ context.Context, tenantID uuid.UUID) (*domain.Tenant, error) {
	t, ok := f.tenants[tenantID]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "tenant not found")
	}
	return t, nil
}

// countingHasher wraps the real hasher and counts Verify calls, so tests
// can prove the dummy verification runs on the missing-user branch.
type countingHasher struct {
	inner   auth.PasswordHasher
	verifys int
}

func (h *countingHasher) Hash(password string) (string, error) { return h.inner.Hash(password) }

func (h *countingHasher) Verify(password, hash string) (bool, error) {
	h.verifys++
	return h.inner.Verify(password, hash)
}

type serviceFixture struct {
	service *auth.Service
	repo    *fakeUserRepo
	hasher  *countingHasher
	mfa     *auth.MFAService
	tenants *fakeTenants
	tenant  *domain.Tenant
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	tenant := domain.NewTenant("Acme", "acme.example.com")
	tenants := &fakeTenants{tenants: map[uuid.UUID]*domain.Tenant{tenant.ID: tenant}}

	repo := newFakeUserRepo()
	hasher := &countingHasher{inner: auth.NewArgon2Hasher()}
	mfa := auth.NewMFAService(auth.DefaultMFAConfig("Palisade"))
	manager := auth.NewSessionManager(auth.NewMemorySessionStore(), auth.NewHMACTokenProvider(testJWTConfig()), 30*time.Minute)

	service := auth.NewService(repo, tenants, hasher, mfa, manager, auth.NewRBACService(),
		slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	return &serviceFixture{service: service, repo: repo, hasher: hasher, mfa: mfa, tenants: tenants, tenant: tenant}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (f *serviceFixture) register(t *testing.T, email, password string) *domain.User {
	t.Helper()
	user, err := f.service.Register(context.Background(), auth.RegisterInput{
		Email:    email,
		Password: password,
		TenantID: f.tenant.ID,
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	f := newServiceFixture(t)

	user := f.register(t, "user@x.io", "p4ssw0rd!")
	assert.True(t, user.Active)
	assert.False(t, user.MFAEnabled)
	assert.Empty(t, user.Roles)
	assert.NotEqual(t, "p4ssw0rd!", user.PasswordHash)

	// Duplicate email in the same tenant conflicts.
	_, err := f.service.Register(context.Background(), auth.RegisterInput{
		Email: "user@x.io", Password: "other", TenantID: f.tenant.ID,
	})
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestRegisterValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Register(ctx, auth.RegisterInput{Email: "", Password: "pw", TenantID: f.tenant.ID})
	assert.True(t, domain.IsKind(err, domain.KindInvalidInput))

	_, err = f.service.Register(ctx, auth.RegisterInput{Email: "a@b.c", Password: "", TenantID: f.tenant.ID})
	assert.True(t, domain.IsKind(err, domain.KindInvalidInput))

	_, err = f.service.Register(ctx, auth.RegisterInput{Email: "a@b.c", Password: "pw"})
	assert.True(t, domain.IsKind(err, domain.KindInvalidInput))
}

func TestAuthenticateSuccess(t *testing.T) {
	f := newServiceFixture(t)
	user := f.register(t, "user@x.io", "p1")

	session, err := f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "user@x.io", Password: "p1", TenantID: f.tenant.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
	assert.Equal(t, f.tenant.ID, session.TenantID)
	assert.Equal(t, 1, f.repo.lastLoginSets)

	validated, err := f.service.ValidateSession(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, validated.ID)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "user@x.io", "p1")

	_, err := f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "user@x.io", Password: "wrong", TenantID: f.tenant.ID,
	})
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
}

func TestAuthenticateUnknownUserBurnsHash(t *testing.T) {
	f := newServiceFixture(t)

	before := f.hasher.verifys
	_, err := f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "ghost@x.io", Password: "anything", TenantID: f.tenant.ID,
	})
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
	assert.Equal(t, before+1, f.hasher.verifys,
		"missing-user branch must still verify against the dummy hash")
}

func TestAuthenticateCrossTenantIsolation(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "user@x.io", "p1")

	other := domain.NewTenant("Rival", "rival.example.com")
	f.tenants.tenants[other.ID] = other

	_, err := f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "user@x.io", Password: "p1", TenantID: other.ID,
	})
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated),
		"valid credentials under the wrong tenant must not authenticate")

	session, err := f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "user@x.io", Password: "p1", TenantID: f.tenant.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, f.tenant.ID, session.TenantID)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	f := newServiceFixture(t)
	user := f.register(t, "user@x.io", "p1")

	user.Active = false
	_, err := f.repo.Update(context.Background(), user)
	require.NoError(t, err)

	_, err = f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "user@x.io", Password: "p1", TenantID: f.tenant.ID,
	})
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
}

func TestAuthenticateInactiveTenant(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "user@x.io", "p1")

	f.tenant.Active = false

	_, err := f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "user@x.io", Password: "p1", TenantID: f.tenant.ID,
	})
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated),
		"an inactive tenant disables all authentication")
}

func TestAuthenticateUnknownTenant(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "user@x.io", Password: "p1", TenantID: uuid.New(),
	})
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
}

func TestAuthenticateCorruptHashIsInternal(t *testing.T) {
	f := newServiceFixture(t)
	user := f.register(t, "user@x.io", "p1")

	user.PasswordHash = "not-a-valid-hash"
	_, err := f.repo.Update(context.Background(), user)
	require.NoError(t, err)

	_, err = f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "user@x.io", Password: "p1", TenantID: f.tenant.ID,
	})
	assert.True(t, domain.IsKind(err, domain.KindInternal),
		"a corrupt stored hash is a server fault, not bad credentials")
}

func TestAuthenticateMFAGating(t *testing.T) {
	f := newServiceFixture(t)
	user := f.register(t, "mfa@x.io", "p1")

	const secret = "JBSWY3DPEHPK3PXP"
	user.MFAEnabled = true
	user.MFASecret = secret
	_, err := f.repo.Update(context.Background(), user)
	require.NoError(t, err)

	// Correct password, no code: the caller is told to prompt.
	_, err = f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "mfa@x.io", Password: "p1", TenantID: f.tenant.ID,
	})
	assert.True(t, domain.IsKind(err, domain.KindMFARequired))

	// Wrong code: plain authentication failure.
	_, err = f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "mfa@x.io", Password: "p1", TenantID: f.tenant.ID, MFACode: "000000",
	})
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))

	// Current code: session issued.
	code, err := f.mfa.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	session, err := f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "mfa@x.io", Password: "p1", TenantID: f.tenant.ID, MFACode: code,
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)

	// The two-step form behaves identically.
	session, err = f.service.AuthenticateWithMFA(context.Background(), domain.Credentials{
		Email: "mfa@x.io", Password: "p1", TenantID: f.tenant.ID,
	}, code)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
}

func TestAuthenticateLastLoginBestEffort(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "user@x.io", "p1")

	f.repo.lastLoginErr = domain.E(domain.KindDatabase, "write failed")

	_, err := f.service.Authenticate(context.Background(), domain.Credentials{
		Email: "user@x.io", Password: "p1", TenantID: f.tenant.ID,
	})
	assert.NoError(t, err, "a failed last_login write must not fail the login")
}

func TestLogoutAndLogoutAll(t *testing.T) {
	f := newServiceFixture(t)
	user := f.register(t, "user@x.io", "p1")
	ctx := context.Background()

	creds := domain.Credentials{Email: "user@x.io", Password: "p1", TenantID: f.tenant.ID}
	s1, err := f.service.Authenticate(ctx, creds)
	require.NoError(t, err)
	s2, err := f.service.Authenticate(ctx, creds)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, s1.ID))
	_, err = f.service.ValidateSession(ctx, s1.Token)
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))

	// Logout is idempotent.
	require.NoError(t, f.service.Logout(ctx, s1.ID))

	// The other session is still alive until logout_all.
	_, err = f.service.ValidateSession(ctx, s2.Token)
	require.NoError(t, err)

	require.NoError(t, f.service.LogoutAll(ctx, user.ID))
	_, err = f.service.ValidateSession(ctx, s2.Token)
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))

	require.NoError(t, f.service.LogoutAll(ctx, user.ID))
}

func TestRefreshThroughService(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "user@x.io", "p1")
	ctx := context.Background()

	s1, err := f.service.Authenticate(ctx, domain.Credentials{
		Email: "user@x.io", Password: "p1", TenantID: f.tenant.ID,
	})
	require.NoError(t, err)

	s2, err := f.service.RefreshSession(ctx, s1.ID)
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID, s2.ID)

	_, err = f.service.ValidateSession(ctx, s1.Token)
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
}

func TestUpdateRolesInvalidatesDecisions(t *testing.T) {
	f := newServiceFixture(t)
	user := f.register(t, "user@x.io", "p1")
	ctx := context.Background()

	role := domain.Role{
		ID:   uuid.New(),
		Type: domain.RoleTypeUser,
		Name: "reader",
		Permissions: []domain.Permission{{
			ID: uuid.New(), Name: "read-posts", Action: domain.ActionRead, Resource: "posts",
		}},
	}
	require.NoError(t, f.service.UpdateRoles(ctx, user.ID, f.tenant.ID, []domain.Role{role}))

	hydrated, err := f.service.GetUser(ctx, user.ID, f.tenant.ID)
	require.NoError(t, err)
	assert.True(t, f.service.CheckPermission(hydrated, domain.ActionRead, "posts"))

	// Revoking the role must invalidate the cached decision.
	require.NoError(t, f.service.UpdateRoles(ctx, user.ID, f.tenant.ID, nil))
	hydrated, err = f.service.GetUser(ctx, user.ID, f.tenant.ID)
	require.NoError(t, err)
	assert.False(t, f.service.CheckPermission(hydrated, domain.ActionRead, "posts"))
}

func TestDeleteUserRevokesSessions(t *testing.T) {
	f := newServiceFixture(t)
	user := f.register(t, "user@x.io", "p1")
	ctx := context.Background()

	session, err := f.service.Authenticate(ctx, domain.Credentials{
		Email: "user@x.io", Password: "p1", TenantID: f.tenant.ID,
	})
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteUser(ctx, user.ID, f.tenant.ID))

	// The user's sessions die with the user.
	_, err = f.service.ValidateSession(ctx, session.Token)
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))

	_, err = f.service.GetUser(ctx, user.ID, f.tenant.ID)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	users, err := f.service.ListUsers(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestPurgeTenantSessions(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t, "a@x.io", "p1")
	f.register(t, "b@x.io", "p1")
	ctx := context.Background()

	s1, err := f.service.Authenticate(ctx, domain.Credentials{Email: "a@x.io", Password: "p1", TenantID: f.tenant.ID})
	require.NoError(t, err)
	s2, err := f.service.Authenticate(ctx, domain.Credentials{Email: "b@x.io", Password: "p1", TenantID: f.tenant.ID})
	require.NoError(t, err)

	require.NoError(t, f.service.PurgeTenantSessions(ctx, f.tenant.ID))

	for _, s := range []*domain.Session{s1, s2} {
		_, err := f.service.ValidateSession(ctx, s.Token)
		assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
	}

	// Idempotent; a tenant with no users purges nothing.
	require.NoError(t, f.service.PurgeTenantSessions(ctx, f.tenant.ID))
	require.NoError(t, f.service.PurgeTenantSessions(ctx, uuid.New()))
}

func TestMFAEnrollment(t *testing.T) {
	f := newServiceFixture(t)
	user := f.register(t, "user@x.io", "p1")
	ctx := context.Background()

	secret, uri, err := f.service.BeginMFAEnrollment(ctx, user.ID, f.tenant.ID)
	require.NoError(t, err)
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Contains(t, uri, "user@x.io")

	// Wrong proof: nothing persisted.
	err = f.service.EnableMFA(ctx, user.ID, f.tenant.ID, secret, "000000")
	assert.True(t, domain.IsKind(err, domain.KindUnauthenticated))
	stored, err := f.service.GetUser(ctx, user.ID, f.tenant.ID)
	require.NoError(t, err)
	assert.False(t, stored.MFAEnabled)

	// Valid proof enables MFA.
	code, err := f.mfa.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.service.EnableMFA(ctx, user.ID, f.tenant.ID, secret, code))

	stored, err = f.service.GetUser(ctx, user.ID, f.tenant.ID)
	require.NoError(t, err)
	assert.True(t, stored.MFAEnabled)
	assert.Equal(t, secret, stored.MFASecret)

	require.NoError(t, f.service.DisableMFA(ctx, user.ID, f.tenant.ID))
	stored, err = f.service.GetUser(ctx, user.ID, f.tenant.ID)
	require.NoError(t, err)
	assert.False(t, stored.MFAEnabled)
	assert.Empty(t, stored.MFASecret)
}
