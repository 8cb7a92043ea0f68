package tenant

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/palisade-io/palisade/internal/domain"
)

// SessionPurger revokes the live sessions of a tenant's users. The session
// store lives outside the relational cascade, so tenant deletion has to
// clean it up explicitly.
type SessionPurger interface {
	PurgeTenantSessions(ctx context.Context, tenantID uuid.UUID) error
}

// Service wraps the repository with input validation. Domain uniqueness is
// enforced by the store and surfaces as Conflict.
type Service struct {
	repo   Repository
	purger SessionPurger
}

func NewService(repo Repository, purger SessionPurger) *Service {
	return &Service{repo: repo, purger: purger}
}

// CreateInput defines the input for creating a tenant. An empty domain gets
// a placeholder derived from the name so the uniqueness constraint holds.
type CreateInput struct {
	Name   string
	Domain string
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Tenant, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domain.E(domain.KindValidation, "tenant name is required")
	}

	domainName := strings.ToLower(strings.TrimSpace(input.Domain))
	if domainName == "" {
		domainName = slugify(input.Name) + ".invalid"
	}

	return s.repo.Create(ctx, domain.NewTenant(strings.TrimSpace(input.Name), domainName))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByDomain resolves the tenant serving a request host. Runs tenant-free.
func (s *Service) GetByDomain(ctx context.Context, domainName string) (*domain.Tenant, error) {
	return s.repo.GetByDomain(ctx, strings.ToLower(domainName))
}

func (s *Service) List(ctx context.Context) ([]*domain.Tenant, error) {
	return s.repo.List(ctx)
}

// UpdateInput carries the mutable tenant fields; nil means unchanged.
type UpdateInput struct {
	Name   *string
	Domain *string
	Active *bool
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*domain.Tenant, error) {
	tenant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, domain.E(domain.KindValidation, "tenant name is required")
		}
		tenant.Name = strings.TrimSpace(*input.Name)
	}
	if input.Domain != nil {
		tenant.Domain = strings.ToLower(strings.TrimSpace(*input.Domain))
	}
	if input.Active != nil {
		tenant.Active = *input.Active
	}

	return s.repo.Update(ctx, tenant)
}

// Delete removes the tenant. The database cascades to its users and their
// role assignments; sessions are revoked first, while the users can still be
// enumerated.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if s.purger != nil {
		if err := s.purger.PurgeTenantSessions(ctx, id); err != nil {
			return err
		}
	}
	return s.repo.Delete(ctx, id)
}

func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
