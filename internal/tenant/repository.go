package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palisade-io/palisade/internal/domain"
	"github.com/palisade-io/palisade/internal/storage"
)

// Repository is the persistence contract for tenants. Tenant rows are not
// tenant-scoped themselves; lookups run tenant-free by design (the domain ->
// tenant lookup happens before any tenant context exists).
type Repository interface {
	Create(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	GetByDomain(ctx context.Context, domainName string) (*domain.Tenant, error)
	List(ctx context.Context) ([]*domain.Tenant, error)
	Update(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

const uniqueViolation = "23505"

const tenantColumns = "id, name, domain, active, created_at, updated_at"

// PostgresRepository implements Repository over pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepository) Create(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error) {
	var created *domain.Tenant
	err := storage.WithoutTenant(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO tenants (id, name, domain, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+tenantColumns,
			tenant.ID, tenant.Name, tenant.Domain, tenant.Active, tenant.CreatedAt, tenant.UpdatedAt)

		var err error
		created, err = scanTenant(row)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return domain.E(domain.KindConflict, "domain already in use")
			}
			return domain.Wrap(domain.KindDatabase, "failed to create tenant", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	tenant, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.E(domain.KindNotFound, "tenant not found")
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindDatabase, "failed to get tenant", err)
	}
	return tenant, nil
}

func (r *PostgresRepository) GetByDomain(ctx context.Context, domainName string) (*domain.Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE domain = $1`, domainName)
	tenant, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.E(domain.KindNotFound, "tenant not found")
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindDatabase, "failed to get tenant by domain", err)
	}
	return tenant, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, domain.Wrap(domain.KindDatabase, "failed to list tenants", err)
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, domain.Wrap(domain.KindDatabase, "failed to scan tenant", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.KindDatabase, "failed to list tenants", err)
	}
	return tenants, nil
}

func (r *PostgresRepository) Update(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE tenants
		SET name = $1, domain = $2, active = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING `+tenantColumns,
		tenant.Name, tenant.Domain, tenant.Active, tenant.ID)

	updated, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.E(domain.KindNotFound, "tenant not found")
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.E(domain.KindConflict, "domain already in use")
		}
		return nil, domain.Wrap(domain.KindDatabase, "failed to update tenant", err)
	}
	return updated, nil
}

// Delete removes the tenant. Users and their role assignments cascade at
// the schema level; the caller revokes live sessions.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return domain.Wrap(domain.KindDatabase, "failed to delete tenant", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.E(domain.KindNotFound, "tenant not found")
	}
	return nil
}
