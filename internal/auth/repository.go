package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palisade-io/palisade/internal/domain"
	"github.com/palisade-io/palisade/internal/storage"
)

// UserRepository is the persistence contract the authentication service
// depends on. Every operation runs inside a tenant-bound unit of work; the
// returned users are fully hydrated, roles and permissions included.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByEmail(ctx context.Context, email string, tenantID uuid.UUID) (*domain.User, error)
	GetByID(ctx context.Context, userID, tenantID uuid.UUID) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) (*domain.User, error)
	Delete(ctx context.Context, userID, tenantID uuid.UUID) error
	UpdateLastLogin(ctx context.Context, userID, tenantID uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID) ([]*domain.User, error)
	SetRoles(ctx context.Context, userID, tenantID uuid.UUID, roles []domain.Role) error
}

// uniqueViolation is the Postgres error code for a uniqueness conflict.
const uniqueViolation = "23505"

// PostgresUserRepository implements UserRepository over pgx with Row Level
// Security: every query runs in a transaction carrying app.current_tenant.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = "id, tenant_id, email, password_hash, active, last_login, created_at, updated_at, mfa_enabled, mfa_secret"

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var lastLogin *time.Time
	var mfaSecret *string
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Active,
		&lastLogin, &u.CreatedAt, &u.UpdatedAt, &u.MFAEnabled, &mfaSecret); err != nil {
		return nil, err
	}
	u.LastLogin = lastLogin
	if mfaSecret != nil {
		u.MFASecret = *mfaSecret
	}
	return &u, nil
}

// hydrateRoles attaches the user's roles and their permissions, read from
// the normalized join tables inside the same tenant-bound transaction.
func hydrateRoles(ctx context.Context, tx pgx.Tx, user *domain.User) error {
	rows, err := tx.Query(ctx, `
		SELECT r.id, r.type, r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name`, user.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	user.Roles = nil
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Type, &role.Name); err != nil {
			return err
		}
		user.Roles = append(user.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range user.Roles {
		if err := hydratePermissions(ctx, tx, &user.Roles[i]); err != nil {
			return err
		}
	}
	return nil
}

func hydratePermissions(ctx context.Context, tx pgx.Tx, role *domain.Role) error {
	rows, err := tx.Query(ctx, `
		SELECT p.id, p.name, p.action, p.resource
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1`, role.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Action, &p.Resource); err != nil {
			return err
		}
		role.Permissions = append(role.Permissions, p)
	}
	return rows.Err()
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	var created *domain.User
	err := storage.WithTenant(ctx, r.pool, user.TenantID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO users (id, tenant_id, email, password_hash, active, created_at, updated_at, mfa_enabled, mfa_secret)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
			RETURNING `+userColumns,
			user.ID, user.TenantID, user.Email, user.PasswordHash, user.Active,
			user.CreatedAt, user.UpdatedAt, user.MFAEnabled, user.MFASecret)

		var err error
		created, err = scanUser(row)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return domain.E(domain.KindConflict, "email already registered for tenant")
			}
			return domain.Wrap(domain.KindDatabase, "failed to create user", err)
		}

		if err := replaceRoles(ctx, tx, created.ID, user.TenantID, user.Roles); err != nil {
			return domain.Wrap(domain.KindDatabase, "failed to assign roles", err)
		}
		return hydrateErr(hydrateRoles(ctx, tx, created))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string, tenantID uuid.UUID) (*domain.User, error) {
	var user *domain.User
	err := storage.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+userColumns+` FROM users
			WHERE email = $1 AND tenant_id = $2`, email, tenantID)

		u, err := scanUser(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return domain.Wrap(domain.KindDatabase, "failed to get user by email", err)
		}
		if err := hydrateRoles(ctx, tx, u); err != nil {
			return hydrateErr(err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, userID, tenantID uuid.UUID) (*domain.User, error) {
	var user *domain.User
	err := storage.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+userColumns+` FROM users
			WHERE id = $1 AND tenant_id = $2`, userID, tenantID)

		u, err := scanUser(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return domain.Wrap(domain.KindDatabase, "failed to get user by id", err)
		}
		if err := hydrateRoles(ctx, tx, u); err != nil {
			return hydrateErr(err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	var updated *domain.User
	err := storage.WithTenant(ctx, r.pool, user.TenantID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE users
			SET email = $1, password_hash = $2, active = $3, updated_at = NOW(),
			    mfa_enabled = $4, mfa_secret = NULLIF($5, '')
			WHERE id = $6 AND tenant_id = $7
			RETURNING `+userColumns,
			user.Email, user.PasswordHash, user.Active,
			user.MFAEnabled, user.MFASecret, user.ID, user.TenantID)

		u, err := scanUser(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.E(domain.KindNotFound, "user not found")
		}
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return domain.E(domain.KindConflict, "email already registered for tenant")
			}
			return domain.Wrap(domain.KindDatabase, "failed to update user", err)
		}
		if err := hydrateRoles(ctx, tx, u); err != nil {
			return hydrateErr(err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PostgresUserRepository) Delete(ctx context.Context, userID, tenantID uuid.UUID) error {
	return storage.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1 AND tenant_id = $2`, userID, tenantID)
		if err != nil {
			return domain.Wrap(domain.KindDatabase, "failed to delete user", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.E(domain.KindNotFound, "user not found")
		}
		return nil
	})
}

func (r *PostgresUserRepository) UpdateLastLogin(ctx context.Context, userID, tenantID uuid.UUID) error {
	return storage.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, userID); err != nil {
			return domain.Wrap(domain.KindDatabase, "failed to update last login", err)
		}
		return nil
	})
}

func (r *PostgresUserRepository) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.User, error) {
	var users []*domain.User
	err := storage.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
		if err != nil {
			return domain.Wrap(domain.KindDatabase, "failed to list users", err)
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return domain.Wrap(domain.KindDatabase, "failed to scan user", err)
			}
			users = append(users, u)
		}
		if err := rows.Err(); err != nil {
			return domain.Wrap(domain.KindDatabase, "failed to list users", err)
		}

		for _, u := range users {
			if err := hydrateRoles(ctx, tx, u); err != nil {
				return hydrateErr(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// SetRoles replaces the user's role assignments. Roles and permissions are
// upserted by id so role identity is stable across calls.
func (r *PostgresUserRepository) SetRoles(ctx context.Context, userID, tenantID uuid.UUID, roles []domain.Role) error {
	return storage.WithTenant(ctx, r.pool, tenantID, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND tenant_id = $2)`,
			userID, tenantID).Scan(&exists); err != nil {
			return domain.Wrap(domain.KindDatabase, "failed to check user", err)
		}
		if !exists {
			return domain.E(domain.KindNotFound, "user not found")
		}
		if err := replaceRoles(ctx, tx, userID, tenantID, roles); err != nil {
			return domain.Wrap(domain.KindDatabase, "failed to set roles", err)
		}
		return nil
	})
}

func replaceRoles(ctx context.Context, tx pgx.Tx, userID, tenantID uuid.UUID, roles []domain.Role) error {
	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}

	for _, role := range roles {
		if _, err := tx.Exec(ctx, `
			INSERT INTO roles (id, tenant_id, type, name)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET type = EXCLUDED.type, name = EXCLUDED.name`,
			role.ID, tenantID, role.Type, role.Name); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, role.ID); err != nil {
			return err
		}
		for _, p := range role.Permissions {
			if _, err := tx.Exec(ctx, `
				INSERT INTO permissions (id, tenant_id, name, action, resource)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, action = EXCLUDED.action, resource = EXCLUDED.resource`,
				p.ID, tenantID, p.Name, p.Action, p.Resource); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id, tenant_id)
				VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING`, role.ID, p.ID, tenantID); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id, tenant_id)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`, userID, role.ID, tenantID); err != nil {
			return err
		}
	}
	return nil
}

func hydrateErr(err error) error {
	if err == nil {
		return nil
	}
	return domain.Wrap(domain.KindDatabase, "failed to hydrate roles", err)
}
