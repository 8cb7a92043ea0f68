package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palisade-io/palisade/internal/domain"
)

// WithTenant executes fn within a PostgreSQL transaction with the
// app.current_tenant session variable set for Row Level Security.
//
// All RLS policies evaluated inside the transaction respect the tenant
// isolation boundary. The binding is transaction-scoped (set_config with
// is_local=true), so it is cleared on commit and on rollback alike; the
// connection never returns to the pool with a tenant still bound.
//
// Example usage:
//
//	err := storage.WithTenant(ctx, pool, tenantID, func(tx pgx.Tx) error {
//	    return insertUser(ctx, tx, user)
//	})
func WithTenant(ctx context.Context, pool *pgxpool.Pool, tenantID uuid.UUID, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return domain.Wrap(domain.KindDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx) // Rollback is safe to call even after Commit

	// RLS policies read: tenant_id = NULLIF(current_setting('app.current_tenant', TRUE), '')::UUID
	_, err = tx.Exec(ctx, "SELECT set_config('app.current_tenant', $1, true)", tenantID.String())
	if err != nil {
		return domain.Wrap(domain.KindInternal, "failed to set tenant context", err)
	}

	if err := fn(tx); err != nil {
		return err // Transaction rolls back via defer
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Wrap(domain.KindDatabase, "failed to commit transaction", err)
	}

	return nil
}

// WithoutTenant executes fn within a transaction that carries no tenant
// binding. Intended for paths that intentionally run tenant-free: the
// domain -> tenant lookup during request routing and tenant administration.
// An accidentally tenant-scoped query inside sees zero rows, not a leak.
func WithoutTenant(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return domain.Wrap(domain.KindDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Wrap(domain.KindDatabase, "failed to commit transaction", err)
	}

	return nil
}

// ClearTenant resets the tenant binding on the given connection. Needed only
// when a long-held connection switches to tenant-free work; transaction-local
// bindings made by WithTenant clear themselves.
func ClearTenant(ctx context.Context, conn *pgxpool.Conn) error {
	if _, err := conn.Exec(ctx, "SELECT set_config('app.current_tenant', '', false)"); err != nil {
		return fmt.Errorf("failed to clear tenant context: %w", err)
	}
	return nil
}
