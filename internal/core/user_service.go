package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type userService struct {
	pool *pgxpool.Pool
}

// NewUserService constructs a UserService backed by PostgreSQL.
func NewUserService(pool *pgxpool.Pool) UserService {
	return &userService{pool: pool}
}

func (s *userService) GetByID(ctx context.Context, storeID, userID int) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.store_id, s.name, u.name, u.is_owner, u.created_at
		FROM users u
		JOIN stores s ON s.id = u.store_id
		WHERE u.id = $1 AND u.store_id = $2`,
		userID, storeID,
	).Scan(&u.ID, &u.StoreID, &u.StoreName, &u.Name, &u.IsOwner, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("user %d not found in store %d", userID, storeID)
		}
		return nil, fmt.Errorf("failed to fetch user %d: %w", userID, err)
	}
	return u, nil
}

func (s *userService) EnsureStoreOwner(ctx context.Context, storeName, ownerName string) (*User, error) {
	storeName = strings.TrimSpace(storeName)
	ownerName = strings.TrimSpace(ownerName)
	if storeName == "" || ownerName == "" {
		return nil, validation("store name and owner name are required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var storeID int
	err = tx.QueryRow(ctx, `SELECT id FROM stores WHERE name = $1 ORDER BY id LIMIT 1`, storeName).Scan(&storeID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if err := tx.QueryRow(ctx, `INSERT INTO stores (name) VALUES ($1) RETURNING id`, storeName).Scan(&storeID); err != nil {
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up store: %w", err)
	}

	var userID int
	err = tx.QueryRow(ctx,
		`SELECT id FROM users WHERE store_id = $1 AND is_owner ORDER BY id LIMIT 1`, storeID,
	).Scan(&userID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if err := tx.QueryRow(ctx,
			`INSERT INTO users (store_id, name, is_owner) VALUES ($1, $2, true) RETURNING id`,
			storeID, ownerName,
		).Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to create owner: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up owner: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit store bootstrap: %w", err)
	}
	return s.GetByID(ctx, storeID, userID)
}
