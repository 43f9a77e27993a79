package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokenRepo struct {
	pool *pgxpool.Pool
}

func NewTokenRepo(pool *pgxpool.Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

// Get returns the user's current token balance, 0 when no row exists yet.
func (r *TokenRepo) Get(ctx context.Context, userID int64) (int, error) {
	var tokens int
	err := r.pool.QueryRow(ctx,
		"SELECT tokens FROM user_tokens WHERE user_id = $1", userID,
	).Scan(&tokens)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return tokens, nil
}

// Add credits delta to the user's balance in one atomic upsert-and-
// increment. Concurrent submissions must not lose increments, so this is
// never split into an existence check plus an update.
func (r *TokenRepo) Add(ctx context.Context, userID int64, delta int) (int, error) {
	var tokens int
	err := r.pool.QueryRow(ctx,
		`INSERT INTO user_tokens (user_id, tokens) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET tokens = user_tokens.tokens + EXCLUDED.tokens
		 RETURNING tokens`,
		userID, delta,
	).Scan(&tokens)
	if err != nil {
		return 0, err
	}
	return tokens, nil
}
