package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"kyro-backend/internal/models"
)

type TurnRepo struct {
	pool *pgxpool.Pool
}

func NewTurnRepo(pool *pgxpool.Pool) *TurnRepo {
	return &TurnRepo{pool: pool}
}

func (r *TurnRepo) Insert(ctx context.Context, t *models.Turn) error {
	query := `INSERT INTO chat_turns (session_key, source, status, new_session, attempts, latency_ms, message_chars, reply_chars, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`

	return r.pool.QueryRow(ctx, query,
		t.SessionKey, t.Source, t.Status, t.NewSession, t.Attempts,
		t.LatencyMs, t.MessageChars, t.ReplyChars, t.CreatedAt,
	).Scan(&t.ID)
}
