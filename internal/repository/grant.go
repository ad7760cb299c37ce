package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/salespulse/docchat/internal/logger"
)

// GrantRepository answers room authorization questions. Grants are managed
// by the ERP (one row per user allowed into a document's room); the chat
// service never writes them.
type GrantRepository struct {
	pool *pgxpool.Pool
}

func NewGrantRepository(pool *pgxpool.Pool) *GrantRepository {
	return &GrantRepository{pool: pool}
}

// CanJoin reports whether userID is allowed to join roomID.
func (r *GrantRepository) CanJoin(ctx context.Context, roomID, userID string) (bool, error) {
	defer logger.DeferLogDuration("grant.CanJoin", time.Now())()
	var allowed bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM room_grants WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID,
	).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("grantRepo.CanJoin: %w", err)
	}
	return allowed, nil
}

// Participants returns the user ids granted access to roomID. Unseen
// counters are kept for these users, whether or not they are connected.
func (r *GrantRepository) Participants(ctx context.Context, roomID string) ([]string, error) {
	defer logger.DeferLogDuration("grant.Participants", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM room_grants WHERE room_id = $1 ORDER BY granted_at`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("grantRepo.Participants query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("grantRepo.Participants scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("grantRepo.Participants rows: %w", err)
	}
	return ids, nil
}
