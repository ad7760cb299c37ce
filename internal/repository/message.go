package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/salespulse/docchat/internal/logger"
	"github.com/salespulse/docchat/internal/model"
)

var ErrNotFound = errors.New("not found")

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Append stores m and fills in Seq and CreatedAt from the database. The
// bigserial seq is assigned inside the INSERT, so concurrent appends to the
// same room get distinct, monotonically increasing sequence numbers.
func (r *MessageRepository) Append(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Append", time.Now())()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO messages (id, room_id, author_id, author_name, body, delivery, site, brand)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING seq, created_at`,
		m.ID, m.RoomID, m.AuthorID, m.AuthorName, m.Body, m.Context.Delivery, m.Context.Site, m.Context.Brand,
	).Scan(&m.Seq, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("msgRepo.Append: %w", err)
	}
	return nil
}

// History returns the latest limit messages of a room in chronological
// order. The query fetches newest-first (index on (room_id, seq)) and the
// slice is reversed before returning.
func (r *MessageRepository) History(ctx context.Context, roomID string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.History", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT seq, id, room_id, author_id, author_name, body, delivery, site, brand, created_at
		 FROM messages
		 WHERE room_id = $1
		 ORDER BY seq DESC
		 LIMIT $2`, roomID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.History query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.Seq, &m.ID, &m.RoomID, &m.AuthorID, &m.AuthorName, &m.Body,
			&m.Context.Delivery, &m.Context.Site, &m.Context.Brand, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("msgRepo.History scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.History rows: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
