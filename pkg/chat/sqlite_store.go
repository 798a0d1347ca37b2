package chat

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SQLiteMessageStore struct {
	db *sql.DB
}

func NewSQLiteMessageStore(db *sql.DB) *SQLiteMessageStore {
	return &SQLiteMessageStore{
		db: db,
	}
}

func (s *SQLiteMessageStore) Append(ctx context.Context, room, content string, author *string, sentAt time.Time) (int64, error) {
	query := `
	INSERT INTO messages (room, content, author, sent_at)
	VALUES (@room, @content, @author, @sent_at) RETURNING id`

	var authorValue sql.NullString
	if author != nil {
		authorValue = sql.NullString{String: *author, Valid: true}
	}

	row := s.db.QueryRowContext(ctx, query,
		sql.Named("room", room), sql.Named("content", content),
		sql.Named("author", authorValue), sql.Named("sent_at", sentAt))

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("row.Scan: %w", err)
	}

	return id, nil
}

func (s *SQLiteMessageStore) ListByRoom(ctx context.Context, room string) ([]Message, error) {
	query := `
	SELECT id, room, content, author, sent_at
	FROM messages
	WHERE room = @room
	ORDER BY sent_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, sql.Named("room", room))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var messages []Message

	for rows.Next() {
		var (
			message Message
			author  sql.NullString
		)
		if err := rows.Scan(&message.ID, &message.Room, &message.Content,
			&author, &message.SentAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		if author.Valid {
			message.Author = &author.String
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return messages, nil
}
