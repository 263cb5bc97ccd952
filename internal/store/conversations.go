package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/otl-fi/assistant/internal/conversation"
)

// LoadConversation reads one thread's persisted state. Returns nil when the
// thread has never been seen; the persisted transcript comes back as
// PriorHistory with NewHistory empty.
func (s *Store) LoadConversation(ctx context.Context, threadID string) (*conversation.State, error) {
	st := &conversation.State{ThreadID: threadID}

	var slotsJSON, bookedJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT schema_version, user_email, user_name, language, event_type_slug,
		       booking_link, available_slots, booked_slot, last_updated
		FROM conversations
		WHERE thread_id = $1`,
		threadID,
	).Scan(&st.Schema, &st.UserEmail, &st.UserName, &st.Language, &st.EventTypeSlug,
		&st.BookingLink, &slotsJSON, &bookedJSON, &st.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select conversation: %w", err)
	}

	if len(slotsJSON) > 0 {
		if err := json.Unmarshal(slotsJSON, &st.AvailableSlots); err != nil {
			return nil, fmt.Errorf("decode available slots: %w", err)
		}
	}
	if len(bookedJSON) > 0 {
		var booked conversation.Slot
		if err := json.Unmarshal(bookedJSON, &booked); err != nil {
			return nil, fmt.Errorf("decode booked slot: %w", err)
		}
		st.BookedSlot = &booked
	}

	rows, err := s.pool.Query(ctx, `
		SELECT role, content
		FROM conversation_messages
		WHERE thread_id = $1
		ORDER BY seq ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg conversation.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		st.PriorHistory = append(st.PriorHistory, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return st, nil
}

// SaveConversation upserts the thread row and appends this turn's new
// transcript entries. Prior entries are never rewritten; the append and the
// upsert commit atomically.
func (s *Store) SaveConversation(ctx context.Context, st *conversation.State) error {
	slotsJSON, err := json.Marshal(st.AvailableSlots)
	if err != nil {
		return fmt.Errorf("encode available slots: %w", err)
	}
	var bookedJSON []byte
	if st.BookedSlot != nil {
		bookedJSON, err = json.Marshal(st.BookedSlot)
		if err != nil {
			return fmt.Errorf("encode booked slot: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO conversations
			(thread_id, schema_version, user_email, user_name, language,
			 event_type_slug, booking_link, available_slots, booked_slot, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (thread_id) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			user_email = EXCLUDED.user_email,
			user_name = EXCLUDED.user_name,
			language = EXCLUDED.language,
			event_type_slug = EXCLUDED.event_type_slug,
			booking_link = EXCLUDED.booking_link,
			available_slots = EXCLUDED.available_slots,
			booked_slot = EXCLUDED.booked_slot,
			last_updated = EXCLUDED.last_updated`,
		st.ThreadID, st.Schema, st.UserEmail, st.UserName, st.Language,
		st.EventTypeSlug, st.BookingLink, slotsJSON, bookedJSON, st.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	base := len(st.PriorHistory)
	for i, msg := range st.NewHistory {
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_messages (id, thread_id, seq, role, content, created_at)
			VALUES ($1, $2, $3, $4, $5, now())`,
			uuid.New(), st.ThreadID, base+i, msg.Role, msg.Content,
		)
		if err != nil {
			return fmt.Errorf("insert message %d: %w", base+i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CleanupIdle deletes threads whose last update is older than the retention
// window, cascading to their messages. Returns the number of threads removed.
func (s *Store) CleanupIdle(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM conversation_messages
		WHERE thread_id IN (SELECT thread_id FROM conversations WHERE last_updated < $1)`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM conversations WHERE last_updated < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete conversations: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return tag.RowsAffected(), nil
}
