package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	livequeue "github.com/omnikit/livequeue"
	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
)

const inquiryColumns = `
	id, room_id, name, guest_id, guest_username, guest_token,
	message, status, department, source, sla, priority, custom_fields,
	queued_at, taken_at, created_at, updated_at`

// CreateInquiry persists a new inquiry. The partial unique index on room_id
// turns a second active inquiry for the same room into a unique violation,
// which maps to ErrInquiryExists.
func (s *Store) CreateInquiry(ctx context.Context, inq *inquiry.Inquiry) error {
	ts := now()
	if inq.CreatedAt.IsZero() {
		inq.CreatedAt = ts
	}
	inq.UpdatedAt = ts

	fields, err := marshalCustomFields(inq.CustomFields)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO livequeue_inquiries (
			id, room_id, name, guest_id, guest_username, guest_token,
			message, status, department, source, sla, priority, custom_fields,
			queued_at, taken_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17
		)`,
		inq.ID.String(), inq.RoomID.String(), inq.Name,
		inq.Guest.ID.String(), inq.Guest.Username, inq.Guest.Token,
		inq.Message, string(inq.Status), inq.Department, inq.Source,
		inq.SLA, inq.Priority, fields,
		inq.QueuedAt, inq.TakenAt, inq.CreatedAt, inq.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return livequeue.ErrInquiryExists
		}
		return fmt.Errorf("livequeue/postgres: create inquiry: %w", err)
	}
	return nil
}

// GetInquiry retrieves an inquiry by ID.
func (s *Store) GetInquiry(ctx context.Context, inquiryID id.InquiryID) (*inquiry.Inquiry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+inquiryColumns+` FROM livequeue_inquiries WHERE id = $1`,
		inquiryID.String(),
	)
	inq, err := scanInquiry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, livequeue.ErrInquiryNotFound
		}
		return nil, fmt.Errorf("livequeue/postgres: get inquiry: %w", err)
	}
	return inq, nil
}

// GetInquiryByRoom retrieves the active inquiry for a room.
func (s *Store) GetInquiryByRoom(ctx context.Context, roomID id.RoomID) (*inquiry.Inquiry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+inquiryColumns+`
		 FROM livequeue_inquiries
		 WHERE room_id = $1 AND status IN ('queued', 'ready', 'taken')`,
		roomID.String(),
	)
	inq, err := scanInquiry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, livequeue.ErrInquiryNotFound
		}
		return nil, fmt.Errorf("livequeue/postgres: get inquiry by room: %w", err)
	}
	return inq, nil
}

// QueueInquiry atomically parks an inquiry. A missing inquiry is not an
// error: the caller raced a removal and gets nil back.
func (s *Store) QueueInquiry(ctx context.Context, inquiryID id.InquiryID) (*inquiry.Inquiry, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE livequeue_inquiries
		SET status = 'queued', queued_at = NOW(), taken_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status <> 'removed'
		RETURNING `+inquiryColumns,
		inquiryID.String(),
	)
	inq, err := scanInquiry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("livequeue/postgres: queue inquiry: %w", err)
	}
	return inq, nil
}

// ReadyInquiry atomically transitions a queued inquiry to ready.
func (s *Store) ReadyInquiry(ctx context.Context, inquiryID id.InquiryID) (*inquiry.Inquiry, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE livequeue_inquiries
		SET status = 'ready', updated_at = NOW()
		WHERE id = $1 AND status = 'queued'
		RETURNING `+inquiryColumns,
		inquiryID.String(),
	)
	inq, err := scanInquiry(row)
	if err != nil {
		if isNoRows(err) {
			// Distinguish a wrong-state inquiry from a missing one.
			if _, getErr := s.GetInquiry(ctx, inquiryID); getErr == nil {
				return nil, livequeue.ErrInvalidState
			}
			return nil, livequeue.ErrInquiryNotFound
		}
		return nil, fmt.Errorf("livequeue/postgres: ready inquiry: %w", err)
	}
	return inq, nil
}

// TakeInquiry atomically transitions a queued or ready inquiry to taken.
func (s *Store) TakeInquiry(ctx context.Context, inquiryID id.InquiryID, _ id.AgentID) (*inquiry.Inquiry, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE livequeue_inquiries
		SET status = 'taken', taken_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('queued', 'ready')
		RETURNING `+inquiryColumns,
		inquiryID.String(),
	)
	inq, err := scanInquiry(row)
	if err != nil {
		if isNoRows(err) {
			if _, getErr := s.GetInquiry(ctx, inquiryID); getErr == nil {
				return nil, livequeue.ErrInvalidState
			}
			return nil, livequeue.ErrInquiryNotFound
		}
		return nil, fmt.Errorf("livequeue/postgres: take inquiry: %w", err)
	}
	return inq, nil
}

// RemoveInquiryByRoom marks the active inquiry for a room as removed and
// returns its ID. The removal frees the partial-unique-index slot so a
// fresh inquiry can be created for the room.
func (s *Store) RemoveInquiryByRoom(ctx context.Context, roomID id.RoomID) (id.InquiryID, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `
		UPDATE livequeue_inquiries
		SET status = 'removed', updated_at = NOW()
		WHERE room_id = $1 AND status IN ('queued', 'ready', 'taken')
		RETURNING id`,
		roomID.String(),
	).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return id.Nil, livequeue.ErrInquiryNotFound
		}
		return id.Nil, fmt.Errorf("livequeue/postgres: remove inquiry by room: %w", err)
	}
	removed, err := id.ParseInquiryID(raw)
	if err != nil {
		return id.Nil, fmt.Errorf("livequeue/postgres: parse inquiry id %q: %w", raw, err)
	}
	return removed, nil
}

// ListQueued returns queued inquiries ordered oldest first.
func (s *Store) ListQueued(ctx context.Context, opts inquiry.ListOpts) ([]*inquiry.Inquiry, error) {
	query := `SELECT ` + inquiryColumns + ` FROM livequeue_inquiries WHERE status = 'queued'`
	args := []any{}
	argIdx := 1

	if opts.Department != "" {
		query += fmt.Sprintf(" AND department = $%d", argIdx)
		args = append(args, opts.Department)
		argIdx++
	}

	query += " ORDER BY queued_at ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("livequeue/postgres: list queued: %w", err)
	}
	defer rows.Close()

	return collectInquiries(rows)
}

// CountByStatus returns the number of inquiries with the given status.
func (s *Store) CountByStatus(ctx context.Context, status inquiry.Status) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM livequeue_inquiries WHERE status = $1`,
		string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("livequeue/postgres: count inquiries: %w", err)
	}
	return n, nil
}

// ── scanning ─────────────────────────────────────────────────────

func scanInquiry(row rowScanner) (*inquiry.Inquiry, error) {
	var (
		rawID, rawRoomID, rawGuestID string
		status                       string
		fields                       []byte
		inq                          inquiry.Inquiry
	)

	err := row.Scan(
		&rawID, &rawRoomID, &inq.Name, &rawGuestID, &inq.Guest.Username, &inq.Guest.Token,
		&inq.Message, &status, &inq.Department, &inq.Source, &inq.SLA, &inq.Priority, &fields,
		&inq.QueuedAt, &inq.TakenAt, &inq.CreatedAt, &inq.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if inq.ID, err = id.ParseInquiryID(rawID); err != nil {
		return nil, fmt.Errorf("livequeue/postgres: parse inquiry id %q: %w", rawID, err)
	}
	if inq.RoomID, err = id.ParseRoomID(rawRoomID); err != nil {
		return nil, fmt.Errorf("livequeue/postgres: parse room id %q: %w", rawRoomID, err)
	}
	if inq.Guest.ID, err = id.ParseVisitorID(rawGuestID); err != nil {
		return nil, fmt.Errorf("livequeue/postgres: parse visitor id %q: %w", rawGuestID, err)
	}
	inq.Status = inquiry.Status(status)

	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &inq.CustomFields); err != nil {
			return nil, fmt.Errorf("livequeue/postgres: decode custom fields: %w", err)
		}
	}

	return &inq, nil
}

func collectInquiries(rows pgx.Rows) ([]*inquiry.Inquiry, error) {
	var out []*inquiry.Inquiry
	for rows.Next() {
		inq, err := scanInquiry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("livequeue/postgres: iterate inquiries: %w", err)
	}
	return out, nil
}

func marshalCustomFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		return nil, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("livequeue/postgres: encode custom fields: %w", err)
	}
	return raw, nil
}
