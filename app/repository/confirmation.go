package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-payment-confirmations/app/entity"
)

var (
	ErrConfirmationNotFound      = errors.New("confirmation not found")
	ErrConfirmationAlreadyExists = errors.New("confirmation already exists")
)

const confirmationColumns = `
	id, session_id, user_id, state, reason, attempts, error,
	started_at, finished_at, updated_at
`

type ConfirmationRepository struct {
	db DBTX
}

func NewConfirmationRepository(db DBTX) *ConfirmationRepository {
	return &ConfirmationRepository{db: db}
}

func (r *ConfirmationRepository) Create(ctx context.Context, item *entity.Confirmation) error {
	query := `
		INSERT INTO payment_confirmations (
			session_id, user_id, state, reason, attempts, error,
			started_at, finished_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		item.SessionID,
		nullableStringValue(item.UserID),
		string(item.State),
		string(item.Reason),
		item.Attempts,
		nullableStringValue(item.Error),
		item.StartedAt,
		nullableTimeValue(item.FinishedAt),
		item.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrConfirmationAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = uint64(id)
	return nil
}

// Update writes the sequence result. Rows that already reached a terminal
// state are left untouched, so a late writer cannot overwrite a final outcome.
func (r *ConfirmationRepository) Update(ctx context.Context, item *entity.Confirmation) error {
	query := `
		UPDATE payment_confirmations
		SET state = ?, reason = ?, attempts = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE session_id = ?
		  AND state = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(item.State),
		string(item.Reason),
		item.Attempts,
		nullableStringValue(item.Error),
		nullableTimeValue(item.FinishedAt),
		item.UpdatedAt,
		item.SessionID,
		string(entity.ConfirmationStatePolling),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConfirmationNotFound
	}

	return nil
}

func (r *ConfirmationRepository) FindBySessionID(ctx context.Context, sessionID string) (*entity.Confirmation, error) {
	query := `SELECT ` + confirmationColumns + ` FROM payment_confirmations WHERE session_id = ?`

	item := &entity.Confirmation{}
	if err := scanConfirmation(r.db.QueryRowContext(ctx, query, sessionID), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

func (r *ConfirmationRepository) ListStalePolling(ctx context.Context, cutoff time.Time) ([]*entity.Confirmation, error) {
	query := `SELECT ` + confirmationColumns + `
		FROM payment_confirmations
		WHERE state = ?
		  AND updated_at < ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, string(entity.ConfirmationStatePolling), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Confirmation, 0)
	for rows.Next() {
		item := &entity.Confirmation{}
		if err := scanConfirmation(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func scanConfirmation(scanner rowScanner, item *entity.Confirmation) error {
	var userID sql.NullString
	var state string
	var reason string
	var errMsg sql.NullString
	var finishedAt sql.NullTime

	err := scanner.Scan(
		&item.ID,
		&item.SessionID,
		&userID,
		&state,
		&reason,
		&item.Attempts,
		&errMsg,
		&item.StartedAt,
		&finishedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return err
	}

	item.State = entity.ConfirmationState(state)
	item.Reason = entity.FailureReason(reason)
	item.UserID = nil
	if userID.Valid {
		item.UserID = &userID.String
	}
	item.Error = nil
	if errMsg.Valid {
		item.Error = &errMsg.String
	}
	item.FinishedAt = nil
	if finishedAt.Valid {
		item.FinishedAt = &finishedAt.Time
	}

	return nil
}
