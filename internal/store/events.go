package store

import (
	"context"
	"database/sql"
	"errors"

	"campuspay/internal/model"
)

var ErrEventNotFound = errors.New("event not found")

const eventColumns = `event_id, legacy_id, category, title, description, amount, payee_name, payee_upi, target_class, poster, qr_code, created_by, created_at, updated_at`

func scanEvent(scan func(dest ...any) error) (*model.Event, error) {
	var e model.Event
	err := scan(&e.ID, &e.LegacyID, &e.Category, &e.Title, &e.Description, &e.Amount,
		&e.PayeeName, &e.PayeeUPI, &e.TargetClass, &e.Poster, &e.QRCode,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (ms *Database) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := ms.DB.ExecContext(ctx, `
		INSERT INTO events (event_id, legacy_id, category, title, description, amount,
			payee_name, payee_upi, target_class, poster, qr_code, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.LegacyID, e.Category, e.Title, e.Description, e.Amount,
		e.PayeeName, e.PayeeUPI, e.TargetClass, e.Poster, e.QRCode,
		e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	return storageErr(err)
}

func (ms *Database) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	row := ms.DB.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE event_id = $1 OR (legacy_id <> '' AND legacy_id = $1)`, id)
	e, err := scanEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, storageErr(err)
	}
	return e, nil
}

func (ms *Database) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := ms.DB.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC, event_id`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, storageErr(err)
		}
		events = append(events, *e)
	}
	return events, storageErr(rows.Err())
}

// UpdateEvent overwrites the mutable fields of one catalog entry and
// stamps updated_at. Identity, creator and creation time never change.
func (ms *Database) UpdateEvent(ctx context.Context, id string, patch *model.Event) error {
	res, err := ms.DB.ExecContext(ctx, `
		UPDATE events SET
			category = $1, title = $2, description = $3, amount = $4,
			payee_name = $5, payee_upi = $6, target_class = $7,
			poster = $8, qr_code = $9,
			updated_at = now() at time zone 'utc'
		WHERE event_id = $10`,
		patch.Category, patch.Title, patch.Description, patch.Amount,
		patch.PayeeName, patch.PayeeUPI, patch.TargetClass,
		patch.Poster, patch.QRCode, id)
	if err != nil {
		return storageErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (ms *Database) DeleteEvent(ctx context.Context, id string) error {
	res, err := ms.DB.ExecContext(ctx, `DELETE FROM events WHERE event_id = $1`, id)
	if err != nil {
		return storageErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}
