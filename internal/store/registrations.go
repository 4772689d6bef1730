package store

import (
	"context"
	"encoding/json"

	"campuspay/internal/model"
)

const registrationColumns = `registration_id, user_id, user_email, events, total_amount, payment_method, status, created_at`

func scanRegistration(scan func(dest ...any) error) (model.Registration, error) {
	var (
		reg    model.Registration
		events []byte
	)
	err := scan(&reg.ID, &reg.UserID, &reg.UserEmail, &events,
		&reg.TotalAmount, &reg.PaymentMethod, &reg.Status, &reg.CreatedAt)
	if err != nil {
		return model.Registration{}, err
	}
	if err := json.Unmarshal(events, &reg.Events); err != nil {
		return model.Registration{}, err
	}
	if reg.Events == nil {
		reg.Events = []model.RegistrationEvent{}
	}
	return reg, nil
}

// CreateRegistration appends one booking and fills in its assigned id.
func (ms *Database) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	events, err := json.Marshal(reg.Events)
	if err != nil {
		return err
	}
	err = ms.DB.QueryRowContext(ctx, `
		INSERT INTO registrations (user_id, user_email, events, total_amount, payment_method, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING registration_id`,
		reg.UserID, reg.UserEmail, events, reg.TotalAmount,
		reg.PaymentMethod, reg.Status, reg.CreatedAt).Scan(&reg.ID)
	return storageErr(err)
}

func (ms *Database) listRegistrations(ctx context.Context, query string, args ...any) ([]model.Registration, error) {
	rows, err := ms.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows.Scan)
		if err != nil {
			return nil, storageErr(err)
		}
		regs = append(regs, reg)
	}
	return regs, storageErr(rows.Err())
}

// ListRegistrationsByUser returns one student's bookings in booking
// order.
func (ms *Database) ListRegistrationsByUser(ctx context.Context, userID int64) ([]model.Registration, error) {
	return ms.listRegistrations(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 ORDER BY registration_id`, userID)
}

// ListRegistrations returns every booking across all students.
func (ms *Database) ListRegistrations(ctx context.Context) ([]model.Registration, error) {
	return ms.listRegistrations(ctx,
		`SELECT `+registrationColumns+` FROM registrations ORDER BY registration_id`)
}
