package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"campuspay/internal/logging"
	"campuspay/internal/model"
)

var ErrClaimNotFound = errors.New("claim not found")
var ErrClaimExists = errors.New("claim already exists for this event")
var ErrClaimNotRemovable = errors.New("claim is no longer removable")

const claimColumns = `category, event_ref, plain_ref, legacy_ref, legacy_wrapped, paid, status, utr, screenshot, paid_date, confirmed_at, confirmed_by, rejected_at, rejected_by`

func scanClaim(scan func(dest ...any) error) (model.Category, model.Claim, error) {
	var (
		c             model.Claim
		cat           model.Category
		eventRef      string
		legacyRef     string
		legacyWrapped bool
		paidDate      sql.NullTime
		confirmedAt   sql.NullTime
		rejectedAt    sql.NullTime
	)
	err := scan(&cat, &eventRef, &c.PlainRef, &legacyRef, &legacyWrapped,
		&c.Paid, &c.Status, &c.UTR, &c.Screenshot,
		&paidDate, &confirmedAt, &c.ConfirmedBy, &rejectedAt, &c.RejectedBy)
	if err != nil {
		return "", model.Claim{}, err
	}
	if legacyRef != "" {
		if legacyWrapped {
			c.LegacyRef = model.WrappedID(legacyRef)
		} else {
			c.LegacyRef = model.StringID(legacyRef)
		}
	}
	if paidDate.Valid {
		c.PaidDate = &paidDate.Time
	}
	if confirmedAt.Valid {
		c.ConfirmedAt = &confirmedAt.Time
	}
	if rejectedAt.Valid {
		c.RejectedAt = &rejectedAt.Time
	}
	return cat, c, nil
}

func claimRefFields(c *model.Claim) (eventRef, legacyRef string, legacyWrapped bool) {
	eventRef = c.EventRef()
	if c.LegacyRef != nil {
		legacyRef = c.LegacyRef.String()
		_, legacyWrapped = c.LegacyRef.(model.WrappedID)
	}
	return eventRef, legacyRef, legacyWrapped
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertClaim(ctx context.Context, db execer, userID int64, cat model.Category, c *model.Claim) error {
	eventRef, legacyRef, legacyWrapped := claimRefFields(c)
	_, err := db.ExecContext(ctx, `
		INSERT INTO claims (user_id, category, event_ref, plain_ref, legacy_ref, legacy_wrapped,
			paid, status, utr, screenshot, paid_date, confirmed_at, confirmed_by, rejected_at, rejected_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		userID, cat, eventRef, c.PlainRef, legacyRef, legacyWrapped,
		c.Paid, c.Status, c.UTR, c.Screenshot,
		c.PaidDate, c.ConfirmedAt, c.ConfirmedBy, c.RejectedAt, c.RejectedBy)
	return err
}

func userExists(ctx context.Context, db querier, userID int64) error {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE user_id = $1`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	return storageErr(err)
}

// replaceClaims rewrites both sequences inside the caller's transaction
// and stamps the owning record.
func replaceClaims(ctx context.Context, tx *sql.Tx, userID int64, mandatory, optional []model.Claim) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM claims WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for i := range mandatory {
		if err := insertClaim(ctx, tx, userID, model.CategoryMandatory, &mandatory[i]); err != nil {
			return err
		}
	}
	for i := range optional {
		if err := insertClaim(ctx, tx, userID, model.CategoryOptional, &optional[i]); err != nil {
			return err
		}
	}
	return touchUser(ctx, tx, userID)
}

// GetPayments returns both claim sequences for one student, in insertion
// order. Sequences are empty, never nil, when the student has no claims.
func (ms *Database) GetPayments(ctx context.Context, userID int64) (model.PaymentRecord, error) {
	record := model.NewPaymentRecord()

	if err := userExists(ctx, ms.DB, userID); err != nil {
		return record, err
	}

	rows, err := ms.DB.QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE user_id = $1 ORDER BY claim_id`, userID)
	if err != nil {
		return record, storageErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		cat, c, err := scanClaim(rows.Scan)
		if err != nil {
			return record, storageErr(err)
		}
		if cat == model.CategoryMandatory {
			record.Mandatory = append(record.Mandatory, c)
		} else {
			record.Optional = append(record.Optional, c)
		}
	}
	return record, storageErr(rows.Err())
}

// InsertClaim appends one claim. The unique index on
// (user_id, category, event_ref) makes a second insert for the same
// event a clean ErrClaimExists instead of a duplicate row, even when two
// selection requests race.
func (ms *Database) InsertClaim(ctx context.Context, userID int64, cat model.Category, c model.Claim) error {
	if err := userExists(ctx, ms.DB, userID); err != nil {
		return err
	}
	if err := insertClaim(ctx, ms.DB, userID, cat, &c); err != nil {
		if isUniqueViolation(err) {
			return ErrClaimExists
		}
		return storageErr(err)
	}
	return nil
}

// RemoveClaim deletes a claim that is still in the added state. Claims
// with submitted proof or a decision stay put.
func (ms *Database) RemoveClaim(ctx context.Context, userID int64, cat model.Category, ref string) error {
	tx, err := ms.DB.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback()

	var (
		claimID int64
		paid    bool
		status  model.ClaimStatus
	)
	err = tx.QueryRowContext(ctx, `
		SELECT claim_id, paid, status FROM claims
		WHERE user_id = $1 AND category = $2
		  AND (event_ref = $3 OR plain_ref = $3 OR legacy_ref = $3)
		FOR UPDATE`,
		userID, cat, ref).Scan(&claimID, &paid, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrClaimNotFound
		}
		return storageErr(err)
	}

	if paid || (status != "" && status != model.StatusAdded) {
		return ErrClaimNotRemovable
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM claims WHERE claim_id = $1`, claimID); err != nil {
		return storageErr(err)
	}
	if err := touchUser(ctx, tx, userID); err != nil {
		return storageErr(err)
	}
	return storageErr(tx.Commit())
}

// ReplacePayments overwrites both sequences in one transaction. This is
// the low-level whole-record primitive; it does not validate
// transitions. UpdateRecord routes its write-back through the same
// replaceClaims path.
func (ms *Database) ReplacePayments(ctx context.Context, userID int64, mandatory, optional []model.Claim) error {
	tx, err := ms.DB.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback()

	if err := userExists(ctx, tx, userID); err != nil {
		return err
	}
	if err := replaceClaims(ctx, tx, userID, mandatory, optional); err != nil {
		return storageErr(err)
	}
	return storageErr(tx.Commit())
}

// UpdateRecord runs mutate against a locked snapshot of the student's
// whole record and writes the result back atomically. An error from
// mutate aborts with nothing written.
func (ms *Database) UpdateRecord(ctx context.Context, userID int64, mutate func(*model.PaymentRecord) error) error {
	tx, err := ms.DB.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback()

	if err := userExists(ctx, tx, userID); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE user_id = $1 ORDER BY claim_id FOR UPDATE`, userID)
	if err != nil {
		return storageErr(err)
	}

	record := model.NewPaymentRecord()
	for rows.Next() {
		cat, c, err := scanClaim(rows.Scan)
		if err != nil {
			rows.Close()
			return storageErr(err)
		}
		if cat == model.CategoryMandatory {
			record.Mandatory = append(record.Mandatory, c)
		} else {
			record.Optional = append(record.Optional, c)
		}
	}
	if err := rows.Err(); err != nil {
		return storageErr(err)
	}
	rows.Close()

	if err := mutate(&record); err != nil {
		return err
	}

	if err := replaceClaims(ctx, tx, userID, record.Mandatory, record.Optional); err != nil {
		return storageErr(err)
	}
	return storageErr(tx.Commit())
}

// UpdateClaim is the atomic single-claim read-modify-write used by the
// decision path. The row is located by any of its identifier shapes and
// locked, so a concurrent decision on the same claim waits here and then
// sees the already-updated status.
func (ms *Database) UpdateClaim(ctx context.Context, userID int64, cat model.Category, ref string, mutate func(*model.Claim) error) (model.Claim, error) {
	tx, err := ms.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Claim{}, storageErr(err)
	}
	defer tx.Rollback()

	if err := userExists(ctx, tx, userID); err != nil {
		return model.Claim{}, err
	}

	var claimID int64
	row := tx.QueryRowContext(ctx, `
		SELECT claim_id, `+claimColumns+` FROM claims
		WHERE user_id = $1 AND category = $2
		  AND (event_ref = $3 OR plain_ref = $3 OR legacy_ref = $3)
		FOR UPDATE`,
		userID, cat, ref)

	_, claim, err := scanClaim(func(dest ...any) error {
		return row.Scan(append([]any{&claimID}, dest...)...)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Claim{}, ErrClaimNotFound
		}
		return model.Claim{}, storageErr(err)
	}

	if err := mutate(&claim); err != nil {
		return model.Claim{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE claims SET
			paid = $1, status = $2, utr = $3, screenshot = $4, paid_date = $5,
			confirmed_at = $6, confirmed_by = $7, rejected_at = $8, rejected_by = $9
		WHERE claim_id = $10`,
		claim.Paid, claim.Status, claim.UTR, claim.Screenshot, claim.PaidDate,
		claim.ConfirmedAt, claim.ConfirmedBy, claim.RejectedAt, claim.RejectedBy,
		claimID)
	if err != nil {
		return model.Claim{}, storageErr(err)
	}
	if err := touchUser(ctx, tx, userID); err != nil {
		return model.Claim{}, storageErr(err)
	}
	if err := tx.Commit(); err != nil {
		return model.Claim{}, storageErr(err)
	}
	return claim, nil
}

// StaleClaim is one pending claim that has waited past the review
// deadline, reported by the sweeper.
type StaleClaim struct {
	USN      string
	Category model.Category
	EventRef string
	PaidDate time.Time
}

// ListStalePending returns paid claims still awaiting a decision whose
// proof was submitted before the cutoff. The legacy empty status counts
// as pending here too.
func (ms *Database) ListStalePending(ctx context.Context, cutoff time.Time) ([]StaleClaim, error) {
	rows, err := ms.DB.QueryContext(ctx, `
		SELECT u.usn, c.category, c.event_ref, c.paid_date
		FROM claims c JOIN users u ON c.user_id = u.user_id
		WHERE c.paid AND (c.status = '' OR c.status = $1) AND c.paid_date < $2
		ORDER BY c.paid_date`,
		model.StatusPending, cutoff)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var stale []StaleClaim
	for rows.Next() {
		var s StaleClaim
		if err := rows.Scan(&s.USN, &s.Category, &s.EventRef, &s.PaidDate); err != nil {
			return nil, storageErr(err)
		}
		stale = append(stale, s)
	}
	return stale, storageErr(rows.Err())
}

// record-level timestamp on the owning student
func touchUser(ctx context.Context, db execer, userID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET updated_at = now() at time zone 'utc' WHERE user_id = $1`, userID)
	if err != nil {
		logging.Logg.Error("Failed to stamp payment record", "user", userID, "error", err)
	}
	return err
}
