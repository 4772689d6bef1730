package store

import (
	"context"
	"database/sql"
	"errors"

	"campuspay/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
)

var ErrUserNotFound = errors.New("user not found")
var ErrDuplicateUser = errors.New("usn or email already exists")

const userColumns = `user_id, usn, email, name, role, password_hash, dob, phone, address, department, year, section, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.USN, &user.Email, &user.Name, &user.Role, &user.PasswordHash,
		&user.DOB, &user.Phone, &user.Address, &user.Department, &user.Year, &user.Section,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, storageErr(err)
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (ms *Database) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	createUser := `INSERT INTO users(usn, email, name, role, password_hash, dob)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING user_id`

	var id int64
	err := ms.DB.QueryRowContext(ctx, createUser,
		user.USN, user.Email, user.Name, user.Role, user.PasswordHash, user.DOB).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateUser
		}
		return 0, storageErr(err)
	}
	return id, nil
}

// GetUserByUSN looks the user up case-insensitively, matching how USNs
// are typed on the login form.
func (ms *Database) GetUserByUSN(ctx context.Context, usn string) (*model.User, error) {
	row := ms.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(usn) = lower($1)`, usn)
	return scanUser(row)
}

func (ms *Database) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := ms.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
	return scanUser(row)
}

// ListStudents returns every account with the student role, ordered by
// USN so aggregation output is stable.
func (ms *Database) ListStudents(ctx context.Context) ([]model.User, error) {
	rows, err := ms.DB.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY lower(usn)`, model.RoleStudent)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var students []model.User
	for rows.Next() {
		var user model.User
		err := rows.Scan(&user.ID, &user.USN, &user.Email, &user.Name, &user.Role, &user.PasswordHash,
			&user.DOB, &user.Phone, &user.Address, &user.Department, &user.Year, &user.Section,
			&user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return nil, storageErr(err)
		}
		students = append(students, user)
	}
	return students, storageErr(rows.Err())
}

func (ms *Database) UpdateProfile(ctx context.Context, id int64, patch *model.User) error {
	res, err := ms.DB.ExecContext(ctx, `
		UPDATE users SET
			name = COALESCE(NULLIF($1, ''), name),
			email = COALESCE(NULLIF($2, ''), email),
			dob = COALESCE(NULLIF($3, ''), dob),
			phone = COALESCE(NULLIF($4, ''), phone),
			address = COALESCE(NULLIF($5, ''), address),
			department = COALESCE(NULLIF($6, ''), department),
			year = COALESCE(NULLIF($7, ''), year),
			section = COALESCE(NULLIF($8, ''), section),
			updated_at = now() at time zone 'utc'
		WHERE user_id = $9`,
		patch.Name, patch.Email, patch.DOB, patch.Phone, patch.Address,
		patch.Department, patch.Year, patch.Section, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return storageErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (ms *Database) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := ms.DB.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() at time zone 'utc' WHERE user_id = $2`,
		passwordHash, id)
	if err != nil {
		return storageErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
