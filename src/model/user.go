package model

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/models"
	"golang.org/x/crypto/bcrypt"
)

// User holds the authoritative cash balance. Unlike positions, cash is
// mutated directly; the cash_transfers table is an audit trail, not the
// source of truth.
type User struct {
	ID           int64           `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	Password     string          `json:"-"`
	Cash         decimal.Decimal `json:"cash"`
	HomeCurrency string          `json:"home_currency"`
	Timezone     string          `json:"timezone"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Session struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	UserAgent    string    `json:"user_agent"`
	ClientIP     string    `json:"client_ip"`
	IsBlocked    bool      `json:"is_blocked"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// CheckPassword compares a given password with the user's hashed password.
func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

// Normalize lowercases username and email and defaults the timezone,
// mirroring what the registration form used to do.
func (u *User) Normalize() {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
}

// CreateUser inserts a new user into the database.
func (u *User) CreateUser(db *sql.DB) error {
	u.Normalize()
	query := `
	INSERT INTO users (username, email, password, cash, home_currency, timezone)
	VALUES (?, ?, ?, ?, ?, ?)`

	res, err := db.Exec(query, u.Username, u.Email, u.Password, u.Cash.String(), u.HomeCurrency, u.Timezone)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var cashStr string
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password,
		&cashStr, &user.HomeCurrency, &user.Timezone)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	user.Cash, err = decimal.NewFromString(cashStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cash value %q for user %d: %w", cashStr, user.ID, err)
	}
	return &user, nil
}

const userColumns = `id, username, email, password, cash, home_currency, timezone`

// GetUserByUsername retrieves a user from the database by their username.
func GetUserByUsername(db *sql.DB, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return scanUser(db.QueryRow(query, strings.ToLower(username)))
}

// GetUserByID retrieves a user from the database by primary key.
func GetUserByID(db *sql.DB, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(db.QueryRow(query, id))
}

// UpdateUserSettings updates the mutable profile fields.
func UpdateUserSettings(db *sql.DB, u *User) error {
	u.Normalize()
	query := `
	UPDATE users
	SET email = ?, username = ?, home_currency = ?, timezone = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`
	res, err := db.Exec(query, u.Email, u.Username, u.HomeCurrency, u.Timezone, u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateUserPassword overwrites the stored password hash.
func UpdateUserPassword(db *sql.DB, userID int64, hashedPassword string) error {
	res, err := db.Exec(
		`UPDATE users SET password = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		hashedPassword, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateUserCashTx updates the cash balance inside an open transaction so the
// balance change commits together with its cash_transfers entry.
func UpdateUserCashTx(tx *sql.Tx, userID int64, cash decimal.Decimal) error {
	res, err := tx.Exec(
		`UPDATE users SET cash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		cash.String(), userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CreateSession inserts a new session into the database.
func CreateSession(db *sql.DB, session *Session) error {
	query := `
	INSERT INTO sessions (user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	session.CreatedAt = time.Now()
	_, err := db.Exec(query,
		session.UserID,
		session.Token,
		session.RefreshToken,
		session.UserAgent,
		session.ClientIP,
		session.IsBlocked,
		session.ExpiresAt,
		session.CreatedAt,
	)
	return err
}

// GetSessionByToken retrieves an active, non-blocked session by its access token.
func GetSessionByToken(db *sql.DB, token string) (*Session, error) {
	query := `
	SELECT id, user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at
	FROM sessions
	WHERE token = ? AND is_blocked = FALSE AND expires_at > ?`

	row := db.QueryRow(query, token, time.Now())
	var session Session
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.RefreshToken,
		&session.UserAgent,
		&session.ClientIP,
		&session.IsBlocked,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetSessionByRefreshToken retrieves an active session by its refresh token.
func GetSessionByRefreshToken(db *sql.DB, refreshToken string) (*Session, error) {
	query := `
	SELECT id, user_id, token, refresh_token, user_agent, client_ip, is_blocked, expires_at, created_at
	FROM sessions
	WHERE refresh_token = ? AND is_blocked = FALSE AND expires_at > ?`

	row := db.QueryRow(query, refreshToken, time.Now())
	var session Session
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.RefreshToken,
		&session.UserAgent,
		&session.ClientIP,
		&session.IsBlocked,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// DeleteSessionByToken removes a session from the database based on the access token.
// A missing session is not an error; the token may simply have expired already.
func DeleteSessionByToken(db *sql.DB, token string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}
