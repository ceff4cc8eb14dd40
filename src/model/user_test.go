package model

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/stockfolio/backend/src/database"
	"github.com/username/stockfolio/backend/src/logger"
	"github.com/username/stockfolio/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	require.NoError(t, database.CreateSchema(db))
	return db
}

func TestCreateUser_NormalizesAndRoundTrips(t *testing.T) {
	db := setupTestDB(t)

	user := &User{
		Username:     "  NewTrader ",
		Email:        "Trader@Example.COM",
		Password:     "hashed-password",
		Cash:         decimal.RequireFromString("12.50"),
		HomeCurrency: "SGD",
	}
	require.NoError(t, user.CreateUser(db))
	require.NotZero(t, user.ID)

	loaded, err := GetUserByUsername(db, "NEWTRADER")
	require.NoError(t, err)
	assert.Equal(t, "newtrader", loaded.Username)
	assert.Equal(t, "trader@example.com", loaded.Email)
	assert.Equal(t, "SGD", loaded.HomeCurrency)
	assert.Equal(t, "UTC", loaded.Timezone)
	assert.True(t, loaded.Cash.Equal(decimal.RequireFromString("12.50")))
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := setupTestDB(t)

	first := &User{Username: "dup", Email: "a@example.com", Password: "x"}
	require.NoError(t, first.CreateUser(db))

	second := &User{Username: "dup", Email: "b@example.com", Password: "x"}
	assert.Error(t, second.CreateUser(db))
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := GetUserByID(db, 12345)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateUserSettings(t *testing.T) {
	db := setupTestDB(t)

	user := &User{Username: "settings", Email: "s@example.com", Password: "x"}
	require.NoError(t, user.CreateUser(db))

	user.HomeCurrency = "EUR"
	user.Timezone = "Europe/Lisbon"
	require.NoError(t, UpdateUserSettings(db, user))

	loaded, err := GetUserByID(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "EUR", loaded.HomeCurrency)
	assert.Equal(t, "Europe/Lisbon", loaded.Timezone)
}

func TestUpdateUserPassword(t *testing.T) {
	db := setupTestDB(t)

	user := &User{Username: "rotate", Email: "r@example.com", Password: "old-hash"}
	require.NoError(t, user.CreateUser(db))

	require.NoError(t, UpdateUserPassword(db, user.ID, "new-hash"))

	loaded, err := GetUserByID(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", loaded.Password)

	assert.ErrorIs(t, UpdateUserPassword(db, 9999, "x"), models.ErrNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	db := setupTestDB(t)

	user := &User{Username: "sess", Email: "sess@example.com", Password: "x"}
	require.NoError(t, user.CreateUser(db))

	session := &Session{
		UserID:       user.ID,
		Token:        "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, CreateSession(db, session))

	byToken, err := GetSessionByToken(db, "access-token")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byToken.UserID)

	byRefresh, err := GetSessionByRefreshToken(db, "refresh-token")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byRefresh.UserID)

	require.NoError(t, DeleteSessionByToken(db, "access-token"))
	_, err = GetSessionByToken(db, "access-token")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetSessionByToken_ExpiredInvisible(t *testing.T) {
	db := setupTestDB(t)

	user := &User{Username: "expired", Email: "e@example.com", Password: "x"}
	require.NoError(t, user.CreateUser(db))

	session := &Session{
		UserID:       user.ID,
		Token:        "old-token",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	require.NoError(t, CreateSession(db, session))

	_, err := GetSessionByToken(db, "old-token")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
