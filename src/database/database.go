package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/stockfolio/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if _, err := DB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		stdlog.Fatalf("failed to enable foreign keys: %v", err)
	}

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateUserTable()

	if err := CreateSchema(DB); err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// CreateSchema creates all application tables on db if they do not exist.
// Shared with the test suites, which run against in-memory databases.
func CreateSchema(db *sql.DB) error {
	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		cash TEXT NOT NULL DEFAULT '0',
		home_currency TEXT NOT NULL DEFAULT 'USD',
		timezone TEXT NOT NULL DEFAULT 'UTC',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS stocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL UNIQUE,
		exchange TEXT,
		price TEXT NOT NULL DEFAULT '0',
		last_updated TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS currency_rates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cfrom TEXT NOT NULL,
		cto TEXT NOT NULL,
		rate TEXT NOT NULL DEFAULT '0',
		last_updated TIMESTAMP,
		UNIQUE(cfrom, cto)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		stock_id INTEGER NOT NULL,
		direction TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		executed_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id),
		FOREIGN KEY(stock_id) REFERENCES stocks(id)
	);

	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		stock_id INTEGER NOT NULL,
		quantity TEXT NOT NULL DEFAULT '0',
		avg_cost_price TEXT NOT NULL DEFAULT '0',
		realized_pnl TEXT NOT NULL DEFAULT '0',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id),
		FOREIGN KEY(stock_id) REFERENCES stocks(id),
		UNIQUE(user_id, stock_id)
	);

	CREATE TABLE IF NOT EXISTS cash_transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		method TEXT NOT NULL,
		value TEXT NOT NULL,
		old_cash TEXT NOT NULL,
		new_cash TEXT NOT NULL,
		executed_at TIMESTAMP NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_stock
		ON transactions(user_id, stock_id, executed_at);
	CREATE INDEX IF NOT EXISTS idx_cash_transfers_user
		ON cash_transfers(user_id, executed_at);
	`

	_, err := db.Exec(createTableStatement)
	return err
}

func migrateUserTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='users'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'users' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'users' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'users' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(users)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'users'", "error", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'users'", "error", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'users'", "error", err)
		}
		return
	}

	if _, ok := columnExists["cash"]; !ok {
		_, err := DB.Exec("ALTER TABLE users ADD COLUMN cash TEXT NOT NULL DEFAULT '0'")
		if err != nil {
			logger.L.Error("Error adding 'cash' column to 'users' table", "error", err)
		} else {
			logger.L.Info("Added 'cash' column to 'users' table")
		}
	}
	if _, ok := columnExists["home_currency"]; !ok {
		_, err := DB.Exec("ALTER TABLE users ADD COLUMN home_currency TEXT NOT NULL DEFAULT 'USD'")
		if err != nil {
			logger.L.Error("Error adding 'home_currency' column to 'users' table", "error", err)
		} else {
			logger.L.Info("Added 'home_currency' column to 'users' table")
		}
	}
	if _, ok := columnExists["timezone"]; !ok {
		_, err := DB.Exec("ALTER TABLE users ADD COLUMN timezone TEXT NOT NULL DEFAULT 'UTC'")
		if err != nil {
			logger.L.Error("Error adding 'timezone' column to 'users' table", "error", err)
		} else {
			logger.L.Info("Added 'timezone' column to 'users' table")
		}
	}
}
