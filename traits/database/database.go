package database

import (
	"database/sql"
	"os"
	"yolda/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InitDatabase initializes the SQLite database
func InitDatabase(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DBPath, 0755); err != nil {
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", cfg.GetDatabasePath()+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database initialized successfully",
		zap.String("path", cfg.GetDatabasePath()),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)

	return db, nil
}

// GenerateUUID generates a new UUID string
func GenerateUUID() string {
	return uuid.New().String()
}

// CreateTables creates the bot tables. The two UNIQUE constraints on
// order_queue are load-bearing: concurrent claims race on
// count-then-insert, and the constraint is what rejects the loser.
func CreateTables(db *sql.DB, logger *zap.Logger) error {
	botUsersTable := `
		CREATE TABLE IF NOT EXISTS bot_users (
			id TEXT PRIMARY KEY,
			telegram_id INTEGER NOT NULL UNIQUE,
			full_name TEXT DEFAULT '',
			username TEXT DEFAULT '',
			phone_number TEXT DEFAULT '',
			is_admin BOOLEAN DEFAULT FALSE,
			is_blocked BOOLEAN DEFAULT FALSE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	ordersTable := `
		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			telegram_id INTEGER NOT NULL,
			order_type TEXT NOT NULL CHECK (order_type IN ('taxi', 'parcel')),
			message_text TEXT NOT NULL,
			status TEXT DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'rejected')),
			group_message_id INTEGER NULL,
			accepted_by_telegram_id INTEGER NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	orderQueueTable := `
		CREATE TABLE IF NOT EXISTS order_queue (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			driver_telegram_id INTEGER NOT NULL,
			queue_position INTEGER NOT NULL,
			status TEXT DEFAULT 'waiting' CHECK (status IN ('waiting', 'notified', 'accepted', 'cancelled')),
			driver_message_id INTEGER NULL,
			notified_at DATETIME NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (order_id, queue_position),
			UNIQUE (order_id, driver_telegram_id),
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
		);`

	keywordsTable := `
		CREATE TABLE IF NOT EXISTS keywords (
			id TEXT PRIMARY KEY,
			keyword TEXT NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	watchedGroupsTable := `
		CREATE TABLE IF NOT EXISTS watched_groups (
			id TEXT PRIMARY KEY,
			group_id INTEGER NOT NULL UNIQUE,
			group_name TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	keywordHitsTable := `
		CREATE TABLE IF NOT EXISTS keyword_hits (
			id TEXT PRIMARY KEY,
			group_id INTEGER NOT NULL,
			group_name TEXT DEFAULT '',
			keyword_id TEXT NULL,
			message_preview TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (keyword_id) REFERENCES keywords(id) ON DELETE SET NULL
		);`

	botTextsTable := `
		CREATE TABLE IF NOT EXISTS bot_texts (
			id TEXT PRIMARY KEY,
			text_key TEXT NOT NULL UNIQUE,
			text_value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	botSettingsTable := `
		CREATE TABLE IF NOT EXISTS bot_settings (
			id TEXT PRIMARY KEY,
			setting_key TEXT NOT NULL UNIQUE,
			setting_value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	tables := []struct {
		name string
		sql  string
	}{
		{"bot_users", botUsersTable},
		{"orders", ordersTable},
		{"order_queue", orderQueueTable},
		{"keywords", keywordsTable},
		{"watched_groups", watchedGroupsTable},
		{"keyword_hits", keywordHitsTable},
		{"bot_texts", botTextsTable},
		{"bot_settings", botSettingsTable},
	}

	for _, table := range tables {
		if _, err := db.Exec(table.sql); err != nil {
			logger.Error("Failed to create table", zap.String("table", table.name), zap.Error(err))
			return err
		}
		logger.Info("Table created/verified", zap.String("table", table.name))
	}

	indexes := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_orders_telegram_id",
			sql:  "CREATE INDEX IF NOT EXISTS idx_orders_telegram_id ON orders(telegram_id);",
		},
		{
			name: "idx_orders_status",
			sql:  "CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);",
		},
		{
			name: "idx_orders_group_message_id",
			sql:  "CREATE INDEX IF NOT EXISTS idx_orders_group_message_id ON orders(group_message_id);",
		},
		{
			name: "idx_orders_created_at",
			sql:  "CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);",
		},
		{
			name: "idx_order_queue_order_id",
			sql:  "CREATE INDEX IF NOT EXISTS idx_order_queue_order_id ON order_queue(order_id);",
		},
		{
			name: "idx_order_queue_status",
			sql:  "CREATE INDEX IF NOT EXISTS idx_order_queue_status ON order_queue(status);",
		},
		{
			name: "idx_keyword_hits_group_id",
			sql:  "CREATE INDEX IF NOT EXISTS idx_keyword_hits_group_id ON keyword_hits(group_id);",
		},
	}

	for _, index := range indexes {
		if _, err := db.Exec(index.sql); err != nil {
			logger.Warn("Failed to create index",
				zap.String("index", index.name),
				zap.Error(err),
			)
		} else {
			logger.Info("Index created/verified", zap.String("index", index.name))
		}
	}

	// Create triggers for updating timestamps
	triggers := []struct {
		name string
		sql  string
	}{
		{
			name: "trigger_bot_users_updated_at",
			sql: `
				CREATE TRIGGER IF NOT EXISTS trigger_bot_users_updated_at
				AFTER UPDATE ON bot_users
				BEGIN
					UPDATE bot_users SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
				END;`,
		},
		{
			name: "trigger_orders_updated_at",
			sql: `
				CREATE TRIGGER IF NOT EXISTS trigger_orders_updated_at
				AFTER UPDATE ON orders
				BEGIN
					UPDATE orders SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
				END;`,
		},
	}

	for _, trigger := range triggers {
		if _, err := db.Exec(trigger.sql); err != nil {
			logger.Warn("Failed to create trigger",
				zap.String("trigger", trigger.name),
				zap.Error(err))
		} else {
			logger.Info("Trigger created/verified", zap.String("trigger", trigger.name))
		}
	}

	if err := seedDefaults(db, logger); err != nil {
		return err
	}

	logger.Info("Database schema created successfully")
	return nil
}

// seedDefaults inserts the editable bot texts and settings once.
// Existing rows are left alone so admin edits survive restarts.
func seedDefaults(db *sql.DB, logger *zap.Logger) error {
	texts := map[string]string{
		"welcome_phone":  "Assalomu alaykum! Botdan foydalanish uchun telefon raqamingizni yuboring.",
		"main_menu":      "Assalomu alaykum, {fullname}! Kerakli bo'limni tanlang:",
		"taxi_order":     "🚕 Qayerdan qayerga borasiz? Manzil va vaqtni yozib yuboring.",
		"parcel_order":   "📦 Pochta qayerdan qayerga yuboriladi? Manzilni yozib yuboring.",
		"order_sent":     "✅ Buyurtmangiz haydovchilarga yuborildi! Tez orada siz bilan bog'lanishadi.",
		"driver_menu":    "🚖 Haydovchi bo'limi. VIP haqida ma'lumot oling yoki qo'shiling.",
		"vip_info":       "⭐ VIP haydovchilar buyurtmalarni birinchi bo'lib ko'radi. Admin bilan bog'laning: @Sherzod_2086",
		"contact_admin":  "Admin bilan bog'lanish: @Sherzod_2086",
		"bot_info":       "🚕 Taxi va 📦 pochta buyurtmalari uchun bot.",
		"admin_welcome":  "👮 Admin paneliga xush kelibsiz!",
		"blocked_notice": "⛔ Siz bloklangansiz. Admin bilan bog'laning: @Sherzod_2086",
	}

	for key, value := range texts {
		if _, err := db.Exec(
			`INSERT OR IGNORE INTO bot_texts (id, text_key, text_value) VALUES (?, ?, ?)`,
			GenerateUUID(), key, value,
		); err != nil {
			logger.Error("Failed to seed bot text", zap.String("key", key), zap.Error(err))
			return err
		}
	}

	settings := map[string]string{
		"driver_registration_enabled": "true",
	}

	for key, value := range settings {
		if _, err := db.Exec(
			`INSERT OR IGNORE INTO bot_settings (id, setting_key, setting_value) VALUES (?, ?, ?)`,
			GenerateUUID(), key, value,
		); err != nil {
			logger.Error("Failed to seed bot setting", zap.String("key", key), zap.Error(err))
			return err
		}
	}

	return nil
}
