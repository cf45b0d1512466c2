package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"yolda/internal/domain"

	"go.uber.org/zap"
)

type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreateUser returns the user for a Telegram account, creating the
// row on first contact
func (r *UserRepository) GetOrCreateUser(ctx context.Context, telegramID int64, fullName, username string) (*domain.BotUser, error) {
	user, err := r.GetUserByTelegramID(ctx, telegramID)
	if err == nil {
		return user, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	query := `
		INSERT INTO bot_users (id, telegram_id, full_name, username)
		VALUES (?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query, domain.GenerateUserID(), telegramID, fullName, username)
	if err != nil {
		// Lost a create race: the row exists now, read it back
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return r.GetUserByTelegramID(ctx, telegramID)
		}
		r.logger.Error("Failed to create user", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return r.GetUserByTelegramID(ctx, telegramID)
}

// GetUserByTelegramID retrieves a user by their Telegram ID. Returns
// sql.ErrNoRows when unknown.
func (r *UserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.BotUser, error) {
	query := `
		SELECT id, telegram_id, full_name, username, phone_number,
			   is_admin, is_blocked, created_at, updated_at
		FROM bot_users
		WHERE telegram_id = ?`

	user := &domain.BotUser{}
	err := r.db.QueryRowContext(ctx, query, telegramID).Scan(
		&user.ID, &user.TelegramID, &user.FullName, &user.Username, &user.PhoneNumber,
		&user.IsAdmin, &user.IsBlocked, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		r.logger.Error("Failed to get user", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// SetPhoneNumber stores the contact shared during onboarding
func (r *UserRepository) SetPhoneNumber(ctx context.Context, telegramID int64, phone string) error {
	query := `UPDATE bot_users SET phone_number = ? WHERE telegram_id = ?`

	if _, err := r.db.ExecContext(ctx, query, phone, telegramID); err != nil {
		r.logger.Error("Failed to set phone number", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return fmt.Errorf("failed to set phone number: %w", err)
	}

	return nil
}

// BlockByPhone blocks every user whose phone number contains the given
// digits. Returns how many users were blocked.
func (r *UserRepository) BlockByPhone(ctx context.Context, phoneDigits string) (int64, error) {
	query := `UPDATE bot_users SET is_blocked = TRUE WHERE phone_number LIKE ?`

	result, err := r.db.ExecContext(ctx, query, "%"+phoneDigits+"%")
	if err != nil {
		r.logger.Error("Failed to block user by phone", zap.Error(err))
		return 0, fmt.Errorf("failed to block user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// SetBlocked sets the blocked flag for a single user
func (r *UserRepository) SetBlocked(ctx context.Context, telegramID int64, blocked bool) error {
	query := `UPDATE bot_users SET is_blocked = ? WHERE telegram_id = ?`

	if _, err := r.db.ExecContext(ctx, query, blocked, telegramID); err != nil {
		r.logger.Error("Failed to set blocked flag", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return fmt.Errorf("failed to set blocked flag: %w", err)
	}

	return nil
}

// PromoteAdmin grants admin rights to a Telegram account
func (r *UserRepository) PromoteAdmin(ctx context.Context, telegramID int64) (bool, error) {
	query := `UPDATE bot_users SET is_admin = TRUE WHERE telegram_id = ?`

	result, err := r.db.ExecContext(ctx, query, telegramID)
	if err != nil {
		r.logger.Error("Failed to promote admin", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return false, fmt.Errorf("failed to promote admin: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// CountUsers returns the total number of known users
func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bot_users`).Scan(&count); err != nil {
		r.logger.Error("Failed to count users", zap.Error(err))
		return 0, fmt.Errorf("failed to count users: %w", err)
	}

	return count, nil
}

// ListRecentUsers returns the newest users for the admin panel
func (r *UserRepository) ListRecentUsers(ctx context.Context, limit int) ([]domain.BotUser, error) {
	query := `
		SELECT id, telegram_id, full_name, username, phone_number,
			   is_admin, is_blocked, created_at, updated_at
		FROM bot_users
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.BotUser
	for rows.Next() {
		var user domain.BotUser
		if err := rows.Scan(
			&user.ID, &user.TelegramID, &user.FullName, &user.Username, &user.PhoneNumber,
			&user.IsAdmin, &user.IsBlocked, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			r.logger.Warn("Failed to scan user row", zap.Error(err))
			continue
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}
