package repository

import (
	"context"
	"database/sql"
	"fmt"
	"yolda/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContentRepository owns the editable bot content: message texts,
// settings, keywords and watched groups.
type ContentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewContentRepository(db *sql.DB, logger *zap.Logger) *ContentRepository {
	return &ContentRepository{
		db:     db,
		logger: logger,
	}
}

// GetText returns the template for a text key, or "" when unset
func (r *ContentRepository) GetText(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT text_value FROM bot_texts WHERE text_key = ?`, key,
	).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		r.logger.Error("Failed to get bot text", zap.Error(err), zap.String("key", key))
		return "", fmt.Errorf("failed to get bot text: %w", err)
	}

	return value, nil
}

// SetText updates a text template. Returns false for an unknown key.
func (r *ContentRepository) SetText(ctx context.Context, key, value string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bot_texts SET text_value = ?, updated_at = CURRENT_TIMESTAMP WHERE text_key = ?`,
		value, key,
	)
	if err != nil {
		r.logger.Error("Failed to set bot text", zap.Error(err), zap.String("key", key))
		return false, fmt.Errorf("failed to set bot text: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListTextKeys returns all editable text keys
func (r *ContentRepository) ListTextKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT text_key FROM bot_texts ORDER BY text_key`)
	if err != nil {
		r.logger.Error("Failed to list text keys", zap.Error(err))
		return nil, fmt.Errorf("failed to list text keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			continue
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// GetSetting returns a setting value, or "" when unset
func (r *ContentRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT setting_value FROM bot_settings WHERE setting_key = ?`, key,
	).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		r.logger.Error("Failed to get setting", zap.Error(err), zap.String("key", key))
		return "", fmt.Errorf("failed to get setting: %w", err)
	}

	return value, nil
}

// SetSetting upserts a setting value
func (r *ContentRepository) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO bot_settings (id, setting_key, setting_value)
		VALUES (?, ?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET setting_value = excluded.setting_value, updated_at = CURRENT_TIMESTAMP`

	if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), key, value); err != nil {
		r.logger.Error("Failed to set setting", zap.Error(err), zap.String("key", key))
		return fmt.Errorf("failed to set setting: %w", err)
	}

	return nil
}

// ListKeywords returns all watched phrases
func (r *ContentRepository) ListKeywords(ctx context.Context) ([]domain.Keyword, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, keyword, created_at FROM keywords ORDER BY keyword`)
	if err != nil {
		r.logger.Error("Failed to list keywords", zap.Error(err))
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	var keywords []domain.Keyword
	for rows.Next() {
		var kw domain.Keyword
		if err := rows.Scan(&kw.ID, &kw.Keyword, &kw.CreatedAt); err != nil {
			r.logger.Warn("Failed to scan keyword row", zap.Error(err))
			continue
		}
		keywords = append(keywords, kw)
	}

	return keywords, rows.Err()
}

// UpsertKeyword adds a watched phrase, ignoring duplicates
func (r *ContentRepository) UpsertKeyword(ctx context.Context, keyword string) error {
	query := `INSERT OR IGNORE INTO keywords (id, keyword) VALUES (?, ?)`

	if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), keyword); err != nil {
		r.logger.Error("Failed to upsert keyword", zap.Error(err), zap.String("keyword", keyword))
		return fmt.Errorf("failed to upsert keyword: %w", err)
	}

	return nil
}

// DeleteKeyword removes a watched phrase by id
func (r *ContentRepository) DeleteKeyword(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM keywords WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete keyword", zap.Error(err), zap.String("id", id))
		return fmt.Errorf("failed to delete keyword: %w", err)
	}

	return nil
}

// UpsertWatchedGroup adds a group to the watch list, ignoring duplicates
func (r *ContentRepository) UpsertWatchedGroup(ctx context.Context, groupID int64, groupName string) error {
	query := `INSERT OR IGNORE INTO watched_groups (id, group_id, group_name) VALUES (?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), groupID, groupName); err != nil {
		r.logger.Error("Failed to upsert watched group", zap.Error(err), zap.Int64("group_id", groupID))
		return fmt.Errorf("failed to upsert watched group: %w", err)
	}

	return nil
}

// IsWatchedGroup reports whether a chat is on the watch list
func (r *ContentRepository) IsWatchedGroup(ctx context.Context, groupID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM watched_groups WHERE group_id = ?)`, groupID,
	).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check watched group", zap.Error(err), zap.Int64("group_id", groupID))
		return false, fmt.Errorf("failed to check watched group: %w", err)
	}

	return exists, nil
}

// ListWatchedGroups returns the watch list
func (r *ContentRepository) ListWatchedGroups(ctx context.Context) ([]domain.WatchedGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, group_id, group_name, created_at FROM watched_groups ORDER BY created_at DESC`)
	if err != nil {
		r.logger.Error("Failed to list watched groups", zap.Error(err))
		return nil, fmt.Errorf("failed to list watched groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.WatchedGroup
	for rows.Next() {
		var g domain.WatchedGroup
		if err := rows.Scan(&g.ID, &g.GroupID, &g.GroupName, &g.CreatedAt); err != nil {
			r.logger.Warn("Failed to scan watched group row", zap.Error(err))
			continue
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// RecordKeywordHit stores one detection for the statistics screen
func (r *ContentRepository) RecordKeywordHit(ctx context.Context, groupID int64, groupName string, keywordID *string, preview string) error {
	query := `
		INSERT INTO keyword_hits (id, group_id, group_name, keyword_id, message_preview)
		VALUES (?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query, uuid.New().String(), groupID, groupName, keywordID, preview); err != nil {
		r.logger.Error("Failed to record keyword hit", zap.Error(err), zap.Int64("group_id", groupID))
		return fmt.Errorf("failed to record keyword hit: %w", err)
	}

	return nil
}

// CountKeywordHits returns hit totals per group for the statistics screen
func (r *ContentRepository) CountKeywordHits(ctx context.Context) (map[int64]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT group_id, COUNT(*) FROM keyword_hits GROUP BY group_id`)
	if err != nil {
		r.logger.Error("Failed to count keyword hits", zap.Error(err))
		return nil, fmt.Errorf("failed to count keyword hits: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var groupID int64
		var count int
		if err := rows.Scan(&groupID, &count); err != nil {
			continue
		}
		counts[groupID] = count
	}

	return counts, rows.Err()
}
