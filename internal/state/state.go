package state

import (
	"context"
	"fmt"
	"time"
	"yolda/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Conversation state constants. The state drives what the next plain
// message from the user means.
const (
	StateNone              = ""
	StateWaitingTaxiOrder  = "waiting_taxi_order"
	StateWaitingParcelText = "waiting_parcel_order"
	StateWaitingGroupID    = "waiting_group_id"
	StateWaitingKeywords   = "waiting_keywords"
	StateWaitingBlockPhone = "waiting_block_phone"
	StateWaitingAdminID    = "waiting_admin_id"
	StateWaitingTextKey    = "waiting_text_key"
	StateEditingTextPrefix = "editing_text_"
)

// Store keeps per-user conversation state in redis with a TTL, so an
// abandoned flow expires instead of trapping the user forever.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore connects to redis and verifies the connection
func NewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis state store initialized",
		zap.String("addr", cfg.RedisAddr),
		zap.Duration("ttl", cfg.StateTTL),
	)

	return &Store{
		client: client,
		ttl:    cfg.StateTTL,
		logger: logger,
	}, nil
}

func stateKey(telegramID int64) string {
	return fmt.Sprintf("state:%d", telegramID)
}

// Get returns the user's current conversation state, StateNone when unset
func (s *Store) Get(ctx context.Context, telegramID int64) (string, error) {
	val, err := s.client.Get(ctx, stateKey(telegramID)).Result()
	if err == redis.Nil {
		return StateNone, nil
	}
	if err != nil {
		s.logger.Error("Failed to get user state", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return StateNone, fmt.Errorf("failed to get user state: %w", err)
	}

	return val, nil
}

// Set stores the user's conversation state with the configured TTL
func (s *Store) Set(ctx context.Context, telegramID int64, value string) error {
	if value == StateNone {
		return s.Clear(ctx, telegramID)
	}

	if err := s.client.Set(ctx, stateKey(telegramID), value, s.ttl).Err(); err != nil {
		s.logger.Error("Failed to set user state", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return fmt.Errorf("failed to set user state: %w", err)
	}

	return nil
}

// Clear removes the user's conversation state
func (s *Store) Clear(ctx context.Context, telegramID int64) error {
	if err := s.client.Del(ctx, stateKey(telegramID)).Err(); err != nil {
		s.logger.Error("Failed to clear user state", zap.Error(err), zap.Int64("telegram_id", telegramID))
		return fmt.Errorf("failed to clear user state: %w", err)
	}

	return nil
}

// Close releases the redis connection
func (s *Store) Close() error {
	return s.client.Close()
}
