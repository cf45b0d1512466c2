package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RunSweeper auto-declines private offers that sat unanswered longer
// than NotifyTimeout, so one silent driver cannot hold the chain
// forever. Runs until the context is cancelled.
func (s *Service) RunSweeper(ctx context.Context) {
	s.logger.Info("Started offer timeout sweeper",
		zap.Duration("notify_timeout", s.cfg.NotifyTimeout),
		zap.Duration("sweep_interval", s.cfg.SweepInterval))

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Offer timeout sweeper stopped")
			return
		case <-ticker.C:
			s.sweepStalledOffers(ctx)
		}
	}
}

func (s *Service) sweepStalledOffers(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.NotifyTimeout)

	stalled, err := s.queue.ListStalledNotified(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to list stalled offers", zap.Error(err))
		return
	}

	for _, entry := range stalled {
		order, err := s.orders.GetOrderByID(ctx, entry.OrderID)
		if err != nil {
			s.logger.Error("Failed to load order for stalled offer",
				zap.Error(err),
				zap.String("order_id", entry.OrderID))
			continue
		}
		if order.IsTerminal() {
			continue
		}

		s.logger.Info("Offer timed out, advancing queue",
			zap.String("order_id", order.ID),
			zap.Int64("driver_telegram_id", entry.DriverTelegramID))

		if err := s.cancelEntry(ctx, order, &entry); err != nil {
			if errors.Is(err, ErrUnavailable) {
				continue
			}
			s.logger.Error("Failed to advance past stalled offer",
				zap.Error(err),
				zap.String("order_id", order.ID))
			continue
		}

		s.refreshAnnouncement(ctx, order)
	}
}
