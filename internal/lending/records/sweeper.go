package records

import (
	"context"
	"time"

	"hcsc-backend/internal/platform/logger"
)

// RunSweeper: 起動直後に1回、その後 every ごとに SweepOverdue を回す。ctx が終われば戻る
func (s *Service) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	log := logger.With("overdue-sweeper")
	log.Info().Dur("every", every).Msg("started")

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if n, err := s.SweepOverdue(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("sweep failed")
		} else if n > 0 {
			log.Info().Int64("marked", n).Msg("records marked overdue")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("stopped")
			return
		case <-ticker.C:
		}
	}
}
