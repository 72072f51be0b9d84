package seeder

import (
	"context"

	"messenger/internal/app/thread"
	"messenger/internal/config"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Seeder creates the optional welcome broadcast thread once.
type Seeder struct {
	db      *gorm.DB
	threads thread.Service
	cfg     *config.Config
	logger  *zap.Logger
}

func NewSeeder(db *gorm.DB, threads thread.Service, cfg *config.Config, logger *zap.Logger) *Seeder {
	return &Seeder{
		db:      db,
		threads: threads,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *Seeder) Seed(ctx context.Context) error {
	if s.cfg.WelcomeSubject == "" {
		return nil
	}
	s.logger.Info("Running database seeders...")

	if err := s.seedWelcome(ctx); err != nil {
		return err
	}

	s.logger.Info("Database seeders completed successfully")
	return nil
}

func (s *Seeder) seedWelcome(ctx context.Context) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&thread.Thread{}).
		Where("to_all = ? AND subject = ?", true, s.cfg.WelcomeSubject).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		s.logger.Info("Welcome thread already exists, skipping seed")
		return nil
	}

	body := s.cfg.WelcomeBody
	if body == "" {
		body = s.cfg.WelcomeSubject
	}
	created, err := s.threads.CreateThread(ctx, thread.NewThread{
		Subject:   s.cfg.WelcomeSubject,
		Body:      body,
		SenderID:  s.cfg.WelcomeSenderID,
		Broadcast: true,
	})
	if err != nil {
		return err
	}

	s.logger.Info("Seeded welcome thread", zap.Uint64("thread_id", created.Thread.ID))
	return nil
}
