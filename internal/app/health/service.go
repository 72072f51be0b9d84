package health

import (
	"context"
	"time"

	"messenger/internal/utils"
)

type Service interface {
	Check(ctx context.Context) utils.HealthStatus
}

type service struct {
	checker *utils.HealthChecker
}

func NewService(timeout time.Duration, checks ...utils.Check) Service {
	return &service{checker: &utils.HealthChecker{Checks: checks, Timeout: timeout}}
}

func (s *service) Check(ctx context.Context) utils.HealthStatus {
	return s.checker.Check(ctx)
}
