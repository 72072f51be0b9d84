package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  []Service `json:"services"`
}

type Service struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Check is a named dependency check. Ping must honour the context deadline.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type HealthChecker struct {
	Checks  []Check
	Timeout time.Duration
}

func DBCheck(db *gorm.DB) Check {
	return Check{
		Name: "PostgreSQL",
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}

func RedisCheck(client *redis.Client) Check {
	return Check{
		Name: "Redis",
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	services := make([]Service, 0, len(h.Checks))
	overallStatus := "healthy"

	for _, check := range h.Checks {
		service := Service{Name: check.Name, Status: "up"}
		pctx, cancel := context.WithTimeout(ctx, timeout)
		if err := check.Ping(pctx); err != nil {
			service.Status = "down"
			service.Message = err.Error()
			overallStatus = "degraded"
		}
		cancel()
		services = append(services, service)
	}

	return HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Services:  services,
	}
}
