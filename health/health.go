// Package health reports whether a publisher can reach its broker.
package health

import (
	"context"
	"time"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string         `json:"name"`
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Duration  time.Duration  `json:"duration"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Error     string         `json:"error,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Check(ctx context.Context) CheckResult
	Name() string
}

// Connector is implemented by *messagebroker.Publisher.
type Connector interface {
	Connect() error
	Connected() bool
	Healthy() bool
}

// BrokerChecker checks the broker connection, dialing it if needed.
type BrokerChecker struct {
	conn   Connector
	target string
}

// NewBrokerChecker creates a checker for conn. Target is reported in the
// result details and should not contain credentials.
func NewBrokerChecker(conn Connector, target string) *BrokerChecker {
	return &BrokerChecker{conn: conn, target: target}
}

func (c *BrokerChecker) Name() string {
	return "rabbitmq"
}

func (c *BrokerChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details: map[string]any{
			"broker":        c.target,
			"was_connected": c.conn.Connected(),
		},
	}

	if err := c.conn.Connect(); err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Failed to connect"
		result.Error = err.Error()
	} else if !c.conn.Healthy() {
		result.Status = StatusUnhealthy
		result.Message = "Connection is closed"
	} else {
		result.Status = StatusHealthy
		result.Message = "Connection is open"
	}

	result.Duration = time.Since(start)
	result.Details["response_time_ms"] = result.Duration.Milliseconds()

	return result
}
