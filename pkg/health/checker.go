package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Status    Status                 `json:"status"`
	Component string                 `json:"component"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Checker is an interface for health checkers
type Checker interface {
	Check(ctx context.Context) CheckResult
	Name() string
}

// HealthChecker aggregates multiple health checkers
type HealthChecker struct {
	checkers []Checker
	timeout  time.Duration
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HealthChecker{timeout: timeout}
}

// Register adds a checker to the health checker
func (h *HealthChecker) Register(checker Checker) {
	h.checkers = append(h.checkers, checker)
}

// CheckAll runs all registered health checks in parallel
func (h *HealthChecker) CheckAll(ctx context.Context) map[string]CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(map[string]CheckResult)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, checker := range h.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			result := c.Check(ctx)
			mu.Lock()
			results[c.Name()] = result
			mu.Unlock()
		}(checker)
	}

	wg.Wait()
	return results
}

// Check runs all health checks and returns the overall status
func (h *HealthChecker) Check(ctx context.Context) (Status, map[string]CheckResult) {
	results := h.CheckAll(ctx)

	overall := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy, results
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall, results
}

// IsHealthy returns true if all checks are healthy
func (h *HealthChecker) IsHealthy(ctx context.Context) bool {
	status, _ := h.Check(ctx)
	return status == StatusHealthy
}

// NewCheckResult creates a new check result
func NewCheckResult(component string, status Status, message string, err error) CheckResult {
	result := CheckResult{
		Component: component,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
		result.Status = StatusUnhealthy
	}
	return result
}

// NewHealthyResult creates a healthy check result
func NewHealthyResult(component, message string) CheckResult {
	return NewCheckResult(component, StatusHealthy, message, nil)
}

// NewUnhealthyResult creates an unhealthy check result
func NewUnhealthyResult(component string, err error) CheckResult {
	return NewCheckResult(component, StatusUnhealthy, "", err)
}

// WithMetadata adds metadata to a check result
func (r CheckResult) WithMetadata(key string, value interface{}) CheckResult {
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
	r.Metadata[key] = value
	return r
}

// WithDuration adds duration to a check result
func (r CheckResult) WithDuration(d time.Duration) CheckResult {
	r.Duration = d
	return r
}
