// Package health runs named checks against the process's dependencies and
// serves their results next to the metrics endpoint.
package health

import (
	"context"
	"sync"
	"time"
)

// Checker is a health check function
type Checker func(ctx context.Context) error

// NamedChecker is a health check with a name
type NamedChecker struct {
	Name    string
	Checker Checker
	Timeout time.Duration
}

// Registry manages health checks
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]*NamedChecker
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		checkers: make(map[string]*NamedChecker),
	}
}

// Register registers a health check with the default timeout
func (r *Registry) Register(name string, checker Checker) {
	r.RegisterWithTimeout(name, checker, 5*time.Second)
}

// RegisterWithTimeout registers a health check with a timeout
func (r *Registry) RegisterWithTimeout(name string, checker Checker, timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.checkers[name] = &NamedChecker{
		Name:    name,
		Checker: checker,
		Timeout: timeout,
	}
}

// Unregister removes a health check
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checkers, name)
}

// Check runs all health checks concurrently and returns results by name
func (r *Registry) Check(ctx context.Context) map[string]CheckResult {
	r.mu.RLock()
	checkers := make([]*NamedChecker, 0, len(r.checkers))
	for _, c := range r.checkers {
		checkers = append(checkers, c)
	}
	r.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, checker := range checkers {
		wg.Add(1)
		go func(checker *NamedChecker) {
			defer wg.Done()

			result := runCheck(ctx, checker)
			mu.Lock()
			results[checker.Name] = result
			mu.Unlock()
		}(checker)
	}

	wg.Wait()
	return results
}

// Status aggregates results: DOWN if any check is down
func (r *Registry) Status(ctx context.Context) (Status, map[string]CheckResult) {
	results := r.Check(ctx)
	for _, result := range results {
		if result.Status == StatusDown {
			return StatusDown, results
		}
	}
	return StatusUp, results
}

func runCheck(ctx context.Context, checker *NamedChecker) CheckResult {
	timeout := checker.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := checker.Checker(checkCtx)
	duration := time.Since(start)

	if err != nil {
		return CheckResult{
			Status:   StatusDown,
			Message:  err.Error(),
			Duration: duration,
		}
	}

	return CheckResult{
		Status:   StatusUp,
		Message:  "OK",
		Duration: duration,
	}
}

// CheckResult represents the result of a health check
type CheckResult struct {
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Status represents health check status
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)
