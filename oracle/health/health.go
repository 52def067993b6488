package health

import (
	"context"
	"sync"
	"time"

	"github.com/GPTx-global/rngoracle/oracle/log"
)

// HealthCheck is a named probe of one external dependency.
type HealthCheck interface {
	Check(ctx context.Context) error
	Name() string
}

// HealthChecker runs its checks periodically and keeps the latest result of each.
type HealthChecker struct {
	checks   map[string]HealthCheck
	mutex    sync.RWMutex
	interval time.Duration
	status   map[string]HealthStatus
}

type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

func NewHealthChecker(interval time.Duration) *HealthChecker {
	return &HealthChecker{
		checks:   make(map[string]HealthCheck),
		status:   make(map[string]HealthStatus),
		interval: interval,
	}
}

// AddCheck registers check. It counts as healthy until it first runs.
func (hc *HealthChecker) AddCheck(check HealthCheck) {
	hc.mutex.Lock()
	defer hc.mutex.Unlock()

	name := check.Name()
	hc.checks[name] = check
	hc.status[name] = HealthStatus{Healthy: true, LastCheck: time.Now()}

	log.Debugf("added health check: %s", name)
}

// Start runs all checks now and then every interval until ctx is done.
func (hc *HealthChecker) Start(ctx context.Context) {
	log.Debugf("health checker started, interval %v", hc.interval)

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	hc.RunChecks(ctx)

	for {
		select {
		case <-ticker.C:
			hc.RunChecks(ctx)
		case <-ctx.Done():
			log.Debugf("health checker stopped: %v", ctx.Err())
			return
		}
	}
}

// RunChecks runs every check concurrently and returns when all have finished.
func (hc *HealthChecker) RunChecks(ctx context.Context) {
	hc.mutex.RLock()
	checks := make([]HealthCheck, 0, len(hc.checks))
	for _, check := range hc.checks {
		checks = append(checks, check)
	}
	hc.mutex.RUnlock()

	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(check HealthCheck) {
			defer wg.Done()

			err := check.Check(ctx)
			status := HealthStatus{Healthy: err == nil, LastCheck: time.Now()}
			if err != nil {
				status.LastError = err.Error()
				log.Errorf("health check failed - %s: %v", check.Name(), err)
			}

			hc.mutex.Lock()
			hc.status[check.Name()] = status
			hc.mutex.Unlock()
		}(check)
	}
	wg.Wait()
}

func (hc *HealthChecker) GetStatus() map[string]HealthStatus {
	hc.mutex.RLock()
	defer hc.mutex.RUnlock()

	result := make(map[string]HealthStatus, len(hc.status))
	for name, status := range hc.status {
		result[name] = status
	}

	return result
}

func (hc *HealthChecker) IsHealthy() bool {
	hc.mutex.RLock()
	defer hc.mutex.RUnlock()

	for _, status := range hc.status {
		if !status.Healthy {
			return false
		}
	}

	return true
}

// FuncCheck adapts a plain function into a HealthCheck.
type FuncCheck struct {
	name      string
	checkFunc func(ctx context.Context) error
}

func NewFuncCheck(name string, checkFunc func(ctx context.Context) error) *FuncCheck {
	return &FuncCheck{name: name, checkFunc: checkFunc}
}

func (f *FuncCheck) Check(ctx context.Context) error {
	return f.checkFunc(ctx)
}

func (f *FuncCheck) Name() string {
	return f.name
}
