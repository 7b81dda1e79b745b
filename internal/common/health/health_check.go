package health

import (
	"fmt"
	"runtime"
	"time"

	"gorm.io/gorm"
)

const (
	maxHealthyGoroutines = 10000
	maxHealthyMemoryMB   = 500
	maxHealthyLatencyMS  = 100
)

// ComponentHealth is the check result for one component.
type ComponentHealth struct {
	Healthy bool                   `json:"healthy"`
	Details map[string]interface{} `json:"details,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// HealthStatus is the aggregate health report served on /health.
type HealthStatus struct {
	Status    string                     `json:"status"` // healthy or degraded
	Timestamp time.Time                  `json:"timestamp"`
	Version   string                     `json:"version"`
	Checks    map[string]ComponentHealth `json:"checks"`
	Duration  int64                      `json:"duration_ms"`
}

// SystemMetrics captures current process metrics for /health/metrics.
type SystemMetrics struct {
	MemoryUsageMB  uint64 `json:"memory_usage_mb"`
	GoroutineCount int    `json:"goroutine_count"`
	CPUNumCores    int    `json:"cpu_num_cores"`
	Uptime         int64  `json:"uptime_seconds"`
}

// HealthChecker runs database and runtime checks for the health endpoints.
type HealthChecker struct {
	db        *gorm.DB
	version   string
	startTime time.Time
}

func NewHealthChecker(db *gorm.DB, version string) *HealthChecker {
	return &HealthChecker{
		db:        db,
		version:   version,
		startTime: time.Now(),
	}
}

// Check runs all component checks and aggregates them. An unhealthy
// component degrades the overall status; the process keeps serving.
func (hc *HealthChecker) Check() HealthStatus {
	start := time.Now()

	checks := map[string]ComponentHealth{
		"database":   hc.checkDatabase(),
		"memory":     checkMemory(),
		"goroutines": checkGoroutines(),
	}

	status := "healthy"
	for _, check := range checks {
		if !check.Healthy {
			status = "degraded"
			break
		}
	}

	return HealthStatus{
		Status:    status,
		Timestamp: start,
		Version:   hc.version,
		Checks:    checks,
		Duration:  time.Since(start).Milliseconds(),
	}
}

func (hc *HealthChecker) checkDatabase() ComponentHealth {
	if hc.db == nil {
		return ComponentHealth{Healthy: false, Error: "database not initialized"}
	}

	start := time.Now()
	sqlDB, err := hc.db.DB()
	if err != nil {
		return ComponentHealth{Healthy: false, Error: fmt.Sprintf("failed to get database connection: %v", err)}
	}
	if err := sqlDB.Ping(); err != nil {
		return ComponentHealth{Healthy: false, Error: fmt.Sprintf("database ping failed: %v", err)}
	}

	latency := time.Since(start).Milliseconds()
	return ComponentHealth{
		Healthy: latency < maxHealthyLatencyMS,
		Details: map[string]interface{}{"latency_ms": latency},
	}
}

func checkMemory() ComponentHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	allocMB := m.Alloc / 1024 / 1024
	return ComponentHealth{
		Healthy: allocMB < maxHealthyMemoryMB,
		Details: map[string]interface{}{
			"allocated_mb": allocMB,
			"sys_mb":       m.Sys / 1024 / 1024,
			"num_gc":       m.NumGC,
		},
	}
}

func checkGoroutines() ComponentHealth {
	count := runtime.NumGoroutine()
	return ComponentHealth{
		Healthy: count < maxHealthyGoroutines,
		Details: map[string]interface{}{"count": count},
	}
}

// IsReady reports whether the service can reach its database.
func (hc *HealthChecker) IsReady() bool {
	if hc.db == nil {
		return false
	}
	sqlDB, err := hc.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.Ping() == nil
}

// IsAlive reports process liveness.
func (hc *HealthChecker) IsAlive() bool {
	return true
}

// GetMetrics returns a snapshot of process metrics.
func (hc *HealthChecker) GetMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		MemoryUsageMB:  m.Alloc / 1024 / 1024,
		GoroutineCount: runtime.NumGoroutine(),
		CPUNumCores:    runtime.NumCPU(),
		Uptime:         int64(time.Since(hc.startTime).Seconds()),
	}
}
