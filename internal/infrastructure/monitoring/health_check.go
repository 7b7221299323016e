package monitoring

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// CheckFunc reports whether one dependency is usable.
type CheckFunc func(ctx context.Context) error

// HealthChecker answers the liveness and readiness probes. Liveness is
// unconditional; readiness runs every registered dependency check.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthChecker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

func (h *HealthChecker) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

type healthReport struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (h *HealthChecker) run(ctx context.Context) healthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	report := healthReport{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(h.checks)),
	}

	for name, check := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := check(checkCtx)
		cancel()

		if err != nil {
			report.Status = "unavailable"
			report.Checks[name] = err.Error()
		} else {
			report.Checks[name] = "ok"
		}
	}
	return report
}

// LiveHandler serves GET /health.
func (h *HealthChecker) LiveHandler(c *gin.Context) {
	c.JSON(http.StatusOK, healthReport{Status: "ok", Timestamp: time.Now()})
}

// ReadyHandler serves GET /ready.
func (h *HealthChecker) ReadyHandler(c *gin.Context) {
	report := h.run(c.Request.Context())
	code := http.StatusOK
	if report.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}
