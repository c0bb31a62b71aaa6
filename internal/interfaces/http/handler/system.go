package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/erp/retailops/internal/infrastructure/persistence"
	"github.com/erp/retailops/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// DatabaseStats reports connection pool statistics.
type DatabaseStats interface {
	Stats() (persistence.ConnectionStats, error)
}

// SystemHandler serves liveness, readiness and build information.
type SystemHandler struct {
	BaseHandler
	name         string
	version      string
	startTime    time.Time
	checks       map[string]Pinger
	db           DatabaseStats
	checkTimeout time.Duration
}

// NewSystemHandler creates a SystemHandler. checks are pinged by Ready; db
// may be nil.
func NewSystemHandler(name, version string, checks map[string]Pinger, db DatabaseStats) *SystemHandler {
	return &SystemHandler{
		name:         name,
		version:      version,
		startTime:    time.Now(),
		checks:       checks,
		db:           db,
		checkTimeout: 2 * time.Second,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string                       `json:"name"`
	Version   string                       `json:"version"`
	GoVersion string                       `json:"go_version"`
	Uptime    string                       `json:"uptime"`
	Database  *persistence.ConnectionStats `json:"database,omitempty"`
}

// Info returns the service name, version, uptime and pool statistics.
func (h *SystemHandler) Info(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.db != nil {
		if stats, err := h.db.Stats(); err == nil {
			info.Database = &stats
		}
	}
	h.Success(c, info)
}

// Live answers as long as the process serves requests.
func (h *SystemHandler) Live(c *gin.Context) {
	h.Success(c, gin.H{"status": "ok"})
}

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// ReadinessResponse aggregates the readiness checks.
type ReadinessResponse struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// Ready pings every dependency concurrently. Any failure answers 503.
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.checkTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]CheckResult, 0, len(h.checks))
	)
	for name, check := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := check.Ping(ctx)
			r := CheckResult{Name: name, Healthy: err == nil, Latency: time.Since(start).String()}
			if err != nil {
				r.Error = err.Error()
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}()
	}
	wg.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	resp := ReadinessResponse{Status: "ready", Checks: results}
	for _, r := range results {
		if !r.Healthy {
			resp.Status = "not_ready"
			c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp,
				Error: &dto.ErrorInfo{Code: dto.ErrCodeUnavailable, Message: r.Name + " is unavailable"}})
			return
		}
	}
	h.Success(c, resp)
}
