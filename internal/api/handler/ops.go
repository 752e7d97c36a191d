// Package handler provides HTTP handlers for the Invitely API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/invitely/invitely/internal/api/models"
	"github.com/invitely/invitely/internal/api/response"
	"github.com/invitely/invitely/internal/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// SweepReporter exposes background sweep statistics.
type SweepReporter interface {
	MetricsSnapshot() map[string]interface{}
}

// OpsConfig holds the dependencies of the ops endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Checks are run by the readiness and status endpoints, keyed by subsystem name.
	Checks map[string]Check

	// Registry reports the circuit breaker state of storage backends. Optional.
	Registry *resilience.Registry

	// Sweep reports reconcile sweep statistics. Optional.
	Sweep SweepReporter
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /api/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /api/ops/ready - fails while any dependency is unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(time.Now()),
		Details: map[string]interface{}{},
	}
	for _, s := range subsystems {
		health.Details[s.Name] = s.Status
		if s.Status == models.HealthStatusFail {
			health.Status = models.HealthStatusFail
		}
	}

	status := http.StatusOK
	if health.Status == models.HealthStatusFail {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /api/ops/status - dependency, breaker and sweep status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	if h.cfg.Registry != nil {
		for _, health := range h.cfg.Registry.All() {
			s := models.SubsystemStatus{
				Name:          health.Name,
				Status:        models.HealthStatusOK,
				LastSuccessAt: models.TimestampPtr(health.LastSuccessAt),
				LastFailureAt: models.TimestampPtr(health.LastFailureAt),
			}
			switch {
			case health.IsUnhealthy():
				s.Status = models.HealthStatusFail
			case health.IsDegraded():
				s.Status = models.HealthStatusDegraded
			}
			if health.LastError != "" {
				detail := health.LastError
				s.Detail = &detail
			}
			subsystems = append(subsystems, s)
		}
	}

	overall := models.HealthStatusOK
	for _, s := range subsystems {
		switch s.Status {
		case models.HealthStatusFail:
			overall = models.HealthStatusFail
		case models.HealthStatusDegraded:
			if overall == models.HealthStatusOK {
				overall = models.HealthStatusDegraded
			}
		}
	}

	status := models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(time.Now()),
		Subsystems: subsystems,
	}
	if h.cfg.Sweep != nil {
		status.Sweep = h.cfg.Sweep.MetricsSnapshot()
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.cfg.Checks))
	for name := range h.cfg.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := h.cfg.Checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}
