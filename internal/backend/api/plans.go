package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-organizer/internal/backend/metrics"
	"media-organizer/internal/backend/models"
	"media-organizer/internal/backend/ops"
	"media-organizer/internal/backend/store"
	"media-organizer/pkg/logging"
)

// PlansHandler generates, applies, and rolls back organization plans.
type PlansHandler struct {
	store    store.Store
	planner  *ops.Planner
	executor *ops.Executor
	metrics  *metrics.Metrics
	log      *logging.Logger
}

// NewPlansHandler creates the plans handler.
func NewPlansHandler(deps Deps) *PlansHandler {
	return &PlansHandler{
		store:    deps.Store,
		planner:  deps.Planner,
		executor: deps.Executor,
		metrics:  deps.Metrics,
		log:      deps.Log,
	}
}

// RegisterRoutes registers the plan endpoints.
func (h *PlansHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/plans/generate", h.Generate).Methods("POST")
	r.HandleFunc("/plans/{id}/apply", h.Apply).Methods("POST")
	r.HandleFunc("/plans/{id}/rollback", h.Rollback).Methods("POST")
	r.HandleFunc("/plans/{id}/preview", h.Preview).Methods("GET")
	r.HandleFunc("/plans/{id}", h.Get).Methods("GET")
	r.HandleFunc("/plans/{id}", h.Delete).Methods("DELETE")
	r.HandleFunc("/plans", h.List).Methods("GET")
}

// List returns recent plans, newest first.
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	plans, err := h.store.ListPlans(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total": len(plans),
		"items": plans,
	})
}

// Generate builds a plan from approved files and groups and saves it.
func (h *PlansHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req ops.PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	build, err := h.planner.Generate(req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(build.Plan.Operations) == 0 {
		respondError(w, http.StatusBadRequest, "No approved items to include in plan")
		return
	}

	if err := h.planner.Save(build.Plan); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.metrics != nil {
		h.metrics.PlansGenerated.Inc()
	}
	respondJSON(w, http.StatusCreated, build)
}

// Get returns a plan with its operations.
func (h *PlansHandler) Get(w http.ResponseWriter, r *http.Request) {
	plan, err := h.store.GetPlan(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "Plan not found")
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// Apply starts plan execution in the background. Only ready plans can
// be applied.
func (h *PlansHandler) Apply(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["id"]

	plan, err := h.store.GetPlan(planID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Plan not found")
		return
	}
	if plan.Status != models.PlanStatusReady {
		respondError(w, http.StatusBadRequest,
			"Plan cannot be applied (status: "+string(plan.Status)+")")
		return
	}

	go func() {
		results, err := h.executor.ExecutePlan(planID)
		if err != nil {
			h.log.Error("Plan execution failed", map[string]interface{}{
				"plan_id": planID, "error": err.Error(),
			})
			return
		}
		if h.metrics != nil {
			for _, result := range results {
				outcome := "failed"
				if result.Success {
					outcome = "completed"
				}
				h.metrics.OperationsExecuted.WithLabelValues(outcome).Inc()
			}
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "Plan execution started",
		"plan_id": planID,
	})
}

// Rollback reverses a completed or failed plan synchronously.
func (h *PlansHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["id"]

	result, err := h.executor.RollbackPlan(planID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Plan not found")
		return
	}
	if !result.Success && result.ErrorMessage != "" {
		respondError(w, http.StatusBadRequest, result.ErrorMessage)
		return
	}

	if h.metrics != nil {
		h.metrics.PlansRolledBack.Inc()
	}
	respondJSON(w, http.StatusOK, result)
}

// Delete removes a plan that has not been applied.
func (h *PlansHandler) Delete(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["id"]

	plan, err := h.store.GetPlan(planID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Plan not found")
		return
	}
	if plan.Status == models.PlanStatusCompleted || plan.Status == models.PlanStatusApplying {
		respondError(w, http.StatusBadRequest, "Cannot delete an applied or running plan")
		return
	}

	if err := h.store.DeletePlan(planID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Plan deleted", "plan_id": planID})
}

// Preview summarizes a plan before applying: counts by operation type
// plus the first few operations.
func (h *PlansHandler) Preview(w http.ResponseWriter, r *http.Request) {
	plan, err := h.store.GetPlan(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "Plan not found")
		return
	}

	typeCounts := make(map[string]int)
	samples := make([]map[string]string, 0, 10)
	for _, op := range plan.Operations {
		typeCounts[string(op.Type)]++
		if len(samples) < 10 {
			samples = append(samples, map[string]string{
				"from": op.SourcePath,
				"to":   op.TargetPath,
			})
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"plan_id":           plan.ID,
		"name":              plan.Name,
		"status":            plan.Status,
		"total_operations":  plan.ItemCount,
		"operation_types":   typeCounts,
		"sample_operations": samples,
	})
}
