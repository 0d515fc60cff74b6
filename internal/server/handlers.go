package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/me/pipeweave/pkg/model"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Store     string `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, healthResponse{
		Status:    "healthy",
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     "sqlite",
	})
}

// definitionRequest carries a raw YAML workflow definition.
type definitionRequest struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

func (s *Server) decodeDefinition(w http.ResponseWriter, r *http.Request, reqID string) (*definitionRequest, bool) {
	var req definitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.PlanError{
			Code: model.ErrDefinition, Message: "invalid JSON body: " + err.Error(),
		})
		return nil, false
	}
	if req.Definition == "" {
		respondError(w, reqID, http.StatusBadRequest, &model.PlanError{
			Code: model.ErrDefinition, Message: "definition is required",
		})
		return nil, false
	}
	return &req, true
}

func (s *Server) handleValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	req, ok := s.decodeDefinition(w, r, reqID)
	if !ok {
		return
	}

	def, err := s.parser.Parse([]byte(req.Definition))
	if err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	if err := s.validator.ValidateWorkflow(def); err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"valid": true, "stages": len(def.Stages)})
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	req, ok := s.decodeDefinition(w, r, reqID)
	if !ok {
		return
	}

	def, err := s.parser.Parse([]byte(req.Definition))
	if err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	if req.Name != "" {
		def.Name = req.Name
	}
	plan, err := s.planner.Plan(def)
	if err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, plan)
}

// createRunRequest plans a definition and registers it as a named run.
type createRunRequest struct {
	Name         string `json:"name"`
	Definition   string `json:"definition"`
	WorkflowFile string `json:"workflow_file"`
	Tool         string `json:"tool"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.PlanError{
			Code: model.ErrDefinition, Message: "invalid JSON body: " + err.Error(),
		})
		return
	}
	if req.Name == "" || req.Definition == "" {
		respondError(w, reqID, http.StatusBadRequest, &model.PlanError{
			Code: model.ErrDefinition, Message: "name and definition are required",
		})
		return
	}

	def, err := s.parser.Parse([]byte(req.Definition))
	if err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	def.Name = req.Name
	plan, err := s.planner.Plan(def)
	if err != nil {
		respondPlanError(w, reqID, err)
		return
	}

	run := &model.Run{
		ID:           "run_" + uuid.New().String(),
		Name:         req.Name,
		WorkflowFile: req.WorkflowFile,
		RunDir:       s.config.RunDir,
		Tool:         req.Tool,
		State:        model.RunStatePlanned,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateRun(r.Context(), run, plan); err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, model.RunStatus{Run: run})
}

type listPayload struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}
	opts.Clamp()

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	respondOK(w, reqID, listPayload{Items: runs, Total: total, Limit: opts.Limit, Offset: opts.Offset})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	name := chi.URLParam(r, "name")

	run, err := s.store.GetRun(r.Context(), name)
	if err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", name))
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleGetRunPlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	name := chi.URLParam(r, "name")

	plan, err := s.store.GetPlan(r.Context(), name)
	if err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	if plan == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", name))
		return
	}
	respondOK(w, reqID, plan)
}

func (s *Server) handleGetRunStatus(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	name := chi.URLParam(r, "name")

	run, err := s.store.GetRun(r.Context(), name)
	if err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", name))
		return
	}
	summary, err := s.store.TaskSummary(r.Context(), name)
	if err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	respondOK(w, reqID, model.RunStatus{Run: run, Tasks: summary})
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	name := chi.URLParam(r, "name")

	if err := s.store.DeleteRun(r.Context(), name); err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"deleted": name})
}

// handleUpdateTask records executor progress on one task and rolls the run
// state forward when every task has completed.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	name := chi.URLParam(r, "name")
	taskID := chi.URLParam(r, "taskID")

	var req struct {
		State model.TaskState `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.PlanError{
			Code: model.ErrDefinition, Message: "invalid JSON body: " + err.Error(),
		})
		return
	}
	switch req.State {
	case model.TaskStatePending, model.TaskStateExecuting, model.TaskStateComplete:
	default:
		respondError(w, reqID, http.StatusBadRequest, &model.PlanError{
			Code: model.ErrDefinition, Message: "unknown task state " + string(req.State),
		})
		return
	}

	if err := s.store.UpdateTaskState(r.Context(), name, taskID, req.State); err != nil {
		respondPlanError(w, reqID, err)
		return
	}

	summary, err := s.store.TaskSummary(r.Context(), name)
	if err != nil {
		respondPlanError(w, reqID, err)
		return
	}
	if summary.AllComplete {
		if err := s.store.UpdateRunState(r.Context(), name, model.RunStateComplete); err != nil {
			respondPlanError(w, reqID, err)
			return
		}
	} else if req.State == model.TaskStateExecuting {
		if err := s.store.UpdateRunState(r.Context(), name, model.RunStateExecuting); err != nil {
			respondPlanError(w, reqID, err)
			return
		}
	}
	respondOK(w, reqID, summary)
}
