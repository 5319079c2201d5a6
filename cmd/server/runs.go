package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Simplici0/vapformula/internal/export"
	"github.com/Simplici0/vapformula/internal/pricing"
	"github.com/Simplici0/vapformula/internal/store"
)

const dateLayout = "2006-01-02"

func (s *server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var in pricing.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := pricing.Calculate(in)
	if err != nil {
		s.writeStoreError(w, err, "calculation")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type createRunRequest struct {
	ModelID     int64         `json:"modelId"`
	CustomerID  int64         `json:"customerId"`
	PeriodStart string        `json:"periodStart"`
	PeriodEnd   string        `json:"periodEnd"`
	Input       pricing.Input `json:"input"`
}

func (req createRunRequest) period(today time.Time) (time.Time, time.Time, error) {
	start, end := today, today
	var err error
	if req.PeriodStart != "" {
		if start, err = time.Parse(dateLayout, req.PeriodStart); err != nil {
			return time.Time{}, time.Time{}, errors.New("periodStart must be a YYYY-MM-DD date")
		}
	}
	if req.PeriodEnd != "" {
		if end, err = time.Parse(dateLayout, req.PeriodEnd); err != nil {
			return time.Time{}, time.Time{}, errors.New("periodEnd must be a YYYY-MM-DD date")
		}
	} else if req.PeriodStart != "" {
		end = start
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("periodEnd must not be before periodStart")
	}
	return start, end, nil
}

// handleCreateRun calculates the submitted input and stores both snapshots.
// Nothing is stored when the input is rejected.
func (s *server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	start, end, err := req.period(today)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := pricing.Calculate(req.Input)
	if err != nil {
		s.writeStoreError(w, err, "calculation")
		return
	}

	if req.ModelID > 0 {
		if _, err := s.store.GetModel(r.Context(), req.ModelID); err != nil {
			s.writeStoreError(w, err, "pricing model")
			return
		}
	}
	if req.CustomerID > 0 {
		if _, err := s.store.GetCustomer(r.Context(), req.CustomerID); err != nil {
			s.writeStoreError(w, err, "customer")
			return
		}
	}

	user := currentUser(r)
	id, err := s.store.CreateRun(r.Context(), store.NewRun{
		ModelID:     req.ModelID,
		CustomerID:  req.CustomerID,
		PeriodStart: start,
		PeriodEnd:   end,
		Input:       req.Input,
		Output:      out,
		ExecutedBy:  user,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("save pricing run")
		writeError(w, http.StatusInternalServerError, "failed to save pricing run")
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "pricing run")
		return
	}

	s.audit(r, store.AuditEntry{
		UserEmail:  user,
		Action:     store.AuditCreate,
		EntityType: store.EntityPricingRun,
		EntityID:   strconv.FormatInt(id, 10),
	}, map[string]any{"runNumber": run.RunNumber, "fobFinal": out.FOBFinal})

	s.log.Info().Int64("id", id).Str("run", run.RunNumber).Float64("fob_final", out.FOBFinal).Msg("pricing run saved")
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"id":        id,
		"runNumber": run.RunNumber,
		"run":       run,
	})
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRuns(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")), limit)
	if err != nil {
		s.writeStoreError(w, err, "pricing runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "runs": runs})
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "run": run})
}

func (s *server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	s.writeHistory(w, r, store.EntityPricingRun, run.ID)
}

func (s *server) handleExportRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	data, err := export.RunWorkbook(run)
	if err != nil {
		s.log.Error().Err(err).Int64("id", run.ID).Msg("build run workbook")
		writeError(w, http.StatusInternalServerError, "failed to export pricing run")
		return
	}
	writeAttachment(w, export.RunFileName(run), data)
}

func (s *server) handleExportSAP(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	data, err := export.SAPWorkbook(run)
	if err != nil {
		s.log.Error().Err(err).Int64("id", run.ID).Msg("build sap workbook")
		writeError(w, http.StatusInternalServerError, "failed to generate SAP export")
		return
	}
	writeAttachment(w, export.SAPFileName(run), data)
}

func (s *server) loadRun(w http.ResponseWriter, r *http.Request) (store.Run, bool) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return store.Run{}, false
	}
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "pricing run")
		return store.Run{}, false
	}
	return run, true
}

func writeAttachment(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
