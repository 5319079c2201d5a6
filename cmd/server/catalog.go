package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Simplici0/vapformula/internal/pricing"
	"github.com/Simplici0/vapformula/internal/store"
)

func (s *server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.store.ListActiveCustomers(r.Context())
	if err != nil {
		s.writeStoreError(w, err, "customers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "customers": customers})
}

func (s *server) handleListModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && status != "all" && !store.ValidModelState(status) {
		writeError(w, http.StatusBadRequest, "unknown governance state "+strconv.Quote(status))
		return
	}
	if status == "all" {
		status = ""
	}
	unit := q.Get("businessUnit")
	if unit == "all" {
		unit = ""
	}

	models, err := s.store.ListModels(r.Context(), store.ModelFilter{
		Search:       q.Get("search"),
		BusinessUnit: unit,
		Status:       status,
	})
	if err != nil {
		s.writeStoreError(w, err, "pricing models")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "models": models})
}

func (s *server) handleModelFilters(w http.ResponseWriter, r *http.Request) {
	opts, err := s.store.ModelFilters(r.Context())
	if err != nil {
		s.writeStoreError(w, err, "pricing model filters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "filters": opts})
}

func (s *server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	model, err := s.store.GetModel(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "pricing model")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "model": model})
}

type createModelRequest struct {
	Name           string        `json:"name"`
	BusinessUnit   string        `json:"businessUnit"`
	Category       string        `json:"category"`
	OutputType     string        `json:"outputType"`
	Currency       string        `json:"currency"`
	EffectiveStart string        `json:"effectiveStart"`
	EffectiveEnd   string        `json:"effectiveEnd"`
	Formula        pricing.Input `json:"formula"`
}

// model converts the request, rejecting malformed dates and, when the
// template has ingredients, a formula that could not be calculated.
func (req createModelRequest) model() (store.NewModel, error) {
	m := store.NewModel{
		Name:         req.Name,
		BusinessUnit: req.BusinessUnit,
		Category:     req.Category,
		OutputType:   req.OutputType,
		Currency:     req.Currency,
		Formula:      req.Formula,
	}
	if req.EffectiveStart != "" {
		start, err := time.Parse(dateLayout, req.EffectiveStart)
		if err != nil {
			return store.NewModel{}, &store.InvalidError{Message: "effectiveStart must be a YYYY-MM-DD date"}
		}
		m.EffectiveStart = start
	}
	if req.EffectiveEnd != "" {
		end, err := time.Parse(dateLayout, req.EffectiveEnd)
		if err != nil {
			return store.NewModel{}, &store.InvalidError{Message: "effectiveEnd must be a YYYY-MM-DD date"}
		}
		m.EffectiveEnd = &end
	}

	if len(req.Formula.Ingredients) > 0 {
		if err := pricing.Validate(req.Formula); err != nil {
			return store.NewModel{}, err
		}
	}
	return m, nil
}

func (s *server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var req createModelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := req.model()
	if err != nil {
		s.writeStoreError(w, err, "pricing model")
		return
	}
	if user, err := s.store.UserByEmail(r.Context(), currentUser(r)); err == nil {
		m.CreatedBy = user.ID
	}

	id, err := s.store.CreateModel(r.Context(), m)
	if err != nil {
		s.writeStoreError(w, err, "pricing model")
		return
	}

	model, err := s.store.GetModel(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "pricing model")
		return
	}

	s.audit(r, store.AuditEntry{
		UserEmail:  currentUser(r),
		Action:     store.AuditCreate,
		EntityType: store.EntityPricingModel,
		EntityID:   strconv.FormatInt(id, 10),
	}, map[string]any{"name": model.Name, "businessUnit": model.BusinessUnit})

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "model": model})
}

// handleUpdateModel replaces a model's fields and formula. Each accepted
// update bumps the version and is recorded with the before and after values.
func (s *server) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req createModelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := req.model()
	if err != nil {
		s.writeStoreError(w, err, "pricing model")
		return
	}

	before, err := s.store.GetModel(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "pricing model")
		return
	}

	model, err := s.store.UpdateModel(r.Context(), id, m)
	if err != nil {
		s.writeStoreError(w, err, "pricing model")
		return
	}

	s.audit(r, store.AuditEntry{
		UserEmail:  currentUser(r),
		Action:     store.AuditUpdate,
		EntityType: store.EntityPricingModel,
		EntityID:   strconv.FormatInt(id, 10),
	}, map[string]any{
		"before": map[string]any{"name": before.Name, "version": before.Version, "formula": before.Formula},
		"after":  map[string]any{"name": model.Name, "version": model.Version, "formula": model.Formula},
	})

	s.log.Info().Int64("id", id).Int("version", model.Version).Msg("pricing model updated")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "model": model})
}

func (s *server) handleModelHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.store.GetModel(r.Context(), id); err != nil {
		s.writeStoreError(w, err, "pricing model")
		return
	}
	s.writeHistory(w, r, store.EntityPricingModel, id)
}

// writeHistory responds with the audit trail of one entity, newest first.
func (s *server) writeHistory(w http.ResponseWriter, r *http.Request, entityType string, id int64) {
	history, err := s.store.EntityHistory(r.Context(), entityType, strconv.FormatInt(id, 10))
	if err != nil {
		s.writeStoreError(w, err, "history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "history": history})
}

type createCustomerRequest struct {
	SoldToID  string `json:"soldToId"`
	Name      string `json:"name"`
	Hierarchy string `json:"hierarchy"`
}

func (s *server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.CreateCustomer(r.Context(), req.SoldToID, req.Name, req.Hierarchy)
	if err != nil {
		s.writeStoreError(w, err, "customer")
		return
	}
	customer, err := s.store.GetCustomer(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "customer")
		return
	}

	s.audit(r, store.AuditEntry{
		UserEmail:  currentUser(r),
		Action:     store.AuditCreate,
		EntityType: store.EntityCustomer,
		EntityID:   strconv.FormatInt(id, 10),
	}, map[string]any{"soldToId": customer.SoldToID, "name": customer.Name})

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "customer": customer})
}
