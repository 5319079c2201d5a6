package main

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/Simplici0/vapformula/internal/importer"
	"github.com/Simplici0/vapformula/internal/store"
)

func (s *server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	imports, err := s.store.ListImports(r.Context(), limit)
	if err != nil {
		s.writeStoreError(w, err, "import history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "imports": imports})
}

func (s *server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		s.writeStoreError(w, err, "products")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "products": products})
}

// readUpload returns the workbook sent in the "file" form field. It writes
// the error response itself when ok is false.
func (s *server) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
			return nil, nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid upload")
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return nil, nil, false
	}
	return file, header, true
}

// handleValidateImport validates an uploaded workbook from the "file" form
// field and records the attempt in the import history.
func (s *server) handleValidateImport(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	file, header, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	result, err := importer.ValidatePricingWorkbook(file)
	if err != nil {
		s.log.Warn().Err(err).Str("file", header.Filename).Msg("unreadable upload")
		s.recordImport(r, header.Filename, header.Size, started, importer.Result{
			Errors: []importer.RowError{{Column: "File", Error: "File could not be read as an xlsx workbook"}},
		})
		writeError(w, http.StatusBadRequest, "Failed to process file")
		return
	}

	s.recordImport(r, header.Filename, header.Size, started, result)

	message := "File validated successfully"
	if !result.Valid {
		message = "File validation failed"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    result.Valid,
		"validation": result,
		"report":     result.ErrorReport(),
		"message":    message,
	})
}

func (s *server) recordImport(r *http.Request, name string, size int64, started time.Time, result importer.Result) {
	status := store.ImportStatusSuccess
	failed := 0
	if !result.Valid {
		status = store.ImportStatusFailed
		failed = result.RecordCount
	}

	_, err := s.store.RecordImport(r.Context(), store.NewImport{
		FileName:         name,
		FileSize:         size,
		UploadedBy:       currentUser(r),
		Status:           status,
		RecordsProcessed: result.RecordCount,
		RecordsSuccess:   result.RecordCount - failed,
		RecordsFailed:    failed,
		Errors:           result.ErrorReport(),
		StartedAt:        started,
		CompletedAt:      time.Now(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("record import history")
	}
}

// handleImport loads the valid rows of an uploaded workbook into the product
// catalog. Rows with errors are skipped and reported; the import is PARTIAL
// when some rows were stored and FAILED when none were.
func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	ctx := r.Context()
	importID, err := s.store.StartImport(ctx, header.Filename, header.Size, currentUser(r))
	if err != nil {
		s.log.Error().Err(err).Str("file", header.Filename).Msg("start import")
		writeError(w, http.StatusInternalServerError, "failed to start import")
		return
	}
	log := s.log.With().Int64("import_id", importID).Str("file", header.Filename).Logger()

	fail := func(status int, msg string, report []string) {
		if err := s.store.FinishImport(ctx, importID, store.ImportOutcome{
			Status: store.ImportStatusFailed,
			Errors: report,
		}); err != nil {
			log.Warn().Err(err).Msg("finish failed import")
		}
		writeError(w, status, msg)
	}

	result, parsed, err := importer.ParsePricingWorkbook(file)
	if err != nil {
		log.Warn().Err(err).Msg("unreadable upload")
		fail(http.StatusBadRequest, "Failed to process file", []string{"File could not be read as an xlsx workbook"})
		return
	}

	var stats store.UpsertStats
	if len(parsed) > 0 {
		products := make([]store.Product, 0, len(parsed))
		for _, p := range parsed {
			products = append(products, store.Product{
				MaterialCode:  p.MaterialCode,
				Name:          p.Name,
				UOM:           p.UOM,
				BasePrice:     p.BasePrice,
				MinOrderQty:   p.MinOrderQty,
				EffectiveDate: p.EffectiveDate,
				ExpiryDate:    p.ExpiryDate,
				Category:      p.Category,
				Description:   p.Description,
			})
		}
		if stats, err = s.store.UpsertProducts(ctx, products); err != nil {
			log.Error().Err(err).Msg("upsert products")
			fail(http.StatusInternalServerError, "failed to import products", []string{err.Error()})
			return
		}
	}

	succeeded := len(parsed)
	failed := result.RecordCount - succeeded
	outcome := store.ImportOutcome{
		Status:           store.ImportOutcomeStatus(succeeded, failed),
		RecordsProcessed: result.RecordCount,
		RecordsSuccess:   succeeded,
		RecordsFailed:    failed,
		Errors:           result.ErrorReport(),
	}
	if err := s.store.FinishImport(ctx, importID, outcome); err != nil {
		log.Error().Err(err).Msg("finish import")
		writeError(w, http.StatusInternalServerError, "failed to record import")
		return
	}

	s.audit(r, store.AuditEntry{
		UserEmail:  currentUser(r),
		Action:     store.AuditCreate,
		EntityType: store.EntityImport,
		EntityID:   strconv.FormatInt(importID, 10),
	}, map[string]any{"status": outcome.Status, "created": stats.Created, "updated": stats.Updated})

	log.Info().Str("status", outcome.Status).Int("success", succeeded).Int("failed", failed).Msg("import finished")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          outcome.Status != store.ImportStatusFailed,
		"importId":         importID,
		"status":           outcome.Status,
		"recordsProcessed": outcome.RecordsProcessed,
		"recordsSuccess":   succeeded,
		"recordsFailed":    failed,
		"created":          stats.Created,
		"updated":          stats.Updated,
		"errors":           outcome.Errors,
		"warnings":         result.Warnings,
	})
}
