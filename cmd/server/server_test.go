package main

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/vapformula/internal/db"
	"github.com/Simplici0/vapformula/internal/export"
	"github.com/Simplici0/vapformula/internal/migrations"
	"github.com/Simplici0/vapformula/internal/seed"
	"github.com/Simplici0/vapformula/internal/store"
)

const (
	testEmail    = "admin@vap.test"
	testPassword = "s3cret"
)

func newTestServer(t *testing.T) *server {
	t.Helper()

	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, migrations.Up(database))
	_, err = seed.Run(database, seed.Config{AdminEmail: testEmail, AdminPassword: testPassword})
	require.NoError(t, err)

	st := store.New(database)
	return &server{
		auth:           newAuthService(st, "test-secret"),
		store:          st,
		log:            zerolog.Nop(),
		maxUploadBytes: 1 << 20,
	}
}

func (s *server) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: s.auth.createSessionValue(testEmail)})

	rr := httptest.NewRecorder()
	s.routes().ServeHTTP(rr, req)
	return rr
}

func (s *server) doJSON(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, strings.NewReader(body), "application/json")
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

const validRunInput = `{
	"ingredients": [
		{"name": "Soybean Oil", "recipePercent": 50, "marketPrice": 2},
		{"name": "Palm Oil", "recipePercent": 50, "marketPrice": 4}
	],
	"yieldPercent": 100,
	"paymentTermsRate": 10
}`

func TestAuthMiddleware_RejectsMissingSession(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/customers", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHealthzIsPublic(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	t.Run("json", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"admin@vap.test","password":"s3cret"}`))
		req.Header.Set("Content-Type", "application/json")
		srv.routes().ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		email, ok := srv.auth.verifySessionValue(cookies[0].Value)
		assert.True(t, ok)
		assert.Equal(t, testEmail, email)
	})

	t.Run("form with wrong password", func(t *testing.T) {
		form := url.Values{"email": {testEmail}, "password": {"nope"}}
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		srv.routes().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Empty(t, rr.Result().Cookies())
	})
}

func TestVerifySessionValue_RejectsTampering(t *testing.T) {
	auth := newAuthService(nil, "secret")
	value := auth.createSessionValue(testEmail)

	_, ok := auth.verifySessionValue(value)
	assert.True(t, ok)

	_, ok = newAuthService(nil, "other").verifySessionValue(value)
	assert.False(t, ok)

	_, ok = auth.verifySessionValue("bm9ib2R5." + strings.Repeat("0", 64))
	assert.False(t, ok)

	_, ok = auth.verifySessionValue(value + ".extra")
	assert.False(t, ok)
}

func TestCalculate(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.doJSON(t, http.MethodPost, "/api/pricing/calculate", validRunInput)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	out := decodeBody(t, rr)
	assert.InDelta(t, 3.0, out["fobPreTerms"], 1e-9)
	assert.InDelta(t, 3.3, out["fobFinal"], 1e-9)
}

func TestCalculate_ValidationErrorIs400(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.doJSON(t, http.MethodPost, "/api/pricing/calculate", `{"ingredients":[{"name":"A","recipePercent":60,"marketPrice":1},{"name":"B","recipePercent":41,"marketPrice":1}],"yieldPercent":90}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "total recipe percentage (101.00%) exceeds 100%", decodeBody(t, rr)["error"])
}

func TestCalculate_OverflowIs422WithJSONBody(t *testing.T) {
	srv := newTestServer(t)
	overflow := `{"ingredients":[{"name":"A","recipePercent":100,"marketPrice":1e308}],"yieldPercent":0.001}`

	rr := srv.doJSON(t, http.MethodPost, "/api/pricing/calculate", overflow)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "calculation result is not a finite number", body["error"])

	rr = srv.doJSON(t, http.MethodPost, "/api/pricing-runs", `{"customerId": 1, "input": `+overflow+`}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
	assert.Equal(t, "calculation result is not a finite number", decodeBody(t, rr)["error"])

	runs, err := srv.store.ListRuns(t.Context(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestWriteJSON_EncodeFailureIs500(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusOK, map[string]any{"value": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":false,"error":"failed to encode response"}`, rr.Body.String())
}

func TestCreateRunThenGetAndList(t *testing.T) {
	srv := newTestServer(t)

	body := `{"modelId": 1, "customerId": 1, "periodStart": "2024-04-01", "periodEnd": "2024-04-30", "input": ` + validRunInput + `}`
	rr := srv.doJSON(t, http.MethodPost, "/api/pricing-runs", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	created := decodeBody(t, rr)
	assert.Regexp(t, `^RUN-\d{4}-[0-9A-F]{8}$`, created["runNumber"])
	id := int64(created["id"].(float64))

	rr = srv.do(t, http.MethodGet, "/api/pricing-runs/"+strconv.FormatInt(id, 10), nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	run := decodeBody(t, rr)["run"].(map[string]any)
	assert.Equal(t, "Default Customer", run["customerName"])
	assert.Equal(t, testEmail, run["executedBy"])
	assert.InDelta(t, 3.3, run["output"].(map[string]any)["fobFinal"], 1e-9)

	rr = srv.do(t, http.MethodGet, "/api/pricing-runs?q=Default", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["runs"], 1)

	rr = srv.do(t, http.MethodGet, "/api/pricing-runs/"+strconv.FormatInt(id, 10)+"/history", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	history := decodeBody(t, rr)["history"].([]any)
	require.Len(t, history, 1)
	entry := history[0].(map[string]any)
	assert.Equal(t, store.AuditCreate, entry["action"])
	assert.Equal(t, testEmail, entry["userEmail"])
	assert.Equal(t, created["runNumber"], entry["changes"].(map[string]any)["runNumber"])

	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/pricing-runs/999/history", nil, "").Code)
}

func TestCreateRun_InvalidInputStoresNothing(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.doJSON(t, http.MethodPost, "/api/pricing-runs", `{"input": {"ingredients": [], "yieldPercent": 90}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "at least one ingredient is required", decodeBody(t, rr)["error"])

	runs, err := srv.store.ListRuns(t.Context(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestCreateRun_BadPeriodAndUnknownCustomer(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.doJSON(t, http.MethodPost, "/api/pricing-runs", `{"periodStart": "2024-05-01", "periodEnd": "2024-04-01", "input": `+validRunInput+`}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.doJSON(t, http.MethodPost, "/api/pricing-runs", `{"customerId": 99, "input": `+validRunInput+`}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetRun_NotFoundAndBadID(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/pricing-runs/42", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodGet, "/api/pricing-runs/abc", nil, "").Code)
}

func TestExports(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.doJSON(t, http.MethodPost, "/api/pricing-runs", `{"customerId": 1, "periodStart": "2024-04-01", "input": `+validRunInput+`}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody(t, rr)
	path := "/api/pricing-runs/" + strconv.FormatInt(int64(created["id"].(float64)), 10)

	for _, tc := range []struct {
		path, sheet, prefix string
	}{
		{path + "/export", "Pricing Run Results", "pricing-run-"},
		{path + "/export/sap", "SAP Upload", "sap-upload-"},
	} {
		rr := srv.do(t, http.MethodGet, tc.path, nil, "")
		require.Equal(t, http.StatusOK, rr.Code, tc.path)
		assert.Equal(t, export.ContentType, rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), `attachment; filename="`+tc.prefix+created["runNumber"].(string))

		f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
		require.NoError(t, err)
		assert.Contains(t, f.GetSheetList(), tc.sheet)
		_ = f.Close()
	}
}

func TestCustomersAndModels(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodGet, "/api/customers", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["customers"], 1)

	rr = srv.doJSON(t, http.MethodPost, "/api/pricing-models", `{"name": "Export Grain", "businessUnit": "Grain", "category": "Export", "effectiveStart": "2024-04-01"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	model := decodeBody(t, rr)["model"].(map[string]any)
	assert.Equal(t, "DRAFT", model["governanceState"])

	rr = srv.do(t, http.MethodGet, "/api/pricing-models?businessUnit=Grain", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["models"], 1)

	rr = srv.do(t, http.MethodGet, "/api/pricing-models?status=LIVE", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/pricing-models/filters", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	filters := decodeBody(t, rr)["filters"].(map[string]any)
	assert.ElementsMatch(t, []any{"Grain", "Protein"}, filters["businessUnits"])

	rr = srv.do(t, http.MethodGet, "/api/pricing-models/1", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Standard VAP Pricing Model", decodeBody(t, rr)["model"].(map[string]any)["name"])

	rr = srv.doJSON(t, http.MethodPost, "/api/pricing-models", `{"businessUnit": "Grain", "effectiveStart": "2024-04-01"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "model name is required", decodeBody(t, rr)["error"])
}

func TestUpdateModel_BumpsVersionAndRecordsHistory(t *testing.T) {
	srv := newTestServer(t)

	update := `{
		"name": "Standard VAP Pricing Model",
		"businessUnit": "Protein",
		"effectiveStart": "2024-01-01",
		"formula": {"ingredients": [{"name": "Soy", "recipePercent": 100, "marketPrice": 2}], "yieldPercent": 95}
	}`
	rr := srv.doJSON(t, http.MethodPut, "/api/pricing-models/1", update)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	model := decodeBody(t, rr)["model"].(map[string]any)
	assert.EqualValues(t, 2, model["version"])
	assert.Equal(t, "DRAFT", model["governanceState"])
	assert.InDelta(t, 95, model["formula"].(map[string]any)["yieldPercent"], 1e-9)

	rr = srv.do(t, http.MethodGet, "/api/pricing-models/1/history", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	history := decodeBody(t, rr)["history"].([]any)
	require.Len(t, history, 1)
	entry := history[0].(map[string]any)
	assert.Equal(t, store.AuditUpdate, entry["action"])
	changes := entry["changes"].(map[string]any)
	assert.EqualValues(t, 1, changes["before"].(map[string]any)["version"])
	assert.EqualValues(t, 2, changes["after"].(map[string]any)["version"])
}

func TestUpdateModel_Rejections(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.doJSON(t, http.MethodPut, "/api/pricing-models/1", `{
		"name": "Bad Formula", "businessUnit": "Protein", "effectiveStart": "2024-01-01",
		"formula": {"ingredients": [{"name": "Soy", "recipePercent": 120, "marketPrice": 2}], "yieldPercent": 95}
	}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.doJSON(t, http.MethodPut, "/api/pricing-models/1", `{"name": "No Start", "businessUnit": "Protein", "effectiveStart": "01/01/2024"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "effectiveStart must be a YYYY-MM-DD date", decodeBody(t, rr)["error"])

	rr = srv.doJSON(t, http.MethodPut, "/api/pricing-models/999", `{"name": "Ghost", "businessUnit": "Protein", "effectiveStart": "2024-01-01"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	model, err := srv.store.GetModel(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, model.Version)

	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, "/api/pricing-models/999/history", nil, "").Code)
}

func TestCreateCustomer(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.doJSON(t, http.MethodPost, "/api/customers", `{"soldToId": "CUST100", "name": "Acme Foods", "hierarchy": "North America"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	customer := decodeBody(t, rr)["customer"].(map[string]any)
	assert.Equal(t, "CUST100", customer["soldToId"])
	assert.Equal(t, true, customer["active"])

	rr = srv.doJSON(t, http.MethodPost, "/api/customers", `{"soldToId": "CUST100", "name": "Again"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "customer with sold-to id CUST100 already exists", decodeBody(t, rr)["error"])

	rr = srv.doJSON(t, http.MethodPost, "/api/customers", `{"soldToId": "", "name": "Nameless"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/customers", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["customers"], 2)

	history, err := srv.store.EntityHistory(t.Context(), store.EntityCustomer, strconv.FormatInt(int64(customer["id"].(float64)), 10))
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func multipartUpload(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestValidateImport_RecordsHistory(t *testing.T) {
	srv := newTestServer(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Product Code", "Product Name", "Base Price"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"VAP-1", "Soy Blend", "abc"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	body, contentType := multipartUpload(t, "prices.xlsx", buf.Bytes())
	rr := srv.do(t, http.MethodPost, "/api/imports/validate", body, contentType)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decodeBody(t, rr)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, []any{`Row 2, Column "Base Price": Base Price must be a valid number (Value: abc)`}, resp["report"])

	rr = srv.do(t, http.MethodGet, "/api/imports", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	imports := decodeBody(t, rr)["imports"].([]any)
	require.Len(t, imports, 1)
	entry := imports[0].(map[string]any)
	assert.Equal(t, "prices.xlsx", entry["fileName"])
	assert.Equal(t, store.ImportStatusFailed, entry["status"])
}

func TestValidateImport_MissingFile(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "no file"))
	require.NoError(t, mw.Close())

	rr := srv.do(t, http.MethodPost, "/api/imports/validate", &body, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func productWorkbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImport_PartialLoadsValidRows(t *testing.T) {
	srv := newTestServer(t)

	data := productWorkbook(t,
		[]any{"Product Code", "Product Name", "Base Price", "UOM"},
		[]any{"VAP-1", "Soy Blend", 2.5, "KG"},
		[]any{"VAP-2", "Palm Blend", "NaN", ""},
		[]any{"VAP-3", "Canola", 3, ""},
	)
	body, contentType := multipartUpload(t, "products.xlsx", data)
	rr := srv.do(t, http.MethodPost, "/api/imports", body, contentType)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decodeBody(t, rr)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, store.ImportStatusPartial, resp["status"])
	assert.EqualValues(t, 3, resp["recordsProcessed"])
	assert.EqualValues(t, 2, resp["recordsSuccess"])
	assert.EqualValues(t, 1, resp["recordsFailed"])
	assert.EqualValues(t, 2, resp["created"])
	assert.Equal(t, []any{`Row 3, Column "Base Price": Base Price must be a valid number (Value: NaN)`}, resp["errors"])

	rr = srv.do(t, http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	products := decodeBody(t, rr)["products"].([]any)
	require.Len(t, products, 2)
	assert.Equal(t, "KG", products[0].(map[string]any)["uom"])
	assert.Equal(t, "EA", products[1].(map[string]any)["uom"])

	imports, err := srv.store.ListImports(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, store.ImportStatusPartial, imports[0].Status)
	assert.Equal(t, testEmail, imports[0].UploadedBy)
	assert.NotEqual(t, "-", imports[0].Duration)
}

func TestImport_ReimportUpdatesAndSucceeds(t *testing.T) {
	srv := newTestServer(t)

	for i, price := range []float64{2.5, 2.75} {
		data := productWorkbook(t,
			[]any{"Product Code", "Product Name", "Base Price"},
			[]any{"VAP-1", "Soy Blend", price},
		)
		body, contentType := multipartUpload(t, "products.xlsx", data)
		rr := srv.do(t, http.MethodPost, "/api/imports", body, contentType)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		resp := decodeBody(t, rr)
		assert.Equal(t, store.ImportStatusSuccess, resp["status"])
		assert.EqualValues(t, 1-i, resp["created"])
		assert.EqualValues(t, i, resp["updated"])
	}

	products, err := srv.store.ListProducts(t.Context())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.InDelta(t, 2.75, products[0].BasePrice, 1e-9)
}

func TestImport_FailedWhenNoRowIsValid(t *testing.T) {
	srv := newTestServer(t)

	data := productWorkbook(t,
		[]any{"Product Code", "Product Name"},
		[]any{"VAP-1", "Soy Blend"},
	)
	body, contentType := multipartUpload(t, "products.xlsx", data)
	rr := srv.do(t, http.MethodPost, "/api/imports", body, contentType)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decodeBody(t, rr)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, store.ImportStatusFailed, resp["status"])
	assert.EqualValues(t, 1, resp["recordsFailed"])

	products, err := srv.store.ListProducts(t.Context())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestImport_UnreadableFileIsRecordedAsFailed(t *testing.T) {
	srv := newTestServer(t)

	body, contentType := multipartUpload(t, "products.xlsx", []byte("not a workbook"))
	rr := srv.do(t, http.MethodPost, "/api/imports", body, contentType)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	imports, err := srv.store.ListImports(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, store.ImportStatusFailed, imports[0].Status)
	assert.Equal(t, []string{"File could not be read as an xlsx workbook"}, imports[0].Errors)
}
