package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylink/internal/extraction"
	"paylink/internal/ledger"
	"paylink/internal/links"
	"paylink/internal/linkstore"
	"paylink/internal/schedule"
	"paylink/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeExtractor struct {
	got    extraction.Document
	result *models.Extraction
	err    error
}

func (f *fakeExtractor) Extract(_ context.Context, doc extraction.Document) (*models.Extraction, error) {
	f.got = doc
	return f.result, f.err
}

func (f *fakeExtractor) Close() error { return nil }

func newTestServer(ex extraction.Extractor) *Server {
	engine := schedule.Engine{}
	svc := links.NewService(linkstore.NewMemoryStore(0), engine, "https://pay.example.com")
	return New(Options{Schedule: engine, Links: svc, Extractor: ex})
}

const itemsJSON = `[
	{"id": "license", "serviceTitle": "License", "serviceDescription": "Annual license",
	 "serviceAmount": 1200000, "startDate": "2025-01-01", "endDate": "2025-12-31"},
	{"id": "setup", "serviceTitle": "Setup", "serviceDescription": "Onboarding",
	 "serviceAmount": 50000, "isSpecialCharge": true}
]`

const buyerJSON = `{
	"buyerCompanyName": "Acme GmbH",
	"buyerCompanyAddress": "Hauptstr. 1, Berlin",
	"buyerCompanyContactName": "Jane Doe",
	"buyerCompanyContactEmail": "jane@acme.example"
}`

func do(t *testing.T, s *Server, method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, method, target, "application/json", []byte(body))
}

func TestHealthSetsRequestID(t *testing.T) {
	s := newTestServer(nil)

	rec := do(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestSchedule(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/api/schedule", `{"paymentTerm": "quarterly", "lineItems": `+itemsJSON+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data schedule.PaymentData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Equal(t, models.PaymentTermQuarterly, data.Term)
	assert.Len(t, data.Summary.Subscription.Schedule, 4)
	require.Len(t, data.Summary.OneOff, 1)
	assert.Equal(t, "2025-01-01", data.Summary.OneOff[0].DueDate.String())
	assert.Equal(t, int64(1250000), data.GrandTotal())
}

func TestScheduleErrors(t *testing.T) {
	s := newTestServer(nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"lineItems": [`, http.StatusBadRequest},
		{"unknown term", `{"paymentTerm": "weekly", "lineItems": ` + itemsJSON + `}`, http.StatusBadRequest},
		{"bad date", `{"lineItems": [{"id": "a", "startDate": "someday"}]}`, http.StatusBadRequest},
		{"invalid item", `{"lineItems": [{"id": "a", "serviceAmount": 100, "startDate": "2025-03-01"}]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/schedule", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestScheduleReportsIssues(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/api/schedule",
		`{"lineItems": [{"id": "bad", "serviceAmount": 100, "startDate": "2025-03-01"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Issues []schedule.ItemIssue `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Issues)
	assert.Equal(t, "bad", body.Issues[0].ItemID)
}

func TestScheduleLenientDropsInvalidItems(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/api/schedule", `{"lenient": true, "lineItems": [
		{"id": "ok", "serviceAmount": 1200, "startDate": "2025-01-01", "endDate": "2025-12-31"},
		{"id": "bad", "serviceAmount": 100, "startDate": "2025-03-01"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data schedule.PaymentData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Equal(t, []string{"bad"}, data.Dropped)
}

func TestLinkRoundTrip(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/api/links", `{"buyerData": `+buyerJSON+`, "invoiceData": `+itemsJSON+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created links.Created
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Len(t, created.ID, linkstore.IDLength)
	assert.Equal(t, "https://pay.example.com/payment/"+created.ID, created.URL)

	rec = do(t, s, http.MethodGet, "/api/links/"+created.ID+"?term=quarterly", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var opened links.Opened
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))
	assert.Equal(t, "Acme GmbH", opened.Buyer.CompanyName)
	assert.Equal(t, models.PaymentTermQuarterly, opened.Term)
	assert.Len(t, opened.Payment.Summary.Subscription.Schedule, 4)

	rec = do(t, s, http.MethodGet, "/api/links/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))
	assert.Equal(t, models.PaymentTermMonthly, opened.Term)
}

func TestLinkErrors(t *testing.T) {
	s := newTestServer(nil)

	rec := do(t, s, http.MethodGet, "/api/links/zzzzzz", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/links/zzzzzz?term=yearly", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/links", `{"buyerData": {}, "invoiceData": `+itemsJSON+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "buyerCompanyName")
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/api/export?format=csv",
		`{"paymentTerm": "monthly", "vendorFee": "2.5", "buyerFee": 3, "lineItems": `+itemsJSON+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ledger.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Equal(t, strings.Join(ledger.Header, ","), lines[0])
	// two vendor rows, twelve subscription installments, one setup fee
	assert.Len(t, lines, 1+2+12+1)
	assert.True(t, strings.HasPrefix(lines[1], "Vendor_Draw_1,,Vendor_Draw_1,vendor,License"))
}

func TestExportXLSX(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/api/export?format=xlsx", `{"lineItems": `+itemsJSON+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, exportContentTypes["xlsx"], rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/api/export?format=pdf", `{"lineItems": `+itemsJSON+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractWithoutProvider(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/api/extract", `{"prompt": "one license"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExtractPrompt(t *testing.T) {
	fake := &fakeExtractor{result: &models.Extraction{
		Buyer: models.BuyerProfile{CompanyName: "Acme GmbH"},
	}}
	s := newTestServer(fake)

	rec := doJSON(t, s, http.MethodPost, "/api/extract", `{
		"prompt": "make it quarterly",
		"history": [{"role": "user", "text": "one license"}, {"role": "model", "text": "{}"}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"buyerCompanyName":"Acme GmbH"`)
	assert.Equal(t, "make it quarterly", fake.got.Prompt)
	assert.Len(t, fake.got.History, 2)
}

func TestExtractBase64DataURL(t *testing.T) {
	fake := &fakeExtractor{result: &models.Extraction{}}
	s := newTestServer(fake)

	pdf := []byte("%PDF-1.4 test")
	body := `{"base64": "data:application/pdf;base64,` + base64.StdEncoding.EncodeToString(pdf) + `"}`

	rec := doJSON(t, s, http.MethodPost, "/api/extract", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", fake.got.MIMEType)
	assert.Equal(t, pdf, fake.got.Data)
}

func multipartBody(t *testing.T, filename, mimeType string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("prompt", "extract"))
	require.NoError(t, mw.Close())

	return buf.Bytes(), mw.FormDataContentType()
}

func TestExtractMultipart(t *testing.T) {
	fake := &fakeExtractor{result: &models.Extraction{}}
	s := newTestServer(fake)

	body, contentType := multipartBody(t, "invoice.pdf", "application/pdf", []byte("%PDF-1.7 data"))
	rec := do(t, s, http.MethodPost, "/api/extract", contentType, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "invoice.pdf", fake.got.Name)
	assert.Equal(t, "extract", fake.got.Prompt)

	body, contentType = multipartBody(t, "invoice.pdf", "application/pdf", []byte("not a pdf"))
	rec = do(t, s, http.MethodPost, "/api/extract", contentType, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, contentType = multipartBody(t, "invoice.txt", "text/plain", []byte("hello"))
	rec = do(t, s, http.MethodPost, "/api/extract", contentType, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"provider failed", extraction.ErrProviderFailed, http.StatusBadGateway},
		{"quota", extraction.ErrQuotaExceeded, http.StatusTooManyRequests},
		{"unusable reply", extraction.ErrInvalidResponse, http.StatusUnprocessableEntity},
		{"unexpected", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeExtractor{err: tt.err})
			rec := doJSON(t, s, http.MethodPost, "/api/extract", `{"prompt": "one license"}`)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRecoveryReturnsJSON(t *testing.T) {
	s := newTestServer(nil)
	s.router.GET("/panic", func(*gin.Context) { panic("boom") })

	rec := do(t, s, http.MethodGet, "/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "internal server error"}`, rec.Body.String())
}
