package server

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"paylink/internal/extraction"
	"paylink/internal/ledger"
	"paylink/internal/linkstore"
	"paylink/internal/schedule"
	"paylink/pkg/models"
)

var (
	errBadRequest      = errors.New("bad request")
	errNoExtractor     = errors.New("extraction is not configured")
	errUnknownFormat   = errors.New("unknown export format")
	errMissingDocument = errors.New("multipart field \"file\" is required")
)

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", errBadRequest, err)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type extractRequest struct {
	Prompt   string            `json:"prompt"`
	Base64   string            `json:"base64"`
	MIMEType string            `json:"mimeType"`
	History  []extraction.Turn `json:"history"`
}

func (s *Server) handleExtract(c *gin.Context) {
	if s.extractor == nil {
		s.respondError(c, errNoExtractor)
		return
	}

	doc, err := documentFromRequest(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := doc.Validate(); err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.extractor.Extract(c.Request.Context(), doc)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// documentFromRequest accepts either a multipart upload or a JSON body with
// an optional base64 encoded document.
func documentFromRequest(c *gin.Context) (extraction.Document, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return extraction.Document{}, badRequest(errMissingDocument)
		}
		if fh.Size > extraction.MaxDocumentSizeBytes {
			return extraction.Document{}, fmt.Errorf("%w: file size: %d bytes", extraction.ErrDocumentTooLarge, fh.Size)
		}

		f, err := fh.Open()
		if err != nil {
			return extraction.Document{}, badRequest(err)
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, extraction.MaxDocumentSizeBytes+1))
		if err != nil {
			return extraction.Document{}, badRequest(err)
		}

		return extraction.Document{
			Name:     fh.Filename,
			MIMEType: fh.Header.Get("Content-Type"),
			Data:     data,
			Prompt:   c.PostForm("prompt"),
		}, nil
	}

	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return extraction.Document{}, badRequest(err)
	}

	doc := extraction.Document{
		Name:     "upload",
		MIMEType: req.MIMEType,
		Prompt:   req.Prompt,
		History:  req.History,
	}
	if req.Base64 != "" {
		// data URLs ("data:application/pdf;base64,....") are accepted as well
		payload := req.Base64
		if head, body, ok := strings.Cut(payload, ","); ok && strings.HasPrefix(head, "data:") {
			if doc.MIMEType == "" {
				doc.MIMEType = strings.TrimSuffix(strings.TrimPrefix(head, "data:"), ";base64")
			}
			payload = body
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return extraction.Document{}, badRequest(fmt.Errorf("invalid base64 document: %w", err))
		}
		doc.Data = data
	}
	return doc, nil
}

type scheduleRequest struct {
	LineItems   []models.LineItem `json:"lineItems"`
	InvoiceData []models.LineItem `json:"invoiceData"`
	PaymentTerm string            `json:"paymentTerm"`
	Lenient     bool              `json:"lenient"`
}

func (r scheduleRequest) items() []models.LineItem {
	if len(r.LineItems) > 0 {
		return r.LineItems
	}
	return r.InvoiceData
}

func parseTerm(s string) (models.PaymentTerm, error) {
	if strings.TrimSpace(s) == "" {
		return models.PaymentTermMonthly, nil
	}
	return models.ParsePaymentTerm(s)
}

func (s *Server) handleSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest(err))
		return
	}

	term, err := parseTerm(req.PaymentTerm)
	if err != nil {
		s.respondError(c, err)
		return
	}

	engine := s.schedule
	engine.Lenient = engine.Lenient || req.Lenient

	data, err := engine.Compute(req.items(), term)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) handleCreateLink(c *gin.Context) {
	var ext models.Extraction
	if err := c.ShouldBindJSON(&ext); err != nil {
		s.respondError(c, badRequest(err))
		return
	}

	created, err := s.links.Create(c.Request.Context(), ext)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleOpenLink(c *gin.Context) {
	term, err := parseTerm(c.Query("term"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	opened, err := s.links.Open(c.Request.Context(), c.Param("id"), term)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, opened)
}

type exportRequest struct {
	LineItems   []models.LineItem `json:"lineItems"`
	PaymentTerm string            `json:"paymentTerm"`
	VendorFee   decimal.Decimal   `json:"vendorFee"`
	BuyerFee    decimal.Decimal   `json:"buyerFee"`
}

var exportContentTypes = map[string]string{
	"csv":  "text/csv; charset=utf-8",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func (s *Server) handleExport(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	contentType, ok := exportContentTypes[format]
	if !ok {
		s.respondError(c, badRequest(fmt.Errorf("%w: %q", errUnknownFormat, format)))
		return
	}

	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest(err))
		return
	}

	term, err := parseTerm(req.PaymentTerm)
	if err != nil {
		s.respondError(c, err)
		return
	}

	data, err := s.schedule.Compute(req.LineItems, term)
	if err != nil {
		s.respondError(c, err)
		return
	}

	fees := ledger.Fees{VendorPercent: req.VendorFee, BuyerPercent: req.BuyerFee}
	rows, err := ledger.BuildRows(ledger.ItemsFromPaymentData(req.LineItems, data), fees)
	if err != nil {
		s.respondError(c, badRequest(err))
		return
	}

	var buf bytes.Buffer
	var w ledger.Writer = ledger.NewCSVWriter(&buf)
	if format == "xlsx" {
		w = ledger.NewXLSXWriter(&buf, ledger.DefaultSheetName)
	}
	if err := w.Write(c.Request.Context(), rows); err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ledger.%s"`, format))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// respondError maps domain errors onto HTTP status codes.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)

	event := s.log.Warn()
	if status >= http.StatusInternalServerError {
		event = s.log.Error()
	}
	event.Err(err).
		Str("request_id", c.GetString(requestIDKey)).
		Int("status", status).
		Msg("Request failed")

	var batchErr *schedule.BatchValidationError
	if errors.As(err, &batchErr) {
		c.AbortWithStatusJSON(status, gin.H{"error": "invalid line items", "issues": batchErr.Issues})
		return
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, schedule.ErrInvalidBatch),
		errors.Is(err, models.ErrInvalidPaymentTerm),
		errors.Is(err, extraction.ErrEmptyDocument),
		errors.Is(err, extraction.ErrInvalidPDF),
		errors.Is(err, extraction.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, extraction.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, linkstore.ErrLinkNotFound):
		return http.StatusNotFound
	case errors.Is(err, extraction.ErrInvalidResponse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, extraction.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, extraction.ErrProviderFailed):
		return http.StatusBadGateway
	case errors.Is(err, errNoExtractor):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
