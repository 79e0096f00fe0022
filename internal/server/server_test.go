package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"invoiceapi/internal/invoice"
	"invoiceapi/internal/pipeline"
	"invoiceapi/internal/storage"
	"invoiceapi/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingProcessor struct {
	req      *pipeline.Request
	called   bool
	deadline bool
	resp     pipeline.Response
}

func (p *recordingProcessor) Process(ctx context.Context, req *pipeline.Request) pipeline.Response {
	p.called = true
	p.req = req
	_, p.deadline = ctx.Deadline()
	return p.resp
}

type panickingProcessor struct{}

func (panickingProcessor) Process(ctx context.Context, req *pipeline.Request) pipeline.Response {
	panic("boom")
}

type stubPresigner struct {
	upload storage.Upload
	err    error
}

func (p stubPresigner) PresignUpload(ctx context.Context, fileName, contentType string) (storage.Upload, error) {
	return p.upload, p.err
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	s := NewServer(&recordingProcessor{}, nil, DefaultOptions())

	w := doRequest(s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
}

func TestExtractInvoiceSuccess(t *testing.T) {
	outcome := invoice.Outcome{Record: &models.InvoiceRecord{
		InvoiceNumber: models.NewText("F43289956"),
		Shipments:     []models.ShipmentLine{},
	}}
	proc := &recordingProcessor{resp: pipeline.Response{
		Status:  pipeline.StatusOK,
		Text:    "FACTURA",
		Invoice: &outcome,
	}}
	s := NewServer(proc, nil, DefaultOptions())

	w := doRequest(s, http.MethodPost, "/extract-invoice", `{"s3Key":"uploads/a.pdf"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.NotNil(t, proc.req)
	assert.Equal(t, "uploads/a.pdf", proc.req.Key())
	assert.True(t, proc.deadline)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "FACTURA", body["text"])
	assert.Equal(t, "F43289956", body["invoice"].(map[string]any)["numeroFactura"])
}

func TestExtractInvoiceMissingBody(t *testing.T) {
	proc := &recordingProcessor{resp: pipeline.Response{
		Status: pipeline.StatusBadRequest,
		Error:  pipeline.MsgNoBody,
	}}
	s := NewServer(proc, nil, DefaultOptions())

	w := doRequest(s, http.MethodPost, "/extract-invoice", "")

	assert.True(t, proc.called)
	assert.Nil(t, proc.req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"no request body provided"}`, w.Body.String())
}

func TestExtractInvoiceInvalidBody(t *testing.T) {
	for _, body := range []string{"{not json", `{"s3Key":123}`, `["k"]`} {
		proc := &recordingProcessor{}
		s := NewServer(proc, nil, DefaultOptions())

		doRequest(s, http.MethodPost, "/extract-invoice", body)

		require.True(t, proc.called, body)
		require.NotNil(t, proc.req, body)
		assert.Error(t, proc.req.DecodeErr, body)
	}
}

func TestExtractInvoiceInvalidBodyThroughPipeline(t *testing.T) {
	orch := pipeline.New(nil, nil, nil, func() bool { return true })
	s := NewServer(orch, nil, DefaultOptions())

	w := doRequest(s, http.MethodPost, "/extract-invoice", `{"s3Key":123}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, w.Body.String())
}

func TestExtractInvoiceErrorStatuses(t *testing.T) {
	tests := []struct {
		status pipeline.Status
		code   int
	}{
		{pipeline.StatusNotFound, http.StatusNotFound},
		{pipeline.StatusUnprocessable, http.StatusUnprocessableEntity},
		{pipeline.StatusConfigError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		proc := &recordingProcessor{resp: pipeline.Response{Status: tt.status, Error: "failed"}}
		s := NewServer(proc, nil, DefaultOptions())

		w := doRequest(s, http.MethodPost, "/extract-invoice", `{"documentKey":"k"}`)

		assert.Equal(t, tt.code, w.Code)
		assert.JSONEq(t, `{"error":"failed"}`, w.Body.String())
	}
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	s := NewServer(panickingProcessor{}, nil, DefaultOptions())

	w := doRequest(s, http.MethodPost, "/extract-invoice", `{"s3Key":"k"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error: boom"}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	proc := &recordingProcessor{}
	s := NewServer(proc, nil, Options{AllowOrigin: "https://app.example.com"})

	for _, path := range []string{"/extract-invoice", "/presigned-url"} {
		w := doRequest(s, http.MethodOptions, path, "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
	}
	assert.False(t, proc.called)
}

func TestPresignedURL(t *testing.T) {
	presigner := stubPresigner{upload: storage.Upload{
		URL:       "https://storage.example.com/signed",
		Key:       "uploads/1-abcd1234-factura.pdf",
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}}
	s := NewServer(&recordingProcessor{}, presigner, DefaultOptions())

	w := doRequest(s, http.MethodPost, "/presigned-url", `{"fileName":"factura.pdf","contentType":"application/pdf"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"presignedUrl":"https://storage.example.com/signed","s3Key":"uploads/1-abcd1234-factura.pdf"}`, w.Body.String())
}

func TestPresignedURLValidation(t *testing.T) {
	s := NewServer(&recordingProcessor{}, stubPresigner{}, DefaultOptions())

	for _, body := range []string{`{"fileName":"factura.pdf"}`, `{"contentType":"application/pdf"}`, `{}`} {
		w := doRequest(s, http.MethodPost, "/presigned-url", body)

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"error":"fileName and contentType are required"}`, w.Body.String())
	}

	w := doRequest(s, http.MethodPost, "/presigned-url", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"no request body provided"}`, w.Body.String())

	w = doRequest(s, http.MethodPost, "/presigned-url", `{"fileName":7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, w.Body.String())
}

func TestPresignedURLFailures(t *testing.T) {
	body := `{"fileName":"factura.pdf","contentType":"application/pdf"}`

	noPresigner := NewServer(&recordingProcessor{}, nil, DefaultOptions())
	w := doRequest(noPresigner, http.MethodPost, "/presigned-url", body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	failing := NewServer(&recordingProcessor{}, stubPresigner{err: errors.New("no signing key")}, DefaultOptions())
	w = doRequest(failing, http.MethodPost, "/presigned-url", body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"could not generate signed upload URL"}`, w.Body.String())
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := NewServer(&recordingProcessor{}, nil, DefaultOptions())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-123")
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(headerRequestID))
}
