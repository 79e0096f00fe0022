package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"invoiceapi/internal/logger"
	"invoiceapi/internal/pipeline"
)

// Error messages for /presigned-url.
const (
	MsgPresignFieldsRequired = "fileName and contentType are required"
	MsgPresignFailed         = "could not generate signed upload URL"
)

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleExtractInvoice runs the pipeline for {documentKey} or {s3Key}.
func (s *Server) handleExtractInvoice(c *gin.Context) {
	var req *pipeline.Request

	var body pipeline.Request
	switch err := c.ShouldBindJSON(&body); {
	case err == nil:
		req = &body
	case isEmptyBody(err):
		l := logger.FromContext(c.Request.Context(), "http")
		l.Debug().Msg("Request body missing")
	default:
		req = &pipeline.Request{DecodeErr: err}
	}

	resp := s.processor.Process(c.Request.Context(), req)
	c.JSON(resp.Status.HTTPCode(), resp.Body())
}

// handlePresignedURL issues a signed upload URL under uploads/.
func (s *Server) handlePresignedURL(c *gin.Context) {
	l := logger.FromContext(c.Request.Context(), "http")

	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		msg := pipeline.MsgInvalidBody
		if isEmptyBody(err) {
			msg = pipeline.MsgNoBody
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if strings.TrimSpace(req.FileName) == "" || strings.TrimSpace(req.ContentType) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": MsgPresignFieldsRequired})
		return
	}

	if s.presigner == nil {
		l.Error().Msg("Configured store cannot sign uploads")
		c.JSON(http.StatusInternalServerError, gin.H{"error": MsgPresignFailed})
		return
	}

	upload, err := s.presigner.PresignUpload(c.Request.Context(), req.FileName, req.ContentType)
	if err != nil {
		l.Error().Err(err).Str("file", req.FileName).Msg("Failed to sign upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": MsgPresignFailed})
		return
	}

	c.JSON(http.StatusOK, upload)
}

// isEmptyBody reports whether a bind error means nothing was sent.
func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}
