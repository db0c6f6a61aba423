package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"leasecheck-backend/service"
)

const defaultMaxUploadSize = 2 * 1024 * 1024 // 2MB of contract text

// UploadContract handles POST /api/jobs/upload. It accepts a plain-text
// contract as multipart field "file" and starts an analysis job for it.
func (h *AnalysisHandler) UploadContract(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}

	// Validate file size
	if fileHeader.Size > h.maxUploadSize {
		respondError(c, http.StatusBadRequest, "FILE_TOO_LARGE",
			fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxUploadSize))
		return
	}

	// Only text is accepted; PDF and Word files need converting first
	if !isTextUpload(fileHeader.Header.Get("Content-Type"), fileHeader.Filename) {
		respondError(c, http.StatusUnsupportedMediaType, "INVALID_FILE_TYPE",
			"File type not allowed. Upload the contract as plain text (.txt)")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FILE_OPEN_ERROR", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "FILE_READ_ERROR", err.Error())
		return
	}
	if !utf8.Valid(data) {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "File is not UTF-8 text")
		return
	}

	docID := c.PostForm("doc_id")
	if docID == "" {
		docID = strings.TrimSuffix(filepath.Base(fileHeader.Filename), filepath.Ext(fileHeader.Filename))
	}

	h.startJob(c, service.AnalyzeRequest{
		DocID:        docID,
		Text:         string(data),
		Jurisdiction: c.PostForm("jurisdiction"),
	})
}

func isTextUpload(contentType, filename string) bool {
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			if strings.HasPrefix(mediaType, "text/") {
				return true
			}
			if mediaType != "application/octet-stream" {
				return false
			}
		}
	}
	// Try to infer from extension
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text", ".md":
		return true
	default:
		return false
	}
}
