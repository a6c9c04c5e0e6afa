package main

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/models"
	"github.com/lealcafe/ventas_backend/utils"
	"github.com/lealcafe/ventas_backend/workflow"
)

var allowedWorkbookExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".csv":  true,
}

// multipart framing and the period fields on top of the file itself
const multipartOverhead = 1 << 20

type apiError struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, status int, errType string, err error, details interface{}) {
	c.AbortWithStatusJSON(status, gin.H{"error": apiError{Type: errType, Message: err.Error(), Details: details}})
}

type dimensionLayout struct {
	Dimension models.Dimension `json:"dimension"`
	Table     string           `json:"table"`
	Sheets    []string         `json:"sheets"`
	Headers   []string         `json:"headers"`
	Keys      []string         `json:"keys"`
	Measures  []string         `json:"measures"`
}

func dimensionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		specs := models.Dimensions()
		out := make([]dimensionLayout, 0, len(specs))
		for _, s := range specs {
			out = append(out, dimensionLayout{
				Dimension: s.Dimension,
				Table:     s.Table(),
				Sheets:    s.Layout.SheetNames,
				Headers:   s.Headers,
				Keys:      s.Keys,
				Measures:  s.Measures,
			})
		}
		c.JSON(http.StatusOK, gin.H{"dimensions": out})
	}
}

// readUpload enforces the size and extension limits and binds the period form.
// It writes the error response itself and returns ok=false.
func readUpload(c *gin.Context) (workflow.UploadRequest, bool) {
	maxBytes := config.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, http.StatusRequestEntityTooLarge, "UploadTooLarge", utils.ErrorUploadTooLarge, gin.H{"max_bytes": maxBytes})
			return workflow.UploadRequest{}, false
		}
		abortWithError(c, http.StatusBadRequest, "ConfigurationError",
			&models.ConfigurationError{Field: "file", Reason: "is required"}, nil)
		return workflow.UploadRequest{}, false
	}
	if fileHeader.Size > maxBytes {
		abortWithError(c, http.StatusRequestEntityTooLarge, "UploadTooLarge", utils.ErrorUploadTooLarge, gin.H{"max_bytes": maxBytes, "size": fileHeader.Size})
		return workflow.UploadRequest{}, false
	}
	if !allowedWorkbookExtensions[utils.FileExtension(fileHeader.Filename)] {
		abortWithError(c, http.StatusUnsupportedMediaType, "UnsupportedFile", utils.ErrorUnsupportedFile,
			gin.H{"filename": fileHeader.Filename, "allowed": []string{".xlsx", ".xls", ".csv"}})
		return workflow.UploadRequest{}, false
	}

	var form models.PeriodForm
	if err := c.ShouldBind(&form); err != nil {
		abortWithError(c, http.StatusBadRequest, "ConfigurationError",
			&models.ConfigurationError{Field: "form", Reason: "sucursal, mes and semana are required"}, utils.FormatValidationErrors(err))
		return workflow.UploadRequest{}, false
	}

	data, err := readFormFile(fileHeader)
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, http.StatusBadRequest, "ParseError", err, nil)
		return workflow.UploadRequest{}, false
	}

	username, _ := utils.GetUsernameFromContext(c.Request.Context())
	return workflow.UploadRequest{
		Filename:  fileHeader.Filename,
		Data:      data,
		Form:      form,
		CreatedBy: username,
	}, true
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// uploadStatus maps the outcome of an ingestion run to the response code.
func uploadStatus(summary *workflow.UploadSummary, err error) int {
	if err == nil {
		if summary.Partial() {
			return http.StatusMultiStatus
		}
		return http.StatusOK
	}
	var (
		configErr *models.ConfigurationError
		parseErr  *models.ParseError
	)
	if errors.As(err, &configErr) || errors.As(err, &parseErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondSummary(c *gin.Context, summary *workflow.UploadSummary, err error) {
	status := uploadStatus(summary, err)
	if err != nil {
		if status == http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.JSON(status, gin.H{"error": summary.Error, "summary": summary})
		return
	}
	c.JSON(status, summary)
}

func salesUploadHandler(ingestion func() *workflow.SalesIngestion) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := readUpload(c)
		if !ok {
			return
		}
		summary, err := ingestion().Run(c.Request.Context(), req)
		respondSummary(c, summary, err)
	}
}

func salesPreviewHandler(ingestion func() *workflow.SalesIngestion) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := readUpload(c)
		if !ok {
			return
		}
		summary, err := ingestion().Preview(c.Request.Context(), req)
		respondSummary(c, summary, err)
	}
}
