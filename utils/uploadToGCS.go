package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// spreadsheet content types keyed by extension
var workbookContentTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
	".csv":  "text/csv",
}

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// Set GCS_CREDENTIALS_JSON to provide explicit JSON locally.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func GetGCSBucket() string {
	return strings.TrimSpace(os.Getenv("GCS_BUCKET"))
}

// WorkbookObjectName builds the archive path of a raw sales workbook.
// Example: ventas/Centro/2024/01/semana-2/<uploadId>.xlsx
func WorkbookObjectName(sucursal string, anio, mes, semana int, uploadId, filename string) string {
	return fmt.Sprintf("ventas/%s/%04d/%02d/semana-%d/%s%s", sucursal, anio, mes, semana, uploadId, FileExtension(filename))
}

// UploadBytesToGCS writes data to GCS_BUCKET under objectName.
func UploadBytesToGCS(ctx context.Context, objectName string, data []byte, contentType string) error {
	bucketName := GetGCSBucket()
	if bucketName == "" {
		return errors.New("GCS_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// ArchiveWorkbook stores the raw uploaded workbook and returns its gs:// location.
func ArchiveWorkbook(ctx context.Context, objectName string, filename string, data []byte) (string, error) {
	contentType, ok := workbookContentTypes[FileExtension(filename)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrorUnsupportedFile, filename)
	}
	if err := UploadBytesToGCS(ctx, objectName, data, contentType); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", GetGCSBucket(), objectName), nil
}
