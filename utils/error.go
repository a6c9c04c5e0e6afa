package utils

import "errors"

var (
	ErrorRecordNotFound  = errors.New("record not found")
	ErrorInvalidLogin    = errors.New("invalid username or password")
	ErrorUnsupportedFile = errors.New("unsupported file type")
	ErrorUploadTooLarge  = errors.New("uploaded file is too large")
)
