package config

// ArchiveUploadsEnabled stores every raw sales workbook in GCS_BUCKET.
//
// Set via env:
// - ARCHIVE_UPLOADS_ENABLED=true
func ArchiveUploadsEnabled() bool {
	return boolFromEnv("ARCHIVE_UPLOADS_ENABLED")
}

// PublishSalesEventsEnabled publishes a Pub/Sub message after each completed ingestion.
//
// Set via env:
// - PUBLISH_SALES_EVENTS=true
func PublishSalesEventsEnabled() bool {
	return boolFromEnv("PUBLISH_SALES_EVENTS")
}

// UploadLockEnabled serializes uploads of the same period through a Redis lock.
// The unique constraints stay authoritative; the lock only avoids interleaved batches.
//
// Set via env:
// - UPLOAD_LOCK_DISABLED=true turns it off
func UploadLockEnabled() bool {
	return !boolFromEnv("UPLOAD_LOCK_DISABLED")
}

// SkipMigrations disables AutoMigrate on startup.
func SkipMigrations() bool {
	return boolFromEnv("SKIP_MIGRATIONS")
}

// MaxUploadBytes is the upload size limit (MAX_UPLOAD_MB, default 16).
func MaxUploadBytes() int64 {
	mb := intFromEnv("MAX_UPLOAD_MB", 16)
	if mb <= 0 {
		mb = 16
	}
	return int64(mb) << 20
}
