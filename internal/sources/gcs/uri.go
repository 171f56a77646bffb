// Package gcs lists, downloads and uploads receipt PDFs in a Cloud Storage bucket.
package gcs

import (
	"fmt"
	"path"
	"strings"
)

// ParseURI splits "gs://bucket/path/to/file.pdf" into bucket and object name.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}

	return parts[0], parts[1], nil
}

// FormatURI builds the gs:// URI of an object. It is the source id of the object.
func FormatURI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// FilenameFromURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/file.pdf" → "file.pdf"
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}

func isPDF(name string) bool {
	return strings.EqualFold(path.Ext(name), ".pdf")
}
