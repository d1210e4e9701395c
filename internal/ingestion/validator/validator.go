// Package validator provides input validation for ingestion requests. It
// enforces title, body and tag constraints and returns per-field error
// details.
package validator

import (
	"fmt"
	"strings"

	"github.com/quorumsearch/quorumsearch/internal/ingestion"
)

const (
	maxTitleLength = 1024
	maxBodyLength  = 1048576
	maxTags        = 16
	maxTagLength   = 64
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks that the request meets the field constraints
// and returns a ValidationError describing every violation if not.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		errs["title"] = "title is required"
	} else if len(title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		errs["body"] = "body is required and must not be empty"
	} else if len(body) > maxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d characters", maxBodyLength)
	}
	if len(req.Tags) > maxTags {
		errs["tags"] = fmt.Sprintf("at most %d tags are allowed", maxTags)
	} else {
		for _, tag := range req.Tags {
			if strings.TrimSpace(tag) == "" {
				errs["tags"] = "tags must not be empty"
				break
			}
			if len(tag) > maxTagLength {
				errs["tags"] = fmt.Sprintf("tags must be at most %d characters", maxTagLength)
				break
			}
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
