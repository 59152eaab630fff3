package services

import (
	"github.com/ekaya-inc/tablelink/pkg/logging"
)

// errorText renders an item failure for the session audit trail without credentials.
func errorText(err error) string {
	return logging.SanitizeError(err)
}
