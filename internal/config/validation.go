package config

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/keytest/internal/logging"
	"github.com/verte-zerg/keytest/internal/model"
)

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid setting.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the effective test settings and log level.
func Validate(cfg model.Config, logLevel string) error {
	var errs ValidationErrors
	if strings.TrimSpace(cfg.Layout) == "" {
		errs = append(errs, ValidationError{Field: "layout", Message: "must not be empty"})
	} else if strings.ContainsAny(cfg.Layout, `/\`) {
		errs = append(errs, ValidationError{Field: "layout", Message: "must be a name, not a path"})
	}
	if len(cfg.Whitelist) == 0 {
		errs = append(errs, ValidationError{Field: "whitelist", Message: "needs at least one device path fragment"})
	}
	for i, entry := range cfg.Whitelist {
		if strings.TrimSpace(entry) == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("whitelist[%d]", i), Message: "must not be blank"})
		}
	}
	if strings.TrimSpace(cfg.Title) == "" {
		errs = append(errs, ValidationError{Field: "title", Message: "must not be empty"})
	}
	if !logging.ValidLevel(logLevel) {
		errs = append(errs, ValidationError{Field: "log-level", Message: fmt.Sprintf("unknown level %q", logLevel)})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
