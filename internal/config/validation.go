package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateImport(&c.Import)...)
	errs = append(errs, validateInput(&c.Input)...)
	errs = append(errs, validateStorage(&c.Storage)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateImport(i *ImportConfig) ValidationErrors {
	var errs ValidationErrors

	if i.Root == "" {
		errs = append(errs, *RequiredFieldError("import.root"))
	}

	switch {
	case i.Directory == "":
		errs = append(errs, *RequiredFieldError("import.directory"))
	case filepath.IsAbs(i.Directory):
		errs = append(errs, ValidationError{
			Field:   "import.directory",
			Message: "must be relative to import.root",
		})
	case strings.HasPrefix(filepath.Clean(i.Directory), ".."):
		errs = append(errs, ValidationError{
			Field:   "import.directory",
			Message: "must not escape import.root",
		})
	}

	if i.FallbackPrefix == "" {
		errs = append(errs, *RequiredFieldError("import.fallback_prefix"))
	} else if strings.ContainsAny(i.FallbackPrefix, `/\`) {
		errs = append(errs, ValidationError{
			Field:   "import.fallback_prefix",
			Message: "must not contain path separators",
		})
	}

	if i.RequestCode < 1 || i.RequestCode > 0xffff {
		errs = append(errs, *RangeError("import.request_code", 1, 0xffff))
	}

	for field, mode := range map[string]string{"import.dir_mode": i.DirMode, "import.file_mode": i.FileMode} {
		if mode == "" {
			continue
		}
		if v, err := strconv.ParseUint(mode, 8, 32); err != nil || v > 0o777 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid octal permission: %s", mode),
			})
		}
	}

	return errs
}

func validateInput(i *InputConfig) ValidationErrors {
	switch i.Layout {
	case "us", "host":
		return nil
	default:
		return ValidationErrors{{
			Field:   "input.layout",
			Message: fmt.Sprintf("invalid layout: %s (valid: us, host)", i.Layout),
		}}
	}
}

func validateStorage(s *StorageConfig) ValidationErrors {
	var errs ValidationErrors

	if s.Enabled && s.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.path",
			Message: "path is required when storage is enabled",
		})
	}
	if s.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.busy_timeout_ms",
			Message: "busy timeout cannot be negative",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "discard":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output writes to a file",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both, discard)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if m.Enabled && m.Namespace == "" {
		errs = append(errs, *RequiredFieldError("metrics.namespace"))
	}
	if m.Listen != "" {
		if _, _, err := net.SplitHostPort(m.Listen); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics.listen",
				Message: fmt.Sprintf("invalid listen address: %v", err),
			})
		}
	}

	return errs
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
