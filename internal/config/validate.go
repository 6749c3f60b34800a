package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrInvalidCapacity indicates a non-positive registry capacity
	ErrInvalidCapacity = errors.New("invalid registry capacity")

	// ErrInvalidPrefix indicates a malformed PSR-4 namespace prefix
	ErrInvalidPrefix = errors.New("invalid namespace prefix")

	// ErrEmptyDirs indicates a PSR-4 mapping without directories
	ErrEmptyDirs = errors.New("empty autoload directories")

	// ErrInvalidPattern indicates a glob pattern that does not compile
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrInvalidDebounce indicates a negative debounce window
	ErrInvalidDebounce = errors.New("invalid debounce")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateAutoload(&cfg.Autoload); err != nil {
		errs = append(errs, err)
	}

	if err := validatePaths(&cfg.Paths); err != nil {
		errs = append(errs, err)
	}

	if err := validateCache(&cfg.Cache); err != nil {
		errs = append(errs, err)
	}

	if cfg.Watch.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("%w: debounce_ms cannot be negative, got %d", ErrInvalidDebounce, cfg.Watch.DebounceMs))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateAutoload(cfg *AutoloadConfig) error {
	var errs []error

	for _, m := range cfg.PSR4 {
		// Prefixes are relative to the global namespace and end with a separator.
		if m.Prefix != "" && (strings.HasPrefix(m.Prefix, `\`) || !strings.HasSuffix(m.Prefix, `\`)) {
			errs = append(errs, fmt.Errorf("%w: %q must end with a backslash and not start with one", ErrInvalidPrefix, m.Prefix))
		}
		if strings.Contains(m.Prefix, `\\`) {
			errs = append(errs, fmt.Errorf("%w: %q contains an empty segment", ErrInvalidPrefix, m.Prefix))
		}
		if len(m.Dirs) == 0 {
			errs = append(errs, fmt.Errorf("%w: prefix %q", ErrEmptyDirs, m.Prefix))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validatePaths(cfg *PathsConfig) error {
	var errs []error

	for _, pattern := range append(append([]string{}, cfg.Include...), cfg.Ignore...) {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateCache(cfg *CacheConfig) error {
	if cfg.RegistryCapacity <= 0 {
		return fmt.Errorf("%w: registry_capacity must be positive, got %d", ErrInvalidCapacity, cfg.RegistryCapacity)
	}
	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
// The result still matches every joined error with errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	return &validationErrors{errs: errs}
}

type validationErrors struct {
	errs []error
}

func (v *validationErrors) Error() string {
	msgs := make([]string, 0, len(v.errs))
	for _, err := range v.errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (v *validationErrors) Unwrap() []error {
	return v.errs
}
