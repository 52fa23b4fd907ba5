package config

import (
	"fmt"
	"path"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if len(cfg.Exports) == 0 {
		return fmt.Errorf("exports: at least one export must be configured")
	}

	ids := make(map[uint32]bool)
	paths := make(map[string]bool)
	for i, exp := range cfg.Exports {
		if ids[exp.ID] {
			return fmt.Errorf("exports[%d]: duplicate export id %d", i, exp.ID)
		}
		ids[exp.ID] = true

		clean := path.Clean(exp.Path)
		if clean == "/" {
			return fmt.Errorf("exports[%d]: an export cannot be mounted on the pseudo root", i)
		}
		if paths[clean] {
			return fmt.Errorf("exports[%d]: duplicate export path %q", i, exp.Path)
		}
		paths[clean] = true
	}

	if err := cfg.ClientDB.Validate(); err != nil {
		return fmt.Errorf("clientdb: %w", err)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
