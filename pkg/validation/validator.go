// Package validation checks node records handed to the engine by outside
// collaborators (task-file sync, seeding scripts, CLI input) before they
// touch the graph. Graph-level integrity is graph.Validate's job; this is
// field-shape validation only.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxIDLength    = 128
	MaxTitleLength = 256
	MaxTags        = 32
	MaxTagLength   = 64
	MaxNotesLength = 4096

	// Node ids and tags are plain identifiers with optional namespacing,
	// e.g. "horizons-vectors", "episode:01", "analysis.delta_v".
	idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]*$`)
)

func init() {
	validate = validator.New()
}

// NodeRecord is the plain tuple collaborators hand across the engine
// boundary: {id, type, title, dependsOn, tags, notes, status}.
type NodeRecord struct {
	ID        string   `json:"id" validate:"required,max=128"`
	Type      string   `json:"type" validate:"required,oneof=data_source parameter analysis report task"`
	Title     string   `json:"title" validate:"required,max=256"`
	DependsOn []string `json:"dependsOn" validate:"omitempty,dive,required,max=128"`
	Tags      []string `json:"tags" validate:"omitempty,max=32,dive,max=64"`
	Notes     string   `json:"notes" validate:"omitempty,max=4096"`
	Status    string   `json:"status" validate:"omitempty,oneof=valid stale pending active blocked"`
}

// ValidateNodeRecord validates one incoming record.
func ValidateNodeRecord(rec *NodeRecord) error {
	if rec == nil {
		return errors.New("node record cannot be nil")
	}

	if err := validate.Struct(rec); err != nil {
		return formatValidationError(err)
	}

	if !idPattern.MatchString(rec.ID) {
		return fmt.Errorf("ID: %q is not a valid node id", rec.ID)
	}
	for _, dep := range rec.DependsOn {
		if !idPattern.MatchString(dep) {
			return fmt.Errorf("DependsOn: %q is not a valid node id", dep)
		}
		if dep == rec.ID {
			return fmt.Errorf("DependsOn: %q depends on itself", rec.ID)
		}
	}
	for _, tag := range rec.Tags {
		if !idPattern.MatchString(tag) {
			return fmt.Errorf("Tags: %q is not a valid tag", tag)
		}
	}
	return nil
}

// formatValidationError converts validator errors into readable messages
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, fieldErr := range validationErrors {
			switch fieldErr.Tag() {
			case "required":
				messages = append(messages, fmt.Sprintf("%s: required", fieldErr.Field()))
			case "max":
				messages = append(messages, fmt.Sprintf("%s: exceeds maximum length %s", fieldErr.Field(), fieldErr.Param()))
			case "oneof":
				messages = append(messages, fmt.Sprintf("%s: must be one of [%s]", fieldErr.Field(), fieldErr.Param()))
			default:
				messages = append(messages, fmt.Sprintf("%s: failed %s validation", fieldErr.Field(), fieldErr.Tag()))
			}
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}
