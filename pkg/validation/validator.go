// Package validation checks announced topology descriptors before they enter
// the registry. Announcements arrive from untrusted peers; a malformed one is
// rejected here instead of polluting the map.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-topology/pkg/topology"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxLocationLength = 128
	MaxVersionLength  = 64
	MaxProducers      = 64
	MaxBatchSize      = 1000

	// Producer identities use the on-chain account-name charset.
	producerPattern = regexp.MustCompile(`^[a-z1-5.]{1,13}$`)
)

func init() {
	validate = validator.New()
}

// announcedNode mirrors the validated surface of a node announcement.
type announcedNode struct {
	Location  string   `validate:"required,max=128"`
	Version   string   `validate:"omitempty,max=64"`
	Producers []string `validate:"omitempty,max=64"`
}

// ValidateNodeDescriptor checks an announced node descriptor.
func ValidateNodeDescriptor(desc *topology.NodeDescriptor) error {
	if desc == nil {
		return errors.New("node descriptor cannot be nil")
	}

	view := announcedNode{
		Location:  desc.Location,
		Version:   desc.Version,
		Producers: desc.Producers,
	}
	if err := validate.Struct(&view); err != nil {
		return formatValidationError(err)
	}

	for _, p := range desc.Producers {
		if !producerPattern.MatchString(p) {
			return fmt.Errorf("Producers: '%s' is not a valid producer name", p)
		}
	}
	return nil
}

// ValidateLinkDescriptor checks an announced link descriptor. Both endpoints
// must be named; whether they resolve is the registry's concern.
func ValidateLinkDescriptor(desc *topology.LinkDescriptor) error {
	if desc == nil {
		return errors.New("link descriptor cannot be nil")
	}
	if desc.Active == 0 {
		return errors.New("Active: endpoint is required")
	}
	if desc.Passive == 0 {
		return errors.New("Passive: endpoint is required")
	}
	if desc.Active == desc.Passive {
		return errors.New("Active: link endpoints must differ")
	}
	if desc.Role > topology.LinkCombined {
		return fmt.Errorf("Role: unknown link role %d", desc.Role)
	}
	return nil
}

// ValidateMapUpdate checks every descriptor in a batch and bounds the batch
// size.
func ValidateMapUpdate(mu *topology.MapUpdate) error {
	if mu == nil {
		return errors.New("map update cannot be nil")
	}

	total := len(mu.AddNodes) + len(mu.AddLinks) + len(mu.DropNodes) + len(mu.DropLinks)
	if total > MaxBatchSize {
		return fmt.Errorf("BatchSize: %d exceeds maximum %d", total, MaxBatchSize)
	}

	for i := range mu.AddNodes {
		if err := ValidateNodeDescriptor(&mu.AddNodes[i]); err != nil {
			return fmt.Errorf("AddNodes[%d]: %w", i, err)
		}
	}
	for i := range mu.AddLinks {
		if err := ValidateLinkDescriptor(&mu.AddLinks[i]); err != nil {
			return fmt.Errorf("AddLinks[%d]: %w", i, err)
		}
	}
	return nil
}

// formatValidationError converts validator errors to user-friendly messages.
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}
	return err
}
