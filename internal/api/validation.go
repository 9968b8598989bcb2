package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var requestValidator = validator.New()

// namePolicy strips any markup from display-name fields before they are
// stored or echoed back.
var namePolicy = bluemonday.StrictPolicy()

func decodeAndValidate(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body")
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body")
	}

	if err := requestValidator.Struct(dst); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
			first := validationErrors[0]
			field := strings.ToLower(first.Field())
			switch first.Tag() {
			case "required":
				return fmt.Errorf("%s is required", field)
			case "email":
				return fmt.Errorf("invalid email format")
			case "min":
				return fmt.Errorf("%s is too short", field)
			case "max":
				return fmt.Errorf("%s is too long", field)
			default:
				return fmt.Errorf("invalid %s", field)
			}
		}

		return fmt.Errorf("invalid request payload")
	}

	return nil
}

// sanitizeName trims and strips markup from an optional display-name field.
// A value that is empty after sanitizing becomes nil.
func sanitizeName(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := strings.TrimSpace(namePolicy.Sanitize(*value))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
