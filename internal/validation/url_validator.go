package validation

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("download_url", validateDownloadURL)
}

// ValidateDownloadURL screens an attachment URL before it is enqueued.
// Upstream metadata occasionally carries empty or junk URLs; rejecting them
// here keeps the workers' failure taxonomy to real transfer errors.
func ValidateDownloadURL(u string) error {
	if err := validate.Var(u, "required,download_url"); err != nil {
		return fmt.Errorf("invalid attachment URL %q: %w", u, err)
	}
	return nil
}

func validateDownloadURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
