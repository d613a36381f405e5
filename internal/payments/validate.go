package payments

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// ErrInvalidRequest matches errors caused by a missing or malformed request
// field, as opposed to a provider failure.
var ErrInvalidRequest = errors.New("invalid payment request")

type fieldError struct{ msg string }

func (e *fieldError) Error() string { return e.msg }

func (e *fieldError) Is(target error) bool { return target == ErrInvalidRequest }

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report env keys for adapter configs and json names for requests.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name, _, _ := strings.Cut(fld.Tag.Get("env"), ","); name != "" {
			return name
		}
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// decodeConfig fills an adapter config from provider settings and checks its
// required fields.
func decodeConfig(provider string, settings Settings, cfg any) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: settings}); err != nil {
		return fmt.Errorf("%s: parse settings: %w", provider, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%s: %w", provider, validationError(err))
	}
	return nil
}

// requireFields validates only the named PaymentRequest fields. Names are Go
// field paths relative to the request, e.g. "OrderID" or "Buyer.FirstName".
func requireFields(provider string, req PaymentRequest, fields ...string) error {
	if err := validate.StructPartial(req, fields...); err != nil {
		return fmt.Errorf("%s: %w", provider, validationError(err))
	}
	if req.Card != nil {
		for _, f := range fields {
			if f == "Card" {
				if err := validate.Struct(req.Card); err != nil {
					return fmt.Errorf("%s: %w", provider, validationError(err))
				}
			}
		}
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return &fieldError{fmt.Sprintf("missing required field: %s", fe.Field())}
	}
	if fe.Param() != "" {
		return &fieldError{fmt.Sprintf("invalid field %s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())}
	}
	return &fieldError{fmt.Sprintf("invalid field %s: must be a valid %s", fe.Field(), fe.Tag())}
}
