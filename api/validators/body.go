package validators

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("decimal_gte0", func(fl validator.FieldLevel) bool {
		return compareDecimal(fl, func(d decimal.Decimal) bool { return !d.IsNegative() })
	})
	_ = v.RegisterValidation("decimal_gt0", func(fl validator.FieldLevel) bool {
		return compareDecimal(fl, func(d decimal.Decimal) bool { return d.IsPositive() })
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return enums.PaymentMethod(fl.Field().String()).IsValid()
	})
	return v
}

func compareDecimal(fl validator.FieldLevel, ok func(decimal.Decimal) bool) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && ok(d)
}

func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	return ValidateStruct(dest)
}

// ValidateStruct runs the struct tags on an already decoded value.
func ValidateStruct(dest any) error {
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "decimal_gt0":
		return "must be greater than zero"
	case "decimal_gte0":
		return "must not be negative"
	case "payment_method":
		return "must be one of cash, card, transfer"
	}
	return "is invalid"
}
