package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxTickerLength = 16

func NewValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("ticker", isValidTicker)
	v.RegisterValidation("asset_class", isAssetClass)
	v.RegisterValidation("period", isPeriod)

	// json names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// ValidateStruct returns a single error listing every failed field.
func ValidateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	msgs := make([]string, len(fieldErrors))
	for i, fe := range fieldErrors {
		msgs[i] = formatValidationError(fe)
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "len":
		return fmt.Sprintf("%s must have exactly %s entries", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "ticker":
		return fmt.Sprintf("%s must be a valid ticker symbol, got %q", field, err.Value())
	case "asset_class":
		return fmt.Sprintf("%s must be one of: crypto, stocks, etfs, commodities, got %q", field, err.Value())
	case "period":
		return fmt.Sprintf("invalid time period %q", err.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// isValidTicker accepts exchange tickers, futures codes (GC=F) and coin ids.
func isValidTicker(fl validator.FieldLevel) bool {
	ticker := strings.TrimSpace(fl.Field().String())
	if len(ticker) < 1 || len(ticker) > maxTickerLength {
		return false
	}
	for _, ch := range ticker {
		if !((ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '.' || ch == '=' || ch == '-') {
			return false
		}
	}
	return true
}

func isAssetClass(fl validator.FieldLevel) bool {
	return AssetClass(fl.Field().String()).IsValid()
}

func isPeriod(fl validator.FieldLevel) bool {
	_, ok := LookupPeriod(fl.Field().String())
	return ok
}
