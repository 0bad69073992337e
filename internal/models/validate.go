package models

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Decimals are compared as float64 so numeric tags such as gte=0 apply.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		switch d := field.Interface().(type) {
		case decimal.Decimal:
			f, _ := d.Float64()
			return f
		case decimal.NullDecimal:
			if !d.Valid {
				return nil
			}
			f, _ := d.Decimal.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{}, decimal.NullDecimal{})

	v.RegisterStructValidation(changeSignValidation, MarketSnapshot{}, Mover{}, StockQuote{})
	return v
}

// changeSignValidation rejects rows whose change and changePercent point in
// opposite directions. A zero on either side is accepted.
func changeSignValidation(sl validator.StructLevel) {
	var change, pct decimal.Decimal
	switch row := sl.Current().Interface().(type) {
	case MarketSnapshot:
		change, pct = row.Change, row.ChangePercent
	case Mover:
		change, pct = row.Change, row.ChangePercent
	case StockQuote:
		change, pct = row.Change, row.ChangePercent
	default:
		return
	}
	if !SignsAgree(change, pct) {
		sl.ReportError(pct, "ChangePercent", "changePercent", "signmatch", "")
	}
}

// SignsAgree reports whether two moves point the same way
func SignsAgree(a, b decimal.Decimal) bool {
	if a.IsZero() || b.IsZero() {
		return true
	}
	return a.Sign() == b.Sign()
}

// Validate checks a normalized model against its invariants
func Validate(v any) error {
	return validate.Struct(v)
}
