package validation

import (
	"reflect"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
)

// nowFunc is swapped in tests.
var nowFunc = time.Now

// New returns a configured validator with the custom "future" tag and the
// struct-level rules of the order requests registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("future", future)
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})
	v.RegisterStructValidation(updateOrderStructValidation, UpdateOrderRequest{})
	v.RegisterStructValidation(listOrdersStructValidation, ListOrdersRequest{})

	return v
}

// future passes for instants strictly after now.
func future(fl validatorv10.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	return ok && t.After(nowFunc())
}

func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)
	if !req.Price.IsPositive() {
		sl.ReportError(req.Price, "price", "Price", "gt", "0")
	}
}

func updateOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateOrderRequest)
	if req.Price != nil && !req.Price.IsPositive() {
		sl.ReportError(req.Price, "price", "Price", "gt", "0")
	}
}

// listOrdersStructValidation rejects inverted date ranges.
func listOrdersStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(ListOrdersRequest)
	if inverted(req.CreatedFromDate, req.CreatedToDate) {
		sl.ReportError(req.CreatedFromDate, "createdFromDate", "CreatedFromDate", "ltefield", "createdToDate")
	}
	if inverted(req.CompletedFromDate, req.CompletedToDate) {
		sl.ReportError(req.CompletedFromDate, "completedFromDate", "CompletedFromDate", "ltefield", "completedToDate")
	}
}

func inverted(from, to *time.Time) bool {
	return from != nil && to != nil && from.After(*to)
}
