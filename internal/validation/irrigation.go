// Package validation checks irrigation payloads at the API and dashboard boundary.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/crucial707/irrigation/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report field errors under their JSON names so clients can map them back to inputs.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate.RegisterStructValidation(scheduleTarget, models.IrrigationInput{})
	})
	return validate
}

// scheduleTarget requires at least one calendar date or weekday.
func scheduleTarget(sl validator.StructLevel) {
	in := sl.Current().Interface().(models.IrrigationInput)
	if len(in.SpecificDates) == 0 && len(in.Days) == 0 {
		sl.ReportError(in.SpecificDates, "specificDates", "SpecificDates", "date_or_day", "")
	}
}

// Irrigation validates a normalized input and returns field-level messages keyed by JSON
// field name. A nil map means the input is valid.
func Irrigation(in models.IrrigationInput) map[string]string {
	err := instance().Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fieldKey(fe)
		if _, seen := fields[key]; seen {
			continue
		}
		fields[key] = message(fe)
	}
	return fields
}

// fieldKey strips the struct name and any slice index: "IrrigationInput.times[0]" -> "times".
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.Index(ns, "["); i >= 0 {
		ns = ns[:i]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fieldKey(fe) {
	case "times":
		if fe.Tag() == "min" {
			return "at least one time is required"
		}
		return "time entries must not be empty"
	case "specificDates":
		if fe.Tag() == "date_or_day" {
			return "a date or at least one weekday is required"
		}
		return "date entries must not be empty"
	case "days":
		return "weekday entries must not be empty"
	case "duration":
		if fe.Tag() == "max" {
			return fmt.Sprintf("duration must be at most %d minutes", models.MaxDuration)
		}
		return "duration must be at least 1 minute"
	case "status":
		return "status must be one of Pending, InProgress, Completed"
	}
	return "invalid value"
}
