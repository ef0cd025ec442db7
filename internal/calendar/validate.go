package calendar

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"smart-calendar-api/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("palette", func(fl validator.FieldLevel) bool {
		return model.InPalette(fl.Field().String())
	})
	return v
}

// checkEvent fills defaults, then validates e in place. Times are rewritten
// to zero-padded HH:MM so they sort as strings.
func checkEvent(e *model.Event) error {
	e.ApplyDefaults()
	if err := validate.Struct(e); err != nil {
		return fieldError(err)
	}
	if !e.Date.IsValid() {
		return &model.ValidationError{Field: "date", Value: e.Date.String(), Err: errors.New("not a calendar day")}
	}
	start, err := normalizeClock("startTime", e.StartTime)
	if err != nil {
		return err
	}
	end, err := normalizeClock("endTime", e.EndTime)
	if err != nil {
		return err
	}
	e.StartTime, e.EndTime = start, end
	return nil
}

func checkEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return &model.ValidationError{Field: "email", Value: email, Err: errors.New("not an email address")}
	}
	return nil
}

func normalizeClock(field, s string) (string, error) {
	h, m, err := model.ParseClock(s)
	if err != nil {
		return "", &model.ValidationError{Field: field, Value: s, Err: err}
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return &model.ValidationError{
		Field: fe.Field(),
		Value: fmt.Sprint(fe.Value()),
		Err:   fmt.Errorf("failed %q", fe.Tag()),
	}
}
