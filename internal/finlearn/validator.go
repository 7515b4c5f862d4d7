package finlearn

import (
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/dao"
	"github.com/aisa-it/finlearn/finlearn.go/internal/finlearn/editor/session"
	"github.com/go-playground/validator"
)

type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	err := v.RegisterValidation("viewMode", viewModeValidator)
	if err != nil {
		return nil
	}

	err = v.RegisterValidation("dialogKind", dialogKindValidator)
	if err != nil {
		return nil
	}

	err = v.RegisterValidation("commandOp", commandOpValidator)
	if err != nil {
		return nil
	}

	err = v.RegisterValidation("documentKind", documentKindValidator)
	if err != nil {
		return nil
	}
	return &RequestValidator{v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.validator.Struct(i); err != nil {
		_, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil
		}
		return err
	}
	return nil
}

func viewModeValidator(fl validator.FieldLevel) bool {
	return session.ViewMode(fl.Field().String()).Valid()
}

func dialogKindValidator(fl validator.FieldLevel) bool {
	return session.DialogKind(fl.Field().String()).Valid()
}

func commandOpValidator(fl validator.FieldLevel) bool {
	return session.Op(fl.Field().String()).Valid()
}

func documentKindValidator(fl validator.FieldLevel) bool {
	return dao.ValidKind(fl.Field().String())
}
