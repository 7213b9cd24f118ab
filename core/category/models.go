package category

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ihub/core"
)

// Other is the pseudo-category that asks the submitter to type their own.
const Other = "other"

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewCategory contains information needed to create or rename a Category.
type NewCategory struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (nc *NewCategory) Validate(ctx context.Context, validate *validator.Validate, svc Service, exclude ...Category) error {
	nc.Name = core.CleanString(nc.Name)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	if strings.EqualFold(nc.Name, Other) {
		return core.NewValidationError(errReservedName, core.FieldError{Field: "name", Error: errReservedName.Error()})
	}
	return svc.CheckUniqueness(ctx, nc.Name, exclude...)
}
