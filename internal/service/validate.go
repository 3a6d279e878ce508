package service

import (
	"github.com/go-playground/validator/v10"
)

// validate is shared by the services for field rules that also apply outside
// HTTP request binding. A Validate instance is safe for concurrent use.
var validate = validator.New()

func isHexColor(color string) bool {
	return validate.Var(color, "required,hexcolor") == nil
}
