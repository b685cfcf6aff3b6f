package validation

import (
	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/somasaidi/somasaidi/internal/apperr"
)

// BindAndValidate binds the request body into out and runs validation,
// returning an Invalid apperr with per-field messages on failure.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBind(out); err != nil {
		return apperr.InvalidErr("Invalid request body", map[string]string{"body": err.Error()})
	}
	if err := v.Struct(out); err != nil {
		return apperr.InvalidErr("Validation failed", errorsToMap(err))
	}
	return nil
}

func errorsToMap(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			out[fe.Field()] = "failed " + fe.Tag() + " validation"
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
