package validation

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// Problem is the error body of every non-2xx response.
type Problem struct {
	Title  string            `json:"title"`
	Detail string            `json:"detail,omitempty"`
	Status int               `json:"status"`
	Fields map[string]string `json:"fields,omitempty"`
}

// WriteProblem aborts the request with a problem body.
func WriteProblem(c *gin.Context, status int, title, detail string) {
	c.AbortWithStatusJSON(status, Problem{Title: title, Detail: detail, Status: status})
}

// BindAndValidate binds JSON body into `out` and runs validation.
// If validation fails, it writes a 400 response and returns an error for the handler to short-circuit.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		WriteProblem(c, http.StatusBadRequest, "invalid_request_body", err.Error())
		return err
	}
	return validate(c, out, v)
}

// BindOptionalAndValidate is BindAndValidate for bodies that may be empty,
// whatever the Content-Length says. An empty body leaves out untouched.
func BindOptionalAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil && !errors.Is(err, io.EOF) {
		WriteProblem(c, http.StatusBadRequest, "invalid_request_body", err.Error())
		return err
	}
	return validate(c, out, v)
}

// BindQueryAndValidate is BindAndValidate for query-string requests.
func BindQueryAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindQuery(out); err != nil {
		WriteProblem(c, http.StatusBadRequest, "invalid_query", err.Error())
		return err
	}
	return validate(c, out, v)
}

func validate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := v.Struct(out); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, Problem{
			Title:  "validation_failed",
			Detail: "one or more fields are invalid",
			Status: http.StatusBadRequest,
			Fields: validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
