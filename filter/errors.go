package filter

import (
	"net/http"

	"github.com/pkg/errors"
)

// MappableError wraps an error returned (or a panic raised) by a
// filter.  The exception mapping layer turns it into a response.
type MappableError struct {
	Filter string
	Err    error
}

func (err *MappableError) Error() string {
	return "filter " + err.Filter + ": " + err.Err.Error()
}

func (err *MappableError) Cause() error  { return err.Err }
func (err *MappableError) Unwrap() error { return err.Err }

func mappable(name string, err error) error {
	if err == nil {
		return nil
	}
	var me *MappableError
	if errors.As(err, &me) {
		return err
	}
	return errors.WithStack(&MappableError{Filter: name, Err: err})
}

// IsMappable is true for errors that came out of a filter
func IsMappable(err error) bool {
	var me *MappableError
	return errors.As(err, &me)
}

// ReturnCode associates an HTTP return code with a error.
// if err is nil, then nil is returned.
func ReturnCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return returnCode{
		cause: err,
		code:  code,
	}
}

type returnCode struct {
	cause error
	code  int
}

func (err returnCode) Cause() error  { return err.cause }
func (err returnCode) Unwrap() error { return err.cause }
func (err returnCode) Error() string { return err.cause.Error() }

// NotFound annotates an error has giving 404 HTTP return code
func NotFound(err error) error {
	return ReturnCode(err, http.StatusNotFound)
}

// BadRequest annotates an error has giving 400 HTTP return code
func BadRequest(err error) error {
	return ReturnCode(err, http.StatusBadRequest)
}

// Unauthorized annotates an error has giving 401 HTTP return code
func Unauthorized(err error) error {
	return ReturnCode(err, http.StatusUnauthorized)
}

// Forbidden annotates an error has giving 403 HTTP return code
func Forbidden(err error) error {
	return ReturnCode(err, http.StatusForbidden)
}

// StatusCoder is implemented by errors that know their HTTP status
type StatusCoder interface {
	StatusCode() int
}

// GetReturnCode finds the outermost return code in err's chain, or 500
func GetReturnCode(err error) int {
	for err != nil {
		switch e := err.(type) {
		case returnCode:
			return e.code
		case StatusCoder:
			return e.StatusCode()
		}
		err = errors.Unwrap(err)
	}
	return http.StatusInternalServerError
}

// ErrorMapper converts an error that escaped the pipeline into a response
type ErrorMapper func(req *Request, err error) *Response

// DefaultErrorMapper responds with GetReturnCode(err) and the error text
func DefaultErrorMapper(req *Request, err error) *Response {
	code := GetReturnCode(err)
	resp := NewResponse(code, http.StatusText(code))
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return resp
}
