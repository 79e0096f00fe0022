package pipeline

import "net/http"

// Status is the discrete result of processing one request.
type Status int

const (
	StatusOK Status = iota
	StatusBadRequest
	StatusNotFound
	StatusUnprocessable
	StatusConfigError
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBadRequest:
		return "bad_request"
	case StatusNotFound:
		return "not_found"
	case StatusUnprocessable:
		return "unprocessable"
	case StatusConfigError:
		return "config_error"
	default:
		return "internal"
	}
}

// HTTPCode maps the status onto the HTTP envelope.
func (s Status) HTTPCode() int {
	switch s {
	case StatusOK:
		return http.StatusOK
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusNotFound:
		return http.StatusNotFound
	case StatusUnprocessable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
