package dlfs

import "net/http"

// HTTPStatus returns the status code a service answers with for c.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeNotEmpty:
		return http.StatusConflict
	case CodeInvalidArgument, CodeNotDirectory, CodeIsDirectory:
		return http.StatusBadRequest
	case CodeUnimplemented:
		return http.StatusNotImplemented
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodePermissionDenied:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// codeFromStatus classifies a failed response that carried no error body.
func codeFromStatus(status int) Code {
	switch {
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict:
		return CodeAlreadyExists
	case status == http.StatusBadRequest:
		return CodeInvalidArgument
	case status == http.StatusNotImplemented:
		return CodeUnimplemented
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return CodePermissionDenied
	case status == http.StatusServiceUnavailable,
		status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status == http.StatusBadGateway,
		status == http.StatusGatewayTimeout:
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

func validCode(c Code) bool {
	_, ok := codeNames[c]
	return ok
}
