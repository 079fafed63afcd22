package router

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/whiteheaddmark/Observatory-Databases/errors"
)

// envelope is the uniform success response body. Cacheability is always
// stated explicitly so clients never have to guess.
type envelope struct {
	Data     any       `json:"data"`
	Links    links     `json:"links"`
	Cache    cacheInfo `json:"cache"`
	Version  string    `json:"version"`
	Warnings []string  `json:"warnings,omitempty"`
}

type links struct {
	Self    string            `json:"self"`
	Related map[string]string `json:"related,omitempty"`
}

type cacheInfo struct {
	Cacheable     bool `json:"cacheable"`
	MaxAgeSeconds int  `json:"maxAgeSeconds,omitempty"`
}

// errorBody is the uniform error response body
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind           string   `json:"kind"`
	Message        string   `json:"message"`
	FailedAdapters []string `json:"failed_adapters,omitempty"`
	RequestID      string   `json:"request_id,omitempty"`
}

// sizeError marks a request body over the configured cap
type sizeError struct {
	limit int64
}

func (e *sizeError) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", e.limit)
}

// malformedBodyError marks a request body that is not valid JSON
type malformedBodyError struct{}

func (e *malformedBodyError) Error() string {
	return "request body is not valid JSON"
}

func (r *Router) writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		r.logger.Error("encode response envelope", "error", err)
	}
}

// writeError renders a classified error as the uniform error body. Internal
// detail stays in the log; the client sees the kind and a short message.
func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error) {
	var status int
	var kind, message string
	var failed []string

	switch e := err.(type) {
	case *sizeError:
		status = http.StatusRequestEntityTooLarge
		kind = "PayloadTooLarge"
		message = e.Error()
	case *malformedBodyError:
		status = http.StatusBadRequest
		kind = "MalformedRequestBody"
		message = e.Error()
	default:
		k := errors.KindOf(err)
		status = k.HTTPStatus()
		kind = k.String()
		message = err.Error()
		failed = errors.FailedAdapters(err)
		if k == errors.KindInternal {
			// Never leak internals to the caller.
			message = "internal gateway error"
		}
	}

	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"kind", kind,
			"request_id", requestID(req),
			"error", err,
		)
	} else {
		r.logger.Debug("request rejected",
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"kind", kind,
			"request_id", requestID(req),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := errorBody{Error: errorDetail{
		Kind:           kind,
		Message:        message,
		FailedAdapters: failed,
		RequestID:      requestID(req),
	}}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		r.logger.Error("encode error body", "error", encErr)
	}
}
