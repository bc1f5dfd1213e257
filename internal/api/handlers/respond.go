package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/isdelr/todo-api/internal/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxFormMemory = 1 << 20

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeDetail writes the {"detail": msg} error body.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// writeError maps service errors to responses. Unclassified errors are logged
// with ev's fields and reported as a bare internal error.
func writeError(w http.ResponseWriter, err error, ev *zerolog.Event, msg string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		ev.Discard()
		writeDetail(w, http.StatusUnprocessableEntity, validationDetail(err))
	case errors.Is(err, services.ErrNotFound):
		ev.Discard()
		writeDetail(w, http.StatusNotFound, "Task not found")
	default:
		ev.Err(err).Msg(msg)
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// validationDetail drops the sentinel prefix from a wrapped validation error.
func validationDetail(err error) string {
	msg := err.Error()
	if detail, ok := strings.CutPrefix(msg, services.ErrValidation.Error()+": "); ok {
		return detail
	}
	return msg
}

// params holds request inputs gathered from the query string and the body.
type params url.Values

// readParams merges query parameters with a urlencoded, multipart or JSON
// body of at most maxFormMemory bytes. JSON values must be strings.
func readParams(w http.ResponseWriter, r *http.Request) (params, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		values := r.URL.Query()
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON body", services.ErrValidation)
		}
		for k, v := range body {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a string", services.ErrValidation, k)
			}
			values.Set(k, s)
		}
		return params(values), nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, fmt.Errorf("%w: invalid form body", services.ErrValidation)
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("%w: invalid form body", services.ErrValidation)
		}
	}
	return params(r.Form), nil
}

// required returns the named values, failing on the first one absent.
func (p params) required(names ...string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		vals, ok := p[name]
		if !ok || len(vals) == 0 {
			return nil, fmt.Errorf("%w: field required: %s", services.ErrValidation, name)
		}
		out = append(out, vals[0])
	}
	return out, nil
}
