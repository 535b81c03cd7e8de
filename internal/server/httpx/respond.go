// Package httpx holds the HTTP plumbing shared by the API and document services:
// JSON replies, error mapping and middleware.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/convert"
	"github.com/and161185/grocerly/internal/errs"
)

// MaxJSONBody bounds decoded request bodies.
const MaxJSONBody = 1 << 20

var errEmptyBody = fmt.Errorf("%w: empty body", errs.ErrValidation)

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Fail writes an error body with an explicit status.
func Fail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, convert.ErrorResponse{Error: msg})
}

// StatusFor maps domain sentinels onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation),
		errors.Is(err, errs.ErrUnsupportedType),
		errors.Is(err, errs.ErrNoText):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrVersionConflict), errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// Error maps err to a reply. Internal errors are logged and hidden.
func Error(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		Fail(w, status, "internal error")
		return
	}
	Fail(w, status, err.Error())
}

// Decode reads a JSON body into v, rejecting unknown fields and trailing data.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("%w: bad json: %v", errs.ErrValidation, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after json body", errs.ErrValidation)
	}
	return nil
}

// DecodeOptional is Decode that accepts an empty body and leaves v untouched.
func DecodeOptional(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := Decode(w, r, v)
	if err != nil && errors.Is(err, errEmptyBody) {
		return nil
	}
	return err
}
