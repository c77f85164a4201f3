// Provides middleware for standardizing HTTP handlers.

package server

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/inshira2021/producerhub/internal/server/dto"
	"github.com/inshira2021/producerhub/internal/server/handlers"
)

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path parameters can be extracted by tagging struct fields with `path:"name"`
// and query parameters with `query:"name"`.
// *In must implement dto.Validatable.
//
// Example:
//
//	type GetMovieRequest struct {
//	    Ref string `path:"ref"`
//	}
//
//	func (h *Handler) GetMovie(ctx context.Context, req *GetMovieRequest) (*Response, error)
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), cfg *handlers.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		input := new(In)
		if !readAndDecodeBody(ctx, w, r, input, cfg) {
			return
		}

		populatePathParams(r, input)
		populateQueryParams(r, input)

		if err := PtrIn(input).Validate(); err != nil {
			handleValidationError(ctx, w, err)
			return
		}

		output, err := fn(ctx, PtrIn(input))
		writeJSONResponse(ctx, w, output, err)
	})
}

// readAndDecodeBody reads the request body with size limit and decodes JSON into input.
// Returns false if an error occurred and was written to the response.
func readAndDecodeBody[In any](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In, cfg *handlers.Config) bool {
	if cfg != nil && cfg.MaxRequestBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxRequestBodyBytes)
	}

	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		if maxBytesErr := checkMaxBytesError(err); maxBytesErr != nil {
			handlers.WriteError(w, dto.PayloadTooLarge(maxBytesErr.Limit))
			return false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "err", err)
		handlers.WriteError(w, dto.BadRequest("Failed to read request body"))
		return false
	}

	if len(bytes.TrimSpace(body)) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			slog.WarnContext(ctx, "Failed to decode request body", "err", err)
			handlers.WriteError(w, dto.BadRequest("Invalid request body"))
			return false
		}
	}
	return true
}

// checkMaxBytesError checks if an error is a MaxBytesError and returns it, or nil.
func checkMaxBytesError(err error) *http.MaxBytesError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return maxBytesErr
	}
	return nil
}

// writeJSONResponse writes a JSON response or error response.
//
// The full error, including wrapped causes, is logged; the client only gets
// the API message.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		ews := handlers.ToAPIError(err)
		level := slog.LevelWarn
		if ews.StatusCode() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "Handler error", "err", err, "statusCode", ews.StatusCode(), "code", ews.Code())
		handlers.WriteError(w, ews)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(output); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// handleValidationError handles a validation error from a request's Validate method.
func handleValidationError(ctx context.Context, w http.ResponseWriter, err error) {
	var ews dto.ErrorWithStatus
	if !errors.As(err, &ews) {
		ews = dto.BadRequest(err.Error())
	}
	slog.WarnContext(ctx, "Validation error", "err", err, "statusCode", ews.StatusCode(), "code", ews.Code())
	handlers.WriteError(w, ews)
}

// populatePathParams extracts path parameters from the request and populates
// struct fields tagged with `path:"paramName"`, including fields of embedded
// structs.
func populatePathParams(r *http.Request, input any) {
	forEachTaggedField(input, "path", func(tag string) string { return r.PathValue(tag) })
}

// populateQueryParams extracts query parameters from the request and populates
// struct fields tagged with `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) {
	query := r.URL.Query()
	forEachTaggedField(input, "query", query.Get)
}

// forEachTaggedField sets every field of the struct pointed to by input that
// carries the tag key to lookup(tag). Empty values are skipped.
func forEachTaggedField(input any, key string, lookup func(string) string) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		fieldVal := elem.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			forEachTaggedField(fieldVal.Addr().Interface(), key, lookup)
			continue
		}
		tag := field.Tag.Get(key)
		if tag == "" {
			continue
		}
		paramValue := lookup(tag)
		if paramValue == "" {
			continue
		}
		switch field.Type.Kind() {
		case reflect.String:
			fieldVal.SetString(paramValue)
		case reflect.Int, reflect.Int64:
			if v, err := strconv.ParseInt(paramValue, 10, 64); err == nil {
				fieldVal.SetInt(v)
			}
		case reflect.Bool:
			if v, err := strconv.ParseBool(paramValue); err == nil {
				fieldVal.SetBool(v)
			}
		default:
			if unmarshaler, ok := fieldVal.Addr().Interface().(encoding.TextUnmarshaler); ok {
				_ = unmarshaler.UnmarshalText([]byte(paramValue))
			}
		}
	}
}
