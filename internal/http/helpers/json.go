// Package helpers holds request decoding and response writing shared by the
// controllers.
package helpers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authkit/internal/http/errors"
)

// MaxBodyBytes limita los bodies JSON de la API.
const MaxBodyBytes = 64 << 10

// ReadJSON decodifica un único objeto JSON rechazando campos desconocidos.
// Devuelve un *errors.AppError listo para WriteError.
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any) *errors.AppError {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "application/json") {
		return errors.ErrInvalidJSON.WithDetail("content-type must be application/json")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return errors.ErrBodyTooLarge
		case stderrors.Is(err, io.EOF):
			return errors.ErrInvalidJSON.WithDetail("empty body")
		default:
			return errors.ErrInvalidJSON.WithDetail(err.Error())
		}
	}
	if dec.More() {
		return errors.ErrInvalidJSON.WithDetail("body must contain a single object")
	}
	return nil
}

// WriteJSON serializa v con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
