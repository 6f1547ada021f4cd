package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/multazero/backend/internal/apperr"
)

const maxBodyBytes = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its HTTP status. Internal errors are logged and
// answered with a generic message.
func writeError(w http.ResponseWriter, log *slog.Logger, err error, msg string) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		log.Error(msg, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": apperr.PublicMessage(err)})
}

// decodeBody reads a JSON body into v and runs struct validation on it.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.ValidationErr("request body is required")
		}
		return apperr.ValidationErr("invalid JSON")
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
			}
			return apperr.ValidationErr("invalid fields: %s", strings.Join(fields, ", "))
		}
		return apperr.ValidationErr("invalid request")
	}
	return nil
}
