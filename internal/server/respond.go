package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/knoguchi/supportagent/internal/apperr"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the status for err's kind. Wrapped causes are
// logged by the caller and never sent to clients.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), toErrorResponse(err))
}

func toErrorResponse(err error) errorResponse {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return errorResponse{Error: string(appErr.Kind), Detail: appErr.Message}
	}
	return errorResponse{Error: "internal_error", Detail: "An unexpected error occurred."}
}

// decode reads a JSON body into dst and runs struct validation.
func decode(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return apperr.InvalidInput("request body must be valid JSON")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperr.InvalidInput(err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.InvalidInput(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := jsonName(fe.StructField())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func jsonName(structField string) string {
	switch structField {
	case "SessionID":
		return "session_id"
	case "Message":
		return "message"
	case "Operator":
		return "operator"
	default:
		return strings.ToLower(structField)
	}
}
