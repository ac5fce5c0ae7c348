package http

import (
	"encoding/json"
	"net/http"

	"github.com/gestaozabele/identidade/internal/pipeline"
)

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody descreve falhas normalizadas.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON escreve envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data, Error: nil})
}

// WriteError escreve envelope de erro com formato consistente.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Data:  nil,
		Error: &ErrorBody{Code: code, Message: message},
	})
}

// WriteResult converte um Result do pipeline na resposta HTTP equivalente.
func WriteResult[T any](w http.ResponseWriter, result pipeline.Result[T]) {
	if result.OK() {
		WriteJSON(w, http.StatusOK, result.Value)
		return
	}

	status, code := resultStatus(result.Status)
	WriteError(w, status, code, result.Message)
}

func resultStatus(status pipeline.Status) (int, string) {
	switch status {
	case pipeline.StatusNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case pipeline.StatusUnauthorized:
		return http.StatusUnauthorized, "AUTH"
	case pipeline.StatusForbidden:
		return http.StatusForbidden, "FORBIDDEN"
	case pipeline.StatusBadRequest:
		return http.StatusBadRequest, "VALIDATION"
	case pipeline.StatusConflict:
		return http.StatusConflict, "CONFLICT"
	case pipeline.StatusDisabled:
		return http.StatusForbidden, "DISABLED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
