package middleware

import (
	"encoding/json"
	"net/http"

	"microboard/internal/model"
)

func writeEnvelope(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope(code, message))
}

func errorEnvelope(code string, message string) model.APIResponse {
	return model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	}
}
