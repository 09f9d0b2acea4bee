package handler

import (
	"net/http"

	"microboard/internal/model"
	"microboard/internal/service"
)

type UserHandler struct {
	service *service.AuthService
}

func NewUserHandler(service *service.AuthService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var payload model.BulkUsersRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	users, err := h.service.BulkUsers(r.Context(), payload.UserIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.UserList{Users: users}, nil)
}
