package handler

import (
	"net/http"

	"microboard/internal/middleware"
	"microboard/internal/model"
	"microboard/internal/service"
	"microboard/pkg/apierror"
)

type PostHandler struct {
	service *service.PostService
}

func NewPostHandler(service *service.PostService) *PostHandler {
	return &PostHandler{service: service}
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	list, meta, err := h.service.List(r.Context(), model.PostQuery{
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, list, meta)
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var viewer *model.Identity
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		viewer = &identity
	}

	post, err := h.service.Get(r.Context(), postID, viewer)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, post, nil)
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	var payload model.CreatePostRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.service.Create(r.Context(), identity, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, post, nil)
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdatePostRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.service.Update(r.Context(), identity, postID, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, post, nil)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	postID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), identity, postID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true, "id": postID}, nil)
}
