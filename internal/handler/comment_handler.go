package handler

import (
	"net/http"

	"microboard/internal/middleware"
	"microboard/internal/model"
	"microboard/internal/service"
	"microboard/pkg/apierror"
)

type CommentHandler struct {
	service *service.CommentService
}

func NewCommentHandler(service *service.CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

func (h *CommentHandler) ListByPost(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "postId")
	if err != nil {
		writeError(w, err)
		return
	}

	list, meta, err := h.service.ListByPost(r.Context(), model.CommentQuery{
		PostID: postID,
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, list, meta)
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	postID, err := pathID(r, "postId")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.CommentRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.service.Create(r.Context(), identity, postID, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, comment, nil)
}

func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	commentID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.CommentRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.service.Update(r.Context(), identity, commentID, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, comment, nil)
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	commentID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), identity, commentID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true, "id": commentID}, nil)
}
