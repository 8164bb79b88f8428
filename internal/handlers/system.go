package handlers

import (
	"context"
	"log"
	"net/http"

	"kyro-backend/internal/models"
)

type modelLister interface {
	ListModels(ctx context.Context) ([]models.ModelInfo, error)
}

type SystemHandler struct {
	models modelLister
}

func NewSystemHandler(lister modelLister) *SystemHandler {
	return &SystemHandler{models: lister}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.StatusResponse{Status: models.StatusOK, Message: "Kyro is running!"})
}

func (h *SystemHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	list, err := h.models.ListModels(r.Context())
	if err != nil {
		log.Printf("[models] list failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ListModelsResponse{Models: []models.ModelInfo{}, Status: models.StatusError})
		return
	}

	writeJSON(w, http.StatusOK, models.ListModelsResponse{Models: list, Status: models.StatusSuccess})
}
