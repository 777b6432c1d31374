package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/vncsmyrnk/taskboard/internal/core/ports"
)

type UserHandler struct {
	service ports.UserService
	logger  *zap.Logger
}

func NewUserHandler(service ports.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.Named("user_handler"),
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	user, err := h.service.GetByID(r.Context(), id.UserID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{ID: user.ID.String(), Email: user.Email})
}
