package credential

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	sessionService "github.com/hopewhisperer/hope-whisperer/internal/service/session"
	"github.com/hopewhisperer/hope-whisperer/internal/shell"
	"github.com/hopewhisperer/hope-whisperer/pkg/utils"
)

// Shell is the part of the presentation shell this handler drives.
type Shell interface {
	SubmitCredential(ctx context.Context, raw string) error
	ResetCredential(ctx context.Context)
	View() shell.View
}

// Handler API Key 设置与重置
type Handler struct {
	shell Shell
}

// New 创建凭证处理器
func New(sh Shell) *Handler {
	return &Handler{shell: sh}
}

// RegisterRoutes 注册凭证相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Put("/credential", h.handleSubmit)
	r.Delete("/credential", h.handleReset)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		APIKey string `json:"apiKey"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.shell.SubmitCredential(r.Context(), payload.APIKey); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sessionService.ErrConfiguration) {
			status = http.StatusBadRequest
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.shell.View())
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.shell.ResetCredential(r.Context())
	utils.RespondJSON(w, http.StatusOK, h.shell.View())
}
