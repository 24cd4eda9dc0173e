package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hopewhisperer/hope-whisperer/internal/permission"
	sessionService "github.com/hopewhisperer/hope-whisperer/internal/service/session"
	"github.com/hopewhisperer/hope-whisperer/internal/shell"
	"github.com/hopewhisperer/hope-whisperer/pkg/utils"
)

// Shell is the part of the presentation shell this handler drives.
type Shell interface {
	View() shell.View
	Subscribe() (<-chan shell.View, func())
	RequestPermission(ctx context.Context) permission.State
	SetAgentID(agentID string) error
	SetVolume(ctx context.Context, volume float64) error
	StartConversation(ctx context.Context) error
	EndConversation(ctx context.Context)
	DismissNotice(id string) error
}

// Handler 语音会话控制与状态推送
type Handler struct {
	shell Shell
}

// New 创建会话处理器
func New(sh Shell) *Handler {
	return &Handler{shell: sh}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/state", h.handleState)
	r.Get("/events", h.handleEvents)
	r.Post("/permission", h.handlePermission)
	r.Put("/session/agent", h.handleSetAgent)
	r.Put("/session/volume", h.handleSetVolume)
	r.Post("/session/start", h.handleStart)
	r.Post("/session/end", h.handleEnd)
	r.Delete("/notices/{noticeID}", h.handleDismissNotice)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.shell.View())
}

func (h *Handler) handlePermission(w http.ResponseWriter, r *http.Request) {
	h.shell.RequestPermission(r.Context())
	utils.RespondJSON(w, http.StatusOK, h.shell.View())
}

func (h *Handler) handleSetAgent(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AgentID string `json:"agentId"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.shell.SetAgentID(payload.AgentID); err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.shell.View())
}

func (h *Handler) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Volume *float64 `json:"volume"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Volume == nil {
		utils.RespondError(w, http.StatusBadRequest, "volume is required")
		return
	}

	if err := h.shell.SetVolume(r.Context(), *payload.Volume); err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.shell.View())
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.shell.StartConversation(r.Context()); err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, h.shell.View())
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	h.shell.EndConversation(r.Context())
	utils.RespondJSON(w, http.StatusOK, h.shell.View())
}

func (h *Handler) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	if err := h.shell.DismissNotice(chi.URLParam(r, "noticeID")); err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.shell.View())
}

// respondSessionError maps the session error taxonomy onto HTTP statuses.
func respondSessionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sessionService.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, sessionService.ErrConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, sessionService.ErrConnection):
		status = http.StatusBadGateway
	case errors.Is(err, sessionService.ErrSessionActive), errors.Is(err, sessionService.ErrStartCancelled):
		status = http.StatusConflict
	case errors.Is(err, shell.ErrNoticeNotFound):
		status = http.StatusNotFound
	}
	utils.RespondError(w, status, err.Error())
}
