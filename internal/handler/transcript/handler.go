package transcript

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hopewhisperer/hope-whisperer/internal/model/chat"
	chatService "github.com/hopewhisperer/hope-whisperer/internal/service/chat"
	"github.com/hopewhisperer/hope-whisperer/pkg/utils"
)

// Transcripts reads the transcript log.
type Transcripts interface {
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error)
}

// Handler 会话记录查询
type Handler struct {
	transcripts Transcripts
}

// New 创建记录处理器
func New(transcripts Transcripts) *Handler {
	return &Handler{transcripts: transcripts}
}

// RegisterRoutes 注册记录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/transcripts/{sessionID}", h.handleGet)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.transcripts.GetSession(r.Context(), sessionID)
	if err != nil {
		respondLookupError(w, err)
		return
	}
	messages, err := h.transcripts.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		respondLookupError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"session":  session,
		"messages": messages,
	})
}

func respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
