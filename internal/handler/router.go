package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hopewhisperer/hope-whisperer/internal/handler/credential"
	"github.com/hopewhisperer/hope-whisperer/internal/handler/session"
	"github.com/hopewhisperer/hope-whisperer/internal/handler/transcript"
	middlewarePkg "github.com/hopewhisperer/hope-whisperer/internal/middleware"
	chatService "github.com/hopewhisperer/hope-whisperer/internal/service/chat"
	"github.com/hopewhisperer/hope-whisperer/internal/shell"
	"github.com/hopewhisperer/hope-whisperer/pkg/utils"
)

// NewRouter wires HTTP routes to the presentation shell.
func NewRouter(sh *shell.Shell, transcripts *chatService.Service, allowedOrigins map[string]struct{}) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(allowedOrigins))

	credentialHandler := credential.New(sh)
	sessionHandler := session.New(sh)
	wsHandler := session.NewWebSocketHandler(sh, allowedOrigins)
	transcriptHandler := transcript.New(transcripts)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		credentialHandler.RegisterRoutes(api)
		sessionHandler.RegisterRoutes(api)
		wsHandler.RegisterWebSocketRoutes(api)
		transcriptHandler.RegisterRoutes(api)
	})

	return r
}
