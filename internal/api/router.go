package api

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/ender-world-manager/internal/api/handlers"
	"github.com/isdelr/ender-world-manager/internal/properties"
	"github.com/isdelr/ender-world-manager/internal/services"
	"github.com/isdelr/ender-world-manager/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed web/index.html
var indexHTML []byte

// Services bundles everything the router dispatches to.
type Services struct {
	Worlds     services.WorldServiceProvider
	Backups    services.BackupServiceProvider
	Sync       services.SyncServiceProvider
	Status     services.StatusServiceProvider
	Events     services.EventServiceProvider
	Properties *properties.Store
	Hub        *websocket.Hub
}

// NewRouter creates and configures a new Chi router.
func NewRouter(svc Services, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	worldHandler := handlers.NewWorldHandler(svc.Worlds)
	backupHandler := handlers.NewBackupHandler(svc.Backups, svc.Sync)
	serverHandler := handlers.NewServerHandler(svc.Status, svc.Sync, svc.Properties)
	eventHandler := handlers.NewEventHandler(svc.Events)
	wsHandler := handlers.NewWebSocketHandler(svc.Hub)

	r.Route("/api", func(r chi.Router) {
		r.NotFound(apiNotFound)
		r.MethodNotAllowed(apiMethodNotAllowed)

		r.Get("/status", serverHandler.Status)
		r.Post("/rcon", serverHandler.Command)
		r.Get("/properties", serverHandler.Properties)
		r.Get("/gdrive/status", serverHandler.SyncStatus)

		r.Route("/worlds", func(r chi.Router) {
			r.Get("/", worldHandler.GetAll)
			r.Post("/create", worldHandler.Create)
			r.Post("/delete", worldHandler.Delete)
			r.Post("/backup", backupHandler.Create)
		})

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", backupHandler.GetAll)
			r.Post("/upload", backupHandler.Upload)
			r.Get("/remote", backupHandler.GetRemote)
		})

		r.Get("/events", eventHandler.GetRecent)
		r.Get("/ws", wsHandler.Serve)
	})

	r.Handle("/metrics", promhttp.Handler())

	// Everything else is the control surface.
	r.NotFound(serveIndex)
	r.MethodNotAllowed(serveIndex)

	return r
}

func apiNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not found"}` + "\n"))
}

func apiMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	w.Write([]byte(`{"error":"Method not allowed"}` + "\n"))
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexHTML)
}
