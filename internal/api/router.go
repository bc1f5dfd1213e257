package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/todo-api/internal/api/handlers"
	"github.com/isdelr/todo-api/internal/auth"
	"github.com/isdelr/todo-api/internal/services"
	"github.com/isdelr/todo-api/internal/websocket"
)

// TokenService issues and verifies bearer tokens.
type TokenService interface {
	auth.Verifier
	handlers.TokenIssuer
}

// Deps bundles what the router needs to build its handlers.
type Deps struct {
	Users          services.UserServiceProvider
	Tasks          services.TaskServiceProvider
	Tokens         TokenService
	Hub            *websocket.Hub
	AllowedOrigins []string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	userHandler := handlers.NewUserHandler(d.Users, d.Tokens)
	taskHandler := handlers.NewTaskHandler(d.Tasks)
	requireToken := auth.Middleware(d.Tokens)

	r.Get("/", handlers.Root)
	r.Get("/api/healthcheck", handlers.Healthcheck)

	r.Post("/users/register", userHandler.Register)
	r.Post("/register", userHandler.Register)
	r.Post("/token", userHandler.Login)

	r.Route("/tasks", func(r chi.Router) {
		r.Use(requireToken)
		r.Get("/", taskHandler.GetAll)
		r.Post("/", taskHandler.Create)
		r.Get("/{id}", taskHandler.Get)
		r.Delete("/{id}", taskHandler.Delete)
	})

	if d.Hub != nil {
		wsHandler := handlers.NewWebSocketHandler(d.Hub, d.AllowedOrigins)
		r.With(requireToken).Get("/ws/tasks", wsHandler.Serve)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not Found"}` + "\n"))
	})

	return r
}
