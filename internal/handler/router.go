package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vokorun/runclub/internal/auth"
	"github.com/vokorun/runclub/internal/blob"
	"github.com/vokorun/runclub/internal/service"
)

// Deps are the collaborators the router serves.
type Deps struct {
	Sessions      *auth.Sessions
	Resolver      *auth.Resolver
	SignIn        *auth.Materializer
	Provider      auth.Provider // nil disables the sign-in routes
	Events        *service.EventService
	Registrations *service.RegistrationService
	Blobs         *blob.Store
	CORSOrigin    string // comma-separated; empty disables CORS
	Log           *slog.Logger
}

// NewRouter builds the HTTP handler for the whole API.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Logger(log))
	r.Use(chimw.Recoverer)
	origins := splitOrigins(d.CORSOrigin)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health
	r.Get("/health", HealthCheck)

	// Uploaded images
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(d.Blobs.Files())))

	authH := NewAuthHandler(d.Sessions, d.SignIn, d.Provider, log)
	eventH := NewEventHandler(d.Events, d.Registrations, log)
	uploadH := NewUploadHandler(d.Blobs, log)

	r.Group(func(r chi.Router) {
		r.Use(CrossOrigin(origins, log))
		r.Use(d.Sessions.Manager().LoadAndSave)
		r.Use(Identity(d.Sessions, d.Resolver))

		r.Route("/auth", func(r chi.Router) {
			r.Get("/google/login", authH.Login)
			r.Get("/google/callback", authH.Callback)
			r.Post("/logout", authH.Logout)
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/session", authH.Session)

			r.Route("/events", func(r chi.Router) {
				r.Get("/", eventH.ListEvents)
				r.Post("/", eventH.CreateEvent)
				r.Get("/{id}", eventH.GetEvent)
				r.Put("/{id}", eventH.UpdateEvent)
				r.Delete("/{id}", eventH.DeleteEvent)
				r.Post("/{id}/registration", eventH.ToggleRegistration)
				r.Get("/{id}/registrants", eventH.ListRegistrants)
			})

			r.Get("/me/events", eventH.MyEvents)
			r.Get("/admin/events", eventH.AdminEvents)
			r.Post("/uploads", uploadH.Upload)
		})
	})

	return r
}

func splitOrigins(s string) []string {
	var origins []string
	for _, p := range strings.Split(s, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
