package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/oarkflow/trusty"
)

// Deps carries the constructed collaborators the router serves.
type Deps struct {
	Engine    *trusty.AccessControlEngine
	Directory *trusty.Directory
}

// Options tunes transport behavior. Verify, when set, gates every /v1 route
// behind the caller-supplied token check; identity verification itself
// happens upstream.
type Options struct {
	EnableCORS bool
	Verify     TokenVerifier
}

// NewRouter builds the HTTP surface: a health probe, the decision endpoint,
// and the administrative CRUD routes.
func NewRouter(d Deps, opts Options, mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if opts.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"User-Agent", "Content-Type", "Authorization"},
			MaxAge:         300,
		}))
	}
	for _, m := range mw {
		r.Use(m)
	}

	decisions := NewDecisionHandler(d.Engine)
	tenants := NewTenantHandler(d.Directory)
	users := NewUserHandler(d.Directory)
	roles := NewRoleHandler(d.Directory)

	r.Get("/healthz", healthz)

	r.Route("/v1", func(v1 chi.Router) {
		if opts.Verify != nil {
			v1.Use(RequireToken(opts.Verify))
		}

		v1.Post("/isallowed", decisions.IsAllowed)

		v1.Route("/tenants", func(t chi.Router) {
			t.Post("/", tenants.Add)
			t.Get("/", tenants.List)
			t.Get("/{id}", tenants.Get)
			t.Patch("/{id}", tenants.Update)
			t.Delete("/{id}", tenants.Delete)
			t.Patch("/{id}/subscribe/{product}", tenants.Subscribe)
		})

		v1.Route("/users", func(u chi.Router) {
			u.Post("/", users.Add)
			u.Get("/", users.List)
			u.Get("/{id}", users.Get)
			u.Patch("/{id}", users.Update)
			u.Delete("/{id}", users.Delete)
			u.Patch("/{id}/associate/{tenant}", users.Associate)
			u.Post("/{id}/roles/{role}", users.AssignRole)
			u.Delete("/{id}/roles/{role}", users.RevokeRole)
		})

		v1.Get("/userinfo/{externalID}", users.Info)

		v1.Route("/roles", func(rr chi.Router) {
			rr.Post("/", roles.Add)
			rr.Get("/", roles.List)
			rr.Get("/{id}", roles.Get)
			rr.Patch("/{id}", roles.Update)
			rr.Delete("/{id}", roles.Delete)
		})
	})

	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
