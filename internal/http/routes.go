package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/quayside/authgate/internal/domain/auth"
	"github.com/quayside/authgate/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Sessions *service.SessionService
	Clients  *service.ClientService
	Logger   *slog.Logger // Logger for request and HTTP errors (optional)
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	if services.Logger == nil {
		services.Logger = slog.Default()
	}

	mux := http.NewServeMux()

	ssoHandlers := &SSOHandlers{Svc: services.Sessions, Logger: services.Logger}
	clientHandlers := &ClientHandlers{Svc: services.Clients}

	registerSSORoutes(mux, ssoHandlers, services.Sessions)
	registerClientRoutes(mux, clientHandlers, services.Sessions)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}

func registerSSORoutes(mux *http.ServeMux, h *SSOHandlers, sessions SessionVerifier) {
	mux.HandleFunc("GET "+SSOBasePath, h.Login)
	mux.HandleFunc("GET "+SSOCallbackPath, h.Callback)
	mux.Handle("GET /v1/session", RequireSession(sessions)(http.HandlerFunc(h.Session)))
}

func registerClientRoutes(mux *http.ServeMux, h *ClientHandlers, sessions SessionVerifier) {
	// Delete is the one client operation gated on a scope alone, so it is
	// rejected at the route before the handler runs.
	requireWrite := RequireScope(domainauth.ScopeClientWrite)

	registerCRUD(mux, crudRoutes{
		Base:       "/v1/clients",
		Create:     h.Create,
		List:       h.List,
		GetByID:    h.Get,
		Update:     h.Update,
		Delete:     requireWrite(http.HandlerFunc(h.Delete)).ServeHTTP,
		Middleware: RequireSession(sessions),
	})
}

type crudRoutes struct {
	Base       string
	Create     http.HandlerFunc
	List       http.HandlerFunc
	GetByID    http.HandlerFunc
	Update     http.HandlerFunc
	Delete     http.HandlerFunc
	Middleware func(http.Handler) http.Handler
}

func registerCRUD(mux *http.ServeMux, cfg crudRoutes) {
	if cfg.Base == "" {
		panic("registerCRUD: Base must not be empty") //nolint:forbidigo // Fail fast during server setup.
	}
	if cfg.Create == nil ||
		cfg.List == nil ||
		cfg.GetByID == nil ||
		cfg.Update == nil ||
		cfg.Delete == nil {
		panic("registerCRUD: nil handler for base " + cfg.Base) //nolint:forbidigo // Fail fast during server setup.
	}

	wrap := func(h http.HandlerFunc) http.Handler {
		if cfg.Middleware != nil {
			return cfg.Middleware(h)
		}
		return h
	}
	mux.Handle("POST "+cfg.Base, wrap(cfg.Create))
	mux.Handle("GET "+cfg.Base, wrap(cfg.List))
	mux.Handle("GET "+cfg.Base+"/{id}", wrap(cfg.GetByID))
	mux.Handle("PATCH "+cfg.Base+"/{id}", wrap(cfg.Update))
	mux.Handle("DELETE "+cfg.Base+"/{id}", wrap(cfg.Delete))
}
