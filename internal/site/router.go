// Package site is the demo web site served by the gosession binary: a public
// home page, login and logout handlers, and guarded account and admin pages.
package site

import (
	"encoding/json"
	"errors"
	"html"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
)

// Options configures NewRouter.
type Options struct {
	Logger *slog.Logger
	// GraphQL, when set, is mounted at /graphql. The binary uses it for the
	// embedded development API.
	GraphQL http.Handler
	// AdminRole guards /admin. Defaults to "admin".
	AdminRole string
}

type handlers struct {
	engine *goSession.Engine
	logger *slog.Logger
}

// NewRouter wires the site onto a chi router.
func NewRouter(engine *goSession.Engine, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = engine.Logger()
	}
	if opts.AdminRole == "" {
		opts.AdminRole = "admin"
	}
	h := &handlers{engine: engine, logger: opts.Logger}
	loginPath := engine.Config().Guard.LoginPath

	r := chi.NewRouter()
	r.Use(middleware.Logging(opts.Logger))

	if opts.GraphQL != nil {
		r.Method(http.MethodPost, "/graphql", opts.GraphQL)
	}

	r.Get("/", h.home)
	r.Get(loginPath, h.loginForm)
	r.Post(loginPath, h.login)
	r.Post("/auth/register", h.register)
	r.Post("/auth/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(engine))
		r.Get("/account", h.account)

		r.With(middleware.RequireRole(opts.AdminRole)).Get("/admin", h.admin)
	})
	return r
}

func (h *handlers) home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("gosession demo\n"))
}

func (h *handlers) loginForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	next := safeNext(r.URL.Query().Get(h.engine.Config().Guard.NextParam))
	_, _ = w.Write([]byte(`<form method="post"><input type="hidden" name="next" value="` +
		html.EscapeString(next) + `"><input name="email"><input name="password" type="password"><button>Sign in</button></form>`))
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	payload, err := h.engine.Login(r.Context(), goSession.Credentials{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	})
	h.finish(w, r, payload, err)
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	payload, err := h.engine.Register(r.Context(), goSession.Registration{
		Name:     r.PostForm.Get("name"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	})
	h.finish(w, r, payload, err)
}

// finish writes the session cookies and redirects to the requested page.
func (h *handlers) finish(w http.ResponseWriter, r *http.Request, payload *goSession.AuthPayload, err error) {
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, goSession.ErrTransport) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err)
		return
	}
	if err := h.engine.IssueSession(goSession.NewHTTPCookieJar(w, r), payload); err != nil {
		h.logger.ErrorContext(r.Context(), "issue session failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.Redirect(w, r, safeNext(r.PostForm.Get("next")), http.StatusSeeOther)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearSession(goSession.NewHTTPCookieJar(w, r))
	_ = h.engine.Logout(r.Context())
	http.Redirect(w, r, h.engine.Config().Client.HomePath, http.StatusSeeOther)
}

func (h *handlers) account(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, res.User)
}

func (h *handlers) admin(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"admin": res.User.Email})
}

// safeNext only follows same-site absolute paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
