package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/billing-manager/internal/service"
	"github.com/sakif/billing-manager/web"
)

// ============================================
// HTML PAGES
// ============================================

// Pages renders the browser-facing pages: the landing page, the login demo,
// the OAuth callback hand-off, and the HTML 404.
type Pages struct {
	tmpl *template.Template
}

// NewPages parses the embedded page templates. Failing here is a startup
// error, not a request error.
func NewPages() (*Pages, error) {
	tmpl, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Pages{tmpl: tmpl}, nil
}

func (p *Pages) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := p.tmpl.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("page not rendered", "template", name, "error", err)
	}
}

// Home serves GET /.
func (p *Pages) Home(w http.ResponseWriter, r *http.Request) {
	p.render(w, http.StatusOK, "home.html", nil)
}

// Login serves GET /login, the in-browser authentication demo.
func (p *Pages) Login(w http.ResponseWriter, r *http.Request) {
	p.render(w, http.StatusOK, "login.html", nil)
}

// NotFound serves the HTML 404 for non-API paths.
func (p *Pages) NotFound(w http.ResponseWriter, r *http.Request) {
	p.render(w, http.StatusNotFound, "not_found.html", nil)
}

// CallbackSuccess serves the page the OAuth popup lands on after a
// successful signin. Its script posts the session to the opener window,
// mirrors it into localStorage, and closes the popup.
func (p *Pages) CallbackSuccess(w http.ResponseWriter, result *service.OAuthResult) {
	p.render(w, http.StatusOK, "callback_success.html", result)
}

// CallbackError serves the OAuth failure page. notify controls whether the
// page posts a google-auth-error message to the opener; the no-code case
// renders a plain page instead.
func (p *Pages) CallbackError(w http.ResponseWriter, message string, notify bool) {
	p.render(w, http.StatusOK, "callback_error.html", map[string]interface{}{
		"Message": message,
		"Notify":  notify,
	})
}
