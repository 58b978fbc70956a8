package handler

import (
	"net/http"
)

// ============================================
// GOOGLE OAUTH ENDPOINTS
// ============================================

// GoogleAuth handles POST /api/auth/google: hands the browser client the
// provider-hosted authorization URL to open in a popup.
func (h *AuthHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RedirectTo string `json:"redirect_to"`
	}
	// A missing or empty body just means "use the default redirect".
	_ = decodeBody(r, &in)

	redirectTo := in.RedirectTo
	if redirectTo == "" {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "http://localhost:3000"
		}
		redirectTo = origin + "/api/auth/callback"
	}

	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"url": h.service.GoogleAuthURL(redirectTo),
	})
}

// GoogleURL handles GET /api/auth/google/url: the mobile variant, which
// defaults the redirect to the app's deep link scheme.
func (h *AuthHandler) GoogleURL(w http.ResponseWriter, r *http.Request) {
	redirectTo := r.URL.Query().Get("redirect_to")
	if redirectTo == "" {
		redirectTo = "myapp://auth-callback"
	}

	writeSuccess(w, http.StatusOK, "", map[string]interface{}{
		"auth_url":    h.service.GoogleAuthURL(redirectTo),
		"redirect_to": redirectTo,
	})
}

// Callback handles GET /api/auth/callback: the browser lands here after the
// provider's consent screen. The response is an HTML page that hands the
// session to the opener window via postMessage and closes itself.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		h.pages.CallbackError(w, "No authentication code provided.", false)
		return
	}

	result, err := h.service.CompleteOAuthCallback(r.Context(), code)
	if err != nil {
		h.pages.CallbackError(w, "Session creation failed", true)
		return
	}
	h.pages.CallbackSuccess(w, result)
}

// GoogleCallback handles POST /api/auth/google/callback: native apps catch
// the tokens in their deep link and post them here to finish the signin.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	creds, err := h.service.CompleteMobileCallback(r.Context(), in.AccessToken, in.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Google authentication successful", creds)
}
