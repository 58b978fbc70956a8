package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// Recovery returns middleware that converts a handler panic into a 500
// response instead of a crashed process. API paths get the JSON error
// envelope; browser paths get a plain error page. The panic detail is only
// included in development mode.
func Recovery(development bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)

					if strings.HasPrefix(r.URL.Path, "/api/") {
						body := map[string]interface{}{
							"success": false,
							"error":   "Internal server error",
						}
						if development {
							body["message"] = fmt.Sprint(rec)
						}
						w.Header().Set("Content-Type", "application/json")
						w.WriteHeader(http.StatusInternalServerError)
						_ = json.NewEncoder(w).Encode(body)
						return
					}

					w.Header().Set("Content-Type", "text/html; charset=utf-8")
					w.WriteHeader(http.StatusInternalServerError)
					detail := ""
					if development {
						detail = "<pre>" + escapeHTML(fmt.Sprint(rec)) + "</pre>"
					}
					fmt.Fprintf(w, errorPage, detail)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// escapeHTML escapes the few characters that matter when inlining panic text
// into the error page.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

const errorPage = `<!DOCTYPE html>
<html>
<head>
  <title>Server Error</title>
  <style>
    body { font-family: sans-serif; text-align: center; padding: 50px; }
    h1 { color: #dc2626; }
    pre { text-align: left; background: #f3f4f6; padding: 20px; border-radius: 5px; }
  </style>
</head>
<body>
  <h1>500 - Internal Server Error</h1>
  <p>Something went wrong on our server.</p>
  %s
  <p><a href="/">Go to Home</a></p>
</body>
</html>
`
