// Package guard decide si una pestaña puede ver una ruta protegida.
package guard

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tyforge-web/internal/domain"
	"tyforge-web/internal/session"
)

const (
	LoginPath = "/login"

	// PagePathHeader lo envia la pagina con su ruta de navegador; sin el se usa la URL de la request.
	PagePathHeader = "X-Page-Path"
)

type Outcome string

const (
	OutcomeLoading  Outcome = "loading"
	OutcomeAllow    Outcome = "allow"
	OutcomeRedirect Outcome = "redirect"
)

// Decision es el resultado de evaluar una ruta contra un snapshot.
type Decision struct {
	Outcome  Outcome
	Location string
	From     string
}

// Decide es una funcion pura: loading mientras el store carga, allow si hay usuario,
// redirect al login recordando el origen en cualquier otro caso.
func Decide(snap domain.SessionSnapshot, path string) Decision {
	if snap.Loading {
		return Decision{Outcome: OutcomeLoading}
	}
	if snap.Authenticated {
		return Decision{Outcome: OutcomeAllow}
	}
	from := path
	if from == "" || isLoginPath(from) {
		from = "/"
	}
	return Decision{
		Outcome:  OutcomeRedirect,
		Location: LoginPath + "?from=" + url.QueryEscape(from),
		From:     from,
	}
}

func isLoginPath(path string) bool {
	p := path
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimRight(p, "/")
	return p == LoginPath
}

// StoreResolver obtiene el store de la pestaña que hizo la request.
type StoreResolver func(c *gin.Context) *session.Store

// RequireAuth protege un grupo de rutas aplicando Decide al store de la pestaña.
func RequireAuth(resolve StoreResolver, restoreWait time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if restoreWait <= 0 {
		restoreWait = 2 * time.Second
	}
	return func(c *gin.Context) {
		store := resolve(c)
		if store == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session not available"})
			c.Abort()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), restoreWait)
		store.Restore(ctx)
		cancel()

		path := PagePath(c)
		decision := Decide(store.Snapshot(), path)
		switch decision.Outcome {
		case OutcomeAllow:
			c.Next()
		case OutcomeLoading:
			c.Header("Retry-After", "1")
			c.JSON(http.StatusAccepted, gin.H{"status": "loading"})
			c.Abort()
		default:
			store.SetPendingRedirect(decision.From)
			logger.Debug("guard redirect", zap.String("from", decision.From))
			if WantsJSON(c) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "redirect": decision.Location})
			} else {
				c.Redirect(http.StatusFound, decision.Location)
			}
			c.Abort()
		}
	}
}

// PagePath devuelve la ruta de navegador de la request. El header solo se acepta si es
// una ruta local; "//host" o "/\host" terminarian en otro origen al redirigir tras el login.
func PagePath(c *gin.Context) string {
	if p := strings.TrimSpace(c.GetHeader(PagePathHeader)); IsLocalPath(p) {
		return p
	}
	return c.Request.URL.RequestURI()
}

// IsLocalPath informa si p es una ruta absoluta del mismo origen.
func IsLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || (len(p) > 1 && (p[1] == '/' || p[1] == '\\')) {
		return false
	}
	return !strings.ContainsAny(p, "\r\n")
}

// WantsJSON distingue llamadas XHR de navegacion directa.
func WantsJSON(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") || c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}
