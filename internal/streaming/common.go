// Package streaming implements the HTTP surface named in spec.md §4.E:
// credential minting, gated manifest/segment/key/original/presentation
// serving, mobile playlist rewriting, and upload acceptance. Handlers follow
// the teacher's Handle<Thing>(deps...) echo.HandlerFunc closure-constructor
// convention.
package streaming

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zenderock/focus-agency-server/internal/apperr"
	"github.com/zenderock/focus-agency-server/internal/authz"
	"github.com/zenderock/focus-agency-server/internal/credential"
)

// setNoStoreHeaders sets the no-store headers on every response that returns
// stored bytes (spec.md §3 invariant iv).
func setNoStoreHeaders(c echo.Context) {
	h := c.Response().Header()
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// presentedCredential extracts the bearer credential from the Authorization
// header or the ?token= query parameter; both are accepted on every gated
// route (spec.md §6).
func presentedCredential(c echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); auth != "" {
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return after
		}
	}
	return c.QueryParam("token")
}

// requestBaseURL returns the scheme+host prefix of the current request,
// used to build absolute playlist URLs for minted credentials.
func requestBaseURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}

// requireParam returns a non-empty route/query param or a BadRequest error.
func requireParam(value, name string) (string, error) {
	if value == "" {
		return "", apperr.NewBadRequest(name + " is required")
	}
	return value, nil
}

// authorize runs the gate and, on failure, writes the spec.md §4.C response
// contract directly: 403 with a generic body, distinguishing only "missing
// credential" from every other failure reason (which is logged server-side,
// never disclosed). Handlers call this and return nil immediately when ok
// is false — the response has already been written.
func authorize(c echo.Context, gate *authz.Gate, audience authz.Audience, binding authz.Binding) (*credential.Claims, bool) {
	claims, err := gate.Decide(audience, presentedCredential(c), c.Request().Referer(), binding)
	if err == nil {
		return claims, true
	}

	var gerr *authz.GateError
	msg := "forbidden"
	if errors.As(err, &gerr) {
		slog.Warn("gate decision failed", "reason", gerr.Reason, "path", c.Path())
		if gerr.Missing {
			msg = "missing credential"
		}
	} else {
		slog.Warn("gate decision failed", "error", err, "path", c.Path())
	}

	_ = c.JSON(http.StatusForbidden, echo.Map{"error": msg})
	return nil, false
}
