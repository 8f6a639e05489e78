// Package authz implements the per-audience authorization policies that
// stand between a verified credential and the bytes a streaming endpoint is
// about to return. The gate is the only authority that decides to serve
// stored content.
package authz

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/zenderock/focus-agency-server/internal/credential"
)

// Audience selects which policy Decide applies.
type Audience int

const (
	Web Audience = iota
	Mobile
	Download
)

// Binding is the typed set of route identifiers a handler asks the gate to
// check, replacing the original service's dynamic kwargs introspection
// (spec.md §9). A zero-value field means the route does not name that
// identifier, and the gate does not constrain it, with two exceptions on the
// download policy: Type is always compared strictly, and Filename is always
// compared when the require-filename flag is set.
type Binding struct {
	UserID   string
	Filename string
	VideoID  string
	Rel      string
	Type     credential.DownloadType
	CourseID string
	ModuleID string
}

// Gate evaluates credentials against a configured referrer allow-list and
// the require-filename flag for download routes.
type Gate struct {
	credentials     *credential.Service
	allowedOrigins  []string
	requireFilename bool
}

// NewGate builds a Gate. allowedOrigins are the origins (scheme://host)
// accepted by the web policy; a Referer passes when its own origin equals
// one of them (see refererAllowed).
func NewGate(credentials *credential.Service, allowedOrigins []string, requireFilename bool) *Gate {
	return &Gate{
		credentials:     credentials,
		allowedOrigins:  allowedOrigins,
		requireFilename: requireFilename,
	}
}

// DecisionReason explains, for server-side logging only, why a gate check
// failed. It is never returned to the caller (spec.md §4.C: "the reason is
// logged but not disclosed").
type DecisionReason string

const (
	ReasonMissingCredential DecisionReason = "missing credential"
	ReasonInvalidCredential DecisionReason = "invalid or expired credential"
	ReasonWrongPlatform     DecisionReason = "platform mismatch"
	ReasonBindingMismatch   DecisionReason = "binding mismatch"
	ReasonMissingReferrer   DecisionReason = "missing referrer"
	ReasonBadReferrer       DecisionReason = "referrer not allowed"
)

// Decide verifies presented and checks it against binding under audience's
// policy. referer is the request's Referer header value, consulted only by
// the web policy.
func (g *Gate) Decide(audience Audience, presented, referer string, binding Binding) (*credential.Claims, error) {
	if presented == "" {
		return nil, &GateError{Reason: ReasonMissingCredential, Missing: true}
	}

	claims, err := g.credentials.Verify(presented)
	if err != nil {
		return nil, &GateError{Reason: ReasonInvalidCredential, Cause: err}
	}

	switch audience {
	case Web:
		if claims.Platform != credential.PlatformWeb {
			return nil, &GateError{Reason: ReasonWrongPlatform}
		}
		if !bindingMatches(claims, binding) {
			return nil, &GateError{Reason: ReasonBindingMismatch}
		}
		if referer == "" {
			return nil, &GateError{Reason: ReasonMissingReferrer}
		}
		if !g.refererAllowed(referer) {
			return nil, &GateError{Reason: ReasonBadReferrer}
		}
	case Mobile:
		if claims.Platform != credential.PlatformMobile {
			return nil, &GateError{Reason: ReasonWrongPlatform}
		}
		if !bindingMatches(claims, binding) {
			return nil, &GateError{Reason: ReasonBindingMismatch}
		}
	case Download:
		if claims.Action != credential.ActionDownload && claims.Platform != credential.PlatformDownload {
			return nil, &GateError{Reason: ReasonWrongPlatform}
		}
		if claims.UserID != "" && binding.UserID != "" && claims.UserID != binding.UserID {
			return nil, &GateError{Reason: ReasonBindingMismatch}
		}
		if g.requireFilename && claims.Filename != binding.Filename {
			return nil, &GateError{Reason: ReasonBindingMismatch}
		}
		if !downloadAuxBindingMatches(claims, binding) {
			return nil, &GateError{Reason: ReasonBindingMismatch}
		}
	}

	return claims, nil
}

// bindingMatches implements the web/mobile binding rule: every route
// identifier present in binding must equal its claim if the claim is
// present; an identifier with no corresponding claim is vacuously satisfied.
func bindingMatches(claims *credential.Claims, binding Binding) bool {
	if binding.UserID != "" && claims.UserID != "" && binding.UserID != claims.UserID {
		return false
	}
	if binding.Filename != "" && claims.Filename != "" && binding.Filename != claims.Filename {
		return false
	}
	if binding.VideoID != "" && claims.VideoID != "" && binding.VideoID != claims.VideoID {
		return false
	}
	if binding.Rel != "" && claims.Rel != "" && binding.Rel != claims.Rel {
		return false
	}
	return true
}

// downloadAuxBindingMatches binds rel/type/course_id/module_id when present
// in both the claim set and the route, per the download policy. Type is
// compared strictly (rather than vacuously skipped when either side is
// zero-valued): it is the discriminator between a legacy v1 credential
// (Type=="") and a v2 lesson/course/module credential, and a route that
// doesn't supply it must not accept a credential minted for one that does.
func downloadAuxBindingMatches(claims *credential.Claims, binding Binding) bool {
	if claims.Type != binding.Type {
		return false
	}
	if binding.Rel != "" && claims.Rel != "" && binding.Rel != claims.Rel {
		return false
	}
	if binding.CourseID != "" && claims.CourseID != "" && binding.CourseID != claims.CourseID {
		return false
	}
	if binding.ModuleID != "" && claims.ModuleID != "" && binding.ModuleID != claims.ModuleID {
		return false
	}
	return true
}

// refererAllowed compares the referer's origin (scheme+host) against the
// allow-list exactly, rather than a string prefix: a naive HasPrefix would
// let "https://focustagency.com.evil.com" pass for an allowed entry of
// "https://focustagency.com".
func (g *Gate) refererAllowed(referer string) bool {
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	origin := u.Scheme + "://" + u.Host

	for _, allowed := range g.allowedOrigins {
		if allowed == "" {
			continue
		}
		if strings.EqualFold(origin, strings.TrimRight(allowed, "/")) {
			return true
		}
	}
	return false
}

// GateError is returned by Decide on any policy failure. Reason is for logs
// only; handlers should return a generic 403 body regardless of Reason,
// except to distinguish "missing credential" per spec.md §4.C.
type GateError struct {
	Reason  DecisionReason
	Missing bool
	Cause   error
}

func (e *GateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return string(e.Reason)
}

func (e *GateError) Unwrap() error { return e.Cause }
