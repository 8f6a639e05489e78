// Package credential mints and verifies the short-lived, stateless signed
// credentials that bind a bearer to a precise resource, platform, and
// action. Credentials are HMAC-SHA256 JSON Web Tokens; verification never
// enforces binding, only signature validity and expiry — binding is the
// Authorization Gate's responsibility.
package credential

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/zenderock/focus-agency-server/internal/apperr"
)

// Platform is the audience selector carried by every credential.
type Platform string

const (
	PlatformWeb      Platform = "web"
	PlatformMobile   Platform = "mobile"
	PlatformDownload Platform = "download"
)

// DownloadType selects which v2 download route a credential permits.
type DownloadType string

const (
	DownloadLesson DownloadType = "lesson"
	DownloadCourse DownloadType = "course"
	DownloadModule DownloadType = "module"
)

// ActionDownload is the alternate audience marker for v1 download credentials.
const ActionDownload = "download"

// defaultDevSecret is used only when SECRET_KEY is unset, matching the
// original service's development fallback. Never used once a real secret is
// configured.
const defaultDevSecret = "focust-agency-dev-secret-do-not-use-in-production"

// Claims is the credential's claim set. RegisteredClaims carries iat/exp/jti;
// the remaining fields are populated selectively per spec.md §3's claim
// table and left zero-valued when not relevant to the mint operation that
// produced them.
type Claims struct {
	jwt.RegisteredClaims

	UserID   string       `json:"user_id,omitempty"`
	Filename string       `json:"filename,omitempty"`
	VideoID  string       `json:"video_id,omitempty"`
	Rel      string       `json:"rel,omitempty"`
	Type     DownloadType `json:"type,omitempty"`
	CourseID string       `json:"course_id,omitempty"`
	ModuleID string       `json:"module_id,omitempty"`
	Platform Platform     `json:"platform,omitempty"`
	Action   string       `json:"action,omitempty"`
}

// Service mints and verifies credentials using a single process-wide secret.
type Service struct {
	secret []byte
}

// NewService builds a Service. An empty secret falls back to a fixed
// development key; callers should always set SECRET_KEY outside development.
func NewService(secret string) *Service {
	if secret == "" {
		secret = defaultDevSecret
	}
	return &Service{secret: []byte(secret)}
}

func (s *Service) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

func registeredClaims(ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

// MintWeb mints {user_id, filename, exp, iat, jti, platform:"web"}.
func (s *Service) MintWeb(userID, filename string, ttl time.Duration) (string, error) {
	return s.sign(Claims{
		RegisteredClaims: registeredClaims(ttl),
		UserID:           userID,
		Filename:         filename,
		Platform:         PlatformWeb,
	})
}

// MintMobile mints the web claim set plus {video_id, platform:"mobile"}.
func (s *Service) MintMobile(userID, filename, videoID string, ttl time.Duration) (string, error) {
	return s.sign(Claims{
		RegisteredClaims: registeredClaims(ttl),
		UserID:           userID,
		Filename:         filename,
		VideoID:          videoID,
		Platform:         PlatformMobile,
	})
}

// MintDownloadV1 mints {user_id, filename, exp, iat, jti, action:"download",
// platform:"download"}. ttl defaults to 900s when zero.
func (s *Service) MintDownloadV1(userID, filename string, ttl time.Duration) (string, error) {
	return s.sign(Claims{
		RegisteredClaims: registeredClaims(withDownloadDefault(ttl)),
		UserID:           userID,
		Filename:         filename,
		Action:           ActionDownload,
		Platform:         PlatformDownload,
	})
}

// MintV2Playback mints {user_id, rel, exp, iat, jti, platform}. platform must
// be web or mobile; any other value is rejected.
func (s *Service) MintV2Playback(userID, rel string, platform Platform, ttl time.Duration) (string, error) {
	if platform != PlatformWeb && platform != PlatformMobile {
		return "", apperr.NewBadRequest("platform must be web or mobile")
	}
	return s.sign(Claims{
		RegisteredClaims: registeredClaims(ttl),
		UserID:           userID,
		Rel:              rel,
		Platform:         platform,
	})
}

// V2DownloadParams is the optional field set for MintV2Download, matching
// the required-field matrix in spec.md §4.A.
type V2DownloadParams struct {
	Filename string
	Rel      string
	CourseID string
	ModuleID string
}

// MintV2Download validates dtype's required-field matrix and, if satisfied,
// mints a v2 download credential. requireFilename mirrors the
// DOWNLOAD_TOKEN_REQUIRE_FILENAME configuration flag.
func (s *Service) MintV2Download(userID string, dtype DownloadType, ttl time.Duration, params V2DownloadParams, requireFilename bool) (string, error) {
	switch dtype {
	case DownloadLesson:
		if params.Rel == "" {
			return "", apperr.NewBadRequest("rel is required for lesson downloads")
		}
	case DownloadCourse:
		if params.CourseID == "" {
			return "", apperr.NewBadRequest("course_id is required for course downloads")
		}
	case DownloadModule:
		if params.CourseID == "" || params.ModuleID == "" {
			return "", apperr.NewBadRequest("course_id and module_id are required for module downloads")
		}
	default:
		return "", apperr.NewBadRequest("unknown download type")
	}
	if requireFilename && params.Filename == "" {
		return "", apperr.NewBadRequest("filename is required")
	}

	return s.sign(Claims{
		RegisteredClaims: registeredClaims(withDownloadDefault(ttl)),
		UserID:           userID,
		Filename:         params.Filename,
		Rel:              params.Rel,
		CourseID:         params.CourseID,
		ModuleID:         params.ModuleID,
		Type:             dtype,
		Action:           ActionDownload,
		Platform:         PlatformDownload,
	})
}

func withDownloadDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 900 * time.Second
	}
	return ttl
}

// Verify parses and validates a presented credential, returning its claim
// set. It enforces signature validity and strict expiry (zero clock-skew
// leeway) and nothing else — binding checks belong to the Authorization
// Gate.
func (s *Service) Verify(presented string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(presented, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithLeeway(0))
	if err != nil {
		return nil, apperr.NewUnauthorized("invalid credential", err)
	}
	if !token.Valid {
		return nil, apperr.NewUnauthorized("invalid credential", fmt.Errorf("token marked invalid"))
	}
	return claims, nil
}
