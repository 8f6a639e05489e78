// Package web assembles the Echo instance: middleware, error handling, and
// the route table named in spec.md §4.E.
package web

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/zenderock/focus-agency-server/internal/apperr"
	"github.com/zenderock/focus-agency-server/internal/authz"
	"github.com/zenderock/focus-agency-server/internal/credential"
	"github.com/zenderock/focus-agency-server/internal/storage"
	"github.com/zenderock/focus-agency-server/internal/streaming"
	"github.com/zenderock/focus-agency-server/internal/transcode"
)

// Deps collects everything the route table needs to construct handlers.
type Deps struct {
	Credentials             *credential.Service
	Gate                    *authz.Gate
	Layout                  storage.Layout
	Orchestrator            *transcode.Orchestrator
	TokenExpiry             time.Duration
	DownloadRequireFilename bool
	UploadDefaults          streaming.UploadDefaults
	AllowedOrigins          []string
}

// NewWebserver builds and wires the Echo instance.
func NewWebserver(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler

	setupMiddleware(e, deps.AllowedOrigins)
	registerRoutes(e, deps)

	return e
}

// rewritePreflightStatus answers OPTIONS preflight with 200 instead of
// echo's CORS middleware default of 204 (spec.md §6). It must sit ahead of
// CORSWithConfig in the chain: the CORS middleware writes the preflight
// response directly rather than calling next(), so the only hook point is
// the underlying ResponseWriter.
func rewritePreflightStatus(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method != http.MethodOptions {
			return next(c)
		}
		res := c.Response()
		res.Writer = &preflightWriter{ResponseWriter: res.Writer, res: res}
		return next(c)
	}
}

type preflightWriter struct {
	http.ResponseWriter
	res *echo.Response
}

func (w *preflightWriter) WriteHeader(code int) {
	if code == http.StatusNoContent {
		code = http.StatusOK
	}
	w.res.Status = code
	w.ResponseWriter.WriteHeader(code)
}

func setupMiddleware(e *echo.Echo, allowedOrigins []string) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(rewritePreflightStatus)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			if len(allowedOrigins) == 0 {
				return true, nil
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true, nil
				}
			}
			return false, nil
		},
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogMethod:   true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			slog.Info("request", fields...)
			return nil
		},
	}))
}

func registerRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(200, "ok")
	})

	// Credential minting — ungated, the credential itself is the gate.
	e.GET("/api/get-video-token/:user_id/:filename", streaming.HandleGetVideoToken(d.Credentials, d.TokenExpiry))
	e.GET("/api/get-video-token/mobile/:user_id/:filename/:video_id", streaming.HandleGetVideoTokenMobile(d.Credentials, d.TokenExpiry))
	e.GET("/api/get-video-token/v2", streaming.HandleGetVideoTokenV2(d.Credentials, d.TokenExpiry))
	e.GET("/api/get-download-token/:user_id/:filename", streaming.HandleGetDownloadToken(d.Credentials))
	e.GET("/api/get-download-token/v2", streaming.HandleGetDownloadTokenV2(d.Credentials, d.Layout, d.DownloadRequireFilename))

	// Gated serving — legacy (v1) layout.
	e.GET("/videos-user/:user_id/:filename", streaming.HandleOriginal(d.Gate, d.Layout))
	e.GET("/hls/:user_id/:video_id/:file", streaming.HandleHLS(d.Gate, d.Layout))
	e.GET("/mobile/hls/:user_id/:video_id/:file", streaming.HandleHLSMobile(d.Gate, d.Layout))
	e.GET("/api/download/:user_id/:filename", streaming.HandleDownloadV1(d.Gate, d.Layout))

	// Gated serving — hierarchical (v2) layout.
	e.GET("/hls2/:trainer/:course/:module/:lesson/:file", streaming.HandleHLS2(d.Gate, d.Layout))
	e.GET("/mobile/hls2/:trainer/:course/:module/:lesson/:file", streaming.HandleHLS2Mobile(d.Gate, d.Layout))
	e.GET("/download2/:trainer/:course/:module/:lesson/:filename", streaming.HandleDownloadV2Lesson(d.Gate, d.Layout))
	e.GET("/download2/course/:course_id/:filename", streaming.HandleDownloadV2Course(d.Gate, d.Layout))
	e.GET("/download2/module/:course_id/:module_id/:filename", streaming.HandleDownloadV2Module(d.Gate, d.Layout))

	// Upload acceptance.
	e.POST("/upload", streaming.HandleUpload(d.Layout, d.Orchestrator, d.UploadDefaults))
	e.POST("/upload/lesson", streaming.HandleUploadLesson(d.Layout, d.Orchestrator, d.UploadDefaults))
	e.POST("/upload_presentation/course/:course_id", streaming.HandleUploadPresentationCourse(d.Layout))
	e.POST("/upload_presentation/module/:course_id/:module_id", streaming.HandleUploadPresentationModule(d.Layout))
}
