// Package httpapi exposes the daemon's local HTTP API for the UI
// shell.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/havenmind/havend/internal/backend"
	"github.com/havenmind/havend/internal/connectivity"
	"github.com/havenmind/havend/internal/notify"
	"github.com/havenmind/havend/internal/session"
	"github.com/havenmind/havend/internal/wellness"
)

// Auth is the slice of the backend auth API the server consumes.
// *backend.Client satisfies it.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (*backend.Session, error)
	SignUp(ctx context.Context, email, password string) (*backend.Session, error)
	SignOut(ctx context.Context) error
}

// Synthesizer converts text to audio. *assist.Speech satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Translator converts text between languages. *assist.Translator
// satisfies it.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Config holds the local HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Deps bundles everything the routes delegate to.
type Deps struct {
	Auth    Auth
	State   *session.State
	Monitor *connectivity.Monitor
	Hub     *notify.Hub

	Tasks         *wellness.TasksService
	Mood          *wellness.MoodService
	Chat          *wellness.ChatService
	Settings      *wellness.SettingsService
	Notifications *wellness.NotificationsService

	// Speech and Translator may be nil when the corresponding assist
	// endpoint is not configured; their routes then answer 503.
	Speech     Synthesizer
	Translator Translator
}

// Server is the daemon's local HTTP API.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *zap.Logger
	config Config
}

// NewServer creates the server and registers all routes.
func NewServer(deps Deps, logger *zap.Logger, cfg Config) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 7420
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/notices", s.handleNotices)

	v1.POST("/auth/signin", s.handleSignIn)
	v1.POST("/auth/signup", s.handleSignUp)
	v1.POST("/auth/signout", s.handleSignOut)

	v1.POST("/connectivity/online", s.handleOnline)
	v1.POST("/connectivity/offline", s.handleOffline)
	v1.POST("/connectivity/probe", s.handleProbe)

	v1.GET("/tasks", s.handleListTasks)
	v1.POST("/tasks", s.handleCreateTask)
	v1.POST("/tasks/:id/toggle", s.handleToggleTask)
	v1.DELETE("/tasks/:id", s.handleDeleteTask)

	v1.GET("/mood", s.handleListMood)
	v1.POST("/mood", s.handleCreateMood)
	v1.GET("/mood/streak", s.handleStreak)
	v1.PATCH("/mood/:id/notes", s.handleUpdateMoodNotes)
	v1.DELETE("/mood/:id", s.handleDeleteMood)

	v1.GET("/chat/sessions", s.handleListChatSessions)
	v1.POST("/chat/sessions", s.handleCreateChatSession)
	v1.GET("/chat/sessions/:id/messages", s.handleListMessages)
	v1.POST("/chat/sessions/:id/reply", s.handleReply)

	v1.GET("/settings", s.handleGetSettings)
	v1.PUT("/settings", s.handleUpdateSettings)

	v1.GET("/notifications", s.handleListNotifications)
	v1.POST("/notifications/:id/read", s.handleMarkRead)
	v1.POST("/notifications/read-all", s.handleMarkAllRead)

	v1.POST("/assist/speech", s.handleSpeech)
	v1.POST("/assist/translate", s.handleTranslate)
}

// httpError maps domain errors onto HTTP statuses.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, wellness.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, wellness.ErrNotSignedIn),
		errors.Is(err, wellness.ErrSessionExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, wellness.ErrOffline):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, wellness.ErrClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if apiErr, ok := backend.AsAPIError(err); ok && apiErr.Status >= 400 && apiErr.Status < 600 {
		return echo.NewHTTPError(apiErr.Status, apiErr.Message)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	resp := StatusResponse{
		SignedIn: s.deps.State.SignedIn(),
		UserID:   s.deps.State.UserID(),
	}
	if s.deps.Monitor != nil {
		resp.Connectivity = s.deps.Monitor.State()
	}
	if resp.SignedIn {
		resp.Streak = s.deps.Mood.Streak()
		resp.UnreadCount = s.deps.Notifications.UnreadCount()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleNotices(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Hub.Recent())
}

func (s *Server) handleSignIn(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	sess, err := s.deps.Auth.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Warn("sign in failed", zap.Error(err))
		return httpError(err)
	}
	s.deps.State.Set(sess)

	return c.JSON(http.StatusOK, SessionResponse{
		UserID:    sess.UserID,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (s *Server) handleSignUp(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	sess, err := s.deps.Auth.SignUp(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Warn("sign up failed", zap.Error(err))
		return httpError(err)
	}
	s.deps.State.Set(sess)

	return c.JSON(http.StatusCreated, SessionResponse{
		UserID:    sess.UserID,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (s *Server) handleSignOut(c echo.Context) error {
	// remote revocation is best-effort; local state always clears
	if err := s.deps.Auth.SignOut(c.Request().Context()); err != nil {
		s.logger.Warn("remote sign out failed", zap.Error(err))
	}
	s.deps.State.Clear()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleOnline(c echo.Context) error {
	s.deps.Monitor.SetOnline()
	return c.JSON(http.StatusOK, s.deps.Monitor.State())
}

func (s *Server) handleOffline(c echo.Context) error {
	s.deps.Monitor.SetOffline()
	return c.JSON(http.StatusOK, s.deps.Monitor.State())
}

func (s *Server) handleProbe(c echo.Context) error {
	s.deps.Monitor.Probe(c.Request().Context())
	return c.JSON(http.StatusOK, s.deps.Monitor.State())
}

func (s *Server) handleListTasks(c echo.Context) error {
	tasks, err := s.deps.Tasks.List(c.Request().Context())
	if err != nil && len(tasks) == 0 {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(c echo.Context) error {
	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	task, err := s.deps.Tasks.Create(c.Request().Context(), req.Title, req.Notes, req.DueAt)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) handleToggleTask(c echo.Context) error {
	if err := s.deps.Tasks.ToggleComplete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	if err := s.deps.Tasks.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListMood(c echo.Context) error {
	entries, err := s.deps.Mood.List(c.Request().Context())
	if err != nil && len(entries) == 0 {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) handleCreateMood(c echo.Context) error {
	var req CreateMoodRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	entry, err := s.deps.Mood.Create(c.Request().Context(), req.Mood, req.Emoji, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleStreak(c echo.Context) error {
	if !s.deps.State.SignedIn() {
		return httpError(wellness.ErrNotSignedIn)
	}
	return c.JSON(http.StatusOK, s.deps.Mood.Streak())
}

func (s *Server) handleUpdateMoodNotes(c echo.Context) error {
	var req UpdateNotesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.deps.Mood.UpdateNotes(c.Request().Context(), c.Param("id"), req.Notes); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteMood(c echo.Context) error {
	if err := s.deps.Mood.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListChatSessions(c echo.Context) error {
	sessions, err := s.deps.Chat.Sessions(c.Request().Context())
	if err != nil && len(sessions) == 0 {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleCreateChatSession(c echo.Context) error {
	var req CreateChatSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	created, err := s.deps.Chat.CreateSession(c.Request().Context(), req.Title, req.Mode)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleListMessages(c echo.Context) error {
	msgs, err := s.deps.Chat.Messages(c.Request().Context(), c.Param("id"))
	if err != nil && len(msgs) == 0 {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, msgs)
}

func (s *Server) handleReply(c echo.Context) error {
	var req ReplyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	reply, err := s.deps.Chat.Reply(c.Request().Context(), c.Param("id"), req.Content)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, reply)
}

func (s *Server) handleGetSettings(c echo.Context) error {
	settings, err := s.deps.Settings.Get(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(c echo.Context) error {
	var settings wellness.Settings
	if err := c.Bind(&settings); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.deps.Settings.Update(c.Request().Context(), settings); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, settings)
}

func (s *Server) handleListNotifications(c echo.Context) error {
	notifications, err := s.deps.Notifications.List(c.Request().Context())
	if err != nil && len(notifications) == 0 {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notifications)
}

func (s *Server) handleMarkRead(c echo.Context) error {
	if err := s.deps.Notifications.MarkRead(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(c echo.Context) error {
	if err := s.deps.Notifications.MarkAllRead(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSpeech(c echo.Context) error {
	if s.deps.Speech == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "speech is not configured")
	}
	var req SpeechRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}
	audio, err := s.deps.Speech.Synthesize(c.Request().Context(), req.Text, req.Voice)
	if err != nil {
		s.logger.Warn("speech synthesis failed", zap.Error(err))
		return httpError(err)
	}
	return c.Blob(http.StatusOK, "application/octet-stream", audio)
}

func (s *Server) handleTranslate(c echo.Context) error {
	if s.deps.Translator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "translation is not configured")
	}
	var req TranslateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" || req.Target == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text and target fields are required")
	}
	text, err := s.deps.Translator.Translate(c.Request().Context(), req.Text, req.Source, req.Target)
	if err != nil {
		s.logger.Warn("translation failed", zap.Error(err))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, TranslateResponse{Text: text})
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
