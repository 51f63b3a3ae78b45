package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"dailysync/internal/logger"
	"dailysync/internal/model"
	"dailysync/internal/repository"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	echo     *echo.Echo
	manager  *JobManager
	hub      *Hub
	histRepo *repository.RunRepository
	port     int
	stopCh   chan struct{}
}

func NewServer(manager *JobManager, hub *Hub, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		manager:  manager,
		hub:      hub,
		histRepo: repository.NewRunRepository(),
		port:     port,
		stopCh:   make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// For the entire daemon
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/stop", s.handleStop)
	s.echo.POST("/show", s.handleShow)
	s.echo.POST("/hide", s.handleHide)
	s.echo.GET("/events", s.handleEvents)

	// Notifications
	s.echo.GET("/notifications", s.handleNotifications)
	s.echo.POST("/notifications/toggle", s.handleToggleGlobal)

	// For a specific job
	g := s.echo.Group("/jobs")
	g.GET("", s.handleListJobs)
	g.POST("", s.handleAddJob)
	g.GET("/:id", s.handleGetJob)
	g.PATCH("/:id", s.handleEditJob)
	g.DELETE("/:id", s.handleRemoveJob)
	g.POST("/:id/sync", s.handleSyncJob)
	g.DELETE("/:id/schedule", s.handleUnscheduleJob)
	g.POST("/:id/notifications", s.handleToggleJobNotifications)
	g.GET("/:id/progress", s.handleProgress)

	// History
	s.echo.GET("/history", s.handleHistory)
	s.echo.GET("/history/stats", s.handleHistoryStats)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() {
	go func() {
		addr := "127.0.0.1:" + strconv.Itoa(s.port)
		logger.Log.Info("daemon server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("daemon server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.echo.Shutdown(ctx)
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTimeFormat):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAlreadyRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error) error {
	return c.JSON(errorStatus(err), map[string]string{"error": err.Error()})
}

func jobID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func (s *Server) handleStatus(c echo.Context) error {
	status := map[string]any{
		"jobs":                  len(s.manager.QueryJobList()),
		"notifications_enabled": s.manager.GlobalNotifications(),
		"visible":               s.manager.Visible(),
	}
	if s.hub != nil {
		status["subscribers"] = s.hub.ClientCount()
	}
	if at, ids, ok := s.manager.NextScheduled(); ok {
		status["next_run"] = map[string]any{
			"at":   at,
			"jobs": ids,
		}
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleStop(c echo.Context) error {
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleShow(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"visible":   true,
		"delivered": s.manager.Show(),
	})
}

func (s *Server) handleHide(c echo.Context) error {
	s.manager.Hide()
	return c.JSON(http.StatusOK, map[string]bool{"visible": false})
}

func (s *Server) handleEvents(c echo.Context) error {
	if s.hub == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "event stream disabled"})
	}
	return s.hub.ServeWS(c.Response(), c.Request())
}

func (s *Server) handleNotifications(c echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.Notifications())
}

func (s *Server) handleToggleGlobal(c echo.Context) error {
	enabled := s.manager.ToggleGlobalNotifications()
	return c.JSON(http.StatusOK, map[string]bool{"notifications_enabled": enabled})
}

func (s *Server) handleListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"jobs": s.manager.QueryJobList(),
	})
}

type addJobRequest struct {
	Src           string `json:"src"`
	Dst           string `json:"dst"`
	Time          string `json:"time"`
	Notifications *bool  `json:"notifications"`
}

func (s *Server) handleAddJob(c echo.Context) error {
	// Folders may be left empty and filled in later; they are checked when
	// the job runs.
	var req addJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	job := model.Job{
		SourcePath:           req.Src,
		DestPath:             req.Dst,
		TriggerTime:          req.Time,
		NotificationsEnabled: true,
	}
	if req.Notifications != nil {
		job.NotificationsEnabled = *req.Notifications
	}

	job, err := s.manager.AddJob(job)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusCreated, job)
}

func (s *Server) handleGetJob(c echo.Context) error {
	id, err := jobID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	job, err := s.manager.GetJob(id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

type editJobRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleEditJob(c echo.Context) error {
	id, err := jobID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	var req editJobRequest
	if err := c.Bind(&req); err != nil || req.Field == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "field required"})
	}

	job, err := s.manager.EditJob(id, req.Field, req.Value)
	if err != nil {
		if errorStatus(err) == http.StatusInternalServerError {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleRemoveJob(c echo.Context) error {
	id, err := jobID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	if err := s.manager.DeleteJob(id); err != nil {
		return errorJSON(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSyncJob(c echo.Context) error {
	id, err := jobID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	if err := s.manager.TriggerManualSync(id); err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleUnscheduleJob(c echo.Context) error {
	id, err := jobID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	job, err := s.manager.UnscheduleJob(id)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleToggleJobNotifications(c echo.Context) error {
	id, err := jobID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	job, err := s.manager.ToggleJobNotifications(id)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleProgress(c echo.Context) error {
	id, err := jobID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	state, err := s.manager.QueryProgress(id)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, state)
}

func (s *Server) handleHistory(c echo.Context) error {
	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil && parsed > 0 {
			n = parsed
		}
	}

	var (
		runs []model.Run
		err  error
	)
	switch {
	case c.QueryParam("failed") == "true":
		runs, err = s.histRepo.GetFailed()
	case c.QueryParam("job") != "":
		id, perr := strconv.ParseUint(c.QueryParam("job"), 10, 64)
		if perr != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid job id"})
		}
		runs, err = s.histRepo.GetByJob(uint(id), n)
	default:
		runs, err = s.histRepo.GetRecent(n)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleHistoryStats(c echo.Context) error {
	stats, err := s.histRepo.GetStats()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}
