// Package api exposes the certificate engine over HTTP: template upload
// and validation, single-certificate and preview rendering, async batch
// submission with a WebSocket progress stream, and archive download.
package api

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/certforge/certforge/internal/config"
	"github.com/certforge/certforge/internal/engine"
	"github.com/certforge/certforge/internal/errors"
	"github.com/certforge/certforge/internal/metrics"
	"github.com/certforge/certforge/internal/template"
)

// Server handles the HTTP API and WebSocket progress streams.
type Server struct {
	app    *fiber.App
	config *config.Config
	engine *engine.Engine
	logger *zap.Logger
}

// New creates a new API server.
func New(cfg *config.Config, eng *engine.Engine, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    64 << 20,
	})

	s := &Server{
		app:    app,
		config: cfg,
		engine: eng,
		logger: logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Server.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/api/metrics", s.handleMetrics)
	s.app.Get("/api/status", s.handleStatus)

	api := s.app.Group("/api")

	api.Post("/templates", s.handleTemplateUpload)
	api.Post("/templates/validate", s.handleValidate)

	api.Post("/certificates", s.handleGenerate)
	api.Post("/preview", s.handlePreview)

	api.Post("/batches", s.handleBatchSubmit)
	api.Get("/batches", s.handleBatchList)
	api.Get("/batches/:id", s.handleBatchStatus)
	api.Get("/batches/:id/archive", s.handleBatchArchive)

	s.app.Get("/ws/batches/:id", websocket.New(s.handleBatchProgress))
}

// Start starts the server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

// statusFor maps engine error codes to HTTP status codes.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrTemplateUnreadable.Code, errors.ErrTemplateNoFields.Code,
		errors.ErrMappingUnknownField.Code, errors.ErrMappingNoNameField.Code,
		errors.ErrMissingName.Code, errors.ErrBadRequest.Code:
		return fiber.StatusBadRequest
	case errors.ErrBatchNotFound.Code, errors.ErrNotFound.Code:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

// ==================== Handlers ====================

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   "0.1.0",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/plain; version=0.0.4")
	return c.SendString(metrics.Prometheus())
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(metrics.Default().Snapshot())
}

func (s *Server) handleTemplateUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("template")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "no template file provided"})
	}

	name := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), filepath.Base(file.Filename))
	path := filepath.Join(s.config.Storage.TemplatesDir, name)
	if err := c.SaveFile(file, path); err != nil {
		s.logger.Error("failed to save uploaded template", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to save template"})
	}

	report := s.engine.ValidateTemplate(path)
	return c.Status(201).JSON(fiber.Map{
		"template_path": path,
		"report":        report,
	})
}

func (s *Server) handleValidate(c *fiber.Ctx) error {
	var req struct {
		TemplatePath string `json:"template_path"`
	}
	if err := c.BodyParser(&req); err != nil || req.TemplatePath == "" {
		return c.Status(400).JSON(fiber.Map{"error": "template_path is required"})
	}

	return c.JSON(s.engine.ValidateTemplate(req.TemplatePath))
}

func (s *Server) handleGenerate(c *fiber.Ctx) error {
	var req struct {
		TemplatePath string            `json:"template_path"`
		FirstName    string            `json:"first_name"`
		LastName     string            `json:"last_name"`
		ExtraFields  map[string]string `json:"extra_fields,omitempty"`
		OutputPath   string            `json:"output_path,omitempty"`
		Overrides    map[string]string `json:"overrides,omitempty"`
		Flatten      *bool             `json:"flatten_fields,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.TemplatePath == "" {
		return c.Status(400).JSON(fiber.Map{"error": "template_path is required"})
	}

	outputPath, err := s.engine.GenerateCertificate(engine.CertificateRequest{
		TemplatePath: req.TemplatePath,
		Recipient: template.Recipient{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			ExtraFields: req.ExtraFields,
		},
		OutputPath: req.OutputPath,
		Overrides:  req.Overrides,
		Flatten:    req.Flatten,
	})
	if err != nil {
		return errorJSON(c, err)
	}

	return c.Status(201).JSON(fiber.Map{"output_path": outputPath})
}

func (s *Server) handlePreview(c *fiber.Ctx) error {
	var req struct {
		TemplatePath string            `json:"template_path"`
		Overrides    map[string]string `json:"overrides,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil || req.TemplatePath == "" {
		return c.Status(400).JSON(fiber.Map{"error": "template_path is required"})
	}

	data, err := s.engine.GeneratePreview(req.TemplatePath, req.Overrides)
	if err != nil {
		return errorJSON(c, err)
	}

	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", `inline; filename="preview.pdf"`)
	return c.Send(data)
}

func (s *Server) handleBatchSubmit(c *fiber.Ctx) error {
	var req struct {
		TemplatePath string               `json:"template_path"`
		Recipients   []template.Recipient `json:"recipients"`
		Overrides    map[string]string    `json:"overrides,omitempty"`
		Archive      bool                 `json:"archive"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.TemplatePath == "" || len(req.Recipients) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "template_path and recipients are required"})
	}

	// Fail fast on an unusable template before accepting the run.
	report := s.engine.ValidateTemplate(req.TemplatePath)
	if !report.Valid && len(req.Overrides) == 0 {
		return c.Status(400).JSON(fiber.Map{
			"error":  "template is not valid for generation",
			"report": report,
		})
	}

	id, err := s.engine.StartBatch(engine.BatchRequest{
		TemplatePath: req.TemplatePath,
		Recipients:   req.Recipients,
		Overrides:    req.Overrides,
		Archive:      req.Archive,
	})
	if err != nil {
		return errorJSON(c, err)
	}

	return c.Status(202).JSON(fiber.Map{"batch_id": id})
}

func (s *Server) handleBatchList(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	runs, err := s.engine.ListBatches(limit, offset)
	if err != nil {
		s.logger.Error("failed to list batch runs", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to list batches"})
	}
	return c.JSON(runs)
}

func (s *Server) handleBatchStatus(c *fiber.Ctx) error {
	run, err := s.engine.BatchStatus(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "batch not found"})
	}
	return c.JSON(run)
}

func (s *Server) handleBatchArchive(c *fiber.Ctx) error {
	run, err := s.engine.BatchStatus(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "batch not found"})
	}
	if run.ArchivePath == "" {
		return c.Status(404).JSON(fiber.Map{"error": "batch has no archive"})
	}

	c.Set("Content-Disposition", `attachment; filename="certificates.zip"`)
	return c.SendFile(run.ArchivePath)
}

func (s *Server) handleBatchProgress(c *websocket.Conn) {
	defer c.Close()
	runID := c.Params("id")

	run, err := s.engine.BatchStatus(runID)
	if err != nil {
		c.WriteJSON(fiber.Map{"type": "error", "message": "batch not found"})
		return
	}

	// Subscribe before checking terminal state so no events slip between.
	events, unsubscribe := s.engine.SubscribeProgress(runID)
	defer unsubscribe()

	if run.Status != "running" && run.Status != "pending" {
		c.WriteJSON(fiber.Map{"type": "done", "status": run.Status})
		return
	}

	for ev := range events {
		if err := c.WriteJSON(fiber.Map{
			"type":    "progress",
			"current": ev.Current,
			"total":   ev.Total,
			"message": ev.Message,
		}); err != nil {
			s.logger.Warn("websocket write error", zap.Error(err))
			return
		}
	}

	final, err := s.engine.BatchStatus(runID)
	if err != nil {
		c.WriteJSON(fiber.Map{"type": "done"})
		return
	}
	c.WriteJSON(fiber.Map{
		"type":      "done",
		"status":    final.Status,
		"succeeded": final.Succeeded,
		"failed":    final.Failed,
	})
}
