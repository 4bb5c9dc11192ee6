// Package web is the browser-facing client of the newsletter API: a
// subscribe form and a health page rendered from embedded templates.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"newsletter-go/internal/logging"
	"newsletter-go/internal/middleware"
)

//go:embed templates/*.html static/*
var assets embed.FS

type Config struct {
	Port      string
	GinMode   string
	BodyLimit int64
	Logger    *logging.ContextLogger
	Client    *Client
}

const defaultBodyLimit = 64 << 10

type Server struct {
	server *http.Server
	router *gin.Engine
	client *Client
	logger *logging.ContextLogger
}

// outcome is what the subscribe page renders under the form.
type outcome struct {
	OK   bool
	JSON string
}

func NewServer(cfg *Config) (*Server, error) {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	tmpl, err := template.ParseFS(assets, "templates/*.html")
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, err
	}

	s := &Server{
		client: cfg.Client,
		logger: cfg.Logger,
	}

	router := gin.New()
	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(middleware.RequestLogger(cfg.Logger))
	router.Use(middleware.SecurityHeaders())
	bodyLimit := cfg.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = defaultBodyLimit
	}
	router.Use(middleware.BodyLimit(bodyLimit))
	router.SetHTMLTemplate(tmpl)
	router.StaticFS("/static", http.FS(static))

	router.GET("/", s.index)
	router.GET("/subscribe", s.subscribeForm)
	router.POST("/subscribe", s.subscribe)
	router.GET("/health", s.healthPage)
	router.GET("/api/health", s.healthProxy)

	s.router = router
	s.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Run() error {
	s.logger.Info("Starting web client on " + s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"APIBase": s.client.BaseURL()})
}

func (s *Server) subscribeForm(c *gin.Context) {
	c.HTML(http.StatusOK, "subscribe.html", gin.H{"Email": ""})
}

func (s *Server) subscribe(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.HTML(http.StatusRequestEntityTooLarge, "subscribe.html", gin.H{
				"Email":   "",
				"Outcome": &outcome{OK: false, JSON: prettyJSON(gin.H{"error": "request body too large"})},
			})
			return
		}
	}
	email := c.PostForm("email")

	resp, err := s.client.Subscribe(c.Request.Context(), email)
	var out outcome
	var apiErr *APIError
	switch {
	case err == nil:
		out = outcome{OK: true, JSON: prettyJSON(resp.Data)}
	case errors.As(err, &apiErr):
		out = outcome{OK: false, JSON: prettyJSON(resp.Data)}
	default:
		s.logger.ErrorWithTracing(c.Request.Context(), "Subscribe request failed", err, logrus.Fields{
			"api_base": s.client.BaseURL(),
		})
		out = outcome{OK: false, JSON: prettyJSON(gin.H{"error": err.Error()})}
	}

	c.HTML(http.StatusOK, "subscribe.html", gin.H{
		"Email":   email,
		"Outcome": &out,
	})
}

func (s *Server) healthPage(c *gin.Context) {
	resp, err := s.client.Health(c.Request.Context())
	data := gin.H{}
	var apiErr *APIError
	switch {
	case err == nil:
		data["JSON"] = prettyJSON(resp.Data)
	case errors.As(err, &apiErr):
		data["JSON"] = prettyJSON(resp.Data)
		data["Error"] = apiErr.Error()
	default:
		data["Error"] = err.Error()
	}
	c.HTML(http.StatusOK, "health.html", data)
}

// healthProxy relays the API's /health with its status code.
func (s *Server) healthProxy(c *gin.Context) {
	resp, err := s.client.Health(c.Request.Context())
	var apiErr *APIError
	if err != nil && !errors.As(err, &apiErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(resp.StatusCode, resp.Data)
}

func prettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
