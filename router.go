package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kennybix/Shuttle/pkg/config"
	"github.com/kennybix/Shuttle/pkg/handler"
	"github.com/kennybix/Shuttle/pkg/models"
	"github.com/kennybix/Shuttle/pkg/service"
	"github.com/kennybix/Shuttle/pkg/utils"
)

type Server struct {
	ginEngine *gin.Engine
	logger    *slog.Logger
	registry  *service.Registry
	host      string
	port      int
}

func NewServer(cfg *config.AppConfig) *Server {
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	// CORS middleware: allow common localhost dev origins.
	// Note: if you don't need cookies/credentials, keep Allow-Credentials off.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// If there's no Origin header, it's not a browser CORS request.
		if origin != "" {
			allowed := strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "https://localhost") ||
				strings.HasPrefix(origin, "https://127.0.0.1")

			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			} else {
				// Reject unknown origins.
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Serve the built UI if a web directory is present on disk.
	attachStatic(ginEngine, cfg.WebDir())

	server := &Server{
		ginEngine: ginEngine,
		logger:    utils.GetLogger(),
		host:      cfg.Host(),
		port:      cfg.Port(),
	}

	server.SetupRoutes(cfg)

	return server
}

func (s *Server) Start(ctx context.Context) error {
	// SHUTTLE_PORT overrides the configured port, mainly for supervisors
	// that assign ports at launch time.
	port := s.port
	if v := os.Getenv("SHUTTLE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			port = p
		} else {
			s.logger.Warn("Invalid SHUTTLE_PORT value, falling back to configured port", "value", v)
		}
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(port))
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Attempt to listen first; if the port is occupied return the error
	// immediately instead of from inside Serve.
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	// Record the actual port (useful if we ever switch to :0).
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	} else {
		s.port = port
	}

	s.logger.Info("Server listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	// Block until the server fails or the context asks us to stop.
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Graceful shutdown did not finish in time", "error", err)
	}

	// Tear down any sessions still holding SSH connections.
	s.registry.CloseAll()

	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) SetupRoutes(cfg *config.AppConfig) {
	s.registry = service.NewRegistry(
		time.Duration(cfg.DialTimeoutSeconds())*time.Second,
		time.Duration(cfg.KeepaliveSeconds())*time.Second,
		cfg.SessionLogCap(),
	)

	files := service.NewFileService()
	transfers := service.NewTransferrer(cfg.StagingDir(), cfg.DownloadsDir())
	gateway := service.NewGateway(s.registry, files, transfers, cfg.MaxUploadBytes())
	fileHandler := handler.NewFileHandler(files, cfg.DownloadsDir(), cfg.StagingDir(), cfg.MaxUploadBytes())

	// Session event stream
	// /ws
	s.ginEngine.GET("/ws", gateway.HandleWS)

	// API group
	// /api
	apiGroup := s.ginEngine.Group("/api")

	// Runtime info (for UI clients to discover correct base URLs)
	apiGroup.GET("/runtime", func(c *gin.Context) {
		// Clients reach us over loopback even when bound to all interfaces.
		host := s.host
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}

		httpBase := fmt.Sprintf("http://%s:%d", host, s.port)
		wsBase := fmt.Sprintf("ws://%s:%d", host, s.port)
		c.JSON(http.StatusOK, models.RuntimeInfo{
			HTTPBaseURL: httpBase,
			WSBaseURL:   wsBase,
			Port:        s.port,
		})
	})

	// File transfer API routes
	apiGroup.GET("/roots", fileHandler.Roots)
	apiGroup.GET("/download/:name", fileHandler.Download)
	apiGroup.POST("/upload", fileHandler.Upload)

	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.registry.Count()})
	})
}
