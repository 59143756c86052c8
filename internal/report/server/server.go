// Package server exposes a rendered profile over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tyemirov/stepprof/internal/metrics"
	"github.com/tyemirov/stepprof/internal/report"
)

const (
	// DefaultAddress binds the report server to loopback port 8888.
	DefaultAddress = "127.0.0.1:8888"

	indexRouteConstant               = "/"
	executionRouteConstant           = "/executions/:index"
	jsonRouteConstant                = "/report.json"
	yamlRouteConstant                = "/report.yaml"
	healthRouteConstant              = "/healthz"
	metricsRouteConstant             = "/metrics"
	executionIndexParameterConstant  = "index"
	executionLinkPrefixConstant      = "executions/"
	htmlContentTypeConstant          = "text/html; charset=utf-8"
	jsonContentTypeConstant          = "application/json; charset=utf-8"
	yamlContentTypeConstant          = "application/yaml; charset=utf-8"
	statusFieldConstant              = "status"
	healthyStatusConstant            = "ok"
	errorFieldConstant               = "error"
	executionNotFoundMessageConstant = "execution not found"
	shutdownTimeoutConstant          = 5 * time.Second
	readHeaderTimeoutConstant        = 10 * time.Second
	networkConstant                  = "tcp"
	requestServedMessageConstant     = "report request served"
	renderFailedMessageConstant      = "report render failed"
	serverListeningMessageConstant   = "report server listening"
	methodFieldNameConstant          = "method"
	pathFieldNameConstant            = "path"
	statusFieldNameConstant          = "status"
	latencyFieldNameConstant         = "latency"
	addressFieldNameConstant         = "address"
)

// Options configures the report server.
type Options struct {
	Logger   *zap.Logger
	Gatherer prometheus.Gatherer
}

// Server serves one profile document.
type Server struct {
	document report.Document
	engine   *gin.Engine
	logger   *zap.Logger
}

// New builds a server for the document.
func New(document report.Document, options Options) *Server {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	server := &Server{document: document, engine: engine, logger: logger}
	engine.GET(indexRouteConstant, server.handleIndex)
	engine.GET(executionRouteConstant, server.handleExecution)
	engine.GET(jsonRouteConstant, server.handleJSON)
	engine.GET(yamlRouteConstant, server.handleYAML)
	engine.GET(healthRouteConstant, server.handleHealth)
	if options.Gatherer != nil {
		engine.GET(metricsRouteConstant, gin.WrapH(metrics.Handler(options.Gatherer)))
	}
	return server
}

// Handler exposes the routing engine.
func (server *Server) Handler() http.Handler {
	return server.engine
}

// Serve listens on address until the context is cancelled.
func (server *Server) Serve(serveContext context.Context, address string) error {
	listener, listenError := net.Listen(networkConstant, address)
	if listenError != nil {
		return listenError
	}
	return server.ServeListener(serveContext, listener)
}

// ServeListener serves on an already bound listener until the context is cancelled.
func (server *Server) ServeListener(serveContext context.Context, listener net.Listener) error {
	httpServer := &http.Server{Handler: server.engine, ReadHeaderTimeout: readHeaderTimeoutConstant}
	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- httpServer.Serve(listener)
	}()
	server.logger.Info(serverListeningMessageConstant, zap.String(addressFieldNameConstant, listener.Addr().String()))

	select {
	case serveError := <-serveErrors:
		if errors.Is(serveError, http.ErrServerClosed) {
			return nil
		}
		return serveError
	case <-serveContext.Done():
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeoutConstant)
		defer cancel()
		return httpServer.Shutdown(shutdownContext)
	}
}

func (server *Server) handleIndex(requestContext *gin.Context) {
	var buffer bytes.Buffer
	if renderError := report.WriteHTMLIndexWithLinks(&buffer, server.document, executionLinkPrefixConstant); renderError != nil {
		server.renderFailure(requestContext, renderError)
		return
	}
	requestContext.Data(http.StatusOK, htmlContentTypeConstant, buffer.Bytes())
}

func (server *Server) handleExecution(requestContext *gin.Context) {
	index, parseError := strconv.Atoi(requestContext.Param(executionIndexParameterConstant))
	if parseError != nil || index < 0 || index >= len(server.document.Executions) {
		requestContext.JSON(http.StatusNotFound, gin.H{errorFieldConstant: executionNotFoundMessageConstant})
		return
	}
	var buffer bytes.Buffer
	if renderError := report.WriteHTMLExecution(&buffer, server.document, server.document.Executions[index]); renderError != nil {
		server.renderFailure(requestContext, renderError)
		return
	}
	requestContext.Data(http.StatusOK, htmlContentTypeConstant, buffer.Bytes())
}

func (server *Server) handleJSON(requestContext *gin.Context) {
	server.writeDocument(requestContext, jsonContentTypeConstant, report.WriteJSON)
}

func (server *Server) handleYAML(requestContext *gin.Context) {
	server.writeDocument(requestContext, yamlContentTypeConstant, report.WriteYAML)
}

func (server *Server) handleHealth(requestContext *gin.Context) {
	requestContext.JSON(http.StatusOK, gin.H{statusFieldConstant: healthyStatusConstant})
}

func (server *Server) writeDocument(requestContext *gin.Context, contentType string, encode func(writer io.Writer, document report.Document) error) {
	var buffer bytes.Buffer
	if encodeError := encode(&buffer, server.document); encodeError != nil {
		server.renderFailure(requestContext, encodeError)
		return
	}
	requestContext.Data(http.StatusOK, contentType, buffer.Bytes())
}

func (server *Server) renderFailure(requestContext *gin.Context, renderError error) {
	server.logger.Error(renderFailedMessageConstant, zap.Error(renderError))
	requestContext.JSON(http.StatusInternalServerError, gin.H{errorFieldConstant: renderError.Error()})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(requestContext *gin.Context) {
		started := time.Now()
		requestContext.Next()
		logger.Debug(
			requestServedMessageConstant,
			zap.String(methodFieldNameConstant, requestContext.Request.Method),
			zap.String(pathFieldNameConstant, requestContext.Request.URL.Path),
			zap.Int(statusFieldNameConstant, requestContext.Writer.Status()),
			zap.Duration(latencyFieldNameConstant, time.Since(started)),
		)
	}
}
