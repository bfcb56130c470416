// Package api hosts the HTTP server that speaks the transfer protocol to
// peers and a loopback-only surface for local clients.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/nekoha/localsend-cli/api/controllers"
	"github.com/nekoha/localsend-cli/api/middlewares"
	"github.com/nekoha/localsend-cli/notify"
	"github.com/nekoha/localsend-cli/tool"
	"github.com/nekoha/localsend-cli/transfer"
	"github.com/nekoha/localsend-cli/types"
)

// Server receives transfer requests from peers.
type Server struct {
	port     int
	protocol string
	self     *types.Device
	state    *transfer.ServerState

	tlsConfig *tls.Config
	engine    *gin.Engine
	server    *http.Server
	mu        sync.RWMutex
}

// NewServer prepares the server. In https mode a fresh self-signed
// certificate is minted here so the device fingerprint is final before any
// announcement goes out.
func NewServer(self *types.Device, state *transfer.ServerState, protocol string, port int) (*Server, error) {
	if protocol == "" {
		protocol = string(types.ProtocolHTTP)
	}
	s := &Server{
		port:     port,
		protocol: protocol,
		self:     self,
		state:    state,
	}
	if protocol == string(types.ProtocolHTTPS) {
		cert, err := tool.GenerateSelfSignedCert(self.Alias)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS certificate: %w", err)
		}
		self.Fingerprint = cert.Fingerprint
		self.HTTPS = true
		s.tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert.Certificate},
		}
	}
	return s, nil
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	// The IP check on uploads needs the peer address, never a forwarded one.
	engine.SetTrustedProxies(nil)

	uploadCtrl := controllers.NewUploadController(s.state)
	cancelCtrl := controllers.NewCancelController(s.state)
	infoCtrl := controllers.NewInfoController(s.self)

	v2 := engine.Group("/api/localsend/v2")
	{
		v2.GET("/info", infoCtrl.HandleInfoV2)
		v2.POST("/register", infoCtrl.HandleRegister)
		v2.POST("/prepare-upload", uploadCtrl.HandlePrepareUpload)
		v2.POST("/upload", uploadCtrl.HandleUpload)
		v2.POST("/cancel", cancelCtrl.HandleCancelV2)
	}
	// v1 is legacy; accept its requests but never originate them.
	v1 := engine.Group("/api/localsend/v1")
	{
		v1.GET("/info", infoCtrl.HandleInfoV1)
		v1.POST("/send-request", uploadCtrl.HandlePrepareUploadV1)
		v1.POST("/send", uploadCtrl.HandleUploadV1)
		v1.POST("/cancel", cancelCtrl.HandleCancelV1)
	}
	self := engine.Group("/api/self/v1", middlewares.OnlyAllowLocal)
	{
		self.GET("/events", controllers.HandleEvents(notify.Default()))
		self.GET("/devices", infoCtrl.HandleDevices)
	}
	return engine
}

// Start blocks serving requests until Shutdown or a listen error.
func (s *Server) Start() error {
	engine := s.setupRoutes()

	s.mu.Lock()
	s.engine = engine
	s.server = &http.Server{
		Addr:      fmt.Sprintf(":%d", s.port),
		Handler:   engine,
		TLSConfig: s.tlsConfig,
	}
	s.mu.Unlock()

	tool.DefaultLogger.Infof("Starting API server on %s://0.0.0.0:%d", s.protocol, s.port)

	if s.tlsConfig != nil {
		return s.server.ListenAndServeTLS("", "")
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	server := s.server
	s.mu.RUnlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Handler exposes the configured engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
