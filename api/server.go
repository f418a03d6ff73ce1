// Package api exposes a small local HTTP surface for inspecting the daemon:
// sync status, history and registered platforms.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crosspost/control"
	"crosspost/orchestrator"
	"crosspost/platforms"
	"crosspost/types"
)

// Server bundles the collaborators the routes read from.
type Server struct {
	orch     *orchestrator.Orchestrator
	registry *platforms.Registry
	client   *control.Client
}

// NewServer wires the inspection surface.
func NewServer(orch *orchestrator.Orchestrator, registry *platforms.Registry, client *control.Client) *Server {
	return &Server{orch: orch, registry: registry, client: client}
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; logger optional to reduce verbosity
	r.Use(gin.Recovery())

	g := r.Group("/api")
	g.GET("/status", s.handleStatus)
	g.GET("/history", s.handleHistory)
	g.GET("/platforms", s.handlePlatforms)
	r.GET("/healthz", handleHealth)
	return r
}

// StatusResponse mirrors the orchestrator snapshot plus the control channel
// connection state.
type StatusResponse struct {
	Sync    orchestrator.Snapshot `json:"sync"`
	Control control.State         `json:"control,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := StatusResponse{Sync: s.orch.Status()}
	if s.client != nil {
		resp.Control = s.client.State()
	}
	c.JSON(http.StatusOK, resp)
}

// HistoryResponse carries the persisted pass history, newest first.
type HistoryResponse struct {
	History []types.SyncHistoryItem `json:"history"`
}

func (s *Server) handleHistory(c *gin.Context) {
	c.JSON(http.StatusOK, HistoryResponse{History: s.orch.History()})
}

// PlatformsResponse lists registered platform metadata in registration order.
type PlatformsResponse struct {
	Platforms []types.PlatformMeta `json:"platforms"`
}

func (s *Server) handlePlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, PlatformsResponse{Platforms: s.registry.AllMeta()})
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
