// Package httpserver implements the optional HTTP mirror of the control
// surface, plus /metrics. Grounded in the teacher's internal/server.Router:
// a gin.Engine wrapped in a small Router type exposing Handler() and
// NewServer(addr, basePath, ...), the same query-parameter-driven selector
// style, and writeJSON/sanitizeBase helpers adapted from its util.go.
package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
	"github.com/rorygraves/clientserverrunner-mcp/internal/configstore"
	"github.com/rorygraves/clientserverrunner-mcp/internal/metrics"
	"github.com/rorygraves/clientserverrunner-mcp/internal/runtime"
)

// Router mirrors the MCP control surface's verbs over HTTP.
type Router struct {
	configs  *configstore.Store
	mgr      *runtime.Manager
	basePath string
}

func NewRouter(configs *configstore.Store, mgr *runtime.Manager, basePath string) *Router {
	return &Router{configs: configs, mgr: mgr, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler serving the control surface plus /metrics.
func (r *Router) Handler() http.Handler {
	_ = metrics.Register(prometheus.DefaultRegisterer)
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/metrics", gin.WrapH(metrics.Handler()))

	group := g.Group(r.basePath)
	group.GET("/configurations", r.listConfigurations)
	group.POST("/configurations", r.createConfiguration)
	group.GET("/configurations/:id", r.getConfiguration)
	group.PUT("/configurations/:id", r.updateConfiguration)
	group.DELETE("/configurations/:id", r.deleteConfiguration)
	group.POST("/configurations/:id/start", r.startConfiguration)
	group.POST("/configurations/:id/stop", r.stopConfiguration)
	group.POST("/configurations/:id/restart", r.restartConfiguration)
	group.GET("/configurations/:id/status", r.getStatus)
	group.GET("/configurations/:id/applications/:app/logs", r.getLogs)
	group.GET("/configurations/:id/applications/:app/logs/search", r.searchLogs)
	group.GET("/configurations/:id/applications/:app/logs/runs", r.listLogRuns)
	group.POST("/configurations/:id/applications/:app/command", r.runCommand)
	group.POST("/configurations/:id/applications/:app/reload", r.triggerReload)
	return g
}

// NewServer starts a standalone HTTP server on addr.
func NewServer(addr, basePath string, configs *configstore.Store, mgr *runtime.Manager) *http.Server {
	r := NewRouter(configs, mgr, basePath)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

func appIDsFromQuery(c *gin.Context) []string {
	if v := c.QueryArray("app_id"); len(v) > 0 {
		return v
	}
	return nil
}

func (r *Router) listConfigurations(c *gin.Context) {
	cfgs, err := r.configs.List()
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cfgs)
}

func (r *Router) createConfiguration(c *gin.Context) {
	var cfg appmodel.Configuration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Kind: "ConfigInvalid", Error: err.Error()})
		return
	}
	id, err := r.configs.Create(cfg)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]string{"config_id": id})
}

func (r *Router) getConfiguration(c *gin.Context) {
	cfg, err := r.configs.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cfg)
}

func (r *Router) updateConfiguration(c *gin.Context) {
	id := c.Param("id")
	var body appmodel.Configuration
	if err := c.ShouldBindJSON(&body); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Kind: "ConfigInvalid", Error: err.Error()})
		return
	}
	cur, err := r.configs.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	allStopped := r.mgr.AllStopped(id, &cur)
	cfg, err := r.configs.Update(id, allStopped, func(c *appmodel.Configuration) error {
		c.Name = body.Name
		c.Description = body.Description
		c.Applications = body.Applications
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cfg)
}

func (r *Router) deleteConfiguration(c *gin.Context) {
	id := c.Param("id")
	force := c.Query("force") == "true"
	if err := r.mgr.DeleteConfiguration(c.Request.Context(), id, force); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) startConfiguration(c *gin.Context) {
	st, err := r.mgr.StartGroup(c.Request.Context(), c.Param("id"), appIDsFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) stopConfiguration(c *gin.Context) {
	graceful := c.DefaultQuery("graceful", "true") != "false"
	st, err := r.mgr.StopGroup(c.Request.Context(), c.Param("id"), appIDsFromQuery(c), graceful)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) restartConfiguration(c *gin.Context) {
	st, err := r.mgr.RestartGroup(c.Request.Context(), c.Param("id"), appIDsFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) getStatus(c *gin.Context) {
	st, err := r.mgr.Status(c.Request.Context(), c.Param("id"), appIDsFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) getLogs(c *gin.Context) {
	n := 0
	if s := c.Query("n"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			n = v
		}
	}
	entries, err := r.mgr.GetLogs(c.Param("id"), c.Param("app"), n, c.Query("run_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, entries)
}

func (r *Router) searchLogs(c *gin.Context) {
	maxResults := 0
	if s := c.Query("max_results"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			maxResults = v
		}
	}
	caseSensitive := c.Query("case_sensitive") == "true"
	matches, err := r.mgr.SearchLogs(c.Param("id"), c.Param("app"), c.Query("pattern"), maxResults, caseSensitive)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, matches)
}

func (r *Router) listLogRuns(c *gin.Context) {
	runs, err := r.mgr.ListLogRuns(c.Param("id"), c.Param("app"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, runs)
}

type runCommandBody struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

func (r *Router) runCommand(c *gin.Context) {
	var body runCommandBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Kind: "ConfigInvalid", Error: err.Error()})
		return
	}
	res, err := r.mgr.RunCommand(c.Request.Context(), c.Param("id"), c.Param("app"), body.Command, body.Args)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) triggerReload(c *gin.Context) {
	ok, reason, err := r.mgr.TriggerReload(c.Param("id"), c.Param("app"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"reloaded": ok, "reason": reason})
}
