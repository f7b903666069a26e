package server

import (
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/iniguard/internal/backup"
	"github.com/loykin/iniguard/internal/config"
	"github.com/loykin/iniguard/internal/discovery"
	mng "github.com/loykin/iniguard/internal/manager"
	"github.com/loykin/iniguard/internal/metrics"
	"github.com/loykin/iniguard/internal/preset"
)

// Router provides embeddable HTTP handlers for the guard controller.
// Endpoints:
//
//	GET  {basePath}/status
//	GET  {basePath}/settings
//	PUT  {basePath}/settings             body: {"restore_delay_seconds": N}
//	POST {basePath}/search               body: SearchRequest
//	POST {basePath}/select               body: {"path": "..."}
//	POST {basePath}/backup               body: {"config_path": "..."} (optional)
//	POST {basePath}/restore
//	GET  {basePath}/presets
//	POST {basePath}/presets/:name/apply
//	GET  {basePath}/patch/aa
//	POST {basePath}/patch/aa/:action     action: apply | remove
//	POST {basePath}/monitor/start        body: {"exe_path": "..."} (optional)
//	POST {basePath}/monitor/stop
//	GET  {basePath}/metrics              when enabled
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	mgr      *mng.Manager
	basePath string
	metrics  bool
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(mgr *mng.Manager, basePath string) *Router {
	return &Router{mgr: mgr, basePath: sanitizeBase(basePath)}
}

// WithMetrics exposes the Prometheus handler under {basePath}/metrics.
func (r *Router) WithMetrics() *Router {
	r.metrics = true
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/settings", r.handleGetSettings)
	group.PUT("/settings", r.handlePutSettings)
	group.POST("/search", r.handleSearch)
	group.POST("/select", r.handleSelect)
	group.POST("/backup", r.handleBackup)
	group.POST("/restore", r.handleRestore)
	group.GET("/presets", r.handlePresets)
	group.POST("/presets/:name/apply", r.handleApplyPreset)
	group.GET("/patch/aa", r.handlePatchStatus)
	group.POST("/patch/aa/:action", r.handlePatch)
	group.POST("/monitor/start", r.handleMonitorStart)
	group.POST("/monitor/stop", r.handleMonitorStop)
	if r.metrics {
		group.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, r *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// search walks directory trees and may take a while
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Roots  []string `json:"roots"`
	Suffix string   `json:"suffix"`
	First  bool     `json:"first"`
	Global bool     `json:"global"`
}

type selectReq struct {
	Path string `json:"path"`
}

type backupReq struct {
	ConfigPath string `json:"config_path"`
}

type backupResp struct {
	Backup string `json:"backup"`
}

type monitorReq struct {
	ExePath string `json:"exe_path"`
}

type monitorResp struct {
	Target string `json:"target"`
}

type settingsReq struct {
	RestoreDelaySeconds *int `json:"restore_delay_seconds"`
}

func (r *Router) handleStatus(c *gin.Context) {
	st, err := r.mgr.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleGetSettings(c *gin.Context) {
	s, err := r.mgr.Settings(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}

func (r *Router) handlePutSettings(c *gin.Context) {
	var req settingsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.RestoreDelaySeconds == nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "restore_delay_seconds required"})
		return
	}
	if _, err := r.mgr.SetRestoreDelay(c.Request.Context(), *req.RestoreDelaySeconds); err != nil {
		writeError(c, err)
		return
	}
	r.handleGetSettings(c)
}

func (r *Router) handleSearch(c *gin.Context) {
	var req SearchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}
	suffix, err := config.ResolveSuffix(req.Suffix)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	for _, root := range req.Roots {
		if !isSafeAbsPath(root) {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid root: must be absolute path without traversal"})
			return
		}
	}
	res, err := r.mgr.Search(c.Request.Context(), req.Roots, discovery.Options{Suffix: suffix, First: req.First, Global: req.Global})
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handleSelect(c *gin.Context) {
	var req selectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Path == "" || !isSafeAbsPath(req.Path) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid path: must be absolute path without traversal"})
		return
	}
	if err := r.mgr.Select(c.Request.Context(), req.Path); err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleBackup(c *gin.Context) {
	var req backupReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}
	if !isSafeAbsPath(req.ConfigPath) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid config_path: must be absolute path without traversal"})
		return
	}
	dst, err := r.mgr.Backup(c.Request.Context(), req.ConfigPath)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, backupResp{Backup: dst})
}

func (r *Router) handleRestore(c *gin.Context) {
	res, err := r.mgr.Restore(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handlePresets(c *gin.Context) {
	list, err := r.mgr.Presets()
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, list)
}

func (r *Router) handleApplyPreset(c *gin.Context) {
	name := c.Param("name")
	if !isSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid preset name: allowed [A-Za-z0-9._-] and no '..'"})
		return
	}
	p, err := r.mgr.ApplyPreset(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (r *Router) handlePatchStatus(c *gin.Context) {
	res, err := r.mgr.Patch(c.Request.Context(), mng.PatchStatus)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handlePatch(c *gin.Context) {
	res, err := r.mgr.Patch(c.Request.Context(), mng.PatchAction(c.Param("action")))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handleMonitorStart(c *gin.Context) {
	var req monitorReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}
	if !isSafeAbsPath(req.ExePath) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid exe_path: must be absolute path without traversal"})
		return
	}
	target, err := r.mgr.StartMonitor(c.Request.Context(), req.ExePath)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, monitorResp{Target: target})
}

func (r *Router) handleMonitorStop(c *gin.Context) {
	if err := r.mgr.StopMonitor(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	var ioe *backup.IOError
	switch {
	case errors.Is(err, mng.ErrNoConfigSelected), errors.Is(err, mng.ErrNoBackup), errors.Is(err, mng.ErrMonitorRunning):
		return http.StatusConflict
	case errors.Is(err, mng.ErrExecutableNotFound), errors.Is(err, preset.ErrNotFound), errors.Is(err, preset.ErrNoPresetDir):
		return http.StatusNotFound
	case errors.Is(err, mng.ErrUnknownPatchAction), errors.Is(err, preset.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, mng.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &ioe) && errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, backup.ErrReadOnly):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
}
