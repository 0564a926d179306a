package web

import (
	"context"
	"errors"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/castellan/castellan/core"
)

// moduleView is the JSON shape for a module in API responses.
type moduleView struct {
	Name         string     `json:"name"`
	Version      string     `json:"version"`
	State        string     `json:"state,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty"`
	Loaded       bool       `json:"loaded"`
	Ignored      bool       `json:"ignored"`
	InstanceID   string     `json:"instanceId,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
}

func (s *Server) moduleView(name string) moduleView {
	v := moduleView{Name: name, Ignored: s.mgr.IsIgnored(name)}
	if desc, ok := s.mgr.Descriptor(name); ok {
		v.Version = desc.Version
		v.Dependencies = desc.Dependencies
	}
	if inst := s.mgr.Instance(name); inst != nil {
		v.Loaded = true
		v.State = string(inst.State())
		v.InstanceID = inst.ID()
		v.StartedAt = inst.StartedAt()
		v.Version = inst.Descriptor().Version
		v.Dependencies = inst.Descriptor().Dependencies
	}
	return v
}

func (s *Server) handleList(c *gin.Context) {
	names := map[string]struct{}{}
	for _, n := range s.mgr.Available() {
		names[n] = struct{}{}
	}
	for n := range s.mgr.Instances() {
		names[n] = struct{}{}
	}
	for _, n := range s.mgr.Ignored() {
		names[n] = struct{}{}
	}

	views := make([]moduleView, 0, len(names))
	for n := range names {
		views = append(views, s.moduleView(n))
	}
	c.JSON(http.StatusOK, gin.H{"modules": views})
}

func (s *Server) handleGet(c *gin.Context) {
	name := c.Param("name")
	if _, ok := s.mgr.Descriptor(name); !ok && s.mgr.Instance(name) == nil && !s.mgr.IsIgnored(name) {
		writeProblem(c, http.StatusNotFound, "module not found")
		return
	}
	c.JSON(http.StatusOK, s.moduleView(name))
}

func (s *Server) handleLoad(c *gin.Context) {
	force := c.Query("force") == "true"
	inst, err := s.mgr.Load(c.Request.Context(), c.Param("name"), force)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.moduleView(inst.Name()))
}

func (s *Server) handleStart(c *gin.Context) {
	s.lifecycleAction(c, s.mgr.Start)
}

func (s *Server) handleStop(c *gin.Context) {
	s.lifecycleAction(c, s.mgr.Stop)
}

func (s *Server) handleBootstrap(c *gin.Context) {
	s.lifecycleAction(c, s.mgr.Bootstrap)
}

func (s *Server) handleUnload(c *gin.Context) {
	s.lifecycleAction(c, s.mgr.Unload)
}

func (s *Server) lifecycleAction(c *gin.Context, op func(ctx context.Context, name string) error) {
	name := c.Param("name")
	if err := op(c.Request.Context(), name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.moduleView(name))
}

func (s *Server) handleEnable(c *gin.Context) {
	s.adminAction(c, s.mgr.Enable)
}

func (s *Server) handleDisable(c *gin.Context) {
	s.adminAction(c, s.mgr.Disable)
}

func (s *Server) handleIgnore(c *gin.Context) {
	s.adminAction(c, s.mgr.Ignore)
}

func (s *Server) handleUnignore(c *gin.Context) {
	s.adminAction(c, s.mgr.Unignore)
}

func (s *Server) adminAction(c *gin.Context, op func(name string) error) {
	name := c.Param("name")
	if err := op(name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.moduleView(name))
}

func (s *Server) handleRefresh(c *gin.Context) {
	if err := s.mgr.Refresh(c.Request.Context()); err != nil {
		writeProblem(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": s.mgr.Available()})
}

func (s *Server) handleInfo(c *gin.Context) {
	info := gin.H{
		"app": gin.H{
			"name":    s.cfg.App.Name,
			"version": s.cfg.App.Version,
		},
		"runtime": gin.H{
			"go":           runtime.Version(),
			"numGoroutine": runtime.NumGoroutine(),
			"pid":          os.Getpid(),
			"time":         time.Now().UTC().Format(time.RFC3339),
		},
		"modules": gin.H{
			"available": len(s.mgr.Available()),
			"loaded":    len(s.mgr.Instances()),
			"ignored":   len(s.mgr.Ignored()),
		},
	}

	if h, err := host.Info(); err == nil {
		info["host"] = gin.H{
			"hostname": h.Hostname,
			"os":       h.OS,
			"platform": h.Platform,
			"uptime":   h.Uptime,
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info["memory"] = gin.H{
			"total":       vm.Total,
			"available":   vm.Available,
			"usedPercent": vm.UsedPercent,
		}
	}

	c.JSON(http.StatusOK, info)
}

// writeError maps coordinator errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		notFound *core.NotFoundError
		depErr   *core.DependencyError
		cycErr   *core.CircularDependencyError
		stateErr *core.StateError
	)
	switch {
	case errors.As(err, &notFound):
		writeProblem(c, http.StatusNotFound, err.Error())
	case errors.As(err, &stateErr):
		writeProblem(c, http.StatusConflict, err.Error())
	case errors.As(err, &depErr), errors.As(err, &cycErr):
		writeProblem(c, http.StatusUnprocessableEntity, err.Error())
	default:
		writeProblem(c, http.StatusBadRequest, err.Error())
	}
}

func writeProblem(c *gin.Context, status int, detail string) {
	c.Header("Content-Type", "application/problem+json")
	c.JSON(status, gin.H{
		"type":   "about:blank",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
