package handler

import (
	"errors"
	"net/http"

	"github.com/apascualco/microscope/internal/application"
	"github.com/apascualco/microscope/internal/domain"
	"github.com/gin-gonic/gin"
)

type ApplicationsHandler struct {
	registry *application.Registry
}

func NewApplicationsHandler(registry *application.Registry) *ApplicationsHandler {
	return &ApplicationsHandler{registry: registry}
}

func (h *ApplicationsHandler) Register(c *gin.Context) {
	var req domain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	resp, err := h.registry.Register(&req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "registration_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// List returns every application, or only those named by the name query parameter.
func (h *ApplicationsHandler) List(c *gin.Context) {
	var apps []*domain.Application
	if name, ok := c.GetQuery("name"); ok {
		apps = h.registry.GetApplicationsByName(name)
	} else {
		apps = h.registry.GetApplications()
	}
	if apps == nil {
		apps = []*domain.Application{}
	}
	c.JSON(http.StatusOK, apps)
}

func (h *ApplicationsHandler) Names(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.GetNames())
}

func (h *ApplicationsHandler) Get(c *gin.Context) {
	app := h.registry.GetApplication(c.Param("id"))
	if app == nil {
		applicationNotFound(c)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *ApplicationsHandler) Deregister(c *gin.Context) {
	if err := h.registry.Deregister(c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrApplicationNotFound) {
			applicationNotFound(c)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "deregistration_failed",
			"message": err.Error(),
		})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ApplicationsHandler) Heartbeat(c *gin.Context) {
	if err := h.registry.Heartbeat(c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrApplicationNotFound) {
			applicationNotFound(c)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "heartbeat_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, domain.HeartbeatResponse{Status: "ok"})
}

func applicationNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "application_not_found",
		"message": "the specified application does not exist",
	})
}
