package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/apascualco/microscope/internal/application/notify"
	"github.com/apascualco/microscope/internal/domain"
	"github.com/gin-gonic/gin"
)

// FilterStore is the part of the notification relay the filters API manages.
type FilterStore interface {
	AddFilter(f notify.Filter) string
	RemoveFilter(id string) error
	Filters() []notify.FilterInfo
}

type FiltersHandler struct {
	store FilterStore
	now   func() time.Time
}

func NewFiltersHandler(store FilterStore) *FiltersHandler {
	return &FiltersHandler{store: store, now: time.Now}
}

func (h *FiltersHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Filters())
}

// Add installs a filter for ?id= or ?name=. An optional ?ttl= duration sets the expiry.
func (h *FiltersHandler) Add(c *gin.Context) {
	id := c.Query("id")
	name := c.Query("name")
	if (id == "") == (name == "") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "exactly one of id or name is required",
		})
		return
	}

	var expiry time.Time
	if raw := c.Query("ttl"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "ttl must be a positive duration",
			})
			return
		}
		expiry = h.now().Add(ttl)
	}

	var filter notify.Filter
	if id != "" {
		filter = notify.NewApplicationIDFilter(id, expiry)
	} else {
		filter = notify.NewApplicationNameFilter(name, expiry)
	}

	info := filter.Describe()
	info.ID = h.store.AddFilter(filter)
	c.JSON(http.StatusCreated, info)
}

func (h *FiltersHandler) Remove(c *gin.Context) {
	if err := h.store.RemoveFilter(c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrFilterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "filter_not_found",
				"message": "the specified filter does not exist",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "filter_removal_failed",
			"message": err.Error(),
		})
		return
	}
	c.Status(http.StatusNoContent)
}
