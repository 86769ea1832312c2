package handler

import (
	"net/http"

	"github.com/apascualco/microscope/internal/domain"
	"github.com/gin-gonic/gin"
)

// InfoHandler serves build and git properties and, when running in a cloud, the
// detected machine metadata as a flat map under cloudKey.
func InfoHandler(build, git domain.InfoProperties, cloudKey string, cloud *domain.CloudMetadata) gin.HandlerFunc {
	body := gin.H{
		"build": build.All(),
		"git":   git.All(),
	}
	if cloudKey != "" && !cloud.IsEmpty() {
		body[cloudKey] = cloud.Values()
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, body)
	}
}
