package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lijunhao/projfin/internal/apperr"
)

// ok writes the success envelope.
func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": data})
}

// fail writes the error envelope with the error's own HTTP status.
func fail(c *gin.Context, err error) {
	e := apperr.From(err)
	c.JSON(e.Status, gin.H{"ok": false, "error": e})
}

// abortWith fails the request from middleware, stopping the chain.
func abortWith(c *gin.Context, err error) {
	e := apperr.From(err)
	c.AbortWithStatusJSON(e.Status, gin.H{"ok": false, "error": e})
}
