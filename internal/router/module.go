package router

import "github.com/gin-gonic/gin"

// Module is a self-contained route bundle mounted under the /api group.
type Module interface {
	Register(rg *gin.RouterGroup)
}
