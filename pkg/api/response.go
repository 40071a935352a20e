package api

import "github.com/gin-gonic/gin"

// respondError writes the error envelope every handler in this package
// returns on failure and aborts the rest of the chain.
func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"error": gin.H{
			"message": message,
			"status":  code,
		},
	})
	c.Abort()
}
