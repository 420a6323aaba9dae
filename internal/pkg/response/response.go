// Package response renders the uniform JSON envelope every endpoint speaks:
// {"success": true, "data": ...} on success and
// {"success": false, "error": {"code", "message"}} on failure. Error codes
// are stable machine-readable identifiers (AUTH_REQUIRED, PERMISSION_DENIED,
// RESOURCE_NOT_FOUND, SIGNATURE_INVALID, ...); messages are free-form and
// may change.
package response

import "github.com/gin-gonic/gin"

// Success writes data inside the success envelope.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

// Error writes a stable error code with a human-readable message.
func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// ErrorWithDetails additionally carries diagnostic detail, for failures
// where the client can act on more than the code (conversion output and
// the like).
func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
