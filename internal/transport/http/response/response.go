package response

import "github.com/gin-gonic/gin"

const (
	MsgNoFileProvided  = "No file provided"
	MsgNoFileSelected  = "No file selected"
	MsgFileTooLarge    = "File too large"
	MsgDetectionFailed = "Error processing image for detection"
	MsgInternal        = "Internal server error"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, ErrorResponse{Error: message})
}
