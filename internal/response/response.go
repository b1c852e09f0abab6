package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Envelope is the shape of every API response: exactly one of Data or
// Error is populated, Metadata always carries the request ID.
type Envelope struct {
	Data       interface{} `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// ErrorBody carries the machine-readable code, a human message, and
// optional per-field validation details.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Pagination describes a paginated listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Metadata ties a response to its request for log correlation.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// Success writes data under the envelope.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Envelope{Data: data, Metadata: metadataFor(c)})
}

// SuccessWithPagination writes data plus listing metadata.
func SuccessWithPagination(c *gin.Context, statusCode int, data interface{}, pagination *Pagination) {
	c.JSON(statusCode, Envelope{
		Data:       data,
		Pagination: pagination,
		Metadata:   metadataFor(c),
	})
}

// Fail writes an error envelope for the given code.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, errorEnvelope(c, code, nil))
}

// FailWithFields writes an error envelope with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, errorEnvelope(c, code, fields))
}

// AbortFail writes an error envelope and stops the middleware chain.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, errorEnvelope(c, code, nil))
}

func errorEnvelope(c *gin.Context, code ErrCode, fields map[string]string) Envelope {
	return Envelope{
		Error:    &ErrorBody{Code: code, Message: GetMessage(code), Fields: fields},
		Metadata: metadataFor(c),
	}
}

func metadataFor(c *gin.Context) Metadata {
	id, _ := c.Get(ContextKeyRequestID)
	requestID, ok := id.(string)
	if !ok || requestID == "" {
		// Request ID middleware not in the chain; keep responses traceable anyway.
		requestID = uuid.New().String()
	}
	return Metadata{
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
