package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDKey ключ request ID в контексте gin
const requestIDKey = "request_id"

// RequestID добавляет уникальный request ID к каждому запросу
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Генерируем или получаем request ID из заголовка
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}

		c.Set(requestIDKey, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

// GetRequestID извлекает request ID из контекста gin
func GetRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	reqID, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	s, _ := reqID.(string)
	return s
}
