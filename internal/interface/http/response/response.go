package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo: тело ошибки. Details содержит контекст: текущий и запрошенный статус,
// требуемую роль, идентификатор существующего спора.
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type ListResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

func List(c *gin.Context, data interface{}, limit, offset int) {
	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    data,
		Limit:   limit,
		Offset:  offset,
	})
}

// Error отдаёт клиенту код и сообщение AppError. Причина (Cause) только логируется.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Code != apperror.ErrCodeInternal {
		c.JSON(appErr.HTTPStatus, Response{
			Success: false,
			Error: &ErrorInfo{
				Code:    string(appErr.Code),
				Message: appErr.Message,
				Details: appErr.Details,
			},
		})
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}).WithError(err).Error("внутренняя ошибка")

	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    string(apperror.ErrCodeInternal),
			Message: "внутренняя ошибка сервера",
		},
	})
}

func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, apperror.ErrCodeBadRequest, message)
}

func Validation(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, apperror.ErrCodeValidation, message)
}

func NotFound(c *gin.Context, message string) {
	abort(c, http.StatusNotFound, apperror.ErrCodeNotFound, message)
}

func Unauthenticated(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, apperror.ErrCodeUnauthenticated, message)
}

func abort(c *gin.Context, status int, code apperror.ErrorCode, message string) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    string(code),
			Message: message,
		},
	})
}
