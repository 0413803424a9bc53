package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"match_chat/internal/apperr"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation: http.StatusBadRequest,
	apperr.KindNotFound:   http.StatusNotFound,
	apperr.KindForbidden:  http.StatusForbidden,
	apperr.KindStorage:    http.StatusInternalServerError,
	apperr.KindInternal:   http.StatusInternalServerError,
}

// respondError 將錯誤種類對應到 HTTP 狀態碼，回應格式為 {"error": {"kind", "message"}}
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{
		"error": gin.H{
			"kind":    kind,
			"message": apperr.MessageOf(err),
		},
	})
}
