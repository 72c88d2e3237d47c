package response

import (
	"net/http"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Body 统一响应结构
type Body struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Success 200
func Success(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Body{Code: http.StatusOK, Msg: msg, Data: data})
}

// Created 201
func Created(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusCreated, Body{Code: http.StatusCreated, Msg: msg, Data: data})
}

// Fail 400
func Fail(c *gin.Context, msg string, data interface{}) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Body{Code: http.StatusBadRequest, Msg: msg, Data: data})
}

// Error maps the error kind onto the status code. Internal details are logged,
// not returned.
func Error(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	msg := errors.GetMessage(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(errors.KindOf(err))),
			zap.Error(err))
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, Body{Code: status, Msg: msg})
}
