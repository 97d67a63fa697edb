package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Envelope: 全レスポンス共通の形 {success, data?, error?}
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    Code   `json:"code,omitempty"`
}

// Page: 一覧系の共通ページング
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type ListResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	NextOffset *int  `json:"next_offset,omitempty"`
}

func NewList[T any](items []T, total int64, p Page) ListResult[T] {
	if items == nil {
		items = []T{}
	}
	return ListResult[T]{Items: items, Total: total, NextOffset: nextOffset(p, total)}
}

func nextOffset(p Page, total int64) *int {
	n := p.Offset + p.Limit
	if p.Limit <= 0 || int64(n) >= total {
		return nil
	}
	return &n
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Fail: エラーを封筒に落とす。APIError 以外は 500 として中身を隠す。
func Fail(c *gin.Context, err error) {
	var ae *APIError
	if !errors.As(err, &ae) {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("internal error")
		_ = c.Error(err)
		ae = ErrInternal("internal server error")
	}
	c.AbortWithStatusJSON(ToHTTPStatus(ae), Envelope{Success: false, Error: ae.Message, Code: ae.Code})
}

// BadJSON: バインド失敗
func BadJSON(c *gin.Context, err error) {
	msg := "invalid json or missing required fields"
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	Fail(c, ErrInvalid(msg))
}

// NoMethod / NoRoute 用
func NoMethod(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusMethodNotAllowed, Envelope{
		Success: false, Error: "Method not allowed", Code: CodeMethodNotAllowed,
	})
}

func NoRoute(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, Envelope{
		Success: false, Error: "route not found", Code: CodeNotFound,
	})
}

// Recovery: panic を 500 の封筒で返す
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Error().Interface("panic", rec).Str("path", c.FullPath()).Msg("recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, Envelope{
			Success: false, Error: "internal server error", Code: CodeInternal,
		})
	})
}
