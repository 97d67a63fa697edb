package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const MaxLimit = 500

// ParsePage: limit/offset クエリ。不正値は既定値に丸める
func ParsePage(c *gin.Context, defLimit int) Page {
	p := Page{
		Limit:  parseIntDefault(c.Query("limit"), defLimit),
		Offset: parseIntDefault(c.Query("offset"), 0),
	}
	if p.Limit <= 0 {
		p.Limit = defLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
