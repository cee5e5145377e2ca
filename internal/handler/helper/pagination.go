package helper

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultLimit - размер страницы по умолчанию
	DefaultLimit = 50
	// MaxLimit - максимальный размер страницы
	MaxLimit = 200
)

// Pagination читает параметры skip/limit. Некорректные значения заменяются значениями по умолчанию.
func Pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, err = strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Limit читает только параметр limit с заданным значением по умолчанию
func Limit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit < 1 {
		return def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
