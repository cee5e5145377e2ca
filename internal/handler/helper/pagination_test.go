package helper

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newContext(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request, _ = http.NewRequest(http.MethodGet, "/?"+query, nil)
	return c
}

func TestPagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", DefaultLimit, 0},
		{"explicit", "skip=20&limit=10", 10, 20},
		{"limit capped", "limit=5000", MaxLimit, 0},
		{"garbage", "skip=abc&limit=-3", DefaultLimit, 0},
		{"negative skip", "skip=-1&limit=3", 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := Pagination(newContext(tt.query))

			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestLimit(t *testing.T) {
	assert.Equal(t, 20, Limit(newContext(""), 20))
	assert.Equal(t, 7, Limit(newContext("limit=7"), 20))
	assert.Equal(t, 20, Limit(newContext("limit=zero"), 20))
	assert.Equal(t, MaxLimit, Limit(newContext("limit=100000"), 20))
}
