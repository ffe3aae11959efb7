package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"complaint-analytics-service/internal/auth"
	"complaint-analytics-service/internal/model"
)

func newRouter(parser *auth.Parser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Auth(parser, zerolog.Nop()))
	r.GET("/me", func(c *gin.Context) {
		principal, _ := MustPrincipal(c)
		c.String(http.StatusOK, string(principal.Role))
	})
	r.GET("/admin", RequireRole(model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuth(t *testing.T) {
	parser := auth.NewParser("secret")
	router := newRouter(parser)

	analystToken, err := parser.Issue(model.Principal{UserID: uuid.New(), Role: model.RoleAnalyst}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer abc", http.StatusUnauthorized},
		{"valid token", "/me", "bearer " + analystToken, http.StatusOK},
		{"role not allowed", "/admin", "Bearer " + analystToken, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
		if rec.Header().Get(requestIDHeader) == "" {
			t.Fatalf("%s: missing request id", tc.name)
		}
	}
}
