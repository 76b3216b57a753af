package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken("secret", "examiner-7", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "examiner-7", claims.Subject)

	_, err = ParseToken("other", token)
	assert.Error(t, err)

	expired, err := IssueToken("secret", "x", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.Error(t, err)

	_, err = IssueToken("", "x", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func authRouter(secret string) *gin.Engine {
	r := gin.New()
	r.Use(Auth(secret))
	r.GET("/who", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(SubjectKey))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := authRouter("secret")
	token, err := IssueToken("secret", "alice", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer abc", "", http.StatusUnauthorized},
		{"header", "Bearer " + token, "", http.StatusOK},
		{"query", "", "?access_token=" + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "alice", w.Body.String())
			}
		})
	}
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	w := httptest.NewRecorder()
	authRouter("").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()

	r := gin.New()
	r.Use(Logger(), RateLimit(rl))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{[]string{"*"}, "https://any.example", true},
		{[]string{"https://map.example"}, "https://map.example", true},
		{[]string{"https://map.example"}, "https://evil.example", false},
		{[]string{"https://map.example"}, "", true},
		{nil, "https://map.example", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OriginAllowed(tt.allowed, tt.origin), "%v %q", tt.allowed, tt.origin)
	}
}
