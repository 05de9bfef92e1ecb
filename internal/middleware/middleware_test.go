package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(j *JWT) *gin.Engine {
	r := gin.New()
	ok := func(c *gin.Context) {
		claims, _ := CurrentClaims(c)
		if claims == nil {
			c.JSON(http.StatusOK, gin.H{"device": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	}
	r.GET("/me", j.RequireAuth(), ok)
	r.GET("/admin", j.RequireAuth(), RequireRoles("admin", "super_admin"), ok)
	r.POST("/gps", RequireDeviceKeyOrRoles("device-secret", j, "admin"), ok)
	return r
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(tok string) map[string]string { return map[string]string{"Authorization": "Bearer " + tok} }

func TestTokenRoundTrip(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	tok, err := j.GenerateToken(42, "a@gehu.ac.in", "admin", UserTypeAdmin)
	require.NoError(t, err)

	claims, err := j.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, UserTypeAdmin, claims.UserType)

	_, err = NewJWT("other-secret", time.Hour).ValidateToken(tok)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredAndForeignAlgorithms(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	j.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := j.GenerateToken(1, "", "student", UserTypeStudent)
	require.NoError(t, err)
	j.now = time.Now
	_, err = j.ValidateToken(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, Role: "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = j.ValidateToken(unsigned)
	assert.Error(t, err)
}

func TestRequireAuthAndRoles(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	r := newRouter(j)
	admin, _ := j.GenerateToken(1, "", "admin", UserTypeAdmin)
	student, _ := j.GenerateToken(2, "", "student", UserTypeStudent)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", bearer("garbage")).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/me", bearer(student)).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/me?token="+student, nil).Code)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", bearer(student)).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/admin", bearer(admin)).Code)
}

func TestDeviceKey(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	r := newRouter(j)
	admin, _ := j.GenerateToken(1, "", "admin", UserTypeAdmin)
	student, _ := j.GenerateToken(2, "", "student", UserTypeStudent)

	w := do(r, http.MethodPost, "/gps", map[string]string{DeviceKeyHeader: "device-secret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"device":true}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/gps", map[string]string{DeviceKeyHeader: "nope"}).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/gps", bearer(admin)).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/gps", bearer(student)).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/gps", nil).Code)
}

func TestEnableCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := EnableCORS("https://ebus.gehu.ac.in/, http://localhost:3000", next)

	w := do(h, http.MethodGet, "/", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(h, http.MethodGet, "/", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = do(h, http.MethodOptions, "/", map[string]string{"Origin": "https://ebus.gehu.ac.in"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(EnableCORS("", next), http.MethodGet, "/", map[string]string{"Origin": "http://10.0.2.2:8080"})
	assert.Equal(t, "http://10.0.2.2:8080", w.Header().Get("Access-Control-Allow-Origin"))
}
