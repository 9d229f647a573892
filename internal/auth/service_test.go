package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abduss/stopsurvey/internal/catalog"
	"github.com/abduss/stopsurvey/internal/config"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret: "access-secret",
		AccessTokenTTL:    time.Minute,
		BcryptCost:        4,
	}
}

// memoryDirectory implements staffDirectory for tests.
type memoryDirectory map[string]catalog.Staff

func (m memoryDirectory) Staff(id string) (catalog.Staff, bool) {
	s, ok := m[id]
	return s, ok
}

func newDirectory(t *testing.T) memoryDirectory {
	t.Helper()
	hash, err := HashPIN("4821", 4)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	return memoryDirectory{
		"S100": {ID: "S100", Name: "Asha", PINHash: hash},
		"S200": {ID: "S200", Name: "No PIN"},
	}
}

func TestLogin(t *testing.T) {
	service := NewService(newDirectory(t), testConfig())

	result, err := service.Login(context.Background(), LoginInput{StaffID: " S100 ", PIN: "4821"})
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}
	if result.Token.Token == "" {
		t.Fatalf("expected access token")
	}
	if result.Staff.ID != "S100" || result.Staff.Name != "Asha" {
		t.Fatalf("unexpected staff %+v", result.Staff)
	}

	claims, err := service.ValidateAccessToken(result.Token.Token)
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	if claims.StaffID != "S100" || claims.Name != "Asha" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	service := NewService(newDirectory(t), testConfig())

	cases := []LoginInput{
		{StaffID: "S100", PIN: "0000"},
		{StaffID: "S999", PIN: "4821"},
		{StaffID: "S200", PIN: "4821"},
		{StaffID: "S100", PIN: "12"},
		{StaffID: "", PIN: "4821"},
	}
	for _, in := range cases {
		if _, err := service.Login(context.Background(), in); err != ErrInvalidCredentials {
			t.Fatalf("login(%+v): expected ErrInvalidCredentials, got %v", in, err)
		}
	}
}

func TestValidateRejectsExpiredAndForeignTokens(t *testing.T) {
	dir := newDirectory(t)
	service := NewService(dir, testConfig())
	result, err := service.Login(context.Background(), LoginInput{StaffID: "S100", PIN: "4821"})
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}

	other := NewService(dir, config.AuthConfig{AccessTokenSecret: "other-secret", AccessTokenTTL: time.Minute})
	if _, err := other.ValidateAccessToken(result.Token.Token); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for foreign secret, got %v", err)
	}

	service.nowFunc = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := service.ValidateAccessToken(result.Token.Token); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}

	delete(dir, "S100")
	service.nowFunc = time.Now
	if _, err := service.ValidateAccessToken(result.Token.Token); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for removed staff, got %v", err)
	}
}

func TestHashPINRejectsShortPIN(t *testing.T) {
	if _, err := HashPIN("12", 4); err == nil {
		t.Fatalf("expected error for short pin")
	}
}

func TestLoginHandlerAndMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := NewService(newDirectory(t), testConfig())

	r := gin.New()
	RegisterRoutes(r.Group("/v1"), service)
	protected := r.Group("/v1", AuthMiddleware(service))
	protected.GET("/whoami", func(c *gin.Context) {
		staff, ok := CurrentStaff(c)
		if !ok {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, staff)
	})

	body, _ := json.Marshal(map[string]string{"staff_id": "S100", "pin": "4821"})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from login, got %d: %s", rr.Code, rr.Body.String())
	}
	var login loginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}
}
