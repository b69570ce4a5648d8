package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailfold/mailfold/config"
	"github.com/mailfold/mailfold/interfaces"
	mailerrors "github.com/mailfold/mailfold/internal/errors"
	"github.com/mailfold/mailfold/internal/models"
)

// stubEngine records calls and returns scripted errors.
type stubEngine struct {
	statuses  map[string]interfaces.AccountStatus
	addErr    error
	removeErr error
	added     []*models.Account
	removed   []string
}

func (s *stubEngine) Start(ctx context.Context) error { return nil }
func (s *stubEngine) Stop() error                     { return nil }
func (s *stubEngine) AddAccount(ctx context.Context, account *models.Account) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.added = append(s.added, account)
	return nil
}
func (s *stubEngine) RemoveAccount(ctx context.Context, accountID string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	s.removed = append(s.removed, accountID)
	return nil
}
func (s *stubEngine) WaitForSetup(ctx context.Context) error { return nil }
func (s *stubEngine) Status() map[string]interfaces.AccountStatus {
	return s.statuses
}

// validatingEngine runs the same account validation the real engine does
// before recording the call.
type validatingEngine struct {
	stubEngine
}

func (v *validatingEngine) AddAccount(ctx context.Context, account *models.Account) error {
	if err := config.ValidateAccount(account); err != nil {
		return err
	}
	return v.stubEngine.AddAccount(ctx, account)
}

func setupRouter(engine interfaces.SyncEngine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/v1/accounts", ListAccounts(engine))
	r.POST("/v1/accounts", AddAccount(engine))
	r.DELETE("/v1/accounts/:id", RemoveAccount(engine))
	return r
}

func TestAddAccount_GeneratesID(t *testing.T) {
	// Arrange
	engine := &stubEngine{}
	router := setupRouter(engine)
	body := `{"server":"imap.example.com","username":"u@example.com","password":"secret","tls":true}`

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts", strings.NewReader(body))
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, engine.added, 1)
	assert.True(t, strings.HasPrefix(engine.added[0].ID, "acct_"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, engine.added[0].ID, response["id"])
}

func TestAddAccount_PasswordReachesValidation(t *testing.T) {
	// Arrange
	engine := &validatingEngine{}
	router := setupRouter(engine)
	body := `{"server":"imap.example.com","username":"u@example.com","password":"secret","tls":true}`

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts", strings.NewReader(body))
	router.ServeHTTP(w, req)

	// Assert: the bound password survives into the validated account
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, engine.added, 1)
	assert.Equal(t, "secret", engine.added[0].Password)
	assert.Equal(t, 993, engine.added[0].Port)
}

func TestAddAccount_MissingPassword(t *testing.T) {
	// Arrange
	router := setupRouter(&validatingEngine{})
	body := `{"server":"imap.example.com","username":"u@example.com"}`

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts", strings.NewReader(body))
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "password is required")
}

func TestAddAccount_InvalidJSON(t *testing.T) {
	// Arrange
	router := setupRouter(&stubEngine{})

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts", strings.NewReader("{not json"))
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddAccount_Duplicate(t *testing.T) {
	// Arrange
	engine := &stubEngine{addErr: mailerrors.ErrAccountExists}
	router := setupRouter(engine)
	body := `{"id":"acct_dup","server":"imap.example.com","username":"u","password":"p"}`

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts", strings.NewReader(body))
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRemoveAccount_NotFound(t *testing.T) {
	// Arrange
	engine := &stubEngine{removeErr: mailerrors.ErrAccountNotFound}
	router := setupRouter(engine)

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/accounts/acct_missing", nil)
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveAccount_OK(t *testing.T) {
	// Arrange
	engine := &stubEngine{}
	router := setupRouter(engine)

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/v1/accounts/acct_1", nil)
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"acct_1"}, engine.removed)
}

func TestListAccounts(t *testing.T) {
	// Arrange
	engine := &stubEngine{statuses: map[string]interfaces.AccountStatus{
		"acct_1": {Label: "work", Connected: true},
	}}
	router := setupRouter(engine)

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/accounts", nil)
	router.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interfaces.AccountStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response["acct_1"].Connected)
}
