package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developerashishcanada/carpoolreact/internal/api/dto"
	"github.com/developerashishcanada/carpoolreact/internal/api/handlers"
	"github.com/developerashishcanada/carpoolreact/internal/api/routes"
	"github.com/developerashishcanada/carpoolreact/internal/domain/chat"
	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
	"github.com/developerashishcanada/carpoolreact/internal/domain/wallet"
	"github.com/developerashishcanada/carpoolreact/internal/events"
	"github.com/developerashishcanada/carpoolreact/internal/identity"
	"github.com/developerashishcanada/carpoolreact/internal/service/marketplace"
	"github.com/developerashishcanada/carpoolreact/internal/store/memory"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

type testServer struct {
	router *gin.Engine
	jwt    *identity.JWTProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := memory.New("test-app")
	t.Cleanup(func() { s.Close() })

	log := logger.NewNop()
	jwtProvider := identity.NewJWTProvider("test-secret", time.Hour)
	svc := marketplace.NewService(s, nil, &events.Recorder{}, nil, log)
	h := handlers.NewHandlers(svc, jwtProvider, nil, log)

	r := gin.New()
	routes.SetupRoutes(r, h, routes.Options{Provider: jwtProvider})
	return &testServer{router: r, jwt: jwtProvider}
}

func (ts *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := ts.jwt.Issue(userID)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.ErrorResponse
	decode(t, w, &resp)
	return resp.Code
}

func (ts *testServer) registerDriver(t *testing.T, id string) string {
	t.Helper()
	token := ts.token(t, id)
	w := ts.do(t, http.MethodPost, "/v1/profile", token, gin.H{
		"name":             "Driver " + id,
		"email":            id + "@example.com",
		"phone":            "555-0100",
		"role":             "driver",
		"vehicle":          gin.H{"type": "Sedan", "color": "Blue", "plate": "CPL 123"},
		"license_uploaded": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return token
}

func (ts *testServer) registerRider(t *testing.T, id string) string {
	t.Helper()
	token := ts.token(t, id)
	w := ts.do(t, http.MethodPost, "/v1/profile", token, gin.H{
		"name":        "Rider " + id,
		"email":       id + "@example.com",
		"phone":       "555-0199",
		"role":        "rider",
		"id_uploaded": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return token
}

func (ts *testServer) postRide(t *testing.T, token string) ride.Ride {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/v1/rides", token, gin.H{
		"from":            "Toronto Downtown",
		"to":              "Mississauga",
		"stops":           []string{"Etobicoke"},
		"start_time":      time.Now().Add(time.Hour).Format(time.RFC3339),
		"available_seats": 2,
		"price_per_seat":  15,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var rd ride.Ride
	decode(t, w, &rd)
	return rd
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestAuth_AnonymousSignIn(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/auth/anonymous", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.SignInResponse
	decode(t, w, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.UserID)

	// The fresh identity has no profile yet
	w = ts.do(t, http.MethodGet, "/v1/profile", resp.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeNotFound, errorCode(t, w))
}

func TestAuth_Required(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name  string
		path  string
		token string
	}{
		{"no token", "/v1/rides", ""},
		{"garbage token", "/v1/rides", "not-a-jwt"},
		{"wallet", "/v1/wallet", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRegister_ReturnsFieldErrors(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/profile", ts.token(t, "u1"), gin.H{"role": "driver"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.ErrorResponse
	decode(t, w, &resp)
	assert.Equal(t, apperrors.CodeValidation, resp.Code)
	assert.Contains(t, resp.Fields, "name")
	assert.Contains(t, resp.Fields, "license_uploaded")
}

func TestPostRide_Rejections(t *testing.T) {
	ts := newTestServer(t)
	driver := ts.registerDriver(t, "d1")
	rider := ts.registerRider(t, "r1")

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/rides", bytes.NewBufferString("{"))
		req.Header.Set("Authorization", "Bearer "+driver)
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.CodeValidation, errorCode(t, w))
	})

	t.Run("rider cannot post", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/v1/rides", rider, gin.H{
			"from": "A", "to": "B", "available_seats": 1, "price_per_seat": 5,
			"start_time": time.Now().Add(time.Hour).Format(time.RFC3339),
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unregistered caller", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/v1/rides", ts.token(t, "nobody"), gin.H{"from": "A"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRideLifecycle(t *testing.T) {
	ts := newTestServer(t)
	driver := ts.registerDriver(t, "d1")
	rider := ts.registerRider(t, "r1")

	rd := ts.postRide(t, driver)
	assert.Equal(t, ride.StatusActive, rd.Status)
	assert.Equal(t, []string{"Toronto Downtown", "Etobicoke", "Mississauga"}, rd.Route)

	// Search by a stop on the route
	w := ts.do(t, http.MethodGet, "/v1/rides?route=etobicoke,mississauga", rider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var found struct {
		Items []ride.Ride `json:"items"`
		Count int         `json:"count"`
	}
	decode(t, w, &found)
	require.Equal(t, 1, found.Count)
	assert.Equal(t, rd.ID, found.Items[0].ID)

	// Request a seat, twice
	w = ts.do(t, http.MethodPost, "/v1/rides/"+rd.ID+"/requests", rider, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var req request.Request
	decode(t, w, &req)
	assert.Equal(t, request.StatusPending, req.Status)

	w = ts.do(t, http.MethodPost, "/v1/rides/"+rd.ID+"/requests", rider, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Only the owning driver accepts
	w = ts.do(t, http.MethodPost, "/v1/requests/"+req.ID+"/accept", rider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/requests/"+req.ID+"/accept", driver, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &req)
	assert.Equal(t, request.StatusAccepted, req.Status)

	w = ts.do(t, http.MethodGet, "/v1/rides/"+rd.ID, rider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &rd)
	assert.Equal(t, 1, rd.AvailableSeats)

	// Active requests as seen by the driver
	w = ts.do(t, http.MethodGet, "/v1/requests?active=true", driver, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), req.ID)

	// Settle
	w = ts.do(t, http.MethodPost, "/v1/rides/"+rd.ID+"/complete", driver, gin.H{"rider_id": "r1", "price": 15})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var settlement marketplace.Settlement
	decode(t, w, &settlement)
	assert.True(t, settlement.DriverBalance.Equal(decimal.NewFromInt(15)))
	assert.True(t, settlement.RiderBalance.Equal(decimal.NewFromInt(-15)))

	w = ts.do(t, http.MethodPost, "/v1/rides/"+rd.ID+"/complete", driver, gin.H{"rider_id": "r1", "price": 15})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/wallet", driver, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balance wallet.Balance
	decode(t, w, &balance)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(15)))
}

func TestWallet_DepositAndWithdraw(t *testing.T) {
	ts := newTestServer(t)
	rider := ts.registerRider(t, "r1")

	w := ts.do(t, http.MethodPost, "/v1/wallet/deposit", rider, gin.H{"amount": 50})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/v1/wallet/withdraw", rider, gin.H{"amount": 80})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CodeInsufficientFunds, errorCode(t, w))

	w = ts.do(t, http.MethodPost, "/v1/wallet/withdraw", rider, gin.H{"amount": 20})
	require.Equal(t, http.StatusOK, w.Code)
	var balance wallet.Balance
	decode(t, w, &balance)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(30)))

	w = ts.do(t, http.MethodGet, "/v1/wallet/history", rider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history dto.ListResponse
	decode(t, w, &history)
	assert.Equal(t, 2, history.Count)
}

func TestChat_SendAndRead(t *testing.T) {
	ts := newTestServer(t)
	driver := ts.registerDriver(t, "d1")
	rider := ts.registerRider(t, "r1")
	outsider := ts.registerRider(t, "r2")
	rd := ts.postRide(t, driver)

	w := ts.do(t, http.MethodPost, "/v1/chats/messages", rider, gin.H{
		"ride_id": rd.ID,
		"text":    "Is there room for a bag?",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var thread chat.Thread
	decode(t, w, &thread)
	assert.Len(t, thread.Messages, 1)

	w = ts.do(t, http.MethodPost, "/v1/chats/messages", driver, gin.H{
		"ride_id":        rd.ID,
		"participant_id": "r1",
		"text":           "Sure",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/v1/chats/"+thread.ID, rider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &thread)
	assert.Len(t, thread.Messages, 2)

	w = ts.do(t, http.MethodGet, "/v1/chats/"+thread.ID, outsider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/chats/messages", rider, gin.H{"ride_id": rd.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuggestions_Unavailable(t *testing.T) {
	ts := newTestServer(t)
	driver := ts.registerDriver(t, "d1")

	w := ts.do(t, http.MethodPost, "/v1/rides/suggest-price", driver, gin.H{"from": "Toronto", "to": "Ottawa"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, apperrors.CodeExternalService, errorCode(t, w))

	w = ts.do(t, http.MethodPost, "/v1/suggestions/refine", driver, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebSocket_DisabledWithoutHub(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/ws?token="+ts.token(t, "u1"), "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
