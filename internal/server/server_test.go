package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-backtest-lab/internal/domain"
	"fx-backtest-lab/internal/marketdata"
	"fx-backtest-lab/internal/oracle"
	"fx-backtest-lab/internal/server"
	"fx-backtest-lab/internal/simulation"
	"fx-backtest-lab/internal/storage/memory"
)

var seriesStart = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func testServer(t *testing.T) (*httptest.Server, *memory.SessionStore) {
	t.Helper()

	candles := make([]domain.Candle, 100)
	for i := range candles {
		candles[i] = domain.Candle{
			Timestamp: seriesStart.Add(time.Duration(i) * time.Minute),
			Open:      1.1000, High: 1.1005, Low: 1.0995, Close: 1.1000,
		}
	}

	store := memory.NewSessionStore()
	srv := server.New(server.Options{
		Provider: marketdata.NewSliceProvider(map[domain.Resolution][]domain.Candle{
			domain.ResolutionM1: candles,
		}),
		Oracle:   &oracle.StubOracle{},
		Sessions: store,
		Users:    memory.NewUserStore(),
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func postSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()

	cfg := simulation.Config{
		UserID:              "user-1",
		Symbol:              "EURUSD",
		StartDate:           seriesStart,
		EndDate:             seriesStart.Add(100 * time.Minute),
		InitialBalance:      10000,
		SkipCandles:         10,
		AnalysisWindowHours: 1,
	}
	body, err := json.Marshal(cfg)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.SessionID)
	return created.SessionID
}

func getSession(t *testing.T, ts *httptest.Server, id string) (*domain.BacktestSession, int) {
	t.Helper()

	resp, err := http.Get(ts.URL + "/api/sessions/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode
	}
	var session domain.BacktestSession
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	return &session, resp.StatusCode
}

func waitTerminal(t *testing.T, ts *httptest.Server, id string) *domain.BacktestSession {
	t.Helper()

	var session *domain.BacktestSession
	require.Eventually(t, func() bool {
		s, code := getSession(t, ts, id)
		if code != http.StatusOK || s == nil {
			return false
		}
		session = s
		return s.Terminal()
	}, 10*time.Second, 50*time.Millisecond)
	return session
}

func TestCreateAndComplete(t *testing.T) {
	ts, _ := testServer(t)

	id := postSession(t, ts)
	session := waitTerminal(t, ts, id)

	assert.Equal(t, domain.SessionStatusCompleted, session.Status)
	assert.Equal(t, id, session.ID)
	assert.NotEmpty(t, session.AnalysisLog)
}

func TestCreateRejectsInvalidConfig(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Post(ts.URL+"/api/sessions", "application/json",
		strings.NewReader(`{"symbol":"nope","initial_balance":-1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCreateRejectsMalformedBody(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetUnknownSession(t *testing.T) {
	ts, _ := testServer(t)

	_, code := getSession(t, ts, "no-such-session")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListSessions(t *testing.T) {
	ts, _ := testServer(t)

	id := postSession(t, ts)
	waitTerminal(t, ts, id)

	resp, err := http.Get(ts.URL + "/api/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		SessionIDs []string `json:"session_ids"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	assert.Contains(t, listed.SessionIDs, id)
}

func TestDeleteSession(t *testing.T) {
	ts, _ := testServer(t)

	id := postSession(t, ts)
	waitTerminal(t, ts, id)

	// Deletion is refused while the runner is still registered.
	require.Eventually(t, func() bool {
		req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+id, nil)
		if err != nil {
			return false
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 5*time.Second, 50*time.Millisecond)

	_, code := getSession(t, ts, id)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCancelFinishedSessionConflicts(t *testing.T) {
	ts, _ := testServer(t)

	id := postSession(t, ts)
	waitTerminal(t, ts, id)

	// The runner deregisters shortly after the terminal snapshot lands.
	require.Eventually(t, func() bool {
		resp, err := http.Post(ts.URL+"/api/sessions/"+id+"/cancel", "application/json", nil)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusConflict
	}, 5*time.Second, 50*time.Millisecond)
}

func TestHealthz(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUserEndpoints(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Post(ts.URL+"/api/users", "application/json",
		strings.NewReader(`{"email":"trader@example.com","name":"Trader"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created domain.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "trader@example.com", created.Email)

	getResp, err := http.Get(ts.URL + "/api/users/" + created.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	missing, err := http.Get(ts.URL + "/api/users/no-such-user")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	listResp, err := http.Get(ts.URL + "/api/users")
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var listed struct {
		Users []*domain.User `json:"users"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&listed))
	assert.Len(t, listed.Users, 1)
}

func TestUserUpsertRequiresEmail(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Post(ts.URL+"/api/users", "application/json", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestStatusStream(t *testing.T) {
	ts, _ := testServer(t)

	id := postSession(t, ts)
	waitTerminal(t, ts, id)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var update struct {
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
		Terminal  bool   `json:"terminal"`
	}
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, id, update.SessionID)
	assert.True(t, update.Terminal)
	assert.Equal(t, string(domain.SessionStatusCompleted), update.Status)
}
