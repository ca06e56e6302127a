package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"peer-service/internal/mocks"
	"peer-service/internal/models"
	"peer-service/internal/repositories"
	"peer-service/internal/ws"
)

func setupWhiteboardRouter(handler *WhiteboardHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", testUserID)
		c.Next()
	})
	r.POST("/peer/whiteboard/sync", handler.Sync)
	r.GET("/peer/whiteboard/:session_id", handler.GetState)
	return r
}

func TestSyncWhiteboardSuccess(t *testing.T) {
	whiteboardRepo := new(mocks.WhiteboardRepositoryMock)
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewWhiteboardHandler(whiteboardRepo, sessionRepo, ws.NewHub(), nil)
	router := setupWhiteboardRouter(handler)

	sessionRepo.On("IsActiveParticipant", mock.Anything, "s1", testUserID).Return(true, nil).Once()
	whiteboardRepo.On("SyncOperations", mock.Anything, "s1", testUserID, mock.MatchedBy(func(ops []models.Operation) bool {
		return len(ops) == 1 && ops[0].Type == models.OpDraw && len(ops[0].Points) == 2
	})).Return(models.WhiteboardState{SessionID: "s1", Version: 4}, nil).Once()

	body := bytes.NewBufferString(`{
		"session_id": "s1",
		"operations": [
			{"type":"draw","data":{"points":"0,0;10,10","color":-16777216,"strokeWidth":"2"},"timestamp":100,"user_id":"` + testUserID + `"}
		],
		"version": 3
	}`)
	req := httptest.NewRequest(http.MethodPost, "/peer/whiteboard/sync", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "synced", resp["status"])
	assert.Equal(t, float64(4), resp["version"])
	whiteboardRepo.AssertExpectations(t)
	sessionRepo.AssertExpectations(t)
}

func TestSyncWhiteboardFillsMissingAuthor(t *testing.T) {
	whiteboardRepo := new(mocks.WhiteboardRepositoryMock)
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewWhiteboardHandler(whiteboardRepo, sessionRepo, ws.NewHub(), nil)
	router := setupWhiteboardRouter(handler)

	sessionRepo.On("IsActiveParticipant", mock.Anything, "s1", testUserID).Return(true, nil).Once()
	whiteboardRepo.On("SyncOperations", mock.Anything, "s1", testUserID, mock.MatchedBy(func(ops []models.Operation) bool {
		return len(ops) == 1 && ops[0].UserID == testUserID
	})).Return(models.WhiteboardState{SessionID: "s1", Version: 1}, nil).Once()

	body := bytes.NewBufferString(`{"session_id":"s1","operations":[{"type":"clear","timestamp":5}]}`)
	req := httptest.NewRequest(http.MethodPost, "/peer/whiteboard/sync", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	whiteboardRepo.AssertExpectations(t)
}

func TestSyncWhiteboardNotParticipant(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewWhiteboardHandler(new(mocks.WhiteboardRepositoryMock), sessionRepo, ws.NewHub(), nil)
	router := setupWhiteboardRouter(handler)

	sessionRepo.On("IsActiveParticipant", mock.Anything, "s1", testUserID).Return(false, nil).Once()

	body := bytes.NewBufferString(`{"session_id":"s1","operations":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/peer/whiteboard/sync", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	sessionRepo.AssertExpectations(t)
}

func TestSyncWhiteboardMissingState(t *testing.T) {
	whiteboardRepo := new(mocks.WhiteboardRepositoryMock)
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewWhiteboardHandler(whiteboardRepo, sessionRepo, ws.NewHub(), nil)
	router := setupWhiteboardRouter(handler)

	sessionRepo.On("IsActiveParticipant", mock.Anything, "s1", testUserID).Return(true, nil).Once()
	whiteboardRepo.On("SyncOperations", mock.Anything, "s1", testUserID, mock.Anything).
		Return(models.WhiteboardState{}, repositories.ErrWhiteboardNotFound).Once()

	body := bytes.NewBufferString(`{"session_id":"s1","operations":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/peer/whiteboard/sync", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	whiteboardRepo.AssertExpectations(t)
}

func TestGetWhiteboardNativeEncoding(t *testing.T) {
	whiteboardRepo := new(mocks.WhiteboardRepositoryMock)
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewWhiteboardHandler(whiteboardRepo, sessionRepo, ws.NewHub(), nil)
	router := setupWhiteboardRouter(handler)

	sessionRepo.On("IsActiveParticipant", mock.Anything, "s1", testUserID).Return(true, nil).Once()
	whiteboardRepo.On("GetState", mock.Anything, "s1").Return(models.WhiteboardState{
		SessionID: "s1",
		Version:   2,
		Operations: []models.Operation{{
			Type:        models.OpDraw,
			Points:      []models.Point{{X: 1, Y: 2}},
			Color:       "#ff0000",
			StrokeWidth: 3,
			Timestamp:   10,
			UserID:      testUserID,
		}},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/peer/whiteboard/s1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		SessionID  string `json:"session_id"`
		Version    int    `json:"version"`
		Operations []struct {
			Data map[string]any `json:"data"`
		} `json:"operations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Operations, 1)
	assert.Equal(t, "#ff0000", resp.Operations[0].Data["color"])
	whiteboardRepo.AssertExpectations(t)
}

func TestGetWhiteboardDelimitedEncoding(t *testing.T) {
	whiteboardRepo := new(mocks.WhiteboardRepositoryMock)
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewWhiteboardHandler(whiteboardRepo, sessionRepo, ws.NewHub(), nil)
	router := setupWhiteboardRouter(handler)

	sessionRepo.On("IsActiveParticipant", mock.Anything, "s1", testUserID).Return(true, nil).Once()
	whiteboardRepo.On("GetState", mock.Anything, "s1").Return(models.WhiteboardState{
		SessionID: "s1",
		Version:   2,
		Operations: []models.Operation{{
			Type:        models.OpDraw,
			Points:      []models.Point{{X: 0, Y: 0}, {X: 10, Y: 10}},
			Color:       "#000000",
			StrokeWidth: 3,
			Timestamp:   10,
			UserID:      testUserID,
		}},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/peer/whiteboard/s1?encoding=delimited", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Operations []struct {
			Data map[string]any `json:"data"`
		} `json:"operations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Operations, 1)
	assert.Equal(t, "0,0;10,10", resp.Operations[0].Data["points"])
	assert.Equal(t, float64(-16777216), resp.Operations[0].Data["color"])
	whiteboardRepo.AssertExpectations(t)
}

func TestGetWhiteboardNotFound(t *testing.T) {
	whiteboardRepo := new(mocks.WhiteboardRepositoryMock)
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewWhiteboardHandler(whiteboardRepo, sessionRepo, ws.NewHub(), nil)
	router := setupWhiteboardRouter(handler)

	sessionRepo.On("IsActiveParticipant", mock.Anything, "missing", testUserID).Return(true, nil).Once()
	whiteboardRepo.On("GetState", mock.Anything, "missing").
		Return(models.WhiteboardState{}, repositories.ErrWhiteboardNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/peer/whiteboard/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	whiteboardRepo.AssertExpectations(t)
}
