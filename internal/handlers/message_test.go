package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"peer-service/internal/mocks"
	"peer-service/internal/models"
	"peer-service/internal/ws"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", testUserID)
		c.Next()
	})
	r.POST("/peer/messages", handler.SendMessage)
	r.GET("/peer/messages/:session_id", handler.ListMessages)
	return r
}

func TestSendMessageSuccess(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewMessageHandler(messageRepo, sessionRepo, ws.NewHub(), nil)
	router := setupMessageRouter(handler)

	content := map[string]string{"peer-1": "ciphertext"}
	sessionRepo.On("IsActiveParticipant", mock.Anything, "s1", testUserID).Return(true, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, "s1", testUserID, content, "text").
		Return(models.SessionMessage{ID: "m1", SessionID: "s1", SenderID: testUserID}, nil).Once()

	body := bytes.NewBufferString(`{"session_id":"s1","encrypted_content":{"peer-1":"ciphertext"}}`)
	req := httptest.NewRequest(http.MethodPost, "/peer/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "m1", resp["message_id"])
	messageRepo.AssertExpectations(t)
	sessionRepo.AssertExpectations(t)
}

func TestSendMessageNotParticipant(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), sessionRepo, ws.NewHub(), nil)
	router := setupMessageRouter(handler)

	sessionRepo.On("IsActiveParticipant", mock.Anything, "s1", testUserID).Return(false, nil).Once()

	body := bytes.NewBufferString(`{"session_id":"s1","encrypted_content":{"peer-1":"x"}}`)
	req := httptest.NewRequest(http.MethodPost, "/peer/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	sessionRepo.AssertExpectations(t)
}

func TestListMessagesWithSince(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewMessageHandler(messageRepo, sessionRepo, ws.NewHub(), nil)
	router := setupMessageRouter(handler)

	since := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sessionRepo.On("IsActiveParticipant", mock.Anything, "s1", testUserID).Return(true, nil).Once()
	messageRepo.On("ListMessages", mock.Anything, "s1", mock.MatchedBy(func(ts *time.Time) bool {
		return ts != nil && ts.Equal(since)
	})).Return([]models.SessionMessage{{ID: "m1"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/peer/messages/s1?since=2025-06-01T12:00:00Z", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
	sessionRepo.AssertExpectations(t)
}

func TestListMessagesBadSince(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), sessionRepo, ws.NewHub(), nil)
	router := setupMessageRouter(handler)

	sessionRepo.On("IsActiveParticipant", mock.Anything, "s1", testUserID).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/peer/messages/s1?since=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
