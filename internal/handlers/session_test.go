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

const testUserID = "11111111-1111-1111-1111-111111111111"

func strPtr(s string) *string { return &s }

func setupSessionRouter(handler *SessionHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", testUserID)
		c.Next()
	})
	r.POST("/peer/sessions", handler.CreateSession)
	r.GET("/peer/sessions", handler.ListSessions)
	r.POST("/peer/sessions/:session_id/join", handler.JoinSession)
	r.POST("/peer/sessions/:session_id/leave", handler.LeaveSession)
	r.GET("/peer/sessions/:session_id/participants", handler.ListParticipants)
	return r
}

func TestCreateSessionSuccess(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewSessionHandler(sessionRepo, userRepo, ws.NewHub(), nil)
	router := setupSessionRouter(handler)

	userRepo.On("GetProfile", mock.Anything, testUserID).
		Return(models.UserProfile{ID: testUserID, SchoolID: strPtr("school-1"), ClassLevel: 9}, nil).Once()
	sessionRepo.On("CreateSession", mock.Anything, mock.Anything, mock.Anything).
		Return(models.Session{ID: "s1", Topic: "algebra", Status: models.SessionWaiting}, nil).Once()

	body := bytes.NewBufferString(`{"topic":"algebra","subject":"math","max_participants":3}`)
	req := httptest.NewRequest(http.MethodPost, "/peer/sessions", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(1), resp["participant_count"])
	sessionRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestCreateSessionCapacityOutOfRange(t *testing.T) {
	handler := NewSessionHandler(new(mocks.SessionRepositoryMock), new(mocks.UserRepositoryMock), ws.NewHub(), nil)
	router := setupSessionRouter(handler)

	body := bytes.NewBufferString(`{"topic":"algebra","subject":"math","max_participants":9}`)
	req := httptest.NewRequest(http.MethodPost, "/peer/sessions", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSessionNoSchool(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewSessionHandler(sessionRepo, userRepo, ws.NewHub(), nil)
	router := setupSessionRouter(handler)

	userRepo.On("GetProfile", mock.Anything, testUserID).
		Return(models.UserProfile{ID: testUserID}, nil).Once()
	sessionRepo.On("CreateSession", mock.Anything, mock.Anything, mock.Anything).
		Return(models.Session{}, repositories.ErrNoSchool).Once()

	body := bytes.NewBufferString(`{"topic":"algebra","subject":"math"}`)
	req := httptest.NewRequest(http.MethodPost, "/peer/sessions", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
	sessionRepo.AssertExpectations(t)
}

func TestListSessionsSuccess(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewSessionHandler(sessionRepo, userRepo, ws.NewHub(), nil)
	router := setupSessionRouter(handler)

	userRepo.On("GetProfile", mock.Anything, testUserID).
		Return(models.UserProfile{ID: testUserID, SchoolID: strPtr("school-1"), ClassLevel: 9}, nil).Once()
	sessionRepo.On("ListSessions", mock.Anything, "school-1", 9, "algebra", "").
		Return([]models.SessionSummary{{Session: models.Session{ID: "s1"}, ParticipantCount: 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/peer/sessions?topic=algebra", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	sessionRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestJoinSessionSuccess(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewSessionHandler(sessionRepo, userRepo, ws.NewHub(), nil)
	router := setupSessionRouter(handler)

	userRepo.On("GetProfile", mock.Anything, testUserID).
		Return(models.UserProfile{ID: testUserID, SchoolID: strPtr("school-1"), ClassLevel: 9}, nil).Once()
	sessionRepo.On("JoinSession", mock.Anything, "s1", mock.Anything).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/peer/sessions/s1/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "joined", resp["status"])
	sessionRepo.AssertExpectations(t)
}

func TestJoinSessionFull(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewSessionHandler(sessionRepo, userRepo, ws.NewHub(), nil)
	router := setupSessionRouter(handler)

	userRepo.On("GetProfile", mock.Anything, testUserID).
		Return(models.UserProfile{ID: testUserID, SchoolID: strPtr("school-1")}, nil).Once()
	sessionRepo.On("JoinSession", mock.Anything, "s1", mock.Anything).
		Return(repositories.ErrSessionFull).Once()

	req := httptest.NewRequest(http.MethodPost, "/peer/sessions/s1/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	sessionRepo.AssertExpectations(t)
}

func TestJoinSessionSchoolMismatch(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewSessionHandler(sessionRepo, userRepo, ws.NewHub(), nil)
	router := setupSessionRouter(handler)

	userRepo.On("GetProfile", mock.Anything, testUserID).
		Return(models.UserProfile{ID: testUserID, SchoolID: strPtr("school-2")}, nil).Once()
	sessionRepo.On("JoinSession", mock.Anything, "s1", mock.Anything).
		Return(repositories.ErrSchoolMismatch).Once()

	req := httptest.NewRequest(http.MethodPost, "/peer/sessions/s1/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	sessionRepo.AssertExpectations(t)
}

func TestJoinSessionBlocked(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewSessionHandler(sessionRepo, userRepo, ws.NewHub(), nil)
	router := setupSessionRouter(handler)

	userRepo.On("GetProfile", mock.Anything, testUserID).
		Return(models.UserProfile{ID: testUserID, SchoolID: strPtr("school-1")}, nil).Once()
	sessionRepo.On("JoinSession", mock.Anything, "s1", mock.Anything).
		Return(repositories.ErrUserBlocked).Once()

	req := httptest.NewRequest(http.MethodPost, "/peer/sessions/s1/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	sessionRepo.AssertExpectations(t)
}

func TestJoinSessionNotFound(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewSessionHandler(sessionRepo, userRepo, ws.NewHub(), nil)
	router := setupSessionRouter(handler)

	userRepo.On("GetProfile", mock.Anything, testUserID).
		Return(models.UserProfile{ID: testUserID, SchoolID: strPtr("school-1")}, nil).Once()
	sessionRepo.On("JoinSession", mock.Anything, "missing", mock.Anything).
		Return(repositories.ErrSessionNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/peer/sessions/missing/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	sessionRepo.AssertExpectations(t)
}

func TestLeaveSessionClosesEmptyRoom(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewSessionHandler(sessionRepo, new(mocks.UserRepositoryMock), ws.NewHub(), nil)
	router := setupSessionRouter(handler)

	sessionRepo.On("LeaveSession", mock.Anything, "s1", testUserID).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/peer/sessions/s1/leave", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "left", resp["status"])
	assert.Equal(t, true, resp["session_closed"])
	sessionRepo.AssertExpectations(t)
}

func TestListParticipantsSuccess(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewSessionHandler(sessionRepo, new(mocks.UserRepositoryMock), ws.NewHub(), nil)
	router := setupSessionRouter(handler)

	sessionRepo.On("GetSession", mock.Anything, "s1").Return(models.Session{ID: "s1"}, nil).Once()
	sessionRepo.On("ListParticipants", mock.Anything, "s1").
		Return([]models.Participant{{SessionID: "s1", UserID: testUserID, Role: models.RoleHost}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/peer/sessions/s1/participants", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	sessionRepo.AssertExpectations(t)
}

func TestListParticipantsSessionMissing(t *testing.T) {
	sessionRepo := new(mocks.SessionRepositoryMock)
	handler := NewSessionHandler(sessionRepo, new(mocks.UserRepositoryMock), ws.NewHub(), nil)
	router := setupSessionRouter(handler)

	sessionRepo.On("GetSession", mock.Anything, "missing").
		Return(models.Session{}, repositories.ErrSessionNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/peer/sessions/missing/participants", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	sessionRepo.AssertExpectations(t)
}
