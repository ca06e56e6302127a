package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"peer-service/internal/models"
	"peer-service/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	args := m.Called(ctx, userID)
	var profile models.UserProfile
	if val := args.Get(0); val != nil {
		profile = val.(models.UserProfile)
	}
	return profile, args.Error(1)
}

type SessionRepositoryMock struct {
	mock.Mock
}

func (m *SessionRepositoryMock) CreateSession(ctx context.Context, creator models.UserProfile, params repositories.CreateSessionParams) (models.Session, error) {
	args := m.Called(ctx, creator, params)
	var session models.Session
	if val := args.Get(0); val != nil {
		session = val.(models.Session)
	}
	return session, args.Error(1)
}

func (m *SessionRepositoryMock) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	args := m.Called(ctx, sessionID)
	var session models.Session
	if val := args.Get(0); val != nil {
		session = val.(models.Session)
	}
	return session, args.Error(1)
}

func (m *SessionRepositoryMock) ListSessions(ctx context.Context, schoolID string, classLevel int, topic, subject string) ([]models.SessionSummary, error) {
	args := m.Called(ctx, schoolID, classLevel, topic, subject)
	var list []models.SessionSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.SessionSummary)
	}
	return list, args.Error(1)
}

func (m *SessionRepositoryMock) JoinSession(ctx context.Context, sessionID string, user models.UserProfile) error {
	args := m.Called(ctx, sessionID, user)
	return args.Error(0)
}

func (m *SessionRepositoryMock) LeaveSession(ctx context.Context, sessionID, userID string) (bool, error) {
	args := m.Called(ctx, sessionID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *SessionRepositoryMock) ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error) {
	args := m.Called(ctx, sessionID)
	var list []models.Participant
	if val := args.Get(0); val != nil {
		list = val.([]models.Participant)
	}
	return list, args.Error(1)
}

func (m *SessionRepositoryMock) IsActiveParticipant(ctx context.Context, sessionID, userID string) (bool, error) {
	args := m.Called(ctx, sessionID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *SessionRepositoryMock) CloseStaleSessions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type WhiteboardRepositoryMock struct {
	mock.Mock
}

func (m *WhiteboardRepositoryMock) GetState(ctx context.Context, sessionID string) (models.WhiteboardState, error) {
	args := m.Called(ctx, sessionID)
	var state models.WhiteboardState
	if val := args.Get(0); val != nil {
		state = val.(models.WhiteboardState)
	}
	return state, args.Error(1)
}

func (m *WhiteboardRepositoryMock) SyncOperations(ctx context.Context, sessionID, userID string, ops []models.Operation) (models.WhiteboardState, error) {
	args := m.Called(ctx, sessionID, userID, ops)
	var state models.WhiteboardState
	if val := args.Get(0); val != nil {
		state = val.(models.WhiteboardState)
	}
	return state, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, sessionID, senderID string, content map[string]string, messageType string) (models.SessionMessage, error) {
	args := m.Called(ctx, sessionID, senderID, content, messageType)
	var msg models.SessionMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.SessionMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, sessionID string, since *time.Time) ([]models.SessionMessage, error) {
	args := m.Called(ctx, sessionID, since)
	var msgs []models.SessionMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.SessionMessage)
	}
	return msgs, args.Error(1)
}

type PeerRepositoryMock struct {
	mock.Mock
}

func (m *PeerRepositoryMock) UpsertAvailability(ctx context.Context, availability models.Availability) error {
	args := m.Called(ctx, availability)
	return args.Error(0)
}

func (m *PeerRepositoryMock) ListAvailablePeers(ctx context.Context, userID, schoolID string, classLevel int) ([]models.AvailablePeer, error) {
	args := m.Called(ctx, userID, schoolID, classLevel)
	var peers []models.AvailablePeer
	if val := args.Get(0); val != nil {
		peers = val.([]models.AvailablePeer)
	}
	return peers, args.Error(1)
}

func (m *PeerRepositoryMock) FindPeersByTopic(ctx context.Context, userID, schoolID string, classLevel int, topic string) ([]models.AvailablePeer, error) {
	args := m.Called(ctx, userID, schoolID, classLevel, topic)
	var peers []models.AvailablePeer
	if val := args.Get(0); val != nil {
		peers = val.([]models.AvailablePeer)
	}
	return peers, args.Error(1)
}

func (m *PeerRepositoryMock) BlockUser(ctx context.Context, blockerID, blockedID string, reason *string) error {
	args := m.Called(ctx, blockerID, blockedID, reason)
	return args.Error(0)
}

func (m *PeerRepositoryMock) UnblockUser(ctx context.Context, blockerID, blockedID string) error {
	args := m.Called(ctx, blockerID, blockedID)
	return args.Error(0)
}

func (m *PeerRepositoryMock) ListBlocked(ctx context.Context, blockerID string) ([]string, error) {
	args := m.Called(ctx, blockerID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *PeerRepositoryMock) CreateReport(ctx context.Context, reporterID, reportedID string, sessionID, description *string, reason string) error {
	args := m.Called(ctx, reporterID, reportedID, sessionID, description, reason)
	return args.Error(0)
}

func (m *PeerRepositoryMock) RegisterKeys(ctx context.Context, userID string, bundle models.KeyBundle, oneTimePrekeys []models.OneTimePrekey) error {
	args := m.Called(ctx, userID, bundle, oneTimePrekeys)
	return args.Error(0)
}

func (m *PeerRepositoryMock) GetKeyBundle(ctx context.Context, userID string) (models.KeyBundle, error) {
	args := m.Called(ctx, userID)
	var bundle models.KeyBundle
	if val := args.Get(0); val != nil {
		bundle = val.(models.KeyBundle)
	}
	return bundle, args.Error(1)
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.SessionRepository = (*SessionRepositoryMock)(nil)
var _ repositories.WhiteboardRepository = (*WhiteboardRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.PeerRepository = (*PeerRepositoryMock)(nil)
