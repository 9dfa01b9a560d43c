package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nayudayo/terminal-sub000/internal/core/domain"
	"github.com/nayudayo/terminal-sub000/internal/core/protocol"
)

// --- Mocks ---

type MockProtocolService struct {
	mock.Mock
}

func (m *MockProtocolService) CreateSession(ctx context.Context) (*domain.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}
func (m *MockProtocolService) HandleMessage(ctx context.Context, userID, message string) (*protocol.Reply, error) {
	args := m.Called(ctx, userID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*protocol.Reply), args.Error(1)
}
func (m *MockProtocolService) BeginIdentity(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
func (m *MockProtocolService) ConfirmIdentity(ctx context.Context, userID, sessionHandle string) error {
	args := m.Called(ctx, userID, sessionHandle)
	return args.Error(0)
}
func (m *MockProtocolService) AuthorizedSession(ctx context.Context, userID, token string) (*domain.Session, error) {
	args := m.Called(ctx, userID, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

type MockReferralService struct {
	mock.Mock
}

func (m *MockReferralService) Generate(ctx context.Context, ownerID, displayName string) (string, error) {
	args := m.Called(ctx, ownerID, displayName)
	return args.String(0), args.Error(1)
}
func (m *MockReferralService) Get(ctx context.Context, ownerID string) (string, error) {
	args := m.Called(ctx, ownerID)
	return args.String(0), args.Error(1)
}

// --- Helpers ---

func newTestRouter(t *testing.T) (*MockProtocolService, *MockReferralService, http.Handler) {
	t.Helper()
	nopLogger := zerolog.Nop()
	svc := new(MockProtocolService)
	referrals := new(MockReferralService)
	router := NewRouter(NewHandlers(svc, referrals, &nopLogger), nil, &nopLogger)
	return svc, referrals, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func authorizedSession(stage domain.Stage) *domain.Session {
	id, handle, token := "x-1", "alice", "tok-1"
	return &domain.Session{
		UserID:         "user-1",
		Stage:          stage,
		IdentityID:     &id,
		IdentityHandle: &handle,
		IdentityToken:  &token,
		Timestamp:      time.Now(),
	}
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

// --- Tests ---

func TestCreateSession(t *testing.T) {
	svc, _, router := newTestRouter(t)
	svc.On("CreateSession", mock.Anything).Return(domain.NewSession("user-1", time.Now()), nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/api/session", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "user-1", payload["userId"])
	assert.Equal(t, float64(domain.StageIntro), payload["stage"])
}

func TestChat(t *testing.T) {
	svc, _, router := newTestRouter(t)

	stage := domain.StagePostTrigger
	svc.On("HandleMessage", mock.Anything, "user-1", "join protocol").
		Return(&protocol.Reply{Message: "Protocol engaged.", NewStage: &stage, ShouldAutoScroll: true}, nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/api/chat", chatRequest{UserID: "user-1", Message: "join protocol"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply protocol.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "Protocol engaged.", reply.Message)
	require.NotNil(t, reply.NewStage)
	assert.Equal(t, domain.StagePostTrigger, *reply.NewStage)
	assert.True(t, reply.ShouldAutoScroll)
}

func TestChat_MissingUserID(t *testing.T) {
	_, _, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/chat", chatRequest{Message: "hello"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_InfrastructureFailureStaysGeneric(t *testing.T) {
	svc, _, router := newTestRouter(t)
	svc.On("HandleMessage", mock.Anything, "user-1", "hello").
		Return(nil, domain.ErrStoreUnavailable).Once()

	rec := doJSON(t, router, http.MethodPost, "/api/chat", chatRequest{UserID: "user-1", Message: "hello"}, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), genericFault)
	assert.NotContains(t, rec.Body.String(), "store")
}

func TestBeginIdentity(t *testing.T) {
	svc, _, router := newTestRouter(t)
	svc.On("BeginIdentity", mock.Anything, "user-1").Return(nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/api/identity/begin", identityRequest{UserID: "user-1"}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	svc.On("BeginIdentity", mock.Anything, "ghost").Return(domain.ErrUnauthorized).Once()
	rec = doJSON(t, router, http.MethodPost, "/api/identity/begin", identityRequest{UserID: "ghost"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfirmIdentity(t *testing.T) {
	svc, _, router := newTestRouter(t)
	svc.On("ConfirmIdentity", mock.Anything, "user-1", "handle-abc").Return(nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/api/identity/confirm",
		identityRequest{UserID: "user-1", SessionHandle: "handle-abc"}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Missing handle never reaches the service.
	rec = doJSON(t, router, http.MethodPost, "/api/identity/confirm", identityRequest{UserID: "user-1"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestGenerateReferral_RequiresCredentials(t *testing.T) {
	_, _, router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/referral/generate", identityRequest{UserID: "user-1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "no bearer token")

	rec = doJSON(t, router, http.MethodPost, "/api/referral/generate", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "no user id")
}

func TestGenerateReferral_GatedByStage(t *testing.T) {
	svc, _, router := newTestRouter(t)
	svc.On("AuthorizedSession", mock.Anything, "user-1", "tok-1").
		Return(authorizedSession(domain.StageMandates), nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/api/referral/generate",
		identityRequest{UserID: "user-1"}, bearer("tok-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGenerateReferral(t *testing.T) {
	svc, referrals, router := newTestRouter(t)
	svc.On("AuthorizedSession", mock.Anything, "user-1", "tok-1").
		Return(authorizedSession(domain.StageReferenceCode), nil)
	referrals.On("Generate", mock.Anything, "user-1", "alice").Return("ALI-ABCDEFGH-Z9", nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/api/referral/generate",
		identityRequest{UserID: "user-1"}, bearer("tok-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALI-ABCDEFGH-Z9")

	referrals.On("Generate", mock.Anything, "user-1", "alice").Return("", domain.ErrRateLimited).Once()
	rec = doJSON(t, router, http.MethodPost, "/api/referral/generate",
		identityRequest{UserID: "user-1"}, bearer("tok-1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGetReferral(t *testing.T) {
	svc, referrals, router := newTestRouter(t)
	svc.On("AuthorizedSession", mock.Anything, "user-1", "tok-1").
		Return(authorizedSession(domain.StageComplete), nil)

	referrals.On("Get", mock.Anything, "user-1").Return("", nil).Once()
	rec := doJSON(t, router, http.MethodGet, "/api/referral?userId=user-1", nil, bearer("tok-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	referrals.On("Get", mock.Anything, "user-1").Return("ALI-ABCDEFGH-Z9", nil).Once()
	rec = doJSON(t, router, http.MethodGet, "/api/referral?userId=user-1", nil, bearer("tok-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALI-ABCDEFGH-Z9")
}

func TestHealth(t *testing.T) {
	_, _, router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
