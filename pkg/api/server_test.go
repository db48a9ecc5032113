package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jumpdesk/deskbridge/pkg/coordinator"
	"github.com/jumpdesk/deskbridge/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// assertAnError is a sentinel for stubbing adapter failures.
var assertAnError = errors.New("boom")

// fakeRequestService implements RequestService.
type fakeRequestService struct {
	started  []*models.Request
	startErr error
	requests map[string]*models.Request
	retryFn  func(id string, step *models.StepType) (*models.Request, error)
}

func (f *fakeRequestService) Get(id string) (*models.Request, error) {
	if req, ok := f.requests[id]; ok {
		return req, nil
	}
	return nil, coordinator.ErrNotFound
}

func (f *fakeRequestService) List() []*models.Request {
	out := make([]*models.Request, 0, len(f.requests))
	for _, req := range f.requests {
		out = append(out, req)
	}
	return out
}

func (f *fakeRequestService) StartRequest(req *models.Request) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, req)
	return nil
}

func (f *fakeRequestService) Retry(id string, step *models.StepType) (*models.Request, error) {
	if f.retryFn != nil {
		return f.retryFn(id, step)
	}
	return nil, coordinator.ErrNotFound
}

// fakeTicketSource implements TicketSource.
type fakeTicketSource struct {
	ticket       models.Ticket
	ticketErr    error
	done         bool
	doneErr      error
	doneStateFor []string
}

func (f *fakeTicketSource) GetTicket(_ context.Context, trackerID string) (models.Ticket, error) {
	if f.ticketErr != nil {
		return models.Ticket{}, f.ticketErr
	}
	return f.ticket, nil
}

func (f *fakeTicketSource) GetDoneState(_ context.Context, trackerID, propertyID string) (bool, error) {
	f.doneStateFor = append(f.doneStateFor, trackerID)
	if f.doneErr != nil {
		return false, f.doneErr
	}
	return f.done, nil
}

// fakeNotifier implements DoneNotifier and signals each delivery.
type fakeNotifier struct {
	notified chan models.Ticket
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{notified: make(chan models.Ticket, 4)}
}

func (f *fakeNotifier) NotifyDone(_ context.Context, t models.Ticket) error {
	f.notified <- t
	return nil
}

type serverFixture struct {
	requests *fakeRequestService
	tracker  *fakeTicketSource
	notifier *fakeNotifier
	router   *gin.Engine
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		requests: &fakeRequestService{requests: make(map[string]*models.Request)},
		tracker:  &fakeTicketSource{},
		notifier: newFakeNotifier(),
	}
	server := NewServer(f.requests, f.tracker, f.notifier, nil, nil, "prop-done")
	f.router = server.Router()
	return f
}

func (f *serverFixture) do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestListRequests(t *testing.T) {
	f := newServerFixture(t)
	req := models.NewRequest("conv-1", "https://helpdesk.test/conversations/1", "x")
	f.requests.requests[req.ID] = req

	rec := f.do(t, http.MethodGet, "/api/v1/requests", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	listed, ok := body["requests"].([]any)
	require.True(t, ok)
	require.Len(t, listed, 1)
	assert.Equal(t, req.ID, listed[0].(map[string]any)["id"])
}

func TestGetRequest(t *testing.T) {
	f := newServerFixture(t)
	req := models.NewRequest("conv-1", "https://helpdesk.test/conversations/1", "x")
	f.requests.requests[req.ID] = req

	rec := f.do(t, http.MethodGet, "/api/v1/requests/"+req.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, req.ID, decodeBody(t, rec)["id"])

	rec = f.do(t, http.MethodGet, "/api/v1/requests/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetryRequest(t *testing.T) {
	f := newServerFixture(t)
	snapshot := models.NewRequest("conv-1", "https://helpdesk.test/conversations/1", "x")

	var gotStep *models.StepType
	f.requests.retryFn = func(id string, step *models.StepType) (*models.Request, error) {
		gotStep = step
		return snapshot, nil
	}

	// Retry-all: empty body.
	rec := f.do(t, http.MethodPost, "/api/v1/requests/"+snapshot.ID+"/retry", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Nil(t, gotStep)

	// Retry from one step.
	rec = f.do(t, http.MethodPost, "/api/v1/requests/"+snapshot.ID+"/retry",
		map[string]string{"step": "ai_analysis"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, gotStep)
	assert.Equal(t, models.StepAIAnalysis, *gotStep)
}

func TestRetryRequestErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		retryErr   error
		wantStatus int
	}{
		{"unknown step", map[string]string{"step": "bogus"}, nil, http.StatusBadRequest},
		{"not found", nil, coordinator.ErrNotFound, http.StatusNotFound},
		{"not terminal", nil, coordinator.ErrRetryConflict, http.StatusConflict},
		{"shutting down", nil, coordinator.ErrShuttingDown, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture(t)
			f.requests.retryFn = func(string, *models.StepType) (*models.Request, error) {
				return nil, tt.retryErr
			}
			rec := f.do(t, http.MethodPost, "/api/v1/requests/some-id/retry", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func waitForNotification(t *testing.T, n *fakeNotifier) models.Ticket {
	t.Helper()
	select {
	case ticket := <-n.notified:
		return ticket
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never called")
		return models.Ticket{}
	}
}
