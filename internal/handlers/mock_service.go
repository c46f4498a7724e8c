package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/Kunal6688/PestDetect/internal/actuator"
	"github.com/Kunal6688/PestDetect/internal/history"
	"github.com/Kunal6688/PestDetect/internal/models"
	"github.com/Kunal6688/PestDetect/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockDetection struct {
	out models.DetectionRecord
	err error

	lastRef         string
	lastFilename    string
	lastData        []byte
	lastContentType string
	lastClass       string
	lastConfidence  float64
	lastLocation    *[2]float64
}

func (m *mockDetection) SubmitDetection(ctx context.Context, imageRef string) (models.DetectionRecord, error) {
	m.lastRef = imageRef
	return m.out, m.err
}
func (m *mockDetection) SubmitUpload(ctx context.Context, filename string, data []byte, contentType string) (models.DetectionRecord, error) {
	m.lastFilename = filename
	m.lastData = data
	m.lastContentType = contentType
	return m.out, m.err
}
func (m *mockDetection) RespondToPest(ctx context.Context, className string, confidence float64, location *[2]float64) (models.DetectionRecord, error) {
	m.lastClass = className
	m.lastConfidence = confidence
	m.lastLocation = location
	return m.out, m.err
}

type mockActuators struct {
	states     []models.ActuatorState
	result     actuator.Result
	triggerErr error
	releaseErr error

	lastTriggered   string
	lastReleased    string
	releaseAllCalls int
}

func (m *mockActuators) ActuatorStates() []models.ActuatorState { return m.states }
func (m *mockActuators) Trigger(ctx context.Context, relayID string) (actuator.Result, error) {
	m.lastTriggered = relayID
	return m.result, m.triggerErr
}
func (m *mockActuators) Release(ctx context.Context, relayID string) error {
	m.lastReleased = relayID
	return m.releaseErr
}
func (m *mockActuators) ReleaseAll(ctx context.Context) error {
	m.releaseAllCalls++
	return m.releaseErr
}

type mockMonitoring struct {
	mu        sync.Mutex
	events    []models.Event
	stats     models.Statistics
	readings  []models.SensorReading
	status    service.SystemStatus
	lastQuery history.Query
	polls     int
}

func (m *mockMonitoring) History(q history.Query) []models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	return m.events
}
func (m *mockMonitoring) Statistics() models.Statistics {
	return m.stats
}
func (m *mockMonitoring) Sensors() []models.SensorReading {
	return m.readings
}
func (m *mockMonitoring) SystemStatus() service.SystemStatus {
	return m.status
}
func (m *mockMonitoring) PollSensors(ctx context.Context) []models.SensorReading {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	return m.readings
}

type mockEventLog struct {
	resp      []models.ArchivedEvent
	err       error
	relays    []models.ActuatorState
	relaysErr error

	lastFilter service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.ArchivedEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}
func (m *mockEventLog) RelayStates(ctx context.Context) ([]models.ActuatorState, error) {
	return m.relays, m.relaysErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service, authEnabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, authEnabled)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
