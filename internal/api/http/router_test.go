package http

import (
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/cassette-service/internal/api/http/handlers"
	"github.com/spec-kit/cassette-service/internal/auth"
	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/events"
	"github.com/spec-kit/cassette-service/internal/observability"
	"github.com/spec-kit/cassette-service/internal/repository/memory"
	"github.com/spec-kit/cassette-service/internal/service"
)

var opened = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

type testServer struct {
	app    *fiber.App
	db     *memory.DB
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := memory.New()
	clock := func() time.Time { return opened.Add(48 * time.Hour) }
	db.SetClock(clock)
	store := db.Store()
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	reconciler := service.NewReconciliationService(service.ReconciliationDependencies{
		Store: store, Transactor: db, Dispatcher: dispatcher, Metrics: metrics, Clock: clock,
	})
	tickets := service.NewTicketService(service.TicketDependencies{Store: store, Transactor: db, Dispatcher: dispatcher, Clock: clock})
	cassettes := service.NewCassetteService(service.CassetteDependencies{Store: store, Transactor: db, Dispatcher: dispatcher, Clock: clock})
	repairs := service.NewRepairService(service.RepairDependencies{
		Store: store, Transactor: db, Reconciler: reconciler, Dispatcher: dispatcher, Clock: clock,
	})
	maintenance := service.NewMaintenanceService(service.MaintenanceDependencies{Store: store, Dispatcher: dispatcher, Clock: clock})

	tokens := auth.NewTokenManager("test-secret", "cassette-service", 15)
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("cassette-service", "test", map[string]handlers.Pinger{"postgres": nil}),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Transitions:    handlers.NewTransitionsHandler(),
		Tickets:        handlers.NewTicketsHandler(tickets, cassettes, reconciler),
		Cassettes:      handlers.NewCassettesHandler(cassettes, repairs),
		Maintenance:    handlers.NewMaintenanceHandler(maintenance),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, db: db, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path string, role domain.OrgRole, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, _, err := s.tokens.GenerateToken("staff-1", domain.SubjectTypeStaff, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp.StatusCode, payload
}

func errorCode(payload map[string]any) string {
	errObj, _ := payload["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func (s *testServer) seedRepairFlow() {
	s.db.PutCassette(domain.Cassette{ID: "c1", SerialNumber: "SN-1", Status: domain.CassetteStatusInRepair})
	s.db.PutTicket(domain.Ticket{ID: "t1", Number: "TKT-1", Status: domain.TicketStatusInProgress, CreatedAt: opened})
	s.db.LinkCassettes("t1", "c1")
	s.db.PutRepair(domain.RepairTicket{ID: "r1", CassetteID: "c1", Status: domain.RepairStatusOnProgress, CreatedAt: opened.Add(time.Hour)})
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, stdhttp.MethodGet, "/health/ready", "", "")
	assert.Equal(t, stdhttp.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, stdhttp.MethodGet, "/tickets/t1", "", "")
	assert.Equal(t, stdhttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t)
	s.seedRepairFlow()

	tests := []struct {
		name   string
		method string
		path   string
		role   domain.OrgRole
		want   int
	}{
		{"bank cannot change ticket status", stdhttp.MethodPatch, "/tickets/t1/status", domain.OrgRoleBank, stdhttp.StatusForbidden},
		{"operator cannot touch repairs", stdhttp.MethodPatch, "/repair-tickets/r1/status", domain.OrgRolePengelola, stdhttp.StatusForbidden},
		{"repair center cannot confirm pickup", stdhttp.MethodPost, "/tickets/t1/pickup", domain.OrgRoleRepairCenter, stdhttp.StatusForbidden},
		{"metrics are admin only", stdhttp.MethodGet, "/metrics", domain.OrgRolePengelola, stdhttp.StatusForbidden},
		{"admin reads metrics", stdhttp.MethodGet, "/metrics", domain.OrgRoleAdmin, stdhttp.StatusOK},
		{"bank reads a ticket", stdhttp.MethodGet, "/tickets/t1", domain.OrgRoleBank, stdhttp.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := s.do(t, tt.method, tt.path, tt.role, `{"status":"RESOLVED"}`)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestCompletingRepairResolvesTicket(t *testing.T) {
	s := newTestServer(t)
	s.seedRepairFlow()

	status, body := s.do(t, stdhttp.MethodPatch, "/repair-tickets/r1/status", domain.OrgRoleRepairCenter,
		`{"status":"completed","repair_action":"replaced belt","qc_passed":true}`)
	require.Equal(t, stdhttp.StatusOK, status, body)

	data := body["data"].(map[string]any)
	assert.Equal(t, "COMPLETED", data["repair_ticket"].(map[string]any)["status"])
	assert.Equal(t, "READY_FOR_PICKUP", data["cassette"].(map[string]any)["status"])
	reconciled := data["reconciled"].([]any)
	require.Len(t, reconciled, 1)
	assert.Equal(t, "updated", reconciled[0].(map[string]any)["outcome"])

	ticket, ok := s.db.Ticket("t1")
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)

	status, body = s.do(t, stdhttp.MethodPost, "/tickets/t1/pickup", domain.OrgRolePengelola, "")
	require.Equal(t, stdhttp.StatusOK, status, body)
	cassette, _ := s.db.Cassette("c1")
	assert.Equal(t, domain.CassetteStatusInTransitToPengelola, cassette.Status)
}

func TestIllegalTicketTransitionIs422(t *testing.T) {
	s := newTestServer(t)
	s.db.PutTicket(domain.Ticket{ID: "t1", Status: domain.TicketStatusClosed})

	status, body := s.do(t, stdhttp.MethodPatch, "/tickets/t1/status", domain.OrgRolePengelola, `{"status":"OPEN"}`)
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, []any{}, details["allowed"])
}

func TestUnknownStatusIs400(t *testing.T) {
	s := newTestServer(t)
	s.seedRepairFlow()

	tests := []struct {
		name string
		path string
		role domain.OrgRole
		body string
	}{
		{"ticket", "/tickets/t1/status", domain.OrgRolePengelola, `{"status":"fixed"}`},
		{"cassette", "/cassettes/c1/status", domain.OrgRoleRepairCenter, `{"status":"RESOLVED"}`},
		{"repair ticket", "/repair-tickets/r1/status", domain.OrgRoleRepairCenter, `{"status":"READY_FOR_PICKUP"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, stdhttp.MethodPatch, tt.path, tt.role, tt.body)
			assert.Equal(t, stdhttp.StatusBadRequest, status)
			assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
			details := body["error"].(map[string]any)["details"].(map[string]any)
			assert.NotEmpty(t, details["states"])
		})
	}

	ticket, _ := s.db.Ticket("t1")
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)
	repair, _ := s.db.Repair("r1")
	assert.Equal(t, domain.RepairStatusOnProgress, repair.Status)
}

func TestMissingTicketIs404(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, stdhttp.MethodPost, "/tickets/nope/reconcile", domain.OrgRoleRepairCenter, "")
	assert.Equal(t, stdhttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestReconcilePendingSweep(t *testing.T) {
	s := newTestServer(t)
	s.db.PutCassette(domain.Cassette{ID: "c1", SerialNumber: "SN-1", Status: domain.CassetteStatusReadyForPickup})
	s.db.PutTicket(domain.Ticket{ID: "t1", Status: domain.TicketStatusInProgress, CreatedAt: opened})
	s.db.LinkCassettes("t1", "c1")
	s.db.PutRepair(domain.RepairTicket{ID: "r1", CassetteID: "c1", Status: domain.RepairStatusCompleted, CreatedAt: opened.Add(time.Hour)})

	status, body := s.do(t, stdhttp.MethodPost, "/tickets/reconcile?limit=10", domain.OrgRoleRepairCenter, "")
	require.Equal(t, stdhttp.StatusOK, status, body)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 1, data["scanned"])
	assert.EqualValues(t, 1, data["synced"])
	assert.EqualValues(t, 0, data["errors"])
}

func TestTransitionsEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, stdhttp.MethodGet, "/transitions/cassette/in_repair", domain.OrgRoleBank, "")
	require.Equal(t, stdhttp.StatusOK, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "IN_REPAIR", data["state"])
	assert.Equal(t, false, data["terminal"])
	assert.Contains(t, data["allowed"], "READY_FOR_PICKUP")

	status, body = s.do(t, stdhttp.MethodGet, "/transitions/spaceship/OK", domain.OrgRoleBank, "")
	assert.Equal(t, stdhttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, stdhttp.MethodPost, "/transitions/validate", domain.OrgRoleBank,
		`{"kind":"ticket","current":"IN_PROGRESS","target":"RESOLVED","context":{"all_repairs_completed":false}}`)
	assert.Equal(t, stdhttp.StatusUnprocessableEntity, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(body))

	status, body = s.do(t, stdhttp.MethodPost, "/transitions/validate", domain.OrgRoleBank,
		`{"kind":"ticket","current":"IN_PROGRESS","target":"RESOLVED","context":{"all_repairs_completed":true}}`)
	require.Equal(t, stdhttp.StatusOK, status, body)
	assert.Equal(t, true, body["data"].(map[string]any)["valid"])
}
