package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	appreceiving "github.com/erp/reconciliation/internal/application/receiving"
	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/erp/reconciliation/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type mockReceptionService struct {
	mock.Mock
}

func (m *mockReceptionService) SubmitReception(ctx context.Context, cmd appreceiving.SubmitReceptionCommand) (*appreceiving.ReceptionResponse, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appreceiving.ReceptionResponse), args.Error(1)
}

func (m *mockReceptionService) BeginInspection(ctx context.Context, receptionID uuid.UUID, actorID string) (*appreceiving.ReceptionResponse, error) {
	args := m.Called(ctx, receptionID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appreceiving.ReceptionResponse), args.Error(1)
}

func (m *mockReceptionService) UpdateReceptionLineInspection(ctx context.Context, cmd appreceiving.InspectLineCommand) (*appreceiving.ReceptionResponse, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appreceiving.ReceptionResponse), args.Error(1)
}

func (m *mockReceptionService) GetReception(ctx context.Context, receptionID uuid.UUID) (*appreceiving.ReceptionResponse, error) {
	args := m.Called(ctx, receptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appreceiving.ReceptionResponse), args.Error(1)
}

func (m *mockReceptionService) ListReceptions(ctx context.Context, orderID uuid.UUID, filter shared.Filter) (*shared.Paginated[appreceiving.ReceptionResponse], error) {
	args := m.Called(ctx, orderID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[appreceiving.ReceptionResponse]), args.Error(1)
}

func (m *mockReceptionService) GetOrderLedger(ctx context.Context, orderID uuid.UUID) (*appreceiving.OrderLedgerResponse, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appreceiving.OrderLedgerResponse), args.Error(1)
}

type mockMetricsService struct {
	mock.Mock
}

func (m *mockMetricsService) ComputeMetrics(ctx context.Context, filter appreceiving.MetricsFilter) (*appreceiving.MetricsResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appreceiving.MetricsResponse), args.Error(1)
}

type mockDocumentService struct {
	mock.Mock
}

func (m *mockDocumentService) PresignDocumentUpload(ctx context.Context, cmd appreceiving.PresignDocumentCommand) (*appreceiving.PresignedDocument, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appreceiving.PresignedDocument), args.Error(1)
}

func (m *mockDocumentService) PresignDocumentDownload(ctx context.Context, documentRef string) (*appreceiving.PresignedDocument, error) {
	args := m.Called(ctx, documentRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appreceiving.PresignedDocument), args.Error(1)
}

// newTestEngine mounts the request-scoped middleware the handlers rely on
func newTestEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Actor())
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		RequestID string         `json:"request_id"`
		Details   map[string]any `json:"details"`
		Fields    []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"fields"`
	} `json:"error"`
	Meta *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}
