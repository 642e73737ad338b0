package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/api/middleware"
	"github.com/jordanlanch/leaddesk/pkg/audit"
	"github.com/jordanlanch/leaddesk/pkg/conversation"
	"github.com/jordanlanch/leaddesk/pkg/dedup"
	"github.com/jordanlanch/leaddesk/pkg/ingest"
	"github.com/jordanlanch/leaddesk/pkg/leadassignment"
	"github.com/jordanlanch/leaddesk/pkg/normalizer"
	"github.com/jordanlanch/leaddesk/pkg/sla"
	"github.com/jordanlanch/leaddesk/pkg/store/memory"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type testServices struct {
	store    *memory.Store
	audit    *audit.Service
	convs    *conversation.Service
	sla      *sla.Service
	assign   *leadassignment.Service
	pipeline *ingest.Pipeline
}

func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	st := memory.New()
	auditSvc := audit.NewService(st)
	convs := conversation.NewService(st, conversation.WithAudit(auditSvc))
	slaSvc := sla.NewService(st, st, st, sla.WithMirror(convs), sla.WithAudit(auditSvc))
	assign := leadassignment.NewService(st, st, memory.NewCursors(), st,
		leadassignment.WithConversations(convs),
		leadassignment.WithAudit(auditSvc),
	)
	p := ingest.NewPipeline(normalizer.New(), dedup.NewService(st, dedup.WithAudit(auditSvc)), convs, slaSvc, assign,
		ingest.WithAudit(auditSvc),
		ingest.WithConfig(ingest.Config{Timeout: 5 * time.Second, Attempts: 1, AssignWait: time.Second}),
	)
	t.Cleanup(func() {
		p.Wait()
		auditSvc.Wait()
	})
	return &testServices{store: st, audit: auditSvc, convs: convs, sla: slaSvc, assign: assign, pipeline: p}
}

func newJSONContext(method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.ContextUserID, "agent-1")
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}
