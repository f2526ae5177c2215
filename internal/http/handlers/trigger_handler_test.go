package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-feed-digest/internal/domain"
	"github.com/tbourn/go-feed-digest/internal/http/middleware"
	"github.com/tbourn/go-feed-digest/internal/repo"
	"github.com/tbourn/go-feed-digest/internal/services"
)

func triggerRouter(db *gorm.DB, svc *stubTriggerSvc) *gin.Engine {
	h := New(db, stubSettingsSvc{}, svc, nil, time.Hour)
	r := gin.New()
	r.POST("/digest/trigger", h.TriggerDigest)
	return r
}

func doTrigger(r *gin.Engine, owner, idemKey string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/digest/trigger", nil)
	req.Header.Set("X-User-ID", owner)
	if idemKey != "" {
		req.Header.Set(middleware.HeaderIdempotencyKey, idemKey)
	}
	r.ServeHTTP(w, req)
	return w
}

// ---------- TriggerDigest ----------

func TestTriggerDigest_OutcomeAndErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlersDB(t)

	// Success path.
	{
		svc := &stubTriggerSvc{}
		w := doTrigger(triggerRouter(db, svc), "u1", "")
		if w.Code != http.StatusOK {
			t.Fatalf("trigger -> %d body=%s", w.Code, w.Body.String())
		}
		if svc.calls != 1 {
			t.Fatalf("trigger calls = %d, want 1", svc.calls)
		}
		var out services.PipelineOutcome
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.Status != domain.RunStatusCompleted {
			t.Fatalf("status = %q", out.Status)
		}
	}

	// Pipeline already running -> 409.
	{
		svc := &stubTriggerSvc{trigger: func(context.Context, string) (*services.PipelineOutcome, error) {
			return nil, services.ErrPipelineBusy
		}}
		w := doTrigger(triggerRouter(db, svc), "u1", "")
		if w.Code != http.StatusConflict {
			t.Fatalf("busy -> %d", w.Code)
		}
	}

	// Recent briefing exists -> 409.
	{
		svc := &stubTriggerSvc{trigger: func(context.Context, string) (*services.PipelineOutcome, error) {
			return nil, services.ErrRecentBriefing
		}}
		w := doTrigger(triggerRouter(db, svc), "u1", "")
		if w.Code != http.StatusConflict {
			t.Fatalf("recent briefing -> %d", w.Code)
		}
	}

	// Anything else -> 500 with the trigger_failed code.
	{
		svc := &stubTriggerSvc{trigger: func(context.Context, string) (*services.PipelineOutcome, error) {
			return nil, errors.New("browser crashed")
		}}
		w := doTrigger(triggerRouter(db, svc), "u1", "")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("failure -> %d", w.Code)
		}
		var er ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
			t.Fatalf("json: %v", err)
		}
		if er.Code != ErrCodeTriggerFailed {
			t.Fatalf("error code = %q", er.Code)
		}
	}
}

func TestTriggerDigest_IdempotentReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlersDB(t)
	ctx := context.Background()

	b := seedBriefing(t, db, "u1", "Digest A", time.Now().UTC())
	svc := &stubTriggerSvc{trigger: func(context.Context, string) (*services.PipelineOutcome, error) {
		return &services.PipelineOutcome{
			RunID:        "run-1",
			Status:       domain.RunStatusCompleted,
			RecordsFound: 5,
			RecordsNew:   2,
			Briefing:     b,
		}, nil
	}}
	r := triggerRouter(db, svc)

	// First call runs the pipeline and records the key.
	w := doTrigger(r, "u1", "k-1")
	if w.Code != http.StatusOK {
		t.Fatalf("first trigger -> %d body=%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Idempotency-Replayed"); got != "" {
		t.Fatalf("first call marked replayed: %q", got)
	}
	rec, err := repo.GetIdempotency(ctx, db, "u1", "k-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("idempotency record not stored: %v", err)
	}
	if rec.BriefingID != b.ID {
		t.Fatalf("recorded briefing = %q, want %q", rec.BriefingID, b.ID)
	}

	// Second call with the same key replays the recorded briefing without
	// running the pipeline again.
	w = doTrigger(r, "u1", "k-1")
	if w.Code != http.StatusOK {
		t.Fatalf("replay -> %d body=%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Idempotency-Replayed"); got != "true" {
		t.Fatalf("replay header = %q", got)
	}
	if svc.calls != 1 {
		t.Fatalf("pipeline ran %d times, want 1", svc.calls)
	}
	var out services.PipelineOutcome
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Briefing == nil || out.Briefing.ID != b.ID {
		t.Fatalf("replayed briefing mismatch: %+v", out.Briefing)
	}
	if out.RunID != "" || out.RecordsFound != 0 {
		t.Fatalf("replay must not report fresh run work: %+v", out)
	}
}

func TestTriggerDigest_ReplayFallsThroughWhenBriefingGone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlersDB(t)
	ctx := context.Background()

	// Key recorded against a briefing that no longer exists.
	if _, err := repo.CreateIdempotency(ctx, db, "u1", "k-2", uuid.NewString(), http.StatusOK, time.Hour); err != nil {
		t.Fatalf("seed idempotency: %v", err)
	}

	svc := &stubTriggerSvc{}
	w := doTrigger(triggerRouter(db, svc), "u1", "k-2")
	if w.Code != http.StatusOK {
		t.Fatalf("trigger -> %d body=%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Idempotency-Replayed"); got != "" {
		t.Fatalf("stale record replayed: %q", got)
	}
	if svc.calls != 1 {
		t.Fatalf("pipeline ran %d times, want 1", svc.calls)
	}
}

func TestTriggerDigest_FailedRunNotRecorded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlersDB(t)

	svc := &stubTriggerSvc{trigger: func(context.Context, string) (*services.PipelineOutcome, error) {
		return &services.PipelineOutcome{RunID: "run-9", Status: "failed: no_tweets"}, nil
	}}
	w := doTrigger(triggerRouter(db, svc), "u1", "k-3")
	if w.Code != http.StatusOK {
		t.Fatalf("failed run -> %d body=%s", w.Code, w.Body.String())
	}

	// A run that produced no briefing must not pin the key.
	if _, err := repo.GetIdempotency(context.Background(), db, "u1", "k-3", time.Now().UTC()); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected no idempotency record, got err=%v", err)
	}
}
