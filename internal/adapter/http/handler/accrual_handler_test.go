package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/adapter/http/dto"
	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

type accrualServiceStub struct {
	gotAccount string
	gotDate    domain.Date
	runErr     error
}

func (s *accrualServiceStub) MaybeAccrue(ctx context.Context, accountID string, today domain.Date) (*usecase.AccrualResult, error) {
	s.gotAccount, s.gotDate = accountID, today
	return &usecase.AccrualResult{
		AccountID: accountID,
		Date:      today,
		Outcome:   usecase.AccrualAccrued,
		Interest:  decimal.RequireFromString("0.45"),
	}, nil
}

func (s *accrualServiceStub) AccrueAll(ctx context.Context, today domain.Date) (*usecase.AccrualRunSummary, error) {
	s.gotDate = today
	if s.runErr != nil {
		return nil, s.runErr
	}
	return &usecase.AccrualRunSummary{Date: today, Accrued: 2, NoOp: 1, TotalInterest: decimal.NewFromInt(3)}, nil
}

func newAccrualHandler(svc AccrualService) *AccrualHandler {
	h := NewAccrualHandler(svc)
	h.now = func() time.Time { return time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC) }
	return h
}

func TestAccrualHandler_AccrueAccount_DefaultsToToday(t *testing.T) {
	svc := &accrualServiceStub{}
	handler := newAccrualHandler(svc)

	req := withRoute(httptest.NewRequest(http.MethodPost, "/accounts/user-1/accrue", nil), map[string]string{"id": "user-1"})
	req = asActor(req, "user-1", false)
	rec := httptest.NewRecorder()
	handler.AccrueAccount(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotAccount != "user-1" || svc.gotDate != domain.NewDate(2024, time.March, 10) {
		t.Fatalf("unexpected call %s %s", svc.gotAccount, svc.gotDate)
	}

	var resp dto.AccrualResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Outcome != string(usecase.AccrualAccrued) || resp.Interest != "0.45" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestAccrualHandler_AccrueAccount_DateOverride(t *testing.T) {
	body := `{"date":"2024-03-12"}`

	t.Run("admin may pin a date", func(t *testing.T) {
		svc := &accrualServiceStub{}
		req := withRoute(httptest.NewRequest(http.MethodPost, "/accounts/user-1/accrue", strings.NewReader(body)), map[string]string{"id": "user-1"})
		req = asActor(req, "admin-1", true)
		rec := httptest.NewRecorder()
		newAccrualHandler(svc).AccrueAccount(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if svc.gotDate != domain.NewDate(2024, time.March, 12) {
			t.Fatalf("expected pinned date, got %s", svc.gotDate)
		}
	})

	t.Run("user may not", func(t *testing.T) {
		svc := &accrualServiceStub{}
		req := withRoute(httptest.NewRequest(http.MethodPost, "/accounts/user-1/accrue", strings.NewReader(body)), map[string]string{"id": "user-1"})
		req = asActor(req, "user-1", false)
		rec := httptest.NewRecorder()
		newAccrualHandler(svc).AccrueAccount(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if svc.gotAccount != "" {
			t.Fatal("accrual should not run")
		}
	})

	t.Run("bad date", func(t *testing.T) {
		req := withRoute(httptest.NewRequest(http.MethodPost, "/accounts/user-1/accrue", strings.NewReader(`{"date":"10/03/2024"}`)), map[string]string{"id": "user-1"})
		rec := httptest.NewRecorder()
		newAccrualHandler(&accrualServiceStub{}).AccrueAccount(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAccrualHandler_RunAll(t *testing.T) {
	svc := &accrualServiceStub{}
	rec := httptest.NewRecorder()
	req := asActor(httptest.NewRequest(http.MethodPost, "/admin/accrual/run", nil), "admin-1", true)
	newAccrualHandler(svc).RunAll(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp dto.AccrualRunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Accrued != 2 || resp.NoOp != 1 || resp.TotalInterest != "3" {
		t.Fatalf("unexpected summary %+v", resp)
	}

	svc.runErr = domain.ErrForbidden
	rec = httptest.NewRecorder()
	newAccrualHandler(svc).RunAll(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
