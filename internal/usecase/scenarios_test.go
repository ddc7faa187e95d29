package usecase_test

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

func TestDepositApprovalCreditsBalance(t *testing.T) {
	e := newEngine(t)
	e.createAccount(t, "acc")

	tx := e.record(t, "acc", domain.TransactionTypeDeposit, "500", nil)
	if tx.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", tx.Status)
	}
	assertDecimal(t, "balance before approval", e.account(t, "acc").Balance, "0")

	approved := e.approve(t, tx.ID)
	if approved.Status != domain.StatusApproved || approved.ApprovedAt == nil {
		t.Fatalf("expected approved with timestamp, got %+v", approved)
	}
	if approved.Actor != "admin-1" {
		t.Fatalf("expected actor admin-1, got %s", approved.Actor)
	}

	assertDecimal(t, "balance", e.account(t, "acc").Balance, "500")
	e.assertReconciled(t, "acc")
}

func TestInvestmentApprovalMovesPrincipal(t *testing.T) {
	e := newEngine(t)
	e.createAccount(t, "acc")
	e.fund(t, "acc", "500")

	e.invest(t, "acc", "500", "basic")

	acc := e.account(t, "acc")
	assertDecimal(t, "balance", acc.Balance, "0")
	assertDecimal(t, "total invested", acc.TotalInvested, "500")
	if acc.CurrentPlanID == nil || *acc.CurrentPlanID != "basic" {
		t.Fatalf("expected plan basic, got %v", acc.CurrentPlanID)
	}
	e.assertReconciled(t, "acc")
}

func TestDailyAccrualOncePerDay(t *testing.T) {
	e := newEngine(t)
	e.createAccount(t, "acc")
	e.fund(t, "acc", "500")
	e.invest(t, "acc", "500", "basic")

	first, err := e.accrual.MaybeAccrue(userCtx("acc"), "acc", day1)
	if err != nil {
		t.Fatalf("accrue failed: %v", err)
	}
	if first.Outcome != usecase.AccrualAccrued {
		t.Fatalf("expected accrued, got %s", first.Outcome)
	}
	assertDecimal(t, "interest", first.Interest, "50")

	acc := e.account(t, "acc")
	assertDecimal(t, "balance", acc.Balance, "50")
	assertDecimal(t, "total interest", acc.TotalInterest, "50")
	if acc.LastAccrualDate == nil || !acc.LastAccrualDate.Equal(day1) {
		t.Fatalf("expected last accrual %s, got %v", day1, acc.LastAccrualDate)
	}

	second, err := e.accrual.MaybeAccrue(userCtx("acc"), "acc", day1)
	if err != nil {
		t.Fatalf("second accrue failed: %v", err)
	}
	if second.Outcome != usecase.AccrualAlreadyAccruedToday {
		t.Fatalf("expected already accrued, got %s", second.Outcome)
	}
	assertDecimal(t, "balance after repeat", e.account(t, "acc").Balance, "50")

	entry := e.transaction(t, first.TransactionID)
	if entry.Type != domain.TransactionTypeInterest || entry.Status != domain.StatusCompleted || !entry.AutoGenerated {
		t.Fatalf("unexpected interest entry: %+v", entry)
	}
	e.assertReconciled(t, "acc")
}

func TestWithdrawalBeyondBalanceStaysPending(t *testing.T) {
	e := newEngine(t)
	e.createAccount(t, "acc")
	e.fund(t, "acc", "100")

	tx := e.record(t, "acc", domain.TransactionTypeWithdrawal, "200", nil)

	_, err := e.transitions.Transition(adminCtx(), tx.ID, domain.StatusApproved)
	assertErrorIs(t, err, domain.ErrInsufficientBalance)

	assertDecimal(t, "balance", e.account(t, "acc").Balance, "100")
	if got := e.transaction(t, tx.ID); got.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
}

func TestAdjustmentCannotOverdraw(t *testing.T) {
	e := newEngine(t)
	e.createAccount(t, "acc")
	e.fund(t, "acc", "30")

	_, err := e.adjustments.Adjust(adminCtx(), usecase.AdjustInput{
		AccountID: "acc",
		Delta:     dec("-50"),
		Reason:    "correction",
	})
	assertErrorIs(t, err, domain.ErrInsufficientBalance)

	assertDecimal(t, "balance", e.account(t, "acc").Balance, "30")
	e.assertReconciled(t, "acc")
}

// Approvals, debits and accruals racing on one account must serialize into some
// order whose summed effect equals the stored balance.
func TestMixedOperationsSerializeOnOneAccount(t *testing.T) {
	e := newEngine(t)
	e.createAccount(t, "acc")
	e.fund(t, "acc", "1000")
	e.invest(t, "acc", "500", "basic")
	assertDecimal(t, "starting balance", e.account(t, "acc").Balance, "500")

	withdrawals := make([]string, 20)
	for i := range withdrawals {
		withdrawals[i] = e.record(t, "acc", domain.TransactionTypeWithdrawal, "40", nil).ID
	}

	var okWithdrawals, okDebits, accrued atomic.Int64
	unexpected := make(chan error, 64)
	var wg sync.WaitGroup

	for _, id := range withdrawals {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.transitions.Transition(adminCtx(), id, domain.StatusApproved)
			switch {
			case err == nil:
				okWithdrawals.Add(1)
			case !errors.Is(err, domain.ErrInsufficientBalance):
				unexpected <- err
			}
		}(id)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.adjustments.Adjust(adminCtx(), usecase.AdjustInput{AccountID: "acc", Delta: dec("-30"), Reason: "fee"})
			switch {
			case err == nil:
				okDebits.Add(1)
			case !errors.Is(err, domain.ErrInsufficientBalance):
				unexpected <- err
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.accrual.MaybeAccrue(adminCtx(), "acc", day1)
			if err != nil {
				unexpected <- err
				return
			}
			if res.Outcome == usecase.AccrualAccrued {
				accrued.Add(1)
			}
		}()
	}
	wg.Wait()
	close(unexpected)
	for err := range unexpected {
		t.Errorf("unexpected error: %v", err)
	}

	if accrued.Load() != 1 {
		t.Fatalf("expected exactly one accrual, got %d", accrued.Load())
	}

	want := dec("550").
		Sub(dec("40").Mul(decimal.NewFromInt(okWithdrawals.Load()))).
		Sub(dec("30").Mul(decimal.NewFromInt(okDebits.Load())))
	acc := e.account(t, "acc")
	assertDecimal(t, "balance", acc.Balance, want.String())
	assertDecimal(t, "total withdrawal", acc.TotalWithdrawal, dec("40").Mul(decimal.NewFromInt(okWithdrawals.Load())).String())
	assertDecimal(t, "total interest", acc.TotalInterest, "50")
	if acc.Balance.IsNegative() {
		t.Fatalf("balance went negative: %s", acc.Balance)
	}
	e.assertReconciled(t, "acc")
}

// A long random sequence of approvals, cancellations, adjustments and accruals
// never leaves the balance negative, and a failed call never changes it.
func TestRandomSequencesKeepBalanceNonNegative(t *testing.T) {
	e := newEngine(t)
	e.createAccount(t, "acc")
	rng := rand.New(rand.NewSource(7))

	var approved []string
	today := day1
	model := decimal.Zero

	amount := func() decimal.Decimal { return decimal.NewFromInt(int64(50 + rng.Intn(400))) }

	for step := 0; step < 300; step++ {
		before := e.account(t, "acc")
		var (
			err   error
			delta decimal.Decimal
		)

		switch op := rng.Intn(6); op {
		case 0, 1, 2:
			txType := []domain.TransactionType{
				domain.TransactionTypeDeposit,
				domain.TransactionTypeWithdrawal,
				domain.TransactionTypeInvestment,
			}[op]
			amt := amount()
			tx := e.record(t, "acc", txType, amt.String(), nil)
			_, err = e.transitions.Transition(adminCtx(), tx.ID, domain.StatusApproved)
			if err == nil {
				approved = append(approved, tx.ID)
				delta = amt
				if txType != domain.TransactionTypeDeposit {
					delta = amt.Neg()
				}
			}
		case 3:
			if len(approved) == 0 {
				continue
			}
			i := rng.Intn(len(approved))
			var tx *domain.Transaction
			tx, err = e.transitions.Transition(adminCtx(), approved[i], domain.StatusCancelled)
			if err == nil {
				approved = append(approved[:i], approved[i+1:]...)
				delta = tx.Amount
				if tx.Type == domain.TransactionTypeDeposit {
					delta = tx.Amount.Neg()
				}
			}
		case 4:
			d := decimal.NewFromInt(int64(rng.Intn(600) - 300))
			if d.IsZero() {
				continue
			}
			_, err = e.adjustments.Adjust(adminCtx(), usecase.AdjustInput{AccountID: "acc", Delta: d, Reason: "random"})
			if err == nil {
				delta = d
			}
		case 5:
			today = today.AddDays(1)
			var res *usecase.AccrualResult
			res, err = e.accrual.MaybeAccrue(adminCtx(), "acc", today)
			if err == nil && res.Outcome == usecase.AccrualAccrued {
				delta = res.Interest
			}
		}

		after := e.account(t, "acc")
		if err != nil {
			if !errors.Is(err, domain.ErrInsufficientBalance) {
				t.Fatalf("step %d: unexpected error %v", step, err)
			}
			assertDecimal(t, "balance after failed call", after.Balance, before.Balance.String())
			continue
		}
		if after.Balance.IsNegative() {
			t.Fatalf("step %d: balance went negative: %s", step, after.Balance)
		}
		model = model.Add(delta)
		assertDecimal(t, "balance", after.Balance, model.String())
	}

	e.assertReconciled(t, "acc")
}
