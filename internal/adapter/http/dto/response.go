package dto

import (
	"time"

	"github.com/iho/yieldledger/internal/domain"
	"github.com/iho/yieldledger/internal/usecase"
)

// Amounts are rendered as decimal strings.

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID              string       `json:"id"`
	Balance         string       `json:"balance"`
	TotalInvested   string       `json:"total_invested"`
	TotalInterest   string       `json:"total_interest"`
	TotalWithdrawal string       `json:"total_withdrawal"`
	CurrentPlanID   *string      `json:"current_plan_id"`
	LastAccrualDate *domain.Date `json:"last_accrual_date"`
	Version         int64        `json:"version"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:              a.ID,
		Balance:         a.Balance.String(),
		TotalInvested:   a.TotalInvested.String(),
		TotalInterest:   a.TotalInterest.String(),
		TotalWithdrawal: a.TotalWithdrawal.String(),
		CurrentPlanID:   a.CurrentPlanID,
		LastAccrualDate: a.LastAccrualDate,
		Version:         a.Version,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse is a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Count    int                `json:"count"`
}

// TransactionResponse represents a ledger entry in API responses.
type TransactionResponse struct {
	ID            string         `json:"id"`
	AccountID     string         `json:"account_id"`
	Type          string         `json:"type"`
	Amount        string         `json:"amount"`
	PlanID        *string        `json:"plan_id,omitempty"`
	Status        string         `json:"status"`
	Description   string         `json:"description,omitempty"`
	Actor         string         `json:"actor"`
	AutoGenerated bool           `json:"auto_generated"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ApprovedAt    *time.Time     `json:"approved_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// TransactionFromDomain converts a domain transaction to response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:            t.ID,
		AccountID:     t.AccountID,
		Type:          string(t.Type),
		Amount:        t.Amount.String(),
		PlanID:        t.PlanID,
		Status:        string(t.Status),
		Description:   t.Description,
		Actor:         t.Actor,
		AutoGenerated: t.AutoGenerated,
		Metadata:      t.Metadata,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		ApprovedAt:    t.ApprovedAt,
		CompletedAt:   t.CompletedAt,
	}
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txs []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txs))
	for i, t := range txs {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// ListTransactionsResponse is a page of transactions.
type ListTransactionsResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	Count        int                    `json:"count"`
}

// PlanResponse describes an investment tier.
type PlanResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	MinPrincipal string  `json:"min_principal"`
	MaxPrincipal *string `json:"max_principal"`
	DailyRate    string  `json:"daily_rate"`
}

// PlanFromDomain converts a plan to response.
func PlanFromDomain(p domain.Plan) PlanResponse {
	resp := PlanResponse{
		ID:           p.ID,
		Name:         p.Name,
		MinPrincipal: p.MinPrincipal.String(),
		DailyRate:    p.DailyRate.String(),
	}
	if p.MaxPrincipal != nil {
		maximum := p.MaxPrincipal.String()
		resp.MaxPrincipal = &maximum
	}
	return resp
}

// PlansFromDomain converts plans to responses.
func PlansFromDomain(plans []domain.Plan) []PlanResponse {
	result := make([]PlanResponse, len(plans))
	for i, p := range plans {
		result[i] = PlanFromDomain(p)
	}
	return result
}

// AccrualResponse is the outcome of a single-account accrual.
type AccrualResponse struct {
	AccountID     string           `json:"account_id"`
	Date          domain.Date      `json:"date"`
	Outcome       string           `json:"outcome"`
	Interest      string           `json:"interest"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Account       *AccountResponse `json:"account,omitempty"`
}

// AccrualFromResult converts an accrual result to response.
func AccrualFromResult(r *usecase.AccrualResult) *AccrualResponse {
	resp := &AccrualResponse{
		AccountID:     r.AccountID,
		Date:          r.Date,
		Outcome:       string(r.Outcome),
		Interest:      r.Interest.String(),
		TransactionID: r.TransactionID,
	}
	if r.Account != nil {
		resp.Account = AccountFromDomain(r.Account)
	}
	return resp
}

// AccrualRunResponse summarizes a batch run.
type AccrualRunResponse struct {
	Date           domain.Date `json:"date"`
	Accrued        int         `json:"accrued"`
	AlreadyAccrued int         `json:"already_accrued"`
	NoOp           int         `json:"no_op"`
	Failed         int         `json:"failed"`
	TotalInterest  string      `json:"total_interest"`
	DurationMS     int64       `json:"duration_ms"`
}

// AccrualRunFromSummary converts a run summary to response.
func AccrualRunFromSummary(s *usecase.AccrualRunSummary) *AccrualRunResponse {
	return &AccrualRunResponse{
		Date:           s.Date,
		Accrued:        s.Accrued,
		AlreadyAccrued: s.AlreadyAccrued,
		NoOp:           s.NoOp,
		Failed:         s.Failed,
		TotalInterest:  s.TotalInterest.String(),
		DurationMS:     s.Duration.Milliseconds(),
	}
}

// TotalsResponse carries the four account figures.
type TotalsResponse struct {
	Balance         string `json:"balance"`
	TotalInvested   string `json:"total_invested"`
	TotalInterest   string `json:"total_interest"`
	TotalWithdrawal string `json:"total_withdrawal"`
}

// TotalsFrom converts account totals to response.
func TotalsFrom(t usecase.AccountTotals) TotalsResponse {
	return TotalsResponse{
		Balance:         t.Balance.String(),
		TotalInvested:   t.TotalInvested.String(),
		TotalInterest:   t.TotalInterest.String(),
		TotalWithdrawal: t.TotalWithdrawal.String(),
	}
}

// ReconciliationResponse compares stored and log-derived figures for one account.
type ReconciliationResponse struct {
	AccountID    string         `json:"account_id"`
	Recorded     TotalsResponse `json:"recorded"`
	Calculated   TotalsResponse `json:"calculated"`
	Difference   string         `json:"difference"`
	IsReconciled bool           `json:"is_reconciled"`
	LastChecked  time.Time      `json:"last_checked"`
}

// ReconciliationFromResult converts a result to response.
func ReconciliationFromResult(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountID:    r.AccountID,
		Recorded:     TotalsFrom(r.Recorded),
		Calculated:   TotalsFrom(r.Calculated),
		Difference:   r.Difference.String(),
		IsReconciled: r.IsReconciled,
		LastChecked:  r.LastChecked,
	}
}

// ReconciliationReportResponse lists discrepancies across all accounts.
type ReconciliationReportResponse struct {
	TotalAccounts      int                       `json:"total_accounts"`
	ReconciledAccounts int                       `json:"reconciled_accounts"`
	Discrepancies      []*ReconciliationResponse `json:"discrepancies"`
	CheckedAt          time.Time                 `json:"checked_at"`
}

// ReconciliationReportFrom converts a report to response.
func ReconciliationReportFrom(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	resp := &ReconciliationReportResponse{
		TotalAccounts:      r.TotalAccounts,
		ReconciledAccounts: r.ReconciledAccounts,
		Discrepancies:      make([]*ReconciliationResponse, len(r.Discrepancies)),
		CheckedAt:          r.CheckedAt,
	}
	for i, d := range r.Discrepancies {
		resp.Discrepancies[i] = ReconciliationFromResult(d)
	}
	return resp
}

// LedgerCheckResponse is the system-wide conservation check.
type LedgerCheckResponse struct {
	Consistent bool           `json:"consistent"`
	Stored     TotalsResponse `json:"stored"`
	Calculated TotalsResponse `json:"calculated"`
}

// LedgerCheckFrom converts a ledger check to response.
func LedgerCheckFrom(c *usecase.LedgerCheck) *LedgerCheckResponse {
	return &LedgerCheckResponse{
		Consistent: c.Consistent,
		Stored:     TotalsFrom(c.Stored),
		Calculated: TotalsFrom(c.Calculated),
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// AuditLogResponse is one audit trail row.
type AuditLogResponse struct {
	ID           string         `json:"id"`
	ActorID      string         `json:"actor_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Reason       string         `json:"reason,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	BeforeState  map[string]any `json:"before_state,omitempty"`
	AfterState   map[string]any `json:"after_state,omitempty"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditLogsFromDomain converts audit rows to responses.
func AuditLogsFromDomain(logs []*domain.AuditLog) []*AuditLogResponse {
	result := make([]*AuditLogResponse, len(logs))
	for i, l := range logs {
		result[i] = &AuditLogResponse{
			ID:           l.ID,
			ActorID:      l.ActorID,
			Action:       l.Action,
			ResourceType: l.ResourceType,
			ResourceID:   l.ResourceID,
			Reason:       l.Reason,
			RequestID:    l.RequestID,
			BeforeState:  l.BeforeState,
			AfterState:   l.AfterState,
			Status:       l.Status,
			CreatedAt:    l.CreatedAt,
		}
	}
	return result
}

// ListAuditLogsResponse is a page of audit rows.
type ListAuditLogsResponse struct {
	AuditLogs []*AuditLogResponse `json:"audit_logs"`
	Count     int                 `json:"count"`
}
