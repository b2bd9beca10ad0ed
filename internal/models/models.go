// Package models declares the persisted entities and their status
// vocabularies. All structs round-trip through the document store as JSON,
// so field tags are the persisted attribute names.
package models

// Role is the closed role enumeration driving every authorization predicate.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleFinance   Role = "finance"
	RoleAdmin     Role = "admin"
)

// IsValid reports whether the role is part of the closed enumeration.
func (r Role) IsValid() bool {
	switch r {
	case RoleApplicant, RoleFinance, RoleAdmin:
		return true
	}
	return false
}

// ClaimStatus is an expense claim lifecycle state.
type ClaimStatus string

const (
	ClaimDraft     ClaimStatus = "draft"
	ClaimSubmitted ClaimStatus = "submitted"
	ClaimApproved  ClaimStatus = "approved"
	ClaimRejected  ClaimStatus = "rejected"
	ClaimVoid      ClaimStatus = "void"
)

// Claim type and source vocabularies.
const (
	ClaimTypeElectronic = "electronic"
	ClaimTypePaper      = "paper"

	ClaimSourceManual      = "app_manual"
	ClaimSourcePaperManual = "paper_manual"
	ClaimSourcePaperExcel  = "paper_excel"
)

// Import job vocabularies.
const (
	ImportTypePaperExcel = "paper_excel"
	ImportTypeERPPull    = "erp_pull"

	ImportProcessing     = "processing"
	ImportSuccess        = "success"
	ImportPartialSuccess = "partial_success"
	ImportFailed         = "failed"
)

// Project status vocabulary.
const (
	ProjectActive   = "active"
	ProjectArchived = "archived"
	ProjectDisabled = "disabled"
)

// User is an authenticated principal.
type User struct {
	UserID     string `json:"userId"`
	ExternalID string `json:"externalId"`
	Phone      string `json:"phone"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

// Project is the business unit expense and revenue are reconciled against.
// Projects referenced by imports are auto-created with source "auto".
type Project struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Owner     string `json:"owner"`
	Source    string `json:"source"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	CreatedBy string `json:"createdBy"`
	UpdatedBy string `json:"updatedBy,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// ExpenseClaim is a reimbursement request moving through the approval
// lifecycle. AmountTotal and TaxAmount are derived sums over its items,
// recomputed on every item-set change.
type ExpenseClaim struct {
	ClaimID      string      `json:"claimId"`
	ProjectID    string      `json:"projectId"`
	ApplicantID  string      `json:"applicantId"`
	ClaimType    string      `json:"claimType"`
	Source       string      `json:"source"`
	CostCategory string      `json:"costCategory"`
	OccurDate    string      `json:"occurDate"`
	AmountTotal  float64     `json:"amountTotal"`
	TaxAmount    float64     `json:"taxAmount"`
	Status       ClaimStatus `json:"status"`
	SubmittedAt  string      `json:"submittedAt,omitempty"`
	ApprovalBy   string      `json:"approvalBy,omitempty"`
	ApprovalAt   string      `json:"approvalAt,omitempty"`
	RejectReason string      `json:"rejectReason,omitempty"`
	VoidReason   string      `json:"voidReason,omitempty"`
	CreatedAt    string      `json:"createdAt"`
	UpdatedAt    string      `json:"updatedAt"`
}

// ExpenseItem is one expense line owned exclusively by a claim. Items are
// deleted and re-inserted wholesale when the owning claim is edited.
type ExpenseItem struct {
	ItemID    string  `json:"itemId"`
	ClaimID   string  `json:"claimId"`
	ProjectID string  `json:"projectId"`
	Category  string  `json:"category"`
	Amount    float64 `json:"amount"`
	TaxAmount float64 `json:"taxAmount"`
	Remark    string  `json:"remark"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// RevenueRecord holds one project's revenue for one period. At most one
// record exists per (projectId, period); imports upsert by that key.
type RevenueRecord struct {
	RecordID      string  `json:"recordId"`
	ProjectID     string  `json:"projectId"`
	Period        string  `json:"period"`
	RevenueAmount float64 `json:"revenueAmount"`
	Source        string  `json:"source"`
	SyncBatchID   string  `json:"syncBatchId,omitempty"`
	UpdatedBy     string  `json:"updatedBy,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// LaborAllocation holds one project's amortized labor cost for one period.
type LaborAllocation struct {
	AllocationID string  `json:"allocationId"`
	ProjectID    string  `json:"projectId"`
	Period       string  `json:"period"`
	LaborAmount  float64 `json:"laborAmount"`
	Source       string  `json:"source"`
	UpdatedBy    string  `json:"updatedBy,omitempty"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

// TaxFee holds one project's tax fee for one period.
type TaxFee struct {
	FeeID        string  `json:"feeId"`
	ProjectID    string  `json:"projectId"`
	Period       string  `json:"period"`
	TaxFeeAmount float64 `json:"taxFeeAmount"`
	Source       string  `json:"source"`
	UpdatedBy    string  `json:"updatedBy,omitempty"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

// CommissionRange is one tier of a commission schedule. Min/Max are profit
// rates; nil means unbounded on that side. Lookup is half-open [min, max).
type CommissionRange struct {
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Rate float64  `json:"rate"`
}

// CommissionRule is a versioned, period-effective commission schedule.
type CommissionRule struct {
	Version       string            `json:"version"`
	EffectiveFrom string            `json:"effectiveFrom"`
	Status        string            `json:"status"`
	Ranges        []CommissionRange `json:"ranges"`
	CreatedAt     string            `json:"createdAt,omitempty"`
	UpdatedAt     string            `json:"updatedAt,omitempty"`
}

// Settlement is the computed profit/commission result for one project in
// one period. Exactly one exists per (projectId, period); recomputation
// overwrites in place.
type Settlement struct {
	SettlementID     string             `json:"settlementId"`
	ProjectID        string             `json:"projectId"`
	Period           string             `json:"period"`
	Revenue          float64            `json:"revenue"`
	ExpenseCost      float64            `json:"expenseCost"`
	TaxFee           float64            `json:"taxFee"`
	LaborCost        float64            `json:"laborCost"`
	Profit           float64            `json:"profit"`
	ProfitRate       float64            `json:"profitRate"`
	CommissionRate   float64            `json:"commissionRate"`
	CommissionAmount float64            `json:"commissionAmount"`
	RuleVersion      string             `json:"ruleVersion"`
	Snapshot         SettlementSnapshot `json:"snapshot"`
	GeneratedBy      string             `json:"generatedBy"`
	GeneratedAt      string             `json:"generatedAt"`
	CreatedAt        string             `json:"createdAt"`
	UpdatedAt        string             `json:"updatedAt"`
}

// SettlementSnapshot freezes the inputs a settlement was computed from so
// the result stays auditable after the source records change.
type SettlementSnapshot struct {
	ProjectID     string            `json:"projectId"`
	Period        string            `json:"period"`
	RevenueRecord RevenueRecord     `json:"revenueRecord"`
	LaborRecord   LaborAllocation   `json:"laborRecord"`
	TaxFeeRecord  TaxFee            `json:"taxFeeRecord"`
	ClaimCount    int               `json:"claimCount"`
	RuleVersion   string            `json:"ruleVersion"`
	RuleRanges    []CommissionRange `json:"ruleRanges"`
}

// ImportJob records one batch-processing run over external rows.
// Append-only after creation except the single final status patch.
type ImportJob struct {
	JobID        string   `json:"jobId"`
	Type         string   `json:"type"`
	Status       string   `json:"status"`
	Period       string   `json:"period"`
	SuccessCount int      `json:"successCount"`
	FailCount    int      `json:"failCount"`
	Errors       []string `json:"errors"`
	CreatedBy    string   `json:"createdBy,omitempty"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

// OperationLog is one append-only audit record.
type OperationLog struct {
	LogID      string `json:"logId"`
	Action     string `json:"action"`
	UserID     string `json:"userId"`
	TargetType string `json:"targetType"`
	TargetID   string `json:"targetId"`
	Payload    any    `json:"payload"`
	CreatedAt  string `json:"createdAt"`
}
