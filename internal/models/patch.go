package models

import "encoding/json"

// Patch structs carry explicit typed partial updates. Only non-nil fields
// are persisted, so a write can never leak unintended attributes into a
// document. A non-nil pointer to a zero value is an intentional clear.

// ClaimPatch is a partial update to an ExpenseClaim.
type ClaimPatch struct {
	ProjectID    *string      `json:"projectId,omitempty"`
	ApplicantID  *string      `json:"applicantId,omitempty"`
	ClaimType    *string      `json:"claimType,omitempty"`
	Source       *string      `json:"source,omitempty"`
	CostCategory *string      `json:"costCategory,omitempty"`
	OccurDate    *string      `json:"occurDate,omitempty"`
	AmountTotal  *float64     `json:"amountTotal,omitempty"`
	TaxAmount    *float64     `json:"taxAmount,omitempty"`
	Status       *ClaimStatus `json:"status,omitempty"`
	SubmittedAt  *string      `json:"submittedAt,omitempty"`
	ApprovalBy   *string      `json:"approvalBy,omitempty"`
	ApprovalAt   *string      `json:"approvalAt,omitempty"`
	RejectReason *string      `json:"rejectReason,omitempty"`
	VoidReason   *string      `json:"voidReason,omitempty"`
	UpdatedAt    *string      `json:"updatedAt,omitempty"`
}

// ProjectPatch is a partial update to a Project.
type ProjectPatch struct {
	Name      *string `json:"name,omitempty"`
	Owner     *string `json:"owner,omitempty"`
	Status    *string `json:"status,omitempty"`
	StartDate *string `json:"startDate,omitempty"`
	EndDate   *string `json:"endDate,omitempty"`
	UpdatedBy *string `json:"updatedBy,omitempty"`
	UpdatedAt *string `json:"updatedAt,omitempty"`
}

// UserPatch is a partial update to a User.
type UserPatch struct {
	Phone     *string `json:"phone,omitempty"`
	Name      *string `json:"name,omitempty"`
	Role      *Role   `json:"role,omitempty"`
	Status    *string `json:"status,omitempty"`
	UpdatedAt *string `json:"updatedAt,omitempty"`
}

// ImportJobPatch is the single finalizing update applied to an ImportJob.
type ImportJobPatch struct {
	Status       *string   `json:"status,omitempty"`
	SuccessCount *int      `json:"successCount,omitempty"`
	FailCount    *int      `json:"failCount,omitempty"`
	Errors       *[]string `json:"errors,omitempty"`
	UpdatedAt    *string   `json:"updatedAt,omitempty"`
}

// PatchFields renders a patch struct into the explicit field set handed to
// the store. Nil pointers never appear in the output.
func PatchFields(patch any) (map[string]any, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Ptr returns a pointer to v, for building patch literals.
func Ptr[T any](v T) *T {
	return &v
}
