package domain

import (
	"time"

	"github.com/google/uuid"
)

// CorrectionItem is one correction an author asks for in a proof.
type CorrectionItem struct {
	Location      string `json:"location,omitempty"`
	OriginalText  string `json:"original_text,omitempty"`
	SuggestedText string `json:"suggested_text"`
	Note          string `json:"note,omitempty"`
}

// ProofreadingResponse is the author's latest answer to a proof.
type ProofreadingResponse struct {
	Decision    ProofreadingDecision `json:"decision"`
	Corrections []CorrectionItem     `json:"corrections,omitempty"`
	SubmittedBy uuid.UUID            `json:"submitted_by"`
	SubmittedAt time.Time            `json:"submitted_at"`
}

// ProductionCycle is one round of layout and author proofreading. Only the
// cycle with the highest CycleNo of a manuscript is active.
type ProductionCycle struct {
	ID             uuid.UUID
	ManuscriptID   uuid.UUID
	CycleNo        int
	Status         CycleStatus
	ProofFileRef   *string
	ProofSentAt    *time.Time
	ProofDueAt     *time.Time
	LatestResponse *ProofreadingResponse
	ApprovedBy     *uuid.UUID
	ApprovedAt     *time.Time
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy.
func (c ProductionCycle) Clone() ProductionCycle {
	out := c
	out.ProofFileRef = cloneString(c.ProofFileRef)
	out.ProofSentAt = cloneTime(c.ProofSentAt)
	out.ProofDueAt = cloneTime(c.ProofDueAt)
	out.ApprovedBy = cloneUUID(c.ApprovedBy)
	out.ApprovedAt = cloneTime(c.ApprovedAt)
	if c.LatestResponse != nil {
		r := *c.LatestResponse
		r.Corrections = append([]CorrectionItem(nil), c.LatestResponse.Corrections...)
		out.LatestResponse = &r
	}
	return out
}
