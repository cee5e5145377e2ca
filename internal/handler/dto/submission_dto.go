package dto

// SubmitRequest - попытка сдачи флага
type SubmitRequest struct {
	ChallengeID   uint   `json:"challenge_id" binding:"required"`
	SubmittedFlag string `json:"submitted_flag" binding:"required"`
}
