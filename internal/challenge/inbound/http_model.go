package inbound

type HealthResponse struct {
	Status string `json:"status"`
}

type IssueRequest struct {
	SubjectID   string `json:"subject_id"`
	Purpose     string `json:"purpose"`
	Destination string `json:"destination"`
}

type IssueResponse struct {
	ChallengeID        int64  `json:"challenge_id"`
	ExpiresAt          string `json:"expires_at"`
	ResendAfterSeconds int64  `json:"resend_after_seconds"`
}

func (IssueResponse) Message() string {
	return "We have sent a verification code. It expires shortly."
}

type VerifyRequest struct {
	SubjectID string `json:"subject_id"`
	Purpose   string `json:"purpose"`
	Code      string `json:"code"`
}

type VerifyResponse struct {
	ChallengeID int64 `json:"challenge_id"`
	Attempts    int32 `json:"attempts"`
}

func (VerifyResponse) Message() string {
	return "Verification successful."
}

type PurgeRequest struct {
	RetentionMinutes int32 `json:"retention_minutes"`
}

type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

func (PurgeResponse) Message() string {
	return "Purge completed."
}
