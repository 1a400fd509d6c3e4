package event

const ChallengeIssuedDestination string = "challenge_issued"
const ChallengeIssuedConsumerAudit string = "challenge_issued_audit"

type ChallengeIssuedMessage struct {
	ChallengeID int64  `json:"challenge_id"`
	SubjectID   string `json:"subject_id"`
	Purpose     string `json:"purpose"`
	ExpiresAt   int64  `json:"expires_at"`
}
