package event

const ChallengeConsumedDestination string = "challenge_consumed"
const ChallengeConsumedConsumerAudit string = "challenge_consumed_audit"

type ChallengeConsumedMessage struct {
	ChallengeID int64  `json:"challenge_id"`
	SubjectID   string `json:"subject_id"`
	Purpose     string `json:"purpose"`
	Attempts    int32  `json:"attempts"`
}
