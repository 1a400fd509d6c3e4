package event

const ChallengeDeliveryRequestedDestination string = "challenge_delivery_requested"
const ChallengeDeliveryRequestedConsumerEmail string = "challenge_delivery_requested_email"

type ChallengeDeliveryRequestedMessage struct {
	ChallengeID int64  `json:"challenge_id"`
	SubjectID   string `json:"subject_id"`
	Purpose     string `json:"purpose"`
	Destination string `json:"destination"`
	Code        string `json:"code"`
	ExpiresAt   int64  `json:"expires_at"`
}
