package tests

import (
	"encoding/json"
	"net/http"
	"testing"
)

type issuePayload struct {
	SubjectID   string `json:"subject_id"`
	Purpose     string `json:"purpose"`
	Destination string `json:"destination"`
}

type issueData struct {
	ChallengeID        int64  `json:"challenge_id"`
	ExpiresAt          string `json:"expires_at"`
	ResendAfterSeconds int64  `json:"resend_after_seconds"`
}

func TestChallengeIssue(t *testing.T) {
	requireServer(t)

	subject := uniqueSubject(t)
	status, raw := doJSON(t, http.MethodPost, "/api/v1/challenges/issue", issuePayload{
		SubjectID:   subject,
		Purpose:     "login",
		Destination: subject + "@example.com",
	}, nil)

	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", status, raw)
	}

	var env successEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}

	var data issueData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.ChallengeID == 0 {
		t.Fatal("expected a challenge id")
	}
	if data.ResendAfterSeconds <= 0 {
		t.Fatalf("resend_after_seconds = %d", data.ResendAfterSeconds)
	}
}

func TestChallengeIssueCooldown(t *testing.T) {
	requireServer(t)

	subject := uniqueSubject(t)
	payload := issuePayload{
		SubjectID:   subject,
		Purpose:     "login",
		Destination: subject + "@example.com",
	}

	if status, raw := doJSON(t, http.MethodPost, "/api/v1/challenges/issue", payload, nil); status != http.StatusOK {
		t.Fatalf("first issue status = %d, body = %s", status, raw)
	}

	status, raw := doJSON(t, http.MethodPost, "/api/v1/challenges/issue", payload, nil)
	if status != http.StatusTooManyRequests {
		t.Fatalf("second issue status = %d, body = %s", status, raw)
	}

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Error["retry_after_seconds"] == "" {
		t.Fatalf("expected retry_after_seconds, body = %s", raw)
	}
}

func TestChallengeIssueValidation(t *testing.T) {
	requireServer(t)

	status, _ := doJSON(t, http.MethodPost, "/api/v1/challenges/issue", issuePayload{
		Purpose:     "login",
		Destination: "user@example.com",
	}, nil)
	if status != http.StatusUnprocessableEntity && status != http.StatusBadRequest {
		t.Fatalf("status = %d, want a validation failure", status)
	}

	status, _ = doJSON(t, http.MethodPost, "/api/v1/challenges/issue", issuePayload{
		SubjectID:   uniqueSubject(t),
		Purpose:     "not-a-purpose",
		Destination: "user@example.com",
	}, nil)
	if status != http.StatusUnprocessableEntity && status != http.StatusBadRequest {
		t.Fatalf("status = %d, want a validation failure", status)
	}
}
