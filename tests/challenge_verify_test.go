package tests

import (
	"encoding/json"
	"net/http"
	"testing"
)

type verifyPayload struct {
	SubjectID string `json:"subject_id"`
	Purpose   string `json:"purpose"`
	Code      string `json:"code"`
}

func TestChallengeVerifyNoChallenge(t *testing.T) {
	requireServer(t)

	status, raw := doJSON(t, http.MethodPost, "/api/v1/challenges/verify", verifyPayload{
		SubjectID: uniqueSubject(t),
		Purpose:   "login",
		Code:      "123456",
	}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", status, raw)
	}
}

func TestChallengeVerifyWrongCode(t *testing.T) {
	requireServer(t)

	subject := uniqueSubject(t)
	if status, raw := doJSON(t, http.MethodPost, "/api/v1/challenges/issue", issuePayload{
		SubjectID:   subject,
		Purpose:     "login",
		Destination: subject + "@example.com",
	}, nil); status != http.StatusOK {
		t.Fatalf("issue status = %d, body = %s", status, raw)
	}

	// The real code went out by email; any fixed guess is overwhelmingly
	// likely to be wrong, and the response must count down attempts.
	status, raw := doJSON(t, http.MethodPost, "/api/v1/challenges/verify", verifyPayload{
		SubjectID: subject,
		Purpose:   "login",
		Code:      "000000",
	}, nil)
	if status == http.StatusOK {
		t.Skip("guessed the real code, cannot assert the failure path")
	}
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", status, raw)
	}

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Error["remaining_attempts"] == "" {
		t.Fatalf("expected remaining_attempts, body = %s", raw)
	}
}

func TestChallengePurge(t *testing.T) {
	requireServer(t)

	status, raw := doJSON(t, http.MethodPost, "/api/v1/challenges/purge", map[string]any{
		"retention_minutes": 60,
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %s", status, raw)
	}
}
