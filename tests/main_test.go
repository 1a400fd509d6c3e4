// Package tests exercises a running otpgate server over HTTP. The suite
// is skipped unless a server is reachable at OTPGATE_REAL_BASE_URL
// (default http://localhost:8080).
package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

var (
	realBaseURL string
	serverUp    bool
	httpClient  = &http.Client{Timeout: 5 * time.Second}
)

type successEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

type errorEnvelope struct {
	Message string            `json:"message"`
	Error   map[string]string `json:"error"`
}

func TestMain(m *testing.M) {
	realBaseURL = strings.TrimSpace(os.Getenv("OTPGATE_REAL_BASE_URL"))
	if realBaseURL == "" {
		realBaseURL = "http://localhost:8080"
	}

	resp, err := httpClient.Get(strings.TrimRight(realBaseURL, "/"))
	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		serverUp = resp.StatusCode < http.StatusInternalServerError
	}
	if !serverUp {
		fmt.Fprintf(os.Stderr, "skipping real tests: no healthy server at %s\n", realBaseURL)
	}

	os.Exit(m.Run())
}

func requireServer(t *testing.T) {
	t.Helper()
	if !serverUp {
		t.Skipf("no server at %s", realBaseURL)
	}
}

func doJSON(t *testing.T, method, path string, payload any, headers map[string]string) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			t.Fatalf("encode json: %v", err)
		}
		body = buf
	}

	req, err := http.NewRequest(method, strings.TrimRight(realBaseURL, "/")+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	return resp.StatusCode, raw
}

func uniqueSubject(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("e2e-%d", time.Now().UnixNano())
}
