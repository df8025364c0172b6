package deepseek

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/planix/internal/config"
	floorplandomain "github.com/smallbiznis/planix/internal/floorplan/domain"
	"github.com/smallbiznis/planix/internal/generation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec() floorplandomain.PlanSpec {
	area := 1200.0
	rooms := 3
	return floorplandomain.PlanSpec{
		Description: "Three bedroom house with an open kitchen",
		Area:        &area,
		Rooms:       &rooms,
		Location:    "Pune",
	}
}

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-chat", req.Model)
		assert.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "deepseek-chat",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return NewClient(config.ProviderConfig{APIKey: apiKey, BaseURL: baseURL, Timeout: timeout}, nil)
}

func TestUnconfiguredClientDegrades(t *testing.T) {
	for _, key := range []string{"", placeholderAPIKey} {
		client := newTestClient("http://127.0.0.1:1", key, time.Second)
		require.False(t, client.Configured())

		result, err := client.GeneratePlan(context.Background(), testSpec())
		require.NoError(t, err)
		assert.True(t, result.Degraded)
		assert.True(t, strings.HasPrefix(result.Text, DegradedMarker))

		_, err = client.AssessCompliance(context.Background(), result.Text, testSpec())
		assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
	}
}

func TestGeneratePlan(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "Ground floor: living room facing east.")
	client := newTestClient(srv.URL, "test-key", time.Second)

	result, err := client.GeneratePlan(context.Background(), testSpec())
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.Equal(t, "Ground floor: living room facing east.", result.Text)
	assert.Equal(t, "deepseek-chat", result.Model)
}

func TestGeneratePlanUpstreamError(t *testing.T) {
	srv := completionServer(t, http.StatusTooManyRequests, "")
	client := newTestClient(srv.URL, "test-key", time.Second)

	_, err := client.GeneratePlan(context.Background(), testSpec())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderError))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGeneratePlanTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	client := newTestClient(srv.URL, "test-key", 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.GeneratePlan(ctx, testSpec())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderTimeout)
}

func TestAssessComplianceStructured(t *testing.T) {
	body := "Here is the report:\n" +
		`{"overallCompliance": true, "checks": {"is_456": {"status": "passed", "message": "ok"}}, ` +
		`"recommendations": ["add fire exit"], "criticalIssues": [], "complianceScore": 92}`
	srv := completionServer(t, http.StatusOK, body)
	client := newTestClient(srv.URL, "test-key", time.Second)

	report, err := client.AssessCompliance(context.Background(), "plan", testSpec())
	require.NoError(t, err)
	assert.Equal(t, floorplandomain.ComplianceStructured, report.Kind)
	assert.Equal(t, 92, report.Score)
	assert.Contains(t, report.Checks, "is_456")
}

func TestAssessComplianceUnparsed(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "The plan looks broadly compliant.")
	client := newTestClient(srv.URL, "test-key", time.Second)

	report, err := client.AssessCompliance(context.Background(), "plan", testSpec())
	require.NoError(t, err)
	assert.Equal(t, floorplandomain.ComplianceUnparsed, report.Kind)
	assert.Equal(t, "The plan looks broadly compliant.", report.RawText)
	assert.Contains(t, report.Checks, floorplandomain.GeneralComplianceCheck)
}

func TestPlanPromptIncludesSpecification(t *testing.T) {
	prompt := planPrompt(testSpec())
	assert.Contains(t, prompt, "Three bedroom house")
	assert.Contains(t, prompt, "- Area: 1200 sq ft")
	assert.Contains(t, prompt, "- Rooms: 3")
	assert.Contains(t, prompt, "- Bathrooms: 1")
	assert.Contains(t, prompt, "- Location: Pune")
}
