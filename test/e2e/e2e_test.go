//go:build e2e

package e2e

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type askResponse struct {
	Answer     string `json:"answer"`
	Confidence string `json:"confidence"`
	Citations  []struct {
		Text      string `json:"text"`
		Source    string `json:"source"`
		ChunkID   string `json:"chunk_id"`
		Timestamp string `json:"timestamp"`
	} `json:"citations"`
	Reasoning string `json:"reasoning"`
}

type periodListResponse struct {
	Periods []struct {
		PeriodKey      string `json:"period_key"`
		StartDate      string `json:"start_date"`
		EndDate        string `json:"end_date"`
		ChunkCount     int    `json:"chunk_count"`
		SummaryPreview string `json:"summary_preview"`
	} `json:"periods"`
	Count int `json:"count"`
}

func TestE2E_Health(t *testing.T) {
	env := SetupE2EEnv(t)

	resp, err := env.HTTPClient.Get(env.ServerURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_AuthRequired(t *testing.T) {
	env := SetupE2EEnv(t)

	// No token.
	resp, err := env.HTTPClient.Get(env.ServerURL + "/periods")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong token.
	req, err := http.NewRequest(http.MethodGet, env.ServerURL+"/periods", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong-token")
	resp, err = env.HTTPClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestE2E_AskGroundedFact(t *testing.T) {
	env := SetupE2EEnv(t)

	resp := env.Post("/ask", map[string]any{"question": "How long did cold start take?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out askResponse
	DecodeData(t, resp, &out)

	assert.Contains(t, out.Answer, "6-9 minutes")
	assert.Contains(t, []string{"medium", "high"}, out.Confidence)
	require.NotEmpty(t, out.Citations)
	assert.Equal(t, "slack:msg:0", out.Citations[0].ChunkID)
	assert.Contains(t, out.Citations[0].Text, "6-9 minutes")
	assert.True(t, strings.HasSuffix(out.Citations[0].Source, "slack.md"))
	assert.NotEmpty(t, out.Citations[0].Timestamp)

	// Every answered question leaves an audit row.
	assert.GreaterOrEqual(t, env.CountRows("ask_logs"), 1)
}

func TestE2E_AskRefusesWithoutEvidence(t *testing.T) {
	env := SetupE2EEnv(t)

	resp := env.Post("/ask", map[string]any{"question": "What is my favorite color?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out askResponse
	DecodeData(t, resp, &out)

	assert.Equal(t, "I do not see this in your data.", out.Answer)
	assert.Equal(t, "none", out.Confidence)
	assert.Empty(t, out.Citations)
}

func TestE2E_AskPersonalQuestionUsesProfile(t *testing.T) {
	env := SetupE2EEnv(t)

	resp := env.Post("/ask", map[string]any{"question": "What is my name?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out askResponse
	DecodeData(t, resp, &out)

	assert.Contains(t, out.Answer, "Jordan Mercer")
	require.NotEmpty(t, out.Citations)
	assert.Equal(t, "identity:profile", out.Citations[0].ChunkID)
}

func TestE2E_AskSummaryWithTimeRange(t *testing.T) {
	env := SetupE2EEnv(t)

	resp := env.Post("/ask", map[string]any{"question": "What was I working on in Q4 2025?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out askResponse
	DecodeData(t, resp, &out)

	assert.NotEqual(t, "I do not see this in your data.", out.Answer)
	assert.Equal(t, "high", out.Confidence)
	assert.GreaterOrEqual(t, len(out.Citations), 2)
}

func TestE2E_AskMissingQuestion(t *testing.T) {
	env := SetupE2EEnv(t)

	resp := env.Post("/ask", map[string]any{"question": ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestE2E_Periods(t *testing.T) {
	env := SetupE2EEnv(t)

	resp := env.Get("/periods")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out periodListResponse
	DecodeData(t, resp, &out)

	require.Equal(t, 1, out.Count)
	p := out.Periods[0]
	assert.Equal(t, "2025-W52", p.PeriodKey)
	assert.Equal(t, "2025-12-22", p.StartDate)
	assert.Equal(t, "2025-12-24", p.EndDate)
	assert.Equal(t, 3, p.ChunkCount)
	assert.Contains(t, p.SummaryPreview, "cold start")
}

func TestE2E_PeriodSummariesPersisted(t *testing.T) {
	env := SetupE2EEnv(t)

	assert.Equal(t, 1, env.CountRows("period_summaries"))

	var fingerprint string
	err := env.Pool.QueryRow(env.Ctx,
		"SELECT fingerprint FROM period_summaries WHERE period_key = $1", "2025-W52",
	).Scan(&fingerprint)
	require.NoError(t, err)
	assert.NotEmpty(t, fingerprint)
}
