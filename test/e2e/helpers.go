//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"unicode"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/memoro-ai/memoro/internal/api/handlers"
	"github.com/memoro-ai/memoro/internal/coarse"
	"github.com/memoro-ai/memoro/internal/evidence"
	"github.com/memoro-ai/memoro/internal/ingest"
	"github.com/memoro-ai/memoro/internal/openai"
	"github.com/memoro-ai/memoro/internal/query"
	"github.com/memoro-ai/memoro/internal/repository"
	"github.com/memoro-ai/memoro/internal/retrieval"
	"github.com/memoro-ai/memoro/internal/server"
	"github.com/memoro-ai/memoro/internal/service"
	"github.com/memoro-ai/memoro/internal/store"
	"github.com/memoro-ai/memoro/internal/testutil"
	"github.com/memoro-ai/memoro/internal/verify"
)

// testAPIToken is the bearer token the test server requires.
const testAPIToken = "e2e-test-token"

// embeddingDims matches the vector column width in the migrations.
const embeddingDims = 1536

// E2ETestEnv holds everything a full-pipeline test needs: a pgvector
// container with migrations applied, a markdown corpus on disk, and an
// HTTP server running the real ingest/index/retrieval/verify pipeline
// over a deterministic model.
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	Pool       *pgxpool.Pool
	DataDir    string
	ServerURL  string
	HTTPClient *http.Client
}

// SetupE2EEnv builds the full environment. Cleanup is registered on t.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	dataDir := writeCorpus(t)

	chunks, err := ingest.NewLoader(dataDir).Load()
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	chunkStore := store.New(chunks)

	model := &stubModel{}

	index := coarse.NewIndex(chunkStore, model, repository.NewPeriodSummaryRepository(pool))
	require.NoError(t, index.Ensure(ctx))

	svc := service.NewAnswerService(
		query.NewParserWithYear(2025),
		service.NewPrefixClassifier(),
		retrieval.NewRetriever(chunkStore, index, model),
		evidence.NewExtractor(model),
		verify.NewGate(model),
		nil,
		repository.NewAskLogRepository(pool),
	)

	router := server.NewRouter(server.RouterConfig{
		APIToken:       testAPIToken,
		AskHandler:     handlers.NewAskHandler(svc),
		PeriodsHandler: handlers.NewPeriodsHandler(index),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		Pool:       pool,
		DataDir:    dataDir,
		ServerURL:  srv.URL,
		HTTPClient: srv.Client(),
	}
}

// writeCorpus lays down a small personal-data corpus: a chat transcript
// within ISO week 2025-W52 and an identity record.
func writeCorpus(t *testing.T) string {
	dir := t.TempDir()

	slack := strings.Join([]string{
		"2025-12-22 10:15 cold start took about 6-9 minutes before the first successful response",
		"2025-12-23 09:40 deployed the billing service to production and watched error rates",
		"2025-12-24 16:05 wrote the incident report for the rollout window failures",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slack.md"), []byte(slack), 0o644))

	identity := "My name is Jordan Mercer. I am a backend engineer focused on deploys and reliability."
	require.NoError(t, os.WriteFile(filepath.Join(dir, "identity.md"), []byte(identity), 0o644))

	return dir
}

// Post sends an authenticated JSON POST and returns the response.
func (env *E2ETestEnv) Post(path string, body any) *http.Response {
	env.T.Helper()
	raw, err := json.Marshal(body)
	require.NoError(env.T, err)

	req, err := http.NewRequest(http.MethodPost, env.ServerURL+path, bytes.NewReader(raw))
	require.NoError(env.T, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAPIToken)

	resp, err := env.HTTPClient.Do(req)
	require.NoError(env.T, err)
	return resp
}

// Get sends an authenticated GET and returns the response.
func (env *E2ETestEnv) Get(path string) *http.Response {
	env.T.Helper()
	req, err := http.NewRequest(http.MethodGet, env.ServerURL+path, nil)
	require.NoError(env.T, err)
	req.Header.Set("Authorization", "Bearer "+testAPIToken)

	resp, err := env.HTTPClient.Do(req)
	require.NoError(env.T, err)
	return resp
}

// DecodeData unmarshals the {"data": ...} envelope into out.
func DecodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotNil(t, envelope.Data)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

// stubModel is a deterministic stand-in for the language model. Embeddings
// are bag-of-words hashes so texts sharing words score close; generation
// routes on the shape of the prompt each pipeline stage produces.
type stubModel struct{}

var _ coarse.ModelClient = (*stubModel)(nil)
var _ retrieval.Embedder = (*stubModel)(nil)
var _ evidence.StructuredGenerator = (*stubModel)(nil)
var _ verify.Generator = (*stubModel)(nil)

func (s *stubModel) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return hashEmbedding(text), nil
}

func (s *stubModel) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashEmbedding(t)
	}
	return out, nil
}

func (s *stubModel) GenerateText(ctx context.Context, prompt string, opts openai.CompletionOptions) (string, error) {
	if strings.Contains(prompt, "Summarize the following week's messages") {
		return "Measured cold start latency, deployed the billing service, and wrote the rollout incident report.", nil
	}

	question := promptQuestion(prompt)
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "cold start"):
		return "Cold start took about 6-9 minutes before the first successful response. Sources: slack:msg:0", nil
	case strings.Contains(q, "my name"):
		return "My name is Jordan Mercer. Sources: identity:profile", nil
	default:
		return "I deployed the billing service and tracked the rollout. Sources: slack:msg:1", nil
	}
}

func (s *stubModel) GenerateJSON(ctx context.Context, prompt string, opts openai.CompletionOptions) (string, error) {
	if strings.Contains(prompt, "semantically support") {
		return `{"state":"yes","reason":"evidence overlaps the question"}`, nil
	}

	// Extraction: quote every candidate chunk that shares a keyword with
	// the question, mirroring what a real model would pull verbatim.
	question := promptQuestion(prompt)
	qWords := keywordSet(question)

	type entry struct {
		ChunkIndex int    `json:"chunk_index"`
		Quote      string `json:"quote"`
	}
	entries := make([]entry, 0, 4)
	for idx, text := range promptChunks(prompt) {
		if overlaps(qWords, keywordSet(text)) {
			entries = append(entries, entry{ChunkIndex: idx, Quote: text})
		}
	}

	payload := struct {
		Evidence []entry `json:"evidence"`
	}{Evidence: entries}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// hashEmbedding folds each word into a fixed-width vector. Shared
// vocabulary produces positive cosine similarity.
func hashEmbedding(text string) []float32 {
	vec := make([]float32, embeddingDims)
	for word := range keywordSet(text) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%embeddingDims] += 1
	}
	return vec
}

// keywordSet lowercases and strips punctuation, keeping words of four or
// more letters so stopwords mostly drop out.
func keywordSet(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) >= 4 {
			set[w] = struct{}{}
		}
	}
	return set
}

func overlaps(a, b map[string]struct{}) bool {
	for w := range a {
		if _, ok := b[w]; ok {
			return true
		}
	}
	return false
}

var chunkHeaderRe = regexp.MustCompile(`\[CHUNK (\d+)\] \(ID: [^)]+\)\n`)

// promptChunks recovers candidate texts from an extraction prompt, keyed
// by chunk index.
func promptChunks(prompt string) map[int]string {
	_, ctxPart, found := strings.Cut(prompt, "Context:\n")
	if !found {
		return nil
	}
	if i := strings.LastIndex(ctxPart, "\n\nOutput JSON only:"); i >= 0 {
		ctxPart = ctxPart[:i]
	}

	chunks := make(map[int]string)
	for _, part := range strings.Split(ctxPart, "\n\n---\n\n") {
		m := chunkHeaderRe.FindStringSubmatchIndex(part)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(part[m[2]:m[3]])
		if err != nil {
			continue
		}
		chunks[idx] = strings.TrimSpace(part[m[1]:])
	}
	return chunks
}

// promptQuestion pulls the question line out of a pipeline prompt.
func promptQuestion(prompt string) string {
	_, rest, found := strings.Cut(prompt, "Question: ")
	if !found {
		return ""
	}
	if i := strings.Index(rest, "\n"); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}

// CountRows is a small assertion helper over the test pool.
func (env *E2ETestEnv) CountRows(table string) int {
	env.T.Helper()
	var n int
	err := env.Pool.QueryRow(env.Ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n)
	require.NoError(env.T, err)
	return n
}
