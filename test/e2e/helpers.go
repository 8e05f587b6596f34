//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/factlineai/factline/internal/api/handlers"
	"github.com/factlineai/factline/internal/extraction"
	"github.com/factlineai/factline/internal/jobs"
	"github.com/factlineai/factline/internal/llm"
	"github.com/factlineai/factline/internal/repository"
	"github.com/factlineai/factline/internal/server"
	"github.com/factlineai/factline/internal/service"
	"github.com/factlineai/factline/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// scriptedOracle returns a canned extraction response for every chunk,
// standing in for the LLM so the pipeline runs hermetically.
type scriptedOracle struct {
	response map[string]any
}

func (o *scriptedOracle) Complete(ctx context.Context, req llm.Request) (map[string]any, error) {
	return o.response, nil
}

// hashEmbedder produces deterministic embeddings so vector search is
// reproducible without an embeddings API.
type hashEmbedder struct{}

func (e *hashEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, 1536)
	for i := range vec {
		vec[i] = float32(sum[i%len(sum)]) / 255.0
	}
	return vec, nil
}

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	Pool       *pgxpool.Pool
	Server     *httptest.Server
	Worker     *jobs.EmbeddingWorker
	HTTPClient *http.Client
}

// SetupE2EEnv creates a full test environment: a pgvector container, the
// real service stack over it, and an in-process HTTP server. The LLM is
// replaced by a scripted oracle.
func SetupE2EEnv(t *testing.T, oracleResponse map[string]any) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	factRepo := repository.NewFactRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	pipeline := extraction.NewPipeline(&scriptedOracle{response: oracleResponse}, extraction.DefaultConfig())
	embedder := &hashEmbedder{}

	retainSvc := service.NewRetainService(pipeline, txRunner)
	searchSvc := service.NewSearchService(factRepo, embedder)
	factSvc := service.NewFactService(factRepo)

	embeddingSvc := service.NewEmbeddingService(embedder, factRepo)
	worker := jobs.NewEmbeddingWorker(embeddingJobRepo, embeddingSvc)

	router := server.NewRouter(server.RouterConfig{
		RetainHandler: handlers.NewRetainHandler(retainSvc),
		SearchHandler: handlers.NewSearchHandler(searchSvc),
		FactHandler:   handlers.NewFactHandler(factSvc),
	})

	srv := httptest.NewServer(router)

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		Pool:       pool,
		Server:     srv,
		Worker:     worker,
		HTTPClient: srv.Client(),
	}
}

// Cleanup tears down the server and containers
func (env *E2ETestEnv) Cleanup() {
	env.Server.Close()
	env.Pool.Close()
	_ = env.PostgresC.Terminate(env.Ctx)
}

// ProcessEmbeddingJobs drains pending embedding jobs synchronously.
func (env *E2ETestEnv) ProcessEmbeddingJobs() error {
	return env.Worker.ProcessJobs(env.Ctx)
}

// APIResponse is the envelope every endpoint returns
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// Post sends a JSON POST request and decodes the response envelope
func (env *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}

	resp, err := env.HTTPClient.Post(env.Server.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// Get sends a GET request and decodes the response envelope
func (env *E2ETestEnv) Get(path string) (*APIResponse, int, error) {
	resp, err := env.HTTPClient.Get(env.Server.URL + path)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (*APIResponse, int, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	var envelope APIResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode response %q: %w", raw, err)
	}

	return &envelope, resp.StatusCode, nil
}
