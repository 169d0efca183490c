// Command consensusd runs the Consensus Orchestration Engine as an
// HTTP service: the Consensus API (spec.md §6.4) and the Operation
// Intelligence API (spec.md §6.5) over JSON, with stage events
// streamed as newline-delimited JSON per the wire format spec.md §6.4
// specifies.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hivetechs-collective/hive-consensus/internal/config"
	"github.com/hivetechs-collective/hive-consensus/internal/consensus"
	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/embedding"
	"github.com/hivetechs-collective/hive-consensus/internal/gitstatus"
	"github.com/hivetechs-collective/hive-consensus/internal/gomindlog"
	"github.com/hivetechs-collective/hive-consensus/internal/helpers"
	"github.com/hivetechs-collective/hive-consensus/internal/knowledge"
	"github.com/hivetechs-collective/hive-consensus/internal/modelclient"
	"github.com/hivetechs-collective/hive-consensus/internal/modelclient/bedrock"
	"github.com/hivetechs-collective/hive-consensus/internal/pattern"
	"github.com/hivetechs-collective/hive-consensus/internal/progress"
	"github.com/hivetechs-collective/hive-consensus/internal/quality"
	"github.com/hivetechs-collective/hive-consensus/internal/retriever"
	"github.com/hivetechs-collective/hive-consensus/internal/rollback"
	"github.com/hivetechs-collective/hive-consensus/internal/stage"
	"github.com/hivetechs-collective/hive-consensus/internal/synth"
	"github.com/hivetechs-collective/hive-consensus/internal/temporal"
	"github.com/hivetechs-collective/hive-consensus/internal/vectorstore"
)

func main() {
	logger := gomindlog.NewProductionLogger("consensusd")
	cfg := config.New()

	tp, err := newTracerProvider(context.Background())
	if err != nil {
		logger.Warn("otlp trace exporter disabled", map[string]interface{}{"error": err.Error()})
		tp = sdktrace.NewTracerProvider()
	}
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	server, shutdown, err := build(cfg, logger)
	if err != nil {
		logger.Error("failed to build consensusd", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer shutdown()

	port := 8088
	if v := os.Getenv("CONSENSUS_HTTP_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &port)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      server.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming endpoints hold the connection open
	}

	go func() {
		logger.Info("consensusd listening", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}

// newTracerProvider wires a real OTLP/HTTP trace exporter when
// CONSENSUS_OTLP_ENDPOINT is set, following the collector-endpoint
// construction telemetry packages in this stack use elsewhere. With no
// endpoint configured it returns a provider with no exporter attached,
// so internal/progress's spans still carry real trace/span IDs through
// logs without requiring a collector for local runs.
func newTracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	endpoint := os.Getenv("CONSENSUS_OTLP_ENDPOINT")
	if endpoint == "" {
		return sdktrace.NewTracerProvider(), nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // for development; use TLS in production
	)
	if err != nil {
		return nil, fmt.Errorf("creating otlp trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter)), nil
}

// apiServer bundles the wired engine and its HTTP surface.
type apiServer struct {
	mux    *http.ServeMux
	engine *consensus.Engine
	oi     *consensus.OperationIntelligence
	reg    *consensus.ProfileRegistry
	idx    *knowledge.Indexer
	git    *gitstatus.Reader
	logger gomindlog.Logger
}

// build constructs every component named in the domain stack (model
// client, vector store, embedder, knowledge indexer, retriever,
// temporal provider, pattern recognizer, quality analyzer,
// synthesizer, helper coordinator, rollback executor, profiles) and
// returns the HTTP surface over them, plus a shutdown func.
func build(cfg *config.Config, logger gomindlog.Logger) (*apiServer, func(), error) {
	modelClient, err := buildModelClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	prices := modelclient.NewPriceTable()

	store := vectorstore.NewMemoryStore()
	if cfg.RedisAddr != "" {
		if rs, err := vectorstore.NewRedisStore(cfg.RedisAddr, "hive-consensus", logger); err == nil {
			store = rs
		} else {
			logger.Warn("falling back to in-memory vector store", map[string]interface{}{"error": err.Error()})
		}
	}

	embedder := embedding.NewCachingEmbedder(embedding.NewHashEmbedder(256), cfg.HelperCacheCapacity, cfg.HelperCacheTTL)

	idx, err := knowledge.Open(cfg.SQLitePath, store, embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("opening knowledge indexer: %w", err)
	}

	predictor := &knowledge.BoundPredictor{Indexer: idx, Embedder: embedder}
	retr := retriever.New(store, embedder).WithPredictor(predictor)
	temp := temporal.NewProvider()
	recognizer := pattern.New()
	analyzer := quality.New()
	synthesizer := synth.New()

	helperSet := map[domain.HelperName]helpers.Helper{
		domain.HelperIndexer:     helpers.IndexerHelper(predictor),
		domain.HelperRetriever:   helpers.RetrieverHelper(retr),
		domain.HelperRecognizer:  helpers.RecognizerHelper(recognizer),
		domain.HelperAnalyzer:    helpers.AnalyzerHelper(analyzer),
		domain.HelperSynthesizer: helpers.SynthesizerHelper(synthesizer),
	}
	coordinator := helpers.New(helperSet, cfg.HelperTimeout, cfg.HelperCacheCapacity, cfg.HelperCacheTTL, logger)

	gen := stage.NewGenerator(modelClient, prices, retr, temp)
	ref := stage.NewRefiner(modelClient, prices)
	val := stage.NewValidator(modelClient, prices)
	cur := stage.NewCurator(modelClient, prices)
	engine := consensus.New(gen, ref, val, cur, idx, cfg.BackgroundIndexPermits, logger)

	rb := rollback.New(logger)
	oi := consensus.NewOperationIntelligence(coordinator, nil, rb)

	reg, err := consensus.DefaultProfiles()
	if err != nil {
		idx.Close()
		return nil, nil, fmt.Errorf("loading consensus profiles: %w", err)
	}
	if active, err := idx.GetSetting(context.Background(), "active_profile"); err == nil {
		if err := reg.SetActive(active); err != nil {
			logger.Warn("persisted active_profile no longer exists, keeping default", map[string]interface{}{"profile": active})
		}
	}

	srv := &apiServer{
		mux:    http.NewServeMux(),
		engine: engine,
		oi:     oi,
		reg:    reg,
		idx:    idx,
		git:    gitstatus.New(),
		logger: logger,
	}
	srv.registerRoutes()

	shutdown := func() {
		idx.Close()
	}
	return srv, shutdown, nil
}

// buildModelClient picks Bedrock when AWS credentials resolve, and
// falls back to the in-process mock otherwise (spec.md §6.1 treats
// ModelClient as consumed/pluggable; the mock keeps consensusd runnable
// without live credentials for local evaluation). When cfg carries an
// explicit access key/secret pair, those take precedence over the
// SDK's default credential chain.
func buildModelClient(cfg *config.Config, logger gomindlog.Logger) (modelclient.ModelClient, error) {
	if os.Getenv("CONSENSUS_USE_MOCK_MODEL") == "1" {
		return modelclient.NewMockClient("This is a locally generated placeholder answer."), nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, cfg.AWSSessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		logger.Warn("no AWS credentials resolved, using mock model client", map[string]interface{}{"error": err.Error()})
		return modelclient.NewMockClient("This is a locally generated placeholder answer."), nil
	}
	return bedrock.NewClient(awsCfg), nil
}

func (s *apiServer) registerRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/v1/process", s.handleProcess)
	s.mux.HandleFunc("/v1/profiles", s.handleProfiles)
	s.mux.HandleFunc("/v1/profiles/active", s.handleActiveProfile)
	s.mux.HandleFunc("/v1/operations/score", s.handleScoreOperations)
	s.mux.HandleFunc("/v1/operations/decide", s.handleDecide)
	s.mux.HandleFunc("/v1/rollback", s.handleRollback)
	s.mux.HandleFunc("/v1/git/status", s.handleGitStatus)
	s.mux.HandleFunc("/v1/conversations", s.handleConversations)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// processRequestBody is the wire shape of a process() call.
type processRequestBody struct {
	Query           string `json:"query"`
	ExternalContext string `json:"external_context"`
	ConversationID  string `json:"conversation_id"`
	Profile         string `json:"profile"`
}

// handleProcess implements process(request, cancel) → ConsensusResult,
// streaming stage events as newline-delimited JSON (spec.md §6.4) and
// finishing with the terminal ConsensusResult object.
func (s *apiServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body processRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Query == "" {
		http.Error(w, "query must not be empty", http.StatusBadRequest)
		return
	}

	profile := s.reg.Active()
	if body.Profile != "" {
		if err := s.reg.SetActive(body.Profile); err == nil {
			profile = s.reg.Active()
		}
	}

	conversationID := body.ConversationID
	if conversationID == "" {
		conversationID = consensus.NewConversationID()
	}

	tracker, ctx := progress.New(r.Context(), conversationID, s.logger)
	sub := tracker.Subscribe(256)

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)

	done := make(chan domain.ConsensusResult, 1)
	go func() {
		done <- s.engine.Process(ctx, domain.ConsensusRequest{
			Query:           body.Query,
			ExternalContext: body.ExternalContext,
			Profile:         profile,
		}, conversationID, tracker)
	}()

	enc := json.NewEncoder(w)
	for {
		select {
		case ev := <-sub:
			enc.Encode(wireEvent(ev))
			if flusher != nil {
				flusher.Flush()
			}
			if ev.Kind == progress.EventPipelineCompleted || ev.Kind == progress.EventPipelineFailed {
				result := <-done
				s.saveConversation(r.Context(), conversationID, body.Query, result)
				enc.Encode(result)
				if flusher != nil {
					flusher.Flush()
				}
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// saveConversation persists one process() run's transcript (spec.md
// §6.6's conversations table): the original query plus each stage's
// answer, in pipeline order. Failure is logged, not surfaced — the
// caller already has their ConsensusResult regardless of whether it
// gets persisted.
func (s *apiServer) saveConversation(ctx context.Context, conversationID, query string, result domain.ConsensusResult) {
	messages := make([]domain.ConversationMessage, 0, len(result.Stages)+1)
	messages = append(messages, domain.ConversationMessage{Role: "user", Content: query})
	for _, sr := range result.Stages {
		messages = append(messages, domain.ConversationMessage{Role: "assistant", Content: sr.Answer, Stage: sr.Stage})
	}

	c := domain.Conversation{
		ID:       conversationID,
		Title:    query,
		Messages: messages,
		Metadata: map[string]interface{}{
			"success":      result.Success,
			"failed_stage": string(result.FailedStage),
		},
	}
	if err := s.idx.SaveConversation(ctx, c); err != nil {
		s.logger.Warn("failed to persist conversation", map[string]interface{}{
			"conversation_id": conversationID,
			"error":           err.Error(),
		})
	}
}

// wireEvent renders one progress.Event per spec.md §6.4's stage event
// wire format.
func wireEvent(ev progress.Event) map[string]interface{} {
	out := map[string]interface{}{"t": string(ev.Kind), "stage": string(ev.Stage)}
	switch ev.Kind {
	case progress.EventChunkArrived:
		out["text"] = ev.Chunk
	case progress.EventStageCompleted:
		out["tokens"] = map[string]int{"c": ev.Tokens}
		out["quality"] = ev.QualityScore
		out["cost_usd"] = ev.CostUSD
	case progress.EventPipelineCompleted:
		delete(out, "stage")
	case progress.EventPipelineFailed:
		out["reason"] = ev.Err
	}
	return out
}

func (s *apiServer) handleProfiles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.reg.List())
}

func (s *apiServer) handleActiveProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.reg.SetActive(body.Name); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err := s.idx.SetSetting(r.Context(), "active_profile", body.Name); err != nil {
			s.logger.Warn("failed to persist active_profile", map[string]interface{}{"error": err.Error()})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.reg.Active())
}

type scoreRequestBody struct {
	Operations []domain.FileOperation  `json:"operations"`
	Context    domain.OperationContext `json:"context"`
}

func (s *apiServer) handleScoreOperations(w http.ResponseWriter, r *http.Request) {
	var body scoreRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	unified := s.oi.ScoreOperations(r.Context(), body.Operations, body.Context)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(unified)
}

type decideRequestBody struct {
	Operations  []domain.FileOperation  `json:"operations"`
	Context     domain.OperationContext `json:"context"`
	Mode        domain.AutoAcceptMode   `json:"mode"`
	Preferences domain.UserPreferences  `json:"preferences"`
}

func (s *apiServer) handleDecide(w http.ResponseWriter, r *http.Request) {
	var body decideRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	decision := s.oi.Decide(r.Context(), body.Operations, body.Context, body.Mode, body.Preferences)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decision)
}

type rollbackRequestBody struct {
	Plan   domain.RollbackPlan `json:"plan"`
	DryRun bool                `json:"dry_run"`
}

func (s *apiServer) handleRollback(w http.ResponseWriter, r *http.Request) {
	var body rollbackRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	result, err := s.oi.ExecuteRollback(r.Context(), body.Plan, body.DryRun)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// handleConversations lists every persisted conversation, or returns
// one by ?id= (spec.md §6.6).
func (s *apiServer) handleConversations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if id := r.URL.Query().Get("id"); id != "" {
		c, err := s.idx.GetConversation(r.Context(), id)
		if err != nil {
			if errors.Is(err, knowledge.ErrNotFound) {
				http.Error(w, "conversation not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(c)
		return
	}

	list, err := s.idx.ListConversations(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(list)
}

// handleGitStatus surfaces the read-only Git Status collaborator
// (spec.md §6.3) so callers can inspect repository state (e.g. before
// submitting a RollbackPlan that targets tracked files) without
// shelling out themselves.
func (s *apiServer) handleGitStatus(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")
	if repo == "" {
		http.Error(w, "repo query parameter is required", http.StatusBadRequest)
		return
	}

	branch, err := s.git.CurrentBranch(r.Context(), repo)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	commit, err := s.git.HeadCommit(r.Context(), repo)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	files, err := s.git.FileStatuses(r.Context(), repo)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"branch": branch,
		"commit": commit,
		"files":  files,
	})
}
