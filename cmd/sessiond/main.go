// Command sessiond is the composition root: it wires every collaborator
// behind the dig container and drives sessions from stdin/stdout, one
// JSON request per line. An HTTP/SSE edge is out of scope; this binary
// exists so the pipeline can be exercised end to end without one.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/hibiken/asynq"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"go.uber.org/dig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/groundedqa/sentra/internal/common"
	"github.com/groundedqa/sentra/internal/concurrency"
	"github.com/groundedqa/sentra/internal/config"
	"github.com/groundedqa/sentra/internal/critic"
	"github.com/groundedqa/sentra/internal/ctxpipeline"
	"github.com/groundedqa/sentra/internal/llm"
	"github.com/groundedqa/sentra/internal/llm/provider"
	"github.com/groundedqa/sentra/internal/logger"
	"github.com/groundedqa/sentra/internal/memory"
	"github.com/groundedqa/sentra/internal/orchestrator"
	"github.com/groundedqa/sentra/internal/planner"
	"github.com/groundedqa/sentra/internal/retrieval"
	"github.com/groundedqa/sentra/internal/runtime"
	"github.com/groundedqa/sentra/internal/search"
	"github.com/groundedqa/sentra/internal/telemetry"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
	"github.com/groundedqa/sentra/internal/web"
)

func loadSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SENTRA")
	v.AutomaticEnv()
	v.SetDefault("llm_provider", "")
	v.SetDefault("llm_base_url", "")
	v.SetDefault("llm_api_key", "")
	v.SetDefault("llm_chat_model", "gpt-4o-mini")
	v.SetDefault("llm_embed_model", "text-embedding-3-small")
	v.SetDefault("llm_bearer_issuer", "")
	v.SetDefault("llm_bearer_secret", "")
	v.SetDefault("elasticsearch_url", "http://localhost:9200")
	v.SetDefault("elasticsearch_index", "sentra-references")
	v.SetDefault("qdrant_host", "localhost")
	v.SetDefault("qdrant_port", 6334)
	v.SetDefault("qdrant_collection", "")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("bing_api_key", "")
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("turn_budget_seconds", 60)
	v.SetDefault("pool_size", 8)
	v.SetDefault("embedding_dims", 1536)
	return v
}

func buildContainer(v *viper.Viper) (*dig.Container, error) {
	c := runtime.GetContainer()

	providers := []interface{}{
		func() *viper.Viper { return v },
		func() config.FeatureSet { return config.Defaults() },
		func() (interfaces.LLMClient, error) {
			return llm.NewClient(llm.ClientConfig{
				Provider:     provider.ProviderName(v.GetString("llm_provider")),
				BaseURL:      v.GetString("llm_base_url"),
				APIKey:       v.GetString("llm_api_key"),
				ChatModel:    v.GetString("llm_chat_model"),
				EmbedModel:   v.GetString("llm_embed_model"),
				BearerIssuer: v.GetString("llm_bearer_issuer"),
				BearerSecret: []byte(v.GetString("llm_bearer_secret")),
			})
		},
		func(features config.FeatureSet) (*concurrency.Pool, error) {
			return concurrency.NewPool(features.MaxParallelSubQueries)
		},
		func(llmClient interfaces.LLMClient) (interfaces.SearchClient, error) {
			es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{v.GetString("elasticsearch_url")}})
			if err != nil {
				return nil, fmt.Errorf("elasticsearch client: %w", err)
			}
			return search.NewESClient(es, v.GetString("elasticsearch_index"), llmClient, search.NewJiebaTokenizer()), nil
		},
		func(llmClient interfaces.LLMClient) (map[string]interfaces.SearchClient, error) {
			collection := v.GetString("qdrant_collection")
			if collection == "" {
				return nil, nil
			}
			qc, err := qdrant.NewClient(&qdrant.Config{Host: v.GetString("qdrant_host"), Port: v.GetInt("qdrant_port")})
			if err != nil {
				return nil, fmt.Errorf("qdrant client: %w", err)
			}
			return map[string]interfaces.SearchClient{collection: search.NewQdrantClient(qc, collection, llmClient)}, nil
		},
		func(primary interfaces.SearchClient, secondary map[string]interfaces.SearchClient, llmClient interfaces.LLMClient, features config.FeatureSet) *retrieval.Engine {
			return retrieval.NewEngine(primary, secondary, llmClient, features)
		},
		func() interfaces.WebSearchClient {
			apiKey := v.GetString("bing_api_key")
			if apiKey == "" {
				return nil
			}
			authority := web.NewAuthorityTable([]string{"wikipedia.org", "arxiv.org", "github.com"}, nil)
			return web.NewClient(web.NewBingProvider(apiKey, ""), authority)
		},
		func() *redis.Client { return redis.NewClient(&redis.Options{Addr: v.GetString("redis_addr")}) },
		func(rc *redis.Client) interfaces.MemoryStore { return memory.NewShortTermStore(rc) },
		func() (interfaces.LongTermMemoryStore, error) {
			dsn := v.GetString("postgres_dsn")
			if dsn == "" {
				return nil, nil
			}
			db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
			if err != nil {
				return nil, fmt.Errorf("postgres connection: %w", err)
			}
			store := memory.NewLongTermStore(db, v.GetInt("embedding_dims"))
			if migrateErr := store.Migrate(context.Background()); migrateErr != nil {
				return nil, fmt.Errorf("long-term memory migration: %w", migrateErr)
			}
			return store, nil
		},
		func(llmClient interfaces.LLMClient, features config.FeatureSet) *ctxpipeline.Pipeline {
			return ctxpipeline.NewPipeline(llmClient, 8)
		},
		func(llmClient interfaces.LLMClient, features config.FeatureSet) *planner.Router {
			return planner.NewRouter(llmClient, features.IntentConfThreshold)
		},
		func(llmClient interfaces.LLMClient, features config.FeatureSet) *planner.Planner {
			return planner.NewPlanner(llmClient, features.DualThreshold)
		},
		func(llmClient interfaces.LLMClient, features config.FeatureSet, pool *concurrency.Pool) *planner.Decomposer {
			return planner.NewDecomposer(llmClient, features.DecompositionThreshold, pool)
		},
		func(llmClient interfaces.LLMClient) *critic.Critic { return critic.NewCritic(llmClient) },
		func(llmClient interfaces.LLMClient) *critic.CRAG { return critic.NewCRAG(llmClient) },
		func() interfaces.TelemetrySink { return telemetry.NewMemorySink(10_000) },
		func() (*telemetry.TracerProvider, error) {
			return telemetry.NewTracerProvider("sentra-sessiond", v.GetString("otlp_endpoint"))
		},
		func(d orchestrator.Deps) *orchestrator.Orchestrator { return orchestrator.New(d) },
		func(
			llmClient interfaces.LLMClient, retrievalEngine *retrieval.Engine, webClient interfaces.WebSearchClient,
			memStore interfaces.MemoryStore, longTerm interfaces.LongTermMemoryStore, ctxPipe *ctxpipeline.Pipeline,
			router *planner.Router, plnr *planner.Planner, decomposer *planner.Decomposer,
			crit *critic.Critic, crag *critic.CRAG, sink interfaces.TelemetrySink,
			tracer *telemetry.TracerProvider, pool *concurrency.Pool,
		) orchestrator.Deps {
			return orchestrator.Deps{
				LLM: llmClient, Retrieval: retrievalEngine, Web: webClient, Memory: memStore, LongTerm: longTerm,
				CtxPipeline: ctxPipe, Router: router, Planner: plnr, Decomposer: decomposer, Critic: crit, CRAG: crag,
				Sink: sink, Tracer: tracer, Pool: pool, TurnBudget: time.Duration(v.GetInt("turn_budget_seconds")) * time.Second,
			}
		},
	}

	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, fmt.Errorf("dig provide: %w", err)
		}
	}
	return c, nil
}

func startPruneScheduler(v *viper.Viper) {
	dsn := v.GetString("postgres_dsn")
	if dsn == "" {
		return
	}
	scheduler := memory.NewScheduler(asynq.RedisClientOpt{Addr: v.GetString("redis_addr")})
	if err := scheduler.RegisterPrune("0 3 * * *", 90, 1); err != nil {
		logrus.WithError(err).Warn("failed to register long-term memory prune task")
		return
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			logrus.WithError(err).Error("prune scheduler stopped")
		}
	}()
}

func main() {
	logger.SetLevel(logrus.InfoLevel)
	v := loadSettings()

	container, err := buildContainer(v)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build dependency graph")
	}
	startPruneScheduler(v)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.Invoke(func(orch *orchestrator.Orchestrator) error {
		return runREPL(ctx, orch)
	}); err != nil {
		logrus.WithError(err).Fatal("session loop failed")
	}
}

// runREPL reads one JSON-encoded types.Request per line from stdin and
// writes one JSON-encoded types.Response per line to stdout, running
// each turn synchronously through the orchestrator.
func runREPL(ctx context.Context, orch *orchestrator.Orchestrator) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	encoder := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req types.Request
		if err := json.Unmarshal(line, &req); err != nil {
			common.PipelineWarn(ctx, "sessiond", "invalid_request", map[string]interface{}{"error": err.Error()})
			continue
		}

		resp, err := orch.RunSession(ctx, req)
		if err != nil {
			common.PipelineWarn(ctx, "sessiond", "turn_failed", map[string]interface{}{"error": err.Error()})
			continue
		}
		if encodeErr := encoder.Encode(resp); encodeErr != nil {
			return encodeErr
		}
	}
	return scanner.Err()
}
