// @title           Document Processor API
// @version         1.0
// @description     This API handles asynchronous PDF ingestion and RAG chat over the extracted text
// @termsOfService  http://swagger.io/terms/

// @contact.name    me lol
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/blob"
	"github.com/akolanti/docproc/internal/data/catalog"
	"github.com/akolanti/docproc/internal/data/queue"
	"github.com/akolanti/docproc/internal/data/store"
	"github.com/akolanti/docproc/internal/handlers"
	"github.com/akolanti/docproc/internal/rag"
	"github.com/akolanti/docproc/internal/rag/embedding"
	"github.com/akolanti/docproc/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/docproc/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/docproc/internal/rag/ingest"
	"github.com/akolanti/docproc/internal/rag/llm"
	"github.com/akolanti/docproc/internal/rag/llm/gemini"
	"github.com/akolanti/docproc/internal/rag/llm/openaiLLM"
	"github.com/akolanti/docproc/internal/server"
	"github.com/akolanti/docproc/internal/task"
	"github.com/akolanti/docproc/internal/worker"
	"github.com/akolanti/docproc/pkg/logger_i"
)

var (
	listenAddr        string
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	loadErr := config.Load()

	logger_i.Init()
	var logger = logger_i.NewLogger("main")
	if loadErr != nil {
		logger.Error("Bad configuration", "error", loadErr)
		return
	}

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//init task store and work queue
	serviceConfig := task.ServiceConfig{}
	if redisTasks := store.GetRedisTaskStore(serviceContext); redisTasks != nil {
		serviceConfig.Tasks = redisTasks
	}
	if redisQueue := queue.GetRedisQueue(serviceContext); redisQueue != nil {
		serviceConfig.Queue = redisQueue
	}
	if serviceConfig.Tasks == nil || serviceConfig.Queue == nil {
		logger.Error("Redis stores are offline")
		if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
			return
		}
		serviceConfig.Tasks = store.InitInMemoryTaskStore()
		serviceConfig.Queue = queue.InitInMemoryQueue(config.VisibilityTimeout)
	}

	//the catalog is the source of truth, no fallback
	documents, err := catalog.Open(serviceContext)
	if err != nil {
		logger.Error("Postgres catalog failed to open. Shutting down.", "error", err)
		return
	}
	serviceConfig.Documents = documents

	if minioStore, blobErr := blob.GetMinioStore(serviceContext); blobErr != nil {
		logger.Error("Blob storage is offline", "error", blobErr)
		if !config.FALLBACK_BLOB_TO_INTERNALSTORE {
			return
		}
		serviceConfig.Blobs = blob.InitInMemoryStore()
	} else {
		serviceConfig.Blobs = minioStore
	}

	logger.Info("Starting task service")
	taskService := task.InitTaskService(serviceConfig)

	var embeddingService embedding.Embedder
	var llmProvider llm.Provider
	switch config.EmbeddingProvider {
	case "gemini":
		embeddingService = googleEmbedding.GetGoogleEmbeddingClient(serviceContext, config.GoogleEmbeddingModel, config.GeminiAPIKey)
		llmProvider = gemini.GetGeminiClient(serviceContext, config.GeminiModelName, config.GeminiAPIKey)
	default:
		embeddingService = openaiEmbedding.GetOpenAIEmbeddingClient()
		llmProvider = openaiLLM.GetOpenAIClient()
	}
	if embeddingService == nil || llmProvider == nil {
		logger.Error("One or more external services failed to initialize. Shutting down.")
		logger.Debug("Available services : ", "EmbeddingService", embeddingService != nil, "LLMProvider", llmProvider != nil)
		return
	}

	parser := ingest.NewParser()
	planner := ingest.NewPlanner(config.ChunkSizeTokens, config.ChunkOverlapTokens)
	ragService := rag.NewService(documents, serviceConfig.Blobs, serviceConfig.Tasks, parser, planner, embeddingService, llmProvider)

	handlers.InitTaskHandler(taskService, ragService)

	//init worker pool
	worker.InitServices(serviceConfig.Queue, documents, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
