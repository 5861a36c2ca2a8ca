package handlers

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/akolanti/docproc/internal/api"
	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/rag"
	"github.com/akolanti/docproc/internal/task"
	"github.com/akolanti/docproc/pkg/logger_i"
)

var (
	handlerInstance *TaskHandler //private singleton
	once            sync.Once
	logTH           *logger_i.Logger
)

type TaskHandler struct {
	tasks *task.Service
	rag   rag.Service
}

func InitTaskHandler(taskService *task.Service, ragService rag.Service) {
	once.Do(func() {
		handlerInstance = &TaskHandler{tasks: taskService, rag: ragService}

		logTH = logger_i.NewLogger("TaskHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logTH.Info("Starting task handler")
	})
}

// ValidateChatRequest enforces the request bounds; top_k zero means
// "use the default" and passes.
func ValidateChatRequest(chatReq api.ChatRequest) bool {
	if handlerInstance == nil {
		return false
	}
	question := strings.TrimSpace(chatReq.Question)
	if question == "" || utf8.RuneCountInString(question) > config.MaxQuestionLength {
		return false
	}
	if chatReq.TopK < 0 || chatReq.TopK > config.MaxTopK {
		return false
	}
	return chatReq.DocumentID >= 0
}
