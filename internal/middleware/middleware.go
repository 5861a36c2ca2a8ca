package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/docproc/internal/handlers"
	"github.com/akolanti/docproc/internal/metrics"
	"github.com/akolanti/docproc/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	limited    bool
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

var GetHandler = Wrap(handlers.GetHandler)

var UploadHandler = WrapLimited(handlers.UploadHandler)
var ChatHandler = WrapLimited(handlers.ChatHandler)

var GetStatusHandler = Wrap(handlers.GetStatusHandler)
var GetResultHandler = Wrap(handlers.GetResultHandler)
var ListTasksHandler = Wrap(handlers.ListTasksHandler)
var StreamResultsHandler = Wrap(handlers.StreamResultsHandler)
var DeleteTaskHandler = Wrap(handlers.DeleteTaskHandler)

var ListDocumentsHandler = Wrap(handlers.ListDocumentsHandler)
var GetDocumentHandler = Wrap(handlers.GetDocumentHandler)
var CreateUserHandler = Wrap(handlers.CreateUserHandler)
var GetUserHandler = Wrap(handlers.GetUserHandler)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return wrap(next, false)
}

// WrapLimited is Wrap plus the per-IP rate limiter, for the endpoints that
// spend provider tokens or disk.
func WrapLimited(next http.HandlerFunc) http.HandlerFunc {
	return wrap(next, true)
}

func wrap(next http.HandlerFunc, limited bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec, limited: limited})

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
	}
}
func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re.logger.Info("New request received")
	//TODO:make this cleaner
	re = injectTrace(re)
	re = authenticate(re)
	if re.badRequest.isBadRequest {
		return re //stop if auth fails
	}
	if re.limited {
		re = rateLimiter(re)
	}

	return re
}
