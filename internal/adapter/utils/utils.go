package utils

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	_ "github.com/akolanti/docproc/cmd/api/docs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/http-swagger"

	"github.com/akolanti/docproc/internal/config"
)

var once sync.Once
var router *chi.Mux

func GetNewUUID() string {
	return uuid.New().String()
}

type RouterClient struct {
	Router *chi.Mux
}

func GetChiURLParam(request *http.Request, key string) string {
	return chi.URLParam(request, key)
}

func GetRouter() RouterClient {
	once.Do(func() {
		router = chi.NewRouter()
		InitSwagger(router)
		//register prometheus
		router.Handle("/metrics", promhttp.Handler())
	})

	return RouterClient{Router: router}
}

func InitSwagger(r *chi.Mux) {
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)
}

func ReverseStringArray(array []string) []string {
	for i, j := 0, len(array)-1; i < j; i, j = i+1, j-1 {
		array[i], array[j] = array[j], array[i]
	}
	return array
}

// BackoffPolicy describes the retry schedule shared by the outbound
// provider calls: exponential delays with a jitter band around each.
type BackoffPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	Factor    float64
	Jitter    float64
}

func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		Attempts:  config.MaxRetryAttempts,
		BaseDelay: config.RetryBaseDelay,
		Factor:    config.RetryBackoffFactor,
		Jitter:    config.RetryJitterFraction,
	}
}

// Do runs fn up to Attempts times, sleeping between attempts while
// retryable classifies the error as transient. It returns the last
// error once attempts are exhausted or the error is not worth retrying.
func (p BackoffPolicy) Do(ctx context.Context, retryable func(error) bool, fn func() error) error {
	delay := p.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= p.Attempts || retryable == nil || !retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered(delay, p.Jitter)):
		}
		delay = time.Duration(float64(delay) * p.Factor)
	}
}

func jittered(delay time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return delay
	}
	spread := (rand.Float64()*2 - 1) * fraction
	return time.Duration(float64(delay) * (1 + spread))
}
