package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/pkg/logger_i"
)

func TestIsValidBearerToken(t *testing.T) {
	saved := config.APIAuthToken
	defer func() { config.APIAuthToken = saved }()
	log := logger_i.NewLogger("test")

	config.APIAuthToken = ""
	if !IsValidBearerToken("", log) {
		t.Error("An instance without a token must accept every request")
	}
	if !IsValidBearerToken("Bearer anything", log) {
		t.Error("An instance without a token must ignore the header")
	}

	config.APIAuthToken = "0123456789abcdef0123456789abcdef"
	scenarios := []struct {
		name   string
		header string
		want   bool
	}{
		{"missing header", "", false},
		{"not a bearer header", "Basic 0123456789abcdef0123456789abcdef", false},
		{"wrong token", "Bearer nope", false},
		{"right token", "Bearer 0123456789abcdef0123456789abcdef", true},
	}
	for _, tc := range scenarios {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidBearerToken(tc.header, log); got != tc.want {
				t.Errorf("IsValidBearerToken(%q) got %v, want %v", tc.header, got, tc.want)
			}
		})
	}
}

// The limiter store is a process-wide singleton, so every limiter assertion
// shares this one miniredis.
func TestRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	savedAddr := config.RedisAddr
	config.RedisAddr = mr.Addr()
	defer func() { config.RedisAddr = savedAddr }()

	newRequest := func(remoteAddr string) requestResponseStruct {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.RemoteAddr = remoteAddr
		return requestResponseStruct{req: req, logger: logger_i.NewLogger("test")}
	}

	for i := 0; i < config.RateLimitRequests; i++ {
		if re := rateLimiter(newRequest("203.0.113.9:51000")); re.badRequest.isBadRequest {
			t.Fatalf("Request %d within the budget was rejected", i+1)
		}
	}

	re := rateLimiter(newRequest("203.0.113.9:51000"))
	if !re.badRequest.isBadRequest || re.badRequest.httpCode != http.StatusTooManyRequests {
		t.Fatalf("Request over the budget got %+v, want a 429", re.badRequest)
	}

	if re := rateLimiter(newRequest("198.51.100.7:40000")); re.badRequest.isBadRequest {
		t.Error("A fresh address shares the exhausted budget")
	}

	mr.FastForward(config.RateLimitWindow + time.Second)
	if re := rateLimiter(newRequest("203.0.113.9:51000")); re.badRequest.isBadRequest {
		t.Error("The window never reset")
	}

	mr.Close()
	if re := rateLimiter(newRequest("203.0.113.9:51000")); re.badRequest.isBadRequest {
		t.Error("An unreachable counter must fail open, not block")
	}
}

func TestWrap(t *testing.T) {
	saved := config.APIAuthToken
	config.APIAuthToken = "0123456789abcdef0123456789abcdef"
	defer func() { config.APIAuthToken = saved }()

	var gotTrace string
	handler := Wrap(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get("X-Trace-Id")
		ctxTrace, _ := r.Context().Value(config.TRACE_ID_KEY).(string)
		if ctxTrace != gotTrace {
			t.Errorf("Context trace %q does not match header %q", ctxTrace, gotTrace)
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		handler(recorder, httptest.NewRequest(http.MethodGet, "/tasks", nil))
		if recorder.Code != http.StatusUnauthorized {
			t.Errorf("Status got %d, want 401", recorder.Code)
		}
	})

	t.Run("passes a valid token through with its trace", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/tasks", nil)
		request.Header.Set("Authorization", "Bearer "+config.APIAuthToken)
		request.Header.Set("X-Trace-Id", "trace-123")

		handler(recorder, request)
		if recorder.Code != http.StatusOK {
			t.Errorf("Status got %d, want 200", recorder.Code)
		}
		if gotTrace != "trace-123" {
			t.Errorf("Trace header got %q, want trace-123", gotTrace)
		}
	})
}
