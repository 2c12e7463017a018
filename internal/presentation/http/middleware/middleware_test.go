package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memIdempotencyRepo struct {
	mu   sync.Mutex
	keys map[string]*entity.IdempotencyKey
}

func newMemIdempotencyRepo() *memIdempotencyRepo {
	return &memIdempotencyRepo{keys: map[string]*entity.IdempotencyKey{}}
}

func (r *memIdempotencyRepo) GetByKey(_ context.Context, key string, cashierID uuid.UUID) (*entity.IdempotencyKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[cashierID.String()+"/"+key]
	if !ok {
		return nil, nil
	}
	cp := *k
	return &cp, nil
}

func (r *memIdempotencyRepo) Reserve(_ context.Context, k *entity.IdempotencyKey, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := k.CashierID.String() + "/" + k.Key
	if existing, ok := r.keys[id]; ok && !existing.ExpiresAt.Before(now) {
		return false, nil
	}
	cp := *k
	r.keys[id] = &cp
	return true, nil
}

func (r *memIdempotencyRepo) Complete(_ context.Context, key string, cashierID uuid.UUID, code int, body string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[cashierID.String()+"/"+key]; ok {
		k.ResponseCode = code
		k.ResponseBody = body
		k.ExpiresAt = expiresAt
	}
	return nil
}

func (r *memIdempotencyRepo) Release(_ context.Context, key string, cashierID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, cashierID.String()+"/"+key)
	return nil
}

func (r *memIdempotencyRepo) DeleteExpired(context.Context, time.Time) error {
	return nil
}

func withUser(id uuid.UUID, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", id)
		c.Set("user_roles", roles)
		c.Next()
	}
}

func TestAuthMiddleware(t *testing.T) {
	jwtManager := utils.NewJWTManager("secret", time.Hour)
	userID := uuid.New()
	token, err := jwtManager.GenerateAccessToken(userID, "c@shop.test", []string{"cashier"})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", AuthMiddleware(jwtManager), func(c *gin.Context) {
		id, _ := c.Get("user_id")
		c.String(http.StatusOK, id.(uuid.UUID).String())
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, userID.String(), w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	for _, tc := range []struct {
		roles  []string
		status int
	}{
		{roles: []string{"cashier"}, status: http.StatusForbidden},
		{roles: []string{"cashier", "manager"}, status: http.StatusOK},
	} {
		router := gin.New()
		router.PUT("/settings", withUser(uuid.New(), tc.roles...), RequireRole("admin", "manager"), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/settings", nil))
		assert.Equal(t, tc.status, w.Code, "roles %v", tc.roles)
	}
}

func TestIdempotencyRequiredReplays(t *testing.T) {
	repo := newMemIdempotencyRepo()
	calls := 0

	router := gin.New()
	router.POST("/sales", withUser(uuid.New()), IdempotencyRequired(IdempotencyConfig{Repo: repo}), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"receipt_no": "RCP-1"})
	})

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(`{}`))
		if key != "" {
			req.Header.Set(IdempotencyKeyHeader, key)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := send("")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, calls)

	first := send("k1")
	assert.Equal(t, http.StatusCreated, first.Code)

	second := send("k1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	send("k2")
	assert.Equal(t, 2, calls)
}

func TestIdempotencyConcurrentSameKey(t *testing.T) {
	repo := newMemIdempotencyRepo()
	entered := make(chan struct{})
	proceed := make(chan struct{})
	var calls atomic.Int32

	router := gin.New()
	router.POST("/sales", withUser(uuid.New()), IdempotencyRequired(IdempotencyConfig{Repo: repo}), func(c *gin.Context) {
		if calls.Add(1) == 1 {
			close(entered)
			<-proceed
		}
		c.JSON(http.StatusCreated, gin.H{"receipt_no": "RCP-1"})
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(`{}`))
		req.Header.Set(IdempotencyKeyHeader, "double-tap")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	firstDone := make(chan *httptest.ResponseRecorder)
	go func() { firstDone <- send() }()
	<-entered

	// same key while the first sale is still being written
	second := send()
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))

	close(proceed)
	first := <-firstDone
	assert.Equal(t, http.StatusCreated, first.Code)

	third := send()
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, "true", third.Header().Get("X-Idempotency-Replayed"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	repo := newMemIdempotencyRepo()
	status := http.StatusServiceUnavailable

	router := gin.New()
	router.POST("/sales", withUser(uuid.New()), Idempotency(IdempotencyConfig{Repo: repo}), func(c *gin.Context) {
		c.Status(status)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sales", nil)
		req.Header.Set(IdempotencyKeyHeader, "retry-me")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusServiceUnavailable, send().Code)
	assert.Empty(t, repo.keys)
	status = http.StatusOK
	w := send()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Idempotency-Replayed"))
}

func TestIdempotencyExpiredKeyIsReprocessed(t *testing.T) {
	repo := newMemIdempotencyRepo()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0

	router := gin.New()
	router.POST("/sales", withUser(uuid.New()), Idempotency(IdempotencyConfig{
		Repo: repo,
		TTL:  time.Minute,
		Now:  func() time.Time { return now },
	}), func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})

	send := func() {
		req := httptest.NewRequest(http.MethodPost, "/sales", nil)
		req.Header.Set(IdempotencyKeyHeader, "k")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	send()
	send()
	assert.Equal(t, 1, calls)

	now = now.Add(2 * time.Minute)
	send()
	assert.Equal(t, 2, calls)
}

func TestIdempotencyStaleReservationIsTakenOver(t *testing.T) {
	repo := newMemIdempotencyRepo()
	cashier := uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// left behind by a request that never answered
	_, err := repo.Reserve(context.Background(), &entity.IdempotencyKey{
		Key:       "k",
		CashierID: cashier,
		ExpiresAt: now.Add(-time.Second),
	}, now.Add(-time.Minute))
	require.NoError(t, err)

	router := gin.New()
	router.POST("/sales", withUser(cashier), Idempotency(IdempotencyConfig{
		Repo: repo,
		Now:  func() time.Time { return now },
	}), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/sales", nil)
	req.Header.Set(IdempotencyKeyHeader, "k")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	stored, err := repo.GetByKey(context.Background(), "k", cashier)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, stored.ResponseCode)
	assert.Equal(t, now.Add(DefaultIdempotencyKeyTTL), stored.ExpiresAt)
}

func TestCashierRateLimiter(t *testing.T) {
	rl := NewCashierRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 2})
	defer rl.Stop()

	cashierA, cashierB := uuid.New(), uuid.New()
	router := gin.New()
	router.GET("/a", withUser(cashierA), rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/b", withUser(cashierB), rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := func(path string, n int) []int {
		var out []int
		for i := 0; i < n; i++ {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			out = append(out, w.Code)
		}
		return out
	}

	assert.Equal(t, []int{200, 200, 429}, codes("/a", 3))
	// another cashier has their own budget
	assert.Equal(t, []int{200}, codes("/b", 1))

	rl.cleanup(time.Now().Add(time.Hour))
	assert.Equal(t, []int{200}, codes("/a", 1))
}
