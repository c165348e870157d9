package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int:
			*p = r.values[i].(int)
		case *int64:
			*p = r.values[i].(int64)
		case *bool:
			*p = r.values[i].(bool)
		}
	}
	return nil
}

// fakeDB answers by matching a fragment of the query.
type fakeDB map[string]fakeRow

func (db fakeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	for fragment, row := range db {
		if strings.Contains(sql, fragment) {
			return row
		}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

func healthyDB() fakeDB {
	return fakeDB{
		"SELECT 1":          {values: []any{1}},
		"schema_migrations": {values: []any{int64(3), false}},
		"river_job":         {values: []any{int64(2)}},
	}
}

func readyz(t *testing.T, checker *HealthChecker) (int, HealthCheck) {
	t.Helper()
	rec := httptest.NewRecorder()
	checker.Readyz().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var body HealthCheck
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestReadyz_AllHealthy(t *testing.T) {
	code, body := readyz(t, NewHealthChecker(healthyDB(), true, "0.1.0", "abc123"))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "0.1.0", body.Version)
	assert.Equal(t, "abc123", body.GitCommit)
	assert.Equal(t, "pass", body.Checks["database"].Status)
	assert.Equal(t, "pass", body.Checks["migrations"].Status)
	assert.Equal(t, "pass", body.Checks["job_queue"].Status)
}

func TestReadyz_DatabaseDown(t *testing.T) {
	db := healthyDB()
	db["SELECT 1"] = fakeRow{err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")}

	code, body := readyz(t, NewHealthChecker(db, false, "", ""))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "Database connection refused", body.Checks["database"].Message)
}

func TestReadyz_DirtyMigrations(t *testing.T) {
	db := healthyDB()
	db["schema_migrations"] = fakeRow{values: []any{int64(4), true}}

	code, body := readyz(t, NewHealthChecker(db, false, "", ""))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "fail", body.Checks["migrations"].Status)
}

func TestReadyz_JobQueueWarningDegrades(t *testing.T) {
	db := healthyDB()
	db["river_job"] = fakeRow{err: errors.New(`relation "river_job" does not exist`)}

	code, body := readyz(t, NewHealthChecker(db, true, "", ""))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "warn", body.Checks["job_queue"].Status)
}

func TestReadyz_NilDatabase(t *testing.T) {
	code, body := readyz(t, NewHealthChecker(nil, false, "", ""))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Database pool not initialized", body.Checks["database"].Message)
}

func TestReadyz_ShuttingDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(ctx)
	NewHealthChecker(healthyDB(), false, "", "").Readyz().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "shutting_down")
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRoot(t *testing.T) {
	rec := httptest.NewRecorder()
	Root().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "API Running", rec.Body.String())
}

func TestReadyz_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}
	ctx := context.Background()
	pool, cleanup := setupTestDB(t, ctx)
	defer cleanup()

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version BIGINT PRIMARY KEY,
			dirty BOOLEAN NOT NULL
		)
	`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO schema_migrations (version, dirty) VALUES (1, false) ON CONFLICT (version) DO UPDATE SET dirty = false`)
	require.NoError(t, err)

	code, body := readyz(t, NewHealthChecker(pool, false, "0.1.0", "test-commit"))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pass", body.Checks["database"].Status)
	assert.Equal(t, "pass", body.Checks["migrations"].Status)
}

func setupTestDB(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	// Try DATABASE_URL first (faster for CI/local with existing DB)
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err == nil && pool.Ping(ctx) == nil {
			return pool, func() { pool.Close() }
		}
		t.Logf("DATABASE_URL set but connection failed, using testcontainer")
	}

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("devconnector_test"),
		tcpostgres.WithUsername("devconnector"),
		tcpostgres.WithPassword("devconnector-test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err, "failed to connect to test database")
	require.NoError(t, pool.Ping(ctx), "failed to ping test database")

	return pool, func() {
		pool.Close()
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}
}
