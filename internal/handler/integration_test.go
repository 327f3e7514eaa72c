//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/cbgift/api/internal/config"
	"github.com/cbgift/api/internal/database"
	"github.com/cbgift/api/internal/router"
	"github.com/cbgift/api/internal/status"
	"github.com/cbgift/api/internal/storage"
	"github.com/cbgift/api/internal/ws"
)

// TestIntegrationFlow exercises the full design workflow against a real
// PostgreSQL database: seller creates an order, manager assigns a designer,
// the designer works one line through to design check, the seller reviews
// it, and the order-level status tracks the details throughout.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	// Run migrations
	runMigrations(t, connStr)

	// Create pgxpool connection
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	// Initialize dependencies
	cfg := &config.Config{
		Port:        "8081",
		DatabaseURL: connStr,
		JWTSecret:   "integration-test-secret",
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// NOTE: hub.Run() goroutine leaks on test exit — Hub has no shutdown mechanism.
	// Acceptable for tests; production should add context-based shutdown.
	go hub.Run()

	// Build router with in-memory file storage
	r := router.New(cfg, queries, pool, hub, storage.NewRecorder())

	// Create HTTP test server
	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Seed the three workflow accounts (manual DB insert to bootstrap) ---
	seedWorkflowUser(t, ctx, pool, "seller@test.com", "Test Seller", "SELLER")
	designerID := seedWorkflowUser(t, ctx, pool, "designer@test.com", "Test Designer", "DESIGNER")
	seedWorkflowUser(t, ctx, pool, "manager@test.com", "Test Manager", "MANAGER")

	// --- 2. Login as each role ---
	sellerToken := login(t, server, "seller@test.com", "password123")
	designerToken := login(t, server, "designer@test.com", "password123")
	managerToken := login(t, server, "manager@test.com", "password123")

	// --- 3. Seller creates an order with two product lines ---
	orderResp := createGiftOrder(t, server, sellerToken)
	orderID := uuid.MustParse(orderResp["orderId"].(string))
	if got := orderResp["orderCode"].(string); got != "CBG-00001" {
		t.Fatalf("first order code: got %s, want CBG-00001", got)
	}
	// 2 x 25.00 + 1 x 35.00
	if got := orderResp["totalAmount"].(string); got != "85.00" {
		t.Fatalf("order totalAmount: got %s, want 85.00", got)
	}
	details := orderResp["details"].([]interface{})
	if len(details) != 2 {
		t.Fatalf("order details: got %d, want 2", len(details))
	}
	mugDetailID := uuid.MustParse(details[0].(map[string]interface{})["orderDetailId"].(string))
	frameDetailID := uuid.MustParse(details[1].(map[string]interface{})["orderDetailId"].(string))
	for _, d := range details {
		if got := d.(map[string]interface{})["productionStatus"].(float64); got != float64(status.Draft) {
			t.Fatalf("new detail status: got %v, want %v", got, status.Draft)
		}
	}

	// --- 4. Manager sees the designer roster and assigns both lines ---
	roster := httpGetList(t, server, "/api/manager/designers", managerToken)
	if len(roster) != 1 || roster[0]["email"].(string) != "designer@test.com" {
		t.Fatalf("designer roster: got %+v", roster)
	}
	for _, detailID := range []uuid.UUID{mugDetailID, frameDetailID} {
		resp := httpPutJSON(t, server, fmt.Sprintf("/api/manager/order-details/%s/assign", detailID),
			map[string]string{"designerId": designerID.String()}, managerToken)
		if got := resp["productionStatus"].(float64); got != float64(status.NeedDesign) {
			t.Fatalf("assigned detail status: got %v, want %v", got, status.NeedDesign)
		}
	}

	// --- 5. Designer sees both tasks and starts the mug ---
	tasks := httpGetList(t, server, "/api/designer/tasks", designerToken)
	if len(tasks) != 2 {
		t.Fatalf("designer tasks: got %d, want 2", len(tasks))
	}
	resp := httpPutJSON(t, server, fmt.Sprintf("/api/designer/tasks/status/%s", mugDetailID),
		map[string]int{"productionStatus": int(status.Designing)}, designerToken)
	if got := resp["productionStatus"].(float64); got != float64(status.Designing) {
		t.Fatalf("detail status after start: got %v, want %v", got, status.Designing)
	}

	// --- 6. Designer submits the finished design by URL ---
	resp = httpPostJSONForm(t, server, fmt.Sprintf("/api/designer/tasks/%s/upload", mugDetailID),
		map[string]string{"FileUrl": "https://cdn.test/mug-final.png", "Note": "gold rim variant"}, designerToken)
	if got := resp["productionStatus"].(float64); got != float64(status.CheckDesign) {
		t.Fatalf("detail status after submit: got %v, want %v", got, status.CheckDesign)
	}

	// --- 7. A line awaiting review flags the whole order ---
	orderResp = httpGetJSON(t, server, fmt.Sprintf("/api/seller/orders/%s", orderID), sellerToken)
	if got := orderResp["status"].(float64); got != float64(status.DesignRedo) {
		t.Fatalf("order status with line in review: got %v, want %v", got, status.DesignRedo)
	}

	// --- 8. Seller approves the order's pending designs ---
	approveBody := map[string]interface{}{"productionStatus": int(status.ReadyProd)}
	approved := httpPutJSONList(t, server, fmt.Sprintf("/api/seller/orders/%s/approve-or-reject-design", orderID),
		approveBody, sellerToken)
	if len(approved) != 1 {
		t.Fatalf("approved details: got %d, want 1", len(approved))
	}
	if got := approved[0]["productionStatus"].(float64); got != float64(status.ReadyProd) {
		t.Fatalf("approved detail status: got %v, want %v", got, status.ReadyProd)
	}

	// --- 9. Order status falls back to the least-advanced line ---
	orderResp = httpGetJSON(t, server, fmt.Sprintf("/api/seller/orders/%s", orderID), sellerToken)
	if got := orderResp["status"].(float64); got != float64(status.NeedDesign) {
		t.Fatalf("order status after approval: got %v, want %v", got, status.NeedDesign)
	}

	// --- 10. A stale designer update on the approved line is rejected ---
	code := httpPutExpectError(t, server, fmt.Sprintf("/api/designer/tasks/status/%s", mugDetailID),
		map[string]int{"productionStatus": int(status.Designing)}, designerToken)
	if code != http.StatusConflict {
		t.Fatalf("stale update status: got %d, want %d", code, http.StatusConflict)
	}

	t.Logf("Integration test passed: container=%s, order=%s", pgContainer.GetContainerID(), orderID)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("cbgift_test"),
		tcpostgres.WithUsername("cbgift"),
		tcpostgres.WithPassword("cbgift"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	// Connect with stdlib for migrate
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Path relative to this test file's package directory (internal/handler/).
	// Go test sets cwd to the package directory.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func seedWorkflowUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, email, fullName, role string) uuid.UUID {
	t.Helper()
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (email, hashed_password, full_name, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		email, string(hashedPassword), fullName, role,
	).Scan(&id)
	if err != nil {
		t.Fatalf("create %s user: %v", role, err)
	}
	return id
}

// --- API call helpers ---

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	body := map[string]interface{}{
		"email":    email,
		"password": password,
	}
	resp := httpPostJSON(t, server, "/api/auth/login", body, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

func createGiftOrder(t *testing.T, server *httptest.Server, token string) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{
		"customerName":    "John Doe",
		"shippingAddress": "123 Test St",
		"details": []map[string]interface{}{
			{
				"productName": "Custom Mug",
				"quantity":    2,
				"unitPrice":   "25.00",
				"note":        "name in gold letters",
			},
			{
				"productName": "Photo Frame",
				"quantity":    1,
				"unitPrice":   "35.00",
			},
		},
	}
	return httpPostJSON(t, server, "/api/seller/orders", body, token)
}

// --- HTTP helpers ---

func doJSONRequest(t *testing.T, server *httptest.Server, method, path string, body interface{}, token string) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeOK(t *testing.T, resp *http.Response, method, path string, out interface{}) {
	t.Helper()
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("%s %s: status %d, body: %v", method, path, resp.StatusCode, errResp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body interface{}, token string) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	decodeOK(t, doJSONRequest(t, server, "POST", path, body, token), "POST", path, &result)
	return result
}

func httpPutJSON(t *testing.T, server *httptest.Server, path string, body interface{}, token string) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	decodeOK(t, doJSONRequest(t, server, "PUT", path, body, token), "PUT", path, &result)
	return result
}

func httpPutJSONList(t *testing.T, server *httptest.Server, path string, body interface{}, token string) []map[string]interface{} {
	t.Helper()
	var result []map[string]interface{}
	decodeOK(t, doJSONRequest(t, server, "PUT", path, body, token), "PUT", path, &result)
	return result
}

func httpPutExpectError(t *testing.T, server *httptest.Server, path string, body interface{}, token string) int {
	t.Helper()
	resp := doJSONRequest(t, server, "PUT", path, body, token)
	defer resp.Body.Close()
	return resp.StatusCode
}

func httpGetJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	decodeOK(t, doJSONRequest(t, server, "GET", path, nil, token), "GET", path, &result)
	return result
}

func httpGetList(t *testing.T, server *httptest.Server, path string, token string) []map[string]interface{} {
	t.Helper()
	var result []map[string]interface{}
	decodeOK(t, doJSONRequest(t, server, "GET", path, nil, token), "GET", path, &result)
	return result
}

// httpPostJSONForm posts url-encoded-style multipart form fields, used for
// the design submit endpoint which accepts a DesignFile or a FileUrl field.
func httpPostJSONForm(t *testing.T, server *httptest.Server, path string, fields map[string]string, token string) map[string]interface{} {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write form field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest("POST", server.URL+path, buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}

	var result map[string]interface{}
	decodeOK(t, resp, "POST", path, &result)
	return result
}
