package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/itemdesk/internal/itemstore"
	"github.com/starford/itemdesk/internal/models"
	"github.com/starford/itemdesk/internal/testutil"
)

// testEnv sets up a memory-backed store and router. An empty token means
// auth is disabled.
func testEnv(t *testing.T, authToken string) (*itemstore.Store, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, sse http.Handler) (*itemstore.Store, http.Handler) {
	t.Helper()
	store, err := itemstore.Open(context.Background(), testutil.MemorySlot(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	router := NewRouter(store, authToken != "", authToken, sse)
	return store, router
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func create(t *testing.T, h http.Handler, name string, p models.Priority) models.Item {
	t.Helper()
	w := do(t, h, http.MethodPost, "/items", map[string]string{
		"name": name, "description": "about " + name, "priority": string(p),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var it models.Item
	_ = json.Unmarshal(w.Body.Bytes(), &it)
	return it
}

func TestCreateAndGetItem(t *testing.T) {
	_, router := testEnv(t, "")

	created := create(t, router, "Hello", models.PriorityHigh)
	if created.ID == 0 {
		t.Fatal("id not set")
	}
	if !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Errorf("createdAt %v != updatedAt %v", created.CreatedAt, created.UpdatedAt)
	}

	w := do(t, router, http.MethodGet, fmt.Sprintf("/items/%d", created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got models.Item
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Name != "Hello" || got.Priority != models.PriorityHigh {
		t.Errorf("got %+v", got)
	}
}

func TestCreateLocationHeader(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/items", map[string]string{
		"name": "Located", "description": "d", "priority": "low",
	})
	var created models.Item
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if want := fmt.Sprintf("/items/%d", created.ID); w.Header().Get("Location") != want {
		t.Errorf("Location = %q, want %q", w.Header().Get("Location"), want)
	}
}

func TestCreateLocationHeaderUsesBasePath(t *testing.T) {
	store, err := itemstore.Open(context.Background(), testutil.MemorySlot(t))
	if err != nil {
		t.Fatal(err)
	}
	router := NewRouter(store, false, "", nil, WithBasePath("/api/"))
	w := do(t, router, http.MethodPost, "/items", map[string]string{
		"name": "Mounted", "description": "d", "priority": "high",
	})
	var created models.Item
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if want := fmt.Sprintf("/api/items/%d", created.ID); w.Header().Get("Location") != want {
		t.Errorf("Location = %q, want %q", w.Header().Get("Location"), want)
	}
}

func TestCreateValidationDetails(t *testing.T) {
	store, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/items", map[string]string{"name": "ab"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp errResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	want := []string{itemstore.MsgName, itemstore.MsgDescription, itemstore.MsgPriority}
	if len(resp.Details) != len(want) {
		t.Fatalf("details = %+v", resp.Details)
	}
	for i, d := range resp.Details {
		if d.Message != want[i] {
			t.Errorf("details[%d] = %q, want %q", i, d.Message, want[i])
		}
	}
	if store.Len() != 0 {
		t.Errorf("invalid create stored an item")
	}
}

func TestCreateInvalidJSON(t *testing.T) {
	_, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateItem(t *testing.T) {
	_, router := testEnv(t, "")
	created := create(t, router, "Before", models.PriorityLow)

	w := do(t, router, http.MethodPut, fmt.Sprintf("/items/%d", created.ID), map[string]string{
		"name": "After", "description": "changed", "priority": "medium",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var upd models.Item
	_ = json.Unmarshal(w.Body.Bytes(), &upd)
	if upd.ID != created.ID || !upd.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("identity changed: %+v vs %+v", upd, created)
	}
	if upd.UpdatedAt.Before(created.UpdatedAt) || upd.UpdatedAt.Equal(created.UpdatedAt) {
		t.Errorf("updatedAt not advanced: %v -> %v", created.UpdatedAt, upd.UpdatedAt)
	}
	if upd.Name != "After" || upd.Priority != models.PriorityMedium {
		t.Errorf("fields not replaced: %+v", upd)
	}
}

func TestUpdateItem_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPut, "/items/12345", map[string]string{
		"name": "Ghost", "description": "d", "priority": "low",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateItem_Invalid(t *testing.T) {
	_, router := testEnv(t, "")
	created := create(t, router, "Valid", models.PriorityLow)
	w := do(t, router, http.MethodPut, fmt.Sprintf("/items/%d", created.ID), map[string]string{
		"name": "Valid", "description": "", "priority": "low",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDeleteItem(t *testing.T) {
	store, router := testEnv(t, "")
	created := create(t, router, "Doomed", models.PriorityLow)

	w := do(t, router, http.MethodDelete, fmt.Sprintf("/items/%d", created.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if store.Len() != 0 {
		t.Errorf("item not removed")
	}

	w = do(t, router, http.MethodGet, fmt.Sprintf("/items/%d", created.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}

	// Deleting again is a no-op.
	w = do(t, router, http.MethodDelete, fmt.Sprintf("/items/%d", created.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("second delete = %d, want 204", w.Code)
	}
}

func TestBadID(t *testing.T) {
	_, router := testEnv(t, "")
	for _, target := range []string{"/items/abc", "/items/-1", "/items/0"} {
		w := do(t, router, http.MethodGet, target, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", target, w.Code)
		}
	}
}

func TestListItems(t *testing.T) {
	store, router := testEnv(t, "")
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		p := models.Priorities[i%3]
		if _, err := store.Add(ctx, itemstore.Fields{Name: fmt.Sprintf("item %02d", i), Description: "d", Priority: p}); err != nil {
			t.Fatal(err)
		}
	}

	w := do(t, router, http.MethodGet, "/items", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var page ItemListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &page)
	if page.Total != 12 || page.TotalPages != 2 || len(page.Items) != 10 {
		t.Errorf("page = total %d pages %d len %d", page.Total, page.TotalPages, len(page.Items))
	}

	w = do(t, router, http.MethodGet, "/items?priority=alta&page_size=50", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &page)
	if page.Total != 4 {
		t.Errorf("high total = %d, want 4", page.Total)
	}
	for _, it := range page.Items {
		if it.Priority != models.PriorityHigh {
			t.Errorf("priority filter leaked %q", it.Priority)
		}
	}

	w = do(t, router, http.MethodGet, "/items?name=ITEM%2001&sort=oldest", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &page)
	if page.Total != 1 || page.Items[0].Name != "item 01" {
		t.Errorf("name filter = %+v", page.Items)
	}
}

func TestListItems_BadParams(t *testing.T) {
	_, router := testEnv(t, "")
	for _, target := range []string{"/items?priority=urgent", "/items?sort=up", "/items?page=x", "/items?page_size=1.5"} {
		w := do(t, router, http.MethodGet, target, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", target, w.Code)
		}
	}
}

func TestListItems_ETag(t *testing.T) {
	store, router := testEnv(t, "")
	create(t, router, "Tagged", models.PriorityLow)

	w := do(t, router, http.MethodGet, "/items", nil)
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Errorf("conditional get = %d, want 304", w.Code)
	}

	if _, err := store.Add(context.Background(), itemstore.Fields{Name: "Another", Description: "d", Priority: "low"}); err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("conditional get after change = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/items", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/items", nil)
	if w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

// blockingSSE stands in for the broker: it writes a header and waits for
// the client to go away.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, "secret", blockingSSE)
	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_NotMountedWithoutHandler(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /events without broker = %d, want 404", w.Code)
	}
}
