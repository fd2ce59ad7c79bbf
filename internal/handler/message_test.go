package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"msgtree/internal/config"
	"msgtree/internal/domain"
	"msgtree/internal/domain/models"
	"msgtree/internal/domain/services"
	"msgtree/internal/httputil"
)

// fakeService records the last request and returns canned values or err
type fakeService struct {
	err error

	lastCaller   models.Caller
	lastList     *services.ListMessagesRequest
	lastPage     *services.MessagePageRequest
	lastID       uuid.UUID
	lastReviewed bool
	deleted      []uuid.UUID
}

func (f *fakeService) ListMessages(ctx context.Context, caller models.Caller, req *services.ListMessagesRequest) ([]models.Message, error) {
	f.lastCaller, f.lastList = caller, req
	return []models.Message{{ID: uuid.New(), Text: "hi"}}, f.err
}

func (f *fakeService) ListMessagesPage(ctx context.Context, caller models.Caller, req *services.MessagePageRequest) (*models.MessagePage, error) {
	f.lastCaller, f.lastPage = caller, req
	if f.err != nil {
		return nil, f.err
	}
	return &models.MessagePage{SortKey: "created_date", Order: "asc", Items: []models.Message{}}, nil
}

func (f *fakeService) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: id, Text: "hello"}, nil
}

func (f *fakeService) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	f.lastID = id
	return &models.Conversation{Messages: []models.Message{{ID: id}}}, f.err
}

func (f *fakeService) GetTree(ctx context.Context, id uuid.UUID, reviewedOnly bool) (*models.MessageTree, error) {
	f.lastID, f.lastReviewed = id, reviewedOnly
	return &models.MessageTree{ID: id}, f.err
}

func (f *fakeService) GetChildren(ctx context.Context, id uuid.UUID) ([]models.Message, error) {
	f.lastID = id
	return []models.Message{}, f.err
}

func (f *fakeService) GetDescendants(ctx context.Context, id uuid.UUID) (*models.MessageTree, error) {
	f.lastID = id
	return &models.MessageTree{ID: id}, f.err
}

func (f *fakeService) GetLongestConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	f.lastID = id
	return &models.Conversation{}, f.err
}

func (f *fakeService) GetNodeWithMostChildren(ctx context.Context, id uuid.UUID) (*models.MessageTree, error) {
	f.lastID = id
	return &models.MessageTree{ID: id}, f.err
}

func (f *fakeService) DeleteMessage(ctx context.Context, caller models.Caller, id uuid.UUID) error {
	f.lastCaller = caller
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

var testCaller = models.Caller{APIClientID: uuid.MustParse("00000000-0000-0000-0000-0000000000c1"), Trust: models.TrustElevated}

func newTestServer(svc services.MessageService) http.Handler {
	mux := http.NewServeMux()
	NewMessageHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, httputil.WithCaller(r, testCaller))
	})
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	id := uuid.New()
	base := "/api/v1/messages/" + id.String()

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/v1/messages", http.StatusOK},
		{http.MethodGet, "/api/v1/messages/cursor", http.StatusOK},
		{http.MethodGet, base, http.StatusOK},
		{http.MethodGet, base + "/conversation", http.StatusOK},
		{http.MethodGet, base + "/tree", http.StatusOK},
		{http.MethodGet, base + "/children", http.StatusOK},
		{http.MethodGet, base + "/descendants", http.StatusOK},
		{http.MethodGet, base + "/longest_conversation_in_tree", http.StatusOK},
		{http.MethodGet, base + "/max_children_in_tree", http.StatusOK},
		{http.MethodDelete, base, http.StatusNoContent},
		{http.MethodGet, "/api/v1/messages/not-a-uuid", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/messages", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			svc := &fakeService{}
			rec := serve(t, newTestServer(svc), tt.method, tt.target)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestListMessagesParams(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc)
	user := uuid.New()

	rec := serve(t, h, http.MethodGet, "/api/v1/messages")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !svc.lastList.Desc || svc.lastList.MaxCount != config.DefaultPageSize {
		t.Errorf("defaults = desc %v, max_count %d", svc.lastList.Desc, svc.lastList.MaxCount)
	}
	if svc.lastCaller != testCaller {
		t.Errorf("caller = %+v", svc.lastCaller)
	}

	target := fmt.Sprintf("/api/v1/messages?user_id=%s&only_roots=true&include_deleted=1&desc=false&max_count=3&start_date=2024-01-01T00:00:00Z&end_date=2024-01-02T00:00:00Z&username=ann&auth_method=local", user)
	rec = serve(t, h, http.MethodGet, target)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	got := svc.lastList
	if got.UserID == nil || *got.UserID != user || !got.OnlyRoots || !got.IncludeDeleted || got.Desc || got.MaxCount != 3 {
		t.Errorf("request = %+v", got)
	}
	if got.Username != "ann" || got.AuthMethod != "local" {
		t.Errorf("username/auth_method = %q/%q", got.Username, got.AuthMethod)
	}
	if got.StartDate == nil || !got.StartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start_date = %v", got.StartDate)
	}

	for _, bad := range []string{"user_id=x", "desc=maybe", "max_count=ten", "start_date=yesterday", "api_client_id=1"} {
		if rec := serve(t, h, http.MethodGet, "/api/v1/messages?"+bad); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestCursorParams(t *testing.T) {
	svc := &fakeService{}
	h := newTestServer(svc)

	rec := serve(t, h, http.MethodGet, "/api/v1/messages/cursor?gt=2024-01-01T00:00:00Z&max_count=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.lastPage.Desc || svc.lastPage.GT != "2024-01-01T00:00:00Z" || svc.lastPage.LT != "" || svc.lastPage.MaxCount != 5 {
		t.Errorf("request = %+v", svc.lastPage)
	}

	var page models.MessagePage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.SortKey != "created_date" {
		t.Errorf("sort_key = %q", page.SortKey)
	}
}

func TestTreeReviewedParam(t *testing.T) {
	svc := &fakeService{}
	id := uuid.New()
	serve(t, newTestServer(svc), http.MethodGet, "/api/v1/messages/"+id.String()+"/tree?reviewed=true")
	if svc.lastID != id || !svc.lastReviewed {
		t.Errorf("GetTree(%s, %v)", svc.lastID, svc.lastReviewed)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("message: %w", domain.ErrNotFound), http.StatusNotFound},
		{"validation", fmt.Errorf("%w: max_count", domain.ErrValidation), http.StatusBadRequest},
		{"cursor", &domain.InvalidCursorError{Value: "x"}, http.StatusBadRequest},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized},
		{"integrity", &domain.TreeIntegrityError{Reason: "cycle"}, http.StatusInternalServerError},
		{"store", domain.NewStoreError("get message", io.ErrUnexpectedEOF), http.StatusServiceUnavailable},
		{"unknown", io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			rec := serve(t, newTestServer(svc), http.MethodGet, "/api/v1/messages/"+uuid.NewString())
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var problem map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
				t.Fatalf("decode problem: %v", err)
			}
			if int(problem["status"].(float64)) != tt.want {
				t.Errorf("problem status = %v", problem["status"])
			}
		})
	}
}

func TestMissingCaller(t *testing.T) {
	mux := http.NewServeMux()
	NewMessageHandler(&fakeService{}, slog.New(slog.NewTextHandler(io.Discard, nil))).RegisterRoutes(mux)

	for _, tt := range []struct{ method, target string }{
		{http.MethodGet, "/api/v1/messages"},
		{http.MethodGet, "/api/v1/messages/cursor"},
		{http.MethodDelete, "/api/v1/messages/" + uuid.NewString()},
	} {
		if rec := serve(t, mux, tt.method, tt.target); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", tt.method, tt.target, rec.Code)
		}
	}
}
