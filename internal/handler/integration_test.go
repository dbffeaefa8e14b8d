package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/todoapi/internal/account"
	"github.com/hitoshi/todoapi/internal/auth"
	"github.com/hitoshi/todoapi/internal/metrics"
	"github.com/hitoshi/todoapi/internal/middleware"
	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/repository"
	"github.com/hitoshi/todoapi/internal/todo"
)

// --- 統合テスト用のインメモリリポジトリ ---

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.User
	byEmail map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]*model.User),
	}
}

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	u := *user
	r.byID[u.ID] = &u
	r.byEmail[u.Email] = &u
	return nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byEmail[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

type memTodoRepo struct {
	mu    sync.Mutex
	todos map[string]*model.Todo
}

func newMemTodoRepo() *memTodoRepo {
	return &memTodoRepo{todos: make(map[string]*model.Todo)}
}

func (r *memTodoRepo) Create(ctx context.Context, t *model.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.todos[cp.ID] = &cp
	return nil
}

func (r *memTodoRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Todo, 0)
	for _, t := range r.todos {
		if t.OwnerID == ownerID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *memTodoRepo) UpdateByIDAndOwner(ctx context.Context, id, ownerID string, changes repository.TodoChanges) (*model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.todos[id]
	if !ok || t.OwnerID != ownerID {
		return nil, nil
	}
	if changes.SetTitle {
		t.Title = changes.Title
	}
	if changes.SetDescription {
		t.Description = changes.Description
	}
	if changes.SetCompleted {
		t.Completed = changes.Completed
	}
	t.UpdatedAt = changes.UpdatedAt
	cp := *t
	return &cp, nil
}

func (r *memTodoRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.todos[id]
	if !ok || t.OwnerID != ownerID {
		return nil, nil
	}
	delete(r.todos, id)
	return t, nil
}

// --- 統合テスト用ルーター構築ヘルパー ---

type integrationEnv struct {
	router   http.Handler
	deps     *RouterDeps
	registry *prometheus.Registry
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	hasher, err := auth.NewBcryptHasher(4, 2)
	if err != nil {
		t.Fatalf("NewBcryptHasher: %v", err)
	}
	tokens := auth.NewTokenService([]byte("integration-secret-at-least-32-bytes"), time.Hour)

	accounts := account.NewService(newMemUserRepo(), hasher)
	todos := todo.NewService(newMemTodoRepo())

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	deps := &RouterDeps{
		CORSAllowedOrigin: "*",
		RateLimiter:       rl,
		TokenVerifier:     tokens,
		UserFinder:        accounts,
		StoreChecker:      stubStore(true),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		AccountService:    accounts,
		TokenIssuer:       tokens,
		TodoService:       todos,
	}

	return &integrationEnv{router: NewRouter(deps), deps: deps, registry: reg}
}

// do はリクエストを送り、ステータスコードとデコード済みボディを返す。
func (e *integrationEnv) do(t *testing.T, method, path, body, token string) (int, map[string]any) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var decoded map[string]any
	if err := json.NewDecoder(w.Result().Body).Decode(&decoded); err != nil {
		t.Fatalf("%s %s: failed to decode response: %v", method, path, err)
	}
	return w.Code, decoded
}

func (e *integrationEnv) register(t *testing.T, name, email string) (token, userID string) {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/register",
		`{"name":"`+name+`","email":"`+email+`","password":"secret123"}`, "")
	if status != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body = %v", email, status, body)
	}
	user := body["user"].(map[string]any)
	return body["token"].(string), user["id"].(string)
}

// --- 統合テスト ---

func TestIntegration_OwnershipScenario(t *testing.T) {
	env := newIntegrationEnv(t)

	// 1. Annを登録するとトークンが返る
	annToken, annID := env.register(t, "Ann", "ann@x.com")
	if annToken == "" {
		t.Fatal("expected a token for Ann")
	}

	// 2. 誤ったパスワードでのログインは汎用メッセージの401
	status, body := env.do(t, http.MethodPost, "/api/login", `{"email":"ann@x.com","password":"wrong-password"}`, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("login with wrong password: status = %d, want 401", status)
	}
	if body["message"] != "invalid credentials" {
		t.Errorf("message = %v, want invalid credentials", body["message"])
	}

	// 3. AnnのトークンでTODOを作成するとownerはAnn
	status, body = env.do(t, http.MethodPost, "/api/todos", `{"title":"Buy milk"}`, annToken)
	if status != http.StatusCreated {
		t.Fatalf("create todo: status = %d, body = %v", status, body)
	}
	created := body["todo"].(map[string]any)
	if created["owner"] != annID {
		t.Errorf("owner = %v, want %s", created["owner"], annID)
	}
	todoID := created["id"].(string)

	// 4. Bobの一覧は空
	bobToken, _ := env.register(t, "Bob", "bob@x.com")
	status, body = env.do(t, http.MethodGet, "/api/todos", "", bobToken)
	if status != http.StatusOK {
		t.Fatalf("list as Bob: status = %d", status)
	}
	if body["count"] != float64(0) {
		t.Errorf("Bob's count = %v, want 0", body["count"])
	}
	if todos, ok := body["todos"].([]any); !ok || len(todos) != 0 {
		t.Errorf("Bob's todos = %v, want empty array", body["todos"])
	}

	// 5. BobがAnnのTODOを削除しようとすると404
	status, _ = env.do(t, http.MethodDelete, "/api/todos/"+todoID, "", bobToken)
	if status != http.StatusNotFound {
		t.Errorf("delete as Bob: status = %d, want 404", status)
	}

	// Annの側ではTODOが残っている
	_, body = env.do(t, http.MethodGet, "/api/todos", "", annToken)
	if body["count"] != float64(1) {
		t.Errorf("Ann's count = %v, want 1", body["count"])
	}
}

func TestIntegration_LoginAfterRegister_CaseInsensitiveEmail(t *testing.T) {
	env := newIntegrationEnv(t)
	env.register(t, "Ann", "Ann@X.com")

	status, body := env.do(t, http.MethodPost, "/api/login", `{"email":"  ANN@x.COM ","password":"secret123"}`, "")
	if status != http.StatusOK {
		t.Fatalf("login: status = %d, body = %v", status, body)
	}
	user := body["user"].(map[string]any)
	if user["email"] != "ann@x.com" {
		t.Errorf("email = %v, want ann@x.com", user["email"])
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("password hash must not be serialized")
	}

	// 正規化後に同じメールアドレスでの再登録は409
	status, body = env.do(t, http.MethodPost, "/api/register", `{"name":"Ann2","email":"ANN@x.com","password":"secret123"}`, "")
	if status != http.StatusConflict {
		t.Errorf("duplicate register: status = %d, want 409", status)
	}
	if body["code"] != model.ErrCodeDuplicateIdentity {
		t.Errorf("code = %v", body["code"])
	}
}

func TestIntegration_UnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	env := newIntegrationEnv(t)
	env.register(t, "Ann", "ann@x.com")

	status1, body1 := env.do(t, http.MethodPost, "/api/login", `{"email":"nobody@x.com","password":"secret123"}`, "")
	status2, body2 := env.do(t, http.MethodPost, "/api/login", `{"email":"ann@x.com","password":"nope-nope"}`, "")

	if status1 != status2 || body1["message"] != body2["message"] || body1["code"] != body2["code"] {
		t.Errorf("responses differ: (%d %v) vs (%d %v)", status1, body1, status2, body2)
	}
}

func TestIntegration_UpdateAndPatchSemantics(t *testing.T) {
	env := newIntegrationEnv(t)
	token, _ := env.register(t, "Ann", "ann@x.com")

	_, body := env.do(t, http.MethodPost, "/api/todos", `{"title":"Buy milk","description":"2 liters"}`, token)
	id := body["todo"].(map[string]any)["id"].(string)

	// 指定したフィールドだけが変わる
	status, body := env.do(t, http.MethodPatch, "/api/todos/"+id, `{"completed":true}`, token)
	if status != http.StatusOK {
		t.Fatalf("patch: status = %d, body = %v", status, body)
	}
	updated := body["todo"].(map[string]any)
	if updated["completed"] != true || updated["title"] != "Buy milk" || updated["description"] != "2 liters" {
		t.Errorf("after patch = %v", updated)
	}

	// description: null はクリアする
	_, body = env.do(t, http.MethodPut, "/api/todos/"+id, `{"description":null}`, token)
	if d := body["todo"].(map[string]any)["description"]; d != nil {
		t.Errorf("description = %v, want null", d)
	}

	// title: null は検証エラー
	status, _ = env.do(t, http.MethodPut, "/api/todos/"+id, `{"title":null}`, token)
	if status != http.StatusBadRequest {
		t.Errorf("title null: status = %d, want 400", status)
	}

	// 形式不正なIDは404ではなく400
	status, body = env.do(t, http.MethodPut, "/api/todos/not-a-uuid", `{"title":"x"}`, token)
	if status != http.StatusBadRequest {
		t.Errorf("malformed id: status = %d, want 400", status)
	}
	if body["code"] != model.ErrCodeValidation {
		t.Errorf("malformed id code = %v", body["code"])
	}

	// 削除すると最後の状態が返り、2回目は404
	status, body = env.do(t, http.MethodDelete, "/api/todos/"+id, "", token)
	if status != http.StatusOK || body["todo"].(map[string]any)["id"] != id {
		t.Errorf("delete: status = %d, body = %v", status, body)
	}
	status, _ = env.do(t, http.MethodDelete, "/api/todos/"+id, "", token)
	if status != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", status)
	}
}

func TestIntegration_MeAndTokenRejections(t *testing.T) {
	env := newIntegrationEnv(t)
	token, id := env.register(t, "Ann", "ann@x.com")

	status, body := env.do(t, http.MethodGet, "/api/me", "", token)
	if status != http.StatusOK || body["user"].(map[string]any)["id"] != id {
		t.Errorf("me: status = %d, body = %v", status, body)
	}

	status, body = env.do(t, http.MethodGet, "/api/todos", "", "")
	if status != http.StatusUnauthorized || body["message"] != model.MsgAccessTokenRequired {
		t.Errorf("no token: status = %d, body = %v", status, body)
	}

	tampered := token[:len(token)-2] + "xx"
	status, body = env.do(t, http.MethodGet, "/api/todos", "", tampered)
	if status != http.StatusUnauthorized || body["message"] != model.MsgInvalidToken {
		t.Errorf("tampered token: status = %d, body = %v", status, body)
	}

	// 拒否理由はメトリクスにのみ残る
	families, err := env.registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "todoapi_token_rejections_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected todoapi_token_rejections_total to be recorded")
	}
}
