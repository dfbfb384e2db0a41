package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/careercopilot/internal/ai"
	"github.com/xxxsen/careercopilot/internal/crag"
	"github.com/xxxsen/careercopilot/internal/filestore"
	"github.com/xxxsen/careercopilot/internal/handler"
	"github.com/xxxsen/careercopilot/internal/ingest"
	"github.com/xxxsen/careercopilot/internal/middleware"
	"github.com/xxxsen/careercopilot/internal/model"
	"github.com/xxxsen/careercopilot/internal/pkg/errcode"
	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
	"github.com/xxxsen/careercopilot/internal/service"
	"github.com/xxxsen/careercopilot/internal/vectorindex"
)

type memUsers struct {
	mu    sync.Mutex
	items map[string]*model.User
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[user.Email]; ok {
		return appErr.ErrConflict
	}
	m.items[user.Email] = user
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.items[email]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return u, nil
}

type memResumes struct {
	mu    sync.Mutex
	items map[string]model.Resume
}

func (m *memResumes) Create(_ context.Context, r *model.Resume) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[r.ID] = *r
	return nil
}

func (m *memResumes) GetByID(_ context.Context, userID, id string) (*model.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok || r.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return &r, nil
}

func (m *memResumes) GetByFileKey(_ context.Context, userID, key string) (*model.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.items {
		if r.UserID == userID && r.FileKey == key {
			return &r, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (m *memResumes) ListByUser(_ context.Context, userID string, _, _ uint) ([]model.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Resume{}
	for _, r := range m.items {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memResumes) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok || r.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memResumes) ListStale(_ context.Context, _ int) ([]model.Resume, error) {
	return nil, nil
}

func (m *memResumes) MarkIndexed(_ context.Context, _, id string, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.items[id]
	r.IndexedAt = at
	m.items[id] = r
	return nil
}

type memJobs struct {
	mu    sync.Mutex
	items map[string]model.Job
}

func (m *memJobs) Create(_ context.Context, j *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[j.ID] = *j
	return nil
}

func (m *memJobs) GetByID(_ context.Context, userID, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.items[id]
	if !ok || j.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return &j, nil
}

func (m *memJobs) ListByUser(_ context.Context, userID string, _, _ uint) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Job{}
	for _, j := range m.items {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memJobs) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.items[id]
	if !ok || j.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memJobs) ListStale(_ context.Context, _ int) ([]model.Job, error) {
	return nil, nil
}

func (m *memJobs) MarkIndexed(_ context.Context, _, _ string, _ int64) error {
	return nil
}

type memAnalyses struct {
	mu    sync.Mutex
	items []model.AnalysisRecord
}

func (m *memAnalyses) Create(_ context.Context, r *model.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, *r)
	return nil
}

func (m *memAnalyses) ListByUser(_ context.Context, userID string, _, _ uint) ([]model.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.AnalysisRecord{}
	for _, r := range m.items {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memApplications struct {
	mu    sync.Mutex
	items map[string]model.Application
}

func (m *memApplications) Create(_ context.Context, app *model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[app.ID] = *app
	return nil
}

func (m *memApplications) GetByID(_ context.Context, userID, id string) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.items[id]
	if !ok || app.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return &app, nil
}

func (m *memApplications) ListByUser(_ context.Context, userID, status string, _, _ uint) ([]model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Application{}
	for _, app := range m.items {
		if app.UserID == userID && (status == "" || app.Status == status) {
			out = append(out, app)
		}
	}
	return out, nil
}

func (m *memApplications) Update(_ context.Context, app *model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[app.ID]
	if !ok || cur.UserID != app.UserID {
		return appErr.ErrNotFound
	}
	m.items[app.ID] = *app
	return nil
}

func (m *memApplications) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.items[id]
	if !ok || app.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, texts []string, _ string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec := make([]float32, 32)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[h.Sum32()%32]++
		}
		out = append(out, vec)
	}
	return out, nil
}

// routedCompleter answers each prompt kind with a canned reply.
type routedCompleter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *routedCompleter) CompleteJSON(_ context.Context, req ai.CompletionRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kind, reply string
	switch {
	case strings.Contains(req.System, "relevance_score"):
		kind, reply = "score", `{"relevance_score": 8, "reasoning": "resume covers it"}`
	case strings.Contains(req.System, "rewritten_bullets"):
		kind, reply = "analyze", `{"missing_keywords": ["kubernetes"], "improvement_suggestions": ["quantify impact"], "rewritten_bullets": []}`
	case strings.Contains(req.System, "cover_letter_snippet"):
		kind, reply = "match", `{"match_score": 71, "matched_keywords": ["go"], "missing_keywords": ["kubernetes"]}`
	case strings.Contains(req.System, "tailored_bullets"):
		kind, reply = "tailor", `{"tailored_bullets": ["Built Go services"], "cover_letter": "Dear Acme"}`
	default:
		kind, reply = "chat", `{"answer": "You built payment APIs in Go."}`
	}
	r.calls[kind]++
	return reply, nil
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	t         *testing.T
	engine    http.Handler
	completer *routedCompleter
	analyses  *memAnalyses
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	index, err := vectorindex.OpenSQLite(filepath.Join(t.TempDir(), "index.db"), wordEmbedder{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	users := &memUsers{items: map[string]*model.User{}}
	resumes := &memResumes{items: map[string]model.Resume{}}
	jobs := &memJobs{items: map[string]model.Job{}}
	analyses := &memAnalyses{}
	completer := &routedCompleter{calls: map[string]int{}}
	files := filestore.NewLocal(t.TempDir())

	secret := []byte("test-secret")
	indexer := service.NewIndexService(index, resumes, jobs, 2)
	copilot := service.NewCopilotService(
		crag.NewLoop(index, crag.NewScorer(completer)),
		crag.NewGenerator(completer),
		resumes, jobs, analyses,
		service.CopilotConfig{InitialTopK: 8, MaxRetries: 2},
	)
	resumeService := service.NewResumeService(resumes, indexer, files)
	deps := handler.RouterDeps{
		Auth: handler.NewAuthHandler(service.NewAuthService(users, secret, time.Hour)),
		Properties: handler.NewPropertiesHandler(handler.Properties{
			MaxUploadBytes: 1024,
			UploadTypes:    ingest.SupportedExtensions(),
			DefaultTopK:    8,
			MaxTopK:        20,
		}),
		Resumes:      handler.NewResumeHandler(resumeService, 1024),
		Jobs:         handler.NewJobHandler(service.NewJobService(jobs, indexer)),
		Applications: handler.NewApplicationHandler(service.NewApplicationService(&memApplications{items: map[string]model.Application{}})),
		Copilot:      handler.NewCopilotHandler(copilot),
		Files:        handler.NewFileHandler(resumeService),
		JWTSecret:    secret,
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return &testServer{t: t, engine: engine, completer: completer, analyses: analyses}
}

func (s *testServer) do(req *http.Request, token string) envelope {
	s.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	s.engine.ServeHTTP(resp, req)
	require.Equal(s.t, http.StatusOK, resp.Code)
	var env envelope
	require.NoError(s.t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}

func (s *testServer) postJSON(path, token string, body interface{}) envelope {
	s.t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(s.t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1"+path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, token)
}

func (s *testServer) send(method, path, token string, body interface{}) envelope {
	s.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(s.t, err)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, token)
}

func (s *testServer) get(path, token string) envelope {
	s.t.Helper()
	return s.do(httptest.NewRequest(http.MethodGet, "/api/v1"+path, nil), token)
}

func (s *testServer) register(email string) string {
	s.t.Helper()
	env := s.postJSON("/auth/register", "", map[string]string{"email": email, "password": "correct horse"})
	require.Equal(s.t, 0, env.Code, env.Msg)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(s.t, data.Token)
	return data.Token
}

func decode(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.Equal(t, 0, env.Code, env.Msg)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func TestAuthFlow(t *testing.T) {
	s := setupServer(t)
	s.register("jane@example.com")

	env := s.postJSON("/auth/register", "", map[string]string{"email": "jane@example.com", "password": "correct horse"})
	require.Equal(t, errcode.ErrConflict, env.Code)

	env = s.postJSON("/auth/login", "", map[string]string{"email": "jane@example.com", "password": "wrong password"})
	require.Equal(t, errcode.ErrUnauthorized, env.Code)

	env = s.postJSON("/auth/login", "", map[string]string{"email": "jane@example.com", "password": "correct horse"})
	require.Equal(t, 0, env.Code)

	env = s.get("/resumes", "")
	require.Equal(t, errcode.ErrUnauthorized, env.Code)
}

func TestProperties(t *testing.T) {
	s := setupServer(t)
	var data struct {
		Properties handler.Properties `json:"properties"`
	}
	decode(t, s.get("/properties", ""), &data)
	require.Equal(t, int64(1024), data.Properties.MaxUploadBytes)
	require.Contains(t, data.Properties.UploadTypes, ".md")
	require.Contains(t, data.Properties.UploadTypes, ".pdf")
	require.Contains(t, data.Properties.UploadTypes, ".docx")
	require.Equal(t, 20, data.Properties.MaxTopK)
}

func TestCopilotEndToEnd(t *testing.T) {
	s := setupServer(t)
	token := s.register("jane@example.com")

	var resume model.Resume
	decode(t, s.postJSON("/resumes", token, map[string]string{
		"title": "Backend",
		"text":  "Built payment APIs in Go and Postgres. Led migration to Kafka.",
	}), &resume)
	require.NotZero(t, resume.IndexedAt)

	var job model.Job
	decode(t, s.postJSON("/jobs", token, map[string]string{
		"company": "Acme", "role": "Platform Engineer", "description": "Go, Kubernetes and Postgres experience.",
	}), &job)

	var analyze map[string]interface{}
	decode(t, s.postJSON("/copilot/analyze", token, map[string]interface{}{"query": "What am I missing for platform roles?"}), &analyze)
	require.Equal(t, []interface{}{"kubernetes"}, analyze["missing_keywords"])
	require.Contains(t, analyze, "rewritten_bullets")
	require.Equal(t, 1, s.completer.calls["score"])

	var chat crag.ChatResult
	decode(t, s.postJSON("/copilot/ask", token, map[string]interface{}{"question": "What did I build?", "top_k": 4}), &chat)
	require.Equal(t, "You built payment APIs in Go.", chat.Answer)

	var tailor crag.TailorResult
	decode(t, s.postJSON("/copilot/tailor", token, map[string]string{"resume_id": resume.ID, "job_id": job.ID}), &tailor)
	require.Equal(t, "Dear Acme", tailor.CoverLetter)

	var match struct {
		crag.MatchResult
		AnalysisID string `json:"analysis_id"`
	}
	decode(t, s.postJSON("/copilot/match", token, map[string]string{"resume_id": resume.ID, "job_id": job.ID}), &match)
	require.Equal(t, 71, match.MatchScore)
	require.Equal(t, 71, match.ATSScore)
	require.Equal(t, []string{}, match.SkillGaps)
	require.NotEmpty(t, match.AnalysisID)

	var analyses struct {
		Items []model.AnalysisRecord `json:"items"`
		Total int                    `json:"total"`
	}
	decode(t, s.get("/analyses", token), &analyses)
	require.Equal(t, 1, analyses.Total)
	require.Equal(t, match.AnalysisID, analyses.Items[0].ID)
}

func TestCopilotValidationAndOwnership(t *testing.T) {
	s := setupServer(t)
	jane := s.register("jane@example.com")
	bob := s.register("bob@example.com")

	var resume model.Resume
	decode(t, s.postJSON("/resumes", jane, map[string]string{"title": "cv", "text": "Go engineer"}), &resume)

	env := s.postJSON("/copilot/analyze", jane, map[string]interface{}{"query": "go"})
	require.Equal(t, errcode.ErrInvalid, env.Code)
	require.Contains(t, env.Msg, "query")

	env = s.postJSON("/copilot/analyze", jane, map[string]interface{}{"query": "go roles", "top_k": 25})
	require.Equal(t, errcode.ErrInvalid, env.Code)

	env = s.postJSON("/copilot/match", bob, map[string]string{"resume_id": resume.ID, "job_id": "nope"})
	require.Equal(t, errcode.ErrNotFound, env.Code)

	env = s.get("/resumes/"+resume.ID, bob)
	require.Equal(t, errcode.ErrNotFound, env.Code)

	// bob has nothing indexed, so analysis short circuits without generation.
	var analyze crag.AnalyzeResult
	decode(t, s.postJSON("/copilot/analyze", bob, map[string]interface{}{"query": "what skills do I have"}), &analyze)
	require.Equal(t, []string{"Could not retrieve enough context. Upload resume and jobs first."}, analyze.ImprovementSuggestions)
	require.Zero(t, s.completer.calls["analyze"])
	require.Empty(t, s.analyses.items)
}

func TestResumeUploadAndDownload(t *testing.T) {
	s := setupServer(t)
	token := s.register("jane@example.com")

	upload := func(name string, content []byte) envelope {
		body := &bytes.Buffer{}
		w := multipart.NewWriter(body)
		part, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, w.WriteField("title", "Uploaded"))
		require.NoError(t, w.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/upload", body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		return s.do(req, token)
	}

	var resume model.Resume
	decode(t, upload("cv.md", []byte("# Jane\n\n- Go\n- Postgres\n")), &resume)
	require.Equal(t, "Uploaded", resume.Title)
	require.Equal(t, "Jane\nGo\nPostgres", resume.Content)

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/"+resume.FileKey, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	s.engine.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "# Jane\n\n- Go\n- Postgres\n", resp.Body.String())

	env := upload("cv.rtf", []byte("{\\rtf1 Jane}"))
	require.Equal(t, errcode.ErrInvalidFile, env.Code)
	require.Contains(t, env.Msg, ".pdf")

	env = upload("cv.pdf", []byte("%PDF-1.4 truncated"))
	require.Equal(t, errcode.ErrInvalid, env.Code)

	env = upload("big.txt", bytes.Repeat([]byte("a"), 2048))
	require.Equal(t, errcode.ErrFileTooLarge, env.Code)
}

func TestApplicationCRUD(t *testing.T) {
	s := setupServer(t)
	jane := s.register("jane@example.com")
	bob := s.register("bob@example.com")

	var app model.Application
	decode(t, s.postJSON("/applications", jane, map[string]interface{}{
		"company":      " Acme ",
		"role":         "SRE",
		"applied_date": "2026-09-01",
		"match_score":  72,
		"job_link":     "https://acme.example/jobs/1",
	}), &app)
	require.Equal(t, "Acme", app.Company)
	require.Equal(t, model.ApplicationApplied, app.Status)
	require.Equal(t, 72, app.MatchScore)

	env := s.postJSON("/applications", jane, map[string]interface{}{
		"company": "Acme", "role": "SRE", "applied_date": "01/09/2026",
	})
	require.Equal(t, errcode.ErrInvalid, env.Code)
	require.Contains(t, env.Msg, "applied_date")

	env = s.postJSON("/applications", jane, map[string]interface{}{
		"company": "Acme", "role": "SRE", "applied_date": "2026-09-01", "status": "GHOSTED",
	})
	require.Equal(t, errcode.ErrInvalid, env.Code)

	env = s.postJSON("/applications", jane, map[string]interface{}{
		"company": "Acme", "role": "SRE", "applied_date": "2026-09-01", "match_score": 101,
	})
	require.Equal(t, errcode.ErrInvalid, env.Code)

	var updated model.Application
	decode(t, s.send(http.MethodPatch, "/applications/"+app.ID, jane, map[string]interface{}{
		"status": "interview",
		"notes":  "phone screen friday",
	}), &updated)
	require.Equal(t, model.ApplicationInterview, updated.Status)
	require.Equal(t, "phone screen friday", updated.Notes)
	require.Equal(t, "SRE", updated.Role)
	require.Equal(t, 72, updated.MatchScore)

	env = s.send(http.MethodPatch, "/applications/"+app.ID, jane, map[string]interface{}{"role": "  "})
	require.Equal(t, errcode.ErrInvalid, env.Code)

	env = s.send(http.MethodPatch, "/applications/"+app.ID, bob, map[string]interface{}{"status": "OFFER"})
	require.Equal(t, errcode.ErrNotFound, env.Code)
	env = s.get("/applications/"+app.ID, bob)
	require.Equal(t, errcode.ErrNotFound, env.Code)

	var list struct {
		Items []model.Application `json:"items"`
		Total int                 `json:"total"`
	}
	decode(t, s.get("/applications?status=INTERVIEW", jane), &list)
	require.Equal(t, 1, list.Total)
	decode(t, s.get("/applications?status=OFFER", jane), &list)
	require.Equal(t, 0, list.Total)
	decode(t, s.get("/applications", bob), &list)
	require.Equal(t, 0, list.Total)
	env = s.get("/applications?status=UNKNOWN", jane)
	require.Equal(t, errcode.ErrInvalid, env.Code)

	env = s.send(http.MethodDelete, "/applications/"+app.ID, bob, nil)
	require.Equal(t, errcode.ErrNotFound, env.Code)
	env = s.send(http.MethodDelete, "/applications/"+app.ID, jane, nil)
	require.Equal(t, 0, env.Code)
	env = s.get("/applications/"+app.ID, jane)
	require.Equal(t, errcode.ErrNotFound, env.Code)
}
