package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/suma/internal/ai"
	"github.com/xxxsen/suma/internal/filestore"
	"github.com/xxxsen/suma/internal/model"
	"github.com/xxxsen/suma/internal/pkg/errcode"
	appErr "github.com/xxxsen/suma/internal/pkg/errors"
	"github.com/xxxsen/suma/internal/pkg/jwt"
	"github.com/xxxsen/suma/internal/rag"
	"github.com/xxxsen/suma/internal/service"
)

var testSecret = []byte("handler-secret")

type fakeAuth struct {
	refreshed string
}

func (f *fakeAuth) Register(_ context.Context, email, _ string) (*model.User, *service.TokenPair, error) {
	if email == "taken@example.com" {
		return nil, nil, fmt.Errorf("email already registered: %w", appErr.ErrConflict)
	}
	return &model.User{ID: "u1", Email: email}, &service.TokenPair{AccessToken: "acc", TokenType: "bearer", ExpiresIn: 900, RefreshToken: "ref"}, nil
}

func (f *fakeAuth) Login(_ context.Context, _, pw string) (*model.User, *service.TokenPair, error) {
	if pw != "secret" {
		return nil, nil, fmt.Errorf("invalid credentials: %w", appErr.ErrUnauthorized)
	}
	return &model.User{ID: "u1"}, &service.TokenPair{AccessToken: "acc", TokenType: "bearer", ExpiresIn: 900, RefreshToken: "ref"}, nil
}

func (f *fakeAuth) Refresh(_ context.Context, token string) (*service.TokenPair, error) {
	f.refreshed = token
	if token == "" {
		return nil, fmt.Errorf("missing refresh token: %w", appErr.ErrUnauthorized)
	}
	return &service.TokenPair{AccessToken: "acc2", TokenType: "bearer", ExpiresIn: 900, RefreshToken: "ref2"}, nil
}

type fakeAnalyses struct {
	last    service.AnalyzeRequest
	records map[string]*model.AnalysisRecord
	err     error
}

func (f *fakeAnalyses) Analyze(_ context.Context, req service.AnalyzeRequest) (*model.AnalysisRecord, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	id := req.ID
	if id == "" {
		id = "generated"
	}
	rec := &model.AnalysisRecord{ID: id, SourceName: req.Filename, Tags: []string{"Easy"}, FileKey: "analyses/" + id + ".pdf"}
	f.records[id] = rec
	return rec, nil
}

func (f *fakeAnalyses) Get(_ context.Context, id string) (*model.AnalysisRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, fmt.Errorf("analysis %s: %w", id, appErr.ErrNotFound)
	}
	return rec, nil
}

func (f *fakeAnalyses) List(_ context.Context) ([]*model.AnalysisRecord, error) {
	out := make([]*model.AnalysisRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, rec)
	}
	return out, nil
}

type memFiles map[string][]byte

func (m memFiles) Save(_ context.Context, key string, r filestore.ReadSeekCloser, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m[key] = data
	return nil
}

func (m memFiles) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m[key]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m memFiles) Delete(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

type fakeRAG struct {
	built     bool
	force     bool
	searchK   int
	quizText  string
	searchErr error
}

func (f *fakeRAG) Build(_ context.Context, force bool) (*rag.BuildResult, error) {
	f.force = force
	f.built = true
	return &rag.BuildResult{CorpusID: "textbook", Rebuilt: true, Documents: 1, Chunks: 3}, nil
}

func (f *fakeRAG) Query(_ context.Context, question string) (*rag.QueryResult, error) {
	return &rag.QueryResult{Answer: "answer to " + question}, nil
}

func (f *fakeRAG) Search(_ context.Context, _ string, k int) ([]model.Chunk, error) {
	f.searchK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return []model.Chunk{{Content: "graphs", SourceID: "book.pdf", Page: 3}}, nil
}

func (f *fakeRAG) AnalyzeQuiz(_ context.Context, quizText string) (*rag.QuizAnalysis, error) {
	f.quizText = quizText
	return &rag.QuizAnalysis{TopicsFound: true, TotalMatches: 2}, nil
}

type fakeOverlap struct {
	quizzes []string
	err     error
}

func (f *fakeOverlap) CheckHighOccurrence(_ context.Context, _ string, quizTexts []string) (*model.OverlapReport, error) {
	f.quizzes = quizTexts
	if f.err != nil {
		return nil, f.err
	}
	return &model.OverlapReport{MatchesFound: 4, IsHighOccurrence: true}, nil
}

type testEnv struct {
	engine   *gin.Engine
	auth     *fakeAuth
	analyses *fakeAnalyses
	files    memFiles
	rag      *fakeRAG
	overlap  *fakeOverlap
	token    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{
		auth:     &fakeAuth{},
		analyses: &fakeAnalyses{records: map[string]*model.AnalysisRecord{}},
		files:    memFiles{},
		rag:      &fakeRAG{},
		overlap:  &fakeOverlap{},
	}
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), RouterDeps{
		Auth:      NewAuthHandler(env.auth, CookieConfig{MaxAge: 3600}),
		Analyses:  NewAnalysisHandler(env.analyses, env.files, 1024),
		RAG:       NewRAGHandler(env.rag, env.overlap, 1024),
		JWTSecret: testSecret,
	})
	env.engine = r
	token, err := jwt.GenerateAccessToken("u1", testSecret, time.Minute)
	require.NoError(t, err)
	env.token = token
	return env
}

func (e *testEnv) do(req *http.Request, authed bool) *httptest.ResponseRecorder {
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileName string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRegisterSetsRefreshCookie(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(jsonRequest(http.MethodPost, "/api/v1/auth/register", credentialsRequest{Email: "a@example.com", Password: "pw"}), false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"acc"`)
	assert.NotContains(t, w.Body.String(), "refresh_token")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, RefreshCookieName, cookies[0].Name)
	assert.Equal(t, "ref", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, "/", cookies[0].Path)
}

func TestRegisterConflictAndLoginFailure(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(jsonRequest(http.MethodPost, "/api/v1/auth/register", credentialsRequest{Email: "taken@example.com", Password: "pw"}), false)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(jsonRequest(http.MethodPost, "/api/v1/auth/login", credentialsRequest{Email: "a@example.com", Password: "bad"}), false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshReadsCookie(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "ref"})
	w := env.do(req, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ref", env.auth.refreshed)
	assert.Contains(t, w.Body.String(), "acc2")

	w = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil), false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil), false)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/v1/me", "/api/v1/analyses", "/api/v1/analysis/x"} {
		w := env.do(httptest.NewRequest(http.MethodGet, path, nil), false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u1"`)
}

func TestAnalyzeUpload(t *testing.T) {
	env := newTestEnv(t)
	req := multipartRequest(t, "/api/v1/analyze", map[string]string{"task_id": "t1", "force_refresh": "true"}, "hw.pdf", []byte("%PDF-1.4 body"))
	w := env.do(req, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", env.analyses.last.ID)
	assert.True(t, env.analyses.last.Force)
	assert.Equal(t, "hw.pdf", env.analyses.last.Filename)
	assert.Equal(t, []byte("%PDF-1.4 body"), env.analyses.last.Data)
	assert.Contains(t, w.Body.String(), `"task_id":"t1"`)
}

func TestAnalyzeUploadErrors(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest(t, "/api/v1/analyze", nil, "", nil), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(multipartRequest(t, "/api/v1/analyze", nil, "big.pdf", bytes.Repeat([]byte("x"), 4096)), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.analyses.err = fmt.Errorf("completion: %w", appErr.ErrUnavailable)
	w = env.do(multipartRequest(t, "/api/v1/analyze", nil, "hw.pdf", []byte("%PDF")), true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	env.analyses.err = fmt.Errorf("completion: %w", appErr.ErrDependency)
	w = env.do(multipartRequest(t, "/api/v1/analyze", nil, "hw.pdf", []byte("%PDF")), true)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	env.analyses.err = service.ErrNotPDF
	w = env.do(multipartRequest(t, "/api/v1/analyze", nil, "hw.txt", []byte("plain")), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.analyses.err = fmt.Errorf("%w: bucket gone", service.ErrArchive)
	w = env.do(multipartRequest(t, "/api/v1/analyze", nil, "hw.pdf", []byte("%PDF")), true)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAnalysisGetListAndFile(t *testing.T) {
	env := newTestEnv(t)
	env.analyses.records["t1"] = &model.AnalysisRecord{ID: "t1", SourceName: "hw.pdf", FileKey: "analyses/t1.pdf"}
	env.files["analyses/t1.pdf"] = []byte("%PDF-data")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/analysis/t1", nil), true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source_name":"hw.pdf"`)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/analysis/missing", nil), true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil), true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"task_id":"t1"`)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/analysis/t1/file", nil), true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-data", w.Body.String())
}

func TestRAGRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(jsonRequest(http.MethodPost, "/api/v1/rag/build-vectorstore", buildRequest{ForceRebuild: true}), true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.rag.force)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = env.do(jsonRequest(http.MethodPost, "/api/v1/rag/query", queryRequest{Question: "what is a graph"}), true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "answer to what is a graph")

	w = env.do(jsonRequest(http.MethodPost, "/api/v1/rag/query", queryRequest{}), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(jsonRequest(http.MethodPost, "/api/v1/rag/search", searchRequest{Query: "graphs", K: 3}), true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, env.rag.searchK)
	assert.Contains(t, w.Body.String(), "book.pdf")

	env.rag.searchErr = rag.ErrIndexUnavailable
	w = env.do(jsonRequest(http.MethodPost, "/api/v1/rag/search", searchRequest{Query: "graphs"}), true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRAGAnalyzeQuizText(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(multipartRequest(t, "/api/v1/rag/analyze-quiz", map[string]string{"text": "quiz on trees"}, "", nil), true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "quiz on trees", env.rag.quizText)

	w = env.do(multipartRequest(t, "/api/v1/rag/analyze-quiz", nil, "", nil), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRAGAnalyzeQuizEnforcesUploadLimit(t *testing.T) {
	env := newTestEnv(t)
	big := strings.Repeat("graph ", 1024)
	w := env.do(multipartRequest(t, "/api/v1/rag/analyze-quiz", map[string]string{"text": big}, "", nil), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.rag.quizText)

	w = env.do(multipartRequest(t, "/api/v1/rag/analyze-quiz", nil, "quiz.pdf", bytes.Repeat([]byte("x"), 4096)), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.rag.quizText)
}

func TestHandleErrorUnavailableCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name string
		err  error
		code int
	}{
		{name: "index", err: rag.ErrIndexUnavailable, code: errcode.ErrIndexUnavailable},
		{name: "no documents", err: fmt.Errorf("build: %w", rag.ErrNoDocuments), code: errcode.ErrCorpusUnavailable},
		{name: "unreadable corpus", err: rag.ErrCorpusUnreadable, code: errcode.ErrCorpusUnavailable},
		{name: "ai", err: ai.ErrUnavailable, code: errcode.ErrAIUnavailable},
		{name: "other", err: fmt.Errorf("checker: %w", appErr.ErrUnavailable), code: errcode.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/rag/build-vectorstore", nil)
			handleError(c, tc.err)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Contains(t, w.Body.String(), strconv.Itoa(tc.code))
		})
	}
}

func TestCheckHighOccurrence(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(jsonRequest(http.MethodPost, "/api/v1/rag/check-high-occurrence", checkRequest{AssignmentText: "a", QuizTexts: []string{"q1"}}), true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"q1"}, env.overlap.quizzes)
	assert.Contains(t, w.Body.String(), `"is_high_occurrence":true`)

	env.overlap.err = fmt.Errorf("embed: %w", appErr.ErrUnavailable)
	w = env.do(jsonRequest(http.MethodPost, "/api/v1/rag/check-high-occurrence", checkRequest{AssignmentText: "a"}), true)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Nil(t, env.overlap.quizzes)
}

func TestFormatUploadLimit(t *testing.T) {
	assert.Equal(t, "0MB", formatUploadLimit(0))
	assert.Equal(t, "1MB", formatUploadLimit(1024))
	assert.Equal(t, "20MB", formatUploadLimit(20*1024*1024))
	assert.True(t, strings.HasSuffix(formatUploadLimit(5*1024*1024+1), "MB"))
}

func TestParseBoolForm(t *testing.T) {
	assert.True(t, parseBoolForm("true"))
	assert.True(t, parseBoolForm(" 1 "))
	assert.False(t, parseBoolForm(""))
	assert.False(t, parseBoolForm("nope"))
}
