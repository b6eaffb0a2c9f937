package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/coursewell/internal/authoring"
	"github.com/abhisek/coursewell/internal/compiler"
	"github.com/abhisek/coursewell/internal/dialogue"
	"github.com/abhisek/coursewell/internal/grading"
	"github.com/abhisek/coursewell/internal/llm"
	"github.com/abhisek/coursewell/internal/media"
	"github.com/abhisek/coursewell/internal/progression"
	"github.com/abhisek/coursewell/internal/retrieval"
	"github.com/abhisek/coursewell/internal/state"
	"github.com/abhisek/coursewell/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type harness struct {
	srv *httptest.Server
	db  *store.Store

	mu       sync.Mutex
	compiled string // reply for the next compile call
}

func (h *harness) setCompiled(steps string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.compiled = steps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{db: db}
	provider := llm.NewMockProvider()
	provider.Func = func(ctx context.Context, req llm.Request) llm.MockResponse {
		if llm.PurposeFrom(ctx) == llm.PurposeCompile {
			h.mu.Lock()
			defer h.mu.Unlock()
			return llm.TextResponse(h.compiled)
		}
		return llm.TextResponse(llm.PurposeFrom(ctx) + "|" + req.Messages[0].Content)
	}
	embedder := llm.NewMockEmbedder()
	index := retrieval.NewIndex(embedder)

	files, err := media.NewStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	router := dialogue.New(dialogue.Deps{
		Courses:     db.CourseRepo(),
		Lessons:     db.LessonRepo(),
		Enrollments: db.EnrollmentRepo(),
		Durable:     state.NewDurable(db.ProgressRepo()),
		Ephemeral:   state.NewMemory(),
		Machine:     progression.New(provider, grading.New(provider), progression.DefaultConfig()),
		Index:       index,
		Answerer:    retrieval.NewAnswerer(provider, embedder, retrieval.DefaultConfig()),
	})
	svc := authoring.New(db, compiler.New(provider, compiler.DefaultConfig()), index, nil)

	cfg := Config{JWTSecret: testSecret, TokenTTL: time.Hour, MaxUploadSize: 1 << 20}
	h.srv = httptest.NewServer(New(cfg, router, svc, files, nil).Handler())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) user(t *testing.T, name string) string {
	t.Helper()
	u, err := h.db.UserRepo().CreateUser(context.Background(), name)
	require.NoError(t, err)
	tok, err := IssueToken(testSecret, u.ID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, token, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rdr)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	return h.send(t, req)
}

func (h *harness) send(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

type file struct {
	name, contentType string
	data              []byte
}

func (h *harness) chapterForm(t *testing.T, token, method, path, title, script string, files ...file) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", title))
	require.NoError(t, mw.WriteField("script", script))
	for _, f := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename=%q`, f.name))
		hdr.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.send(t, req)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, _ = h.do(t, "", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIRequiresToken(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, "", http.MethodPost, "/api/turn", map[string]string{"lesson_id": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	bad, err := IssueToken("another-secret-that-is-long", 1, time.Hour)
	require.NoError(t, err)
	resp, _ = h.do(t, bad, http.MethodPost, "/api/turn", map[string]string{"lesson_id": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestParseToken(t *testing.T) {
	tok, err := IssueToken(testSecret, 42, time.Hour)
	require.NoError(t, err)
	c, err := ParseToken(testSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, 42, c.UserID)
	assert.NotEmpty(t, c.SessionID)

	expired, err := IssueToken(testSecret, 42, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(testSecret, expired)
	assert.Error(t, err)

	_, err = ParseToken(testSecret, "not.a.token")
	assert.Error(t, err)
}

func TestAuthoringAndLearningFlow(t *testing.T) {
	h := newHarness(t)
	author := h.user(t, "author")
	learner := h.user(t, "learner")
	stranger := h.user(t, "stranger")

	resp, course := h.do(t, author, http.MethodPost, "/api/courses", map[string]string{"title": "Botany"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	courseID := course["id"].(string)

	// Unparsable compiler output: 422 with the author message, nothing stored.
	h.setCompiled("I could not do it")
	resp, body := h.chapterForm(t, author, http.MethodPost, "/api/courses/"+courseID+"/chapters", "Leaves", "[CONTENT] Leaves.")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, compiler.AuthorMessage, body["error"])

	resp, _ = h.do(t, author, http.MethodPost, "/api/courses/"+courseID+"/publish", map[string]bool{"published": true})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "publishing needs a chapter")

	h.setCompiled(`{"steps":[
		{"type":"MEDIA","alt_text":"a leaf","media_type":"image"},
		{"type":"CONTENT","text":"Para A\n\nPara B"},
		{"type":"QUESTION_MCQ","question":"Which?","options":{"A":"x","B":"y"},"correct_answer":"A"}
	]}`)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	resp, chapter := h.chapterForm(t, author, http.MethodPost, "/api/courses/"+courseID+"/chapters", "Leaves", "[IMAGE: a leaf] ...",
		file{name: "leaf.png", contentType: "image/png", data: png})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	lessonID := chapter["id"].(string)
	steps := chapter["steps"].([]any)
	imgURL := steps[0].(map[string]any)["media_url"].(string)
	assert.True(t, strings.HasPrefix(imgURL, "/uploads/"))

	resp, _ = h.do(t, "", http.MethodGet, imgURL, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "uploaded media is served")

	// Drafts are invisible to learners.
	resp, _ = h.do(t, learner, http.MethodPost, "/api/courses/"+courseID+"/enroll", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.do(t, author, http.MethodPost, "/api/courses/"+courseID+"/publish", map[string]bool{"published": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(t, learner, http.MethodPost, "/api/courses/"+courseID+"/enroll", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = h.do(t, author, http.MethodPost, "/api/courses/"+courseID+"/enroll", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, view := h.do(t, learner, http.MethodPost, "/api/lessons/"+lessonID+"/enter", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), view["steps"])
	assert.Equal(t, false, view["preview"])

	turn := func(input string) map[string]any {
		resp, body := h.do(t, learner, http.MethodPost, "/api/turn", map[string]string{
			"lesson_id": lessonID, "user_input": input, "request_kind": "LESSON_FLOW",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return body
	}

	r := turn("")
	assert.Equal(t, imgURL, r["media_url"])
	assert.Equal(t, "image", r["media_type"])
	r = turn("")
	assert.Contains(t, r["tutor_text"], "Para A")

	resp, qna := h.do(t, learner, http.MethodPost, "/api/turn", map[string]string{
		"lesson_id": lessonID, "user_input": "What is Para B?", "request_kind": "QNA",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, qna["is_qna_response"])
	assert.Equal(t, float64(1), qna["next_step"])

	resp, back := h.do(t, learner, http.MethodPost, "/api/step-back", map[string]any{
		"lesson_id": lessonID,
		"history":   []map[string]string{{"role": "tutor", "text": "look"}, {"role": "tutor", "text": "Para A"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, back["history"], 1)
	assert.Equal(t, map[string]any{"step_index": float64(1), "chunk_index": float64(0)}, back["cursor"])

	resp, _ = h.do(t, learner, http.MethodPost, "/api/reset", map[string]string{"lesson_id": lessonID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	r = turn("")
	assert.Equal(t, imgURL, r["media_url"], "reset starts over")

	resp, _ = h.do(t, stranger, http.MethodPost, "/api/turn", map[string]string{"lesson_id": lessonID})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = h.do(t, learner, http.MethodPost, "/api/turn", map[string]string{"lesson_id": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.do(t, learner, http.MethodPut, "/api/chapters/"+lessonID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = h.do(t, stranger, http.MethodDelete, "/api/chapters/"+lessonID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEditChapterKeepsMedia(t *testing.T) {
	h := newHarness(t)
	author := h.user(t, "author")

	_, course := h.do(t, author, http.MethodPost, "/api/courses", map[string]string{"title": "Botany"})
	courseID := course["id"].(string)

	h.setCompiled(`{"steps":[{"type":"MEDIA","alt_text":"a leaf","media_type":"image"}]}`)
	_, chapter := h.chapterForm(t, author, http.MethodPost, "/api/courses/"+courseID+"/chapters", "Leaves", "[IMAGE: a leaf]",
		file{name: "leaf.png", contentType: "image/png", data: []byte("\x89PNG\r\n\x1a\n")})
	lessonID := chapter["id"].(string)
	url := chapter["steps"].([]any)[0].(map[string]any)["media_url"]

	h.setCompiled(`{"steps":[{"type":"CONTENT","text":"Green."},{"type":"MEDIA","alt_text":"a leaf","media_type":"image"}]}`)
	resp, edited := h.chapterForm(t, author, http.MethodPut, "/api/chapters/"+lessonID, "Leaves", "[CONTENT] Green. [IMAGE: a leaf]")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, url, edited["steps"].([]any)[1].(map[string]any)["media_url"])

	resp, _ = h.do(t, author, http.MethodPost, "/api/courses/"+courseID+"/reorder", map[string][]string{"order": {lessonID}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(t, author, http.MethodDelete, "/api/chapters/"+lessonID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCompletionUnlocksCertificateAndReview(t *testing.T) {
	h := newHarness(t)
	author := h.user(t, "author")
	learner := h.user(t, "learner")
	stranger := h.user(t, "stranger")

	_, course := h.do(t, author, http.MethodPost, "/api/courses", map[string]string{"title": "Botany"})
	courseID := course["id"].(string)

	h.setCompiled(`{"steps":[{"type":"CONTENT","text":"Leaves are green."}]}`)
	_, first := h.chapterForm(t, author, http.MethodPost, "/api/courses/"+courseID+"/chapters", "Leaves", "[CONTENT] Leaves are green.")
	_, second := h.chapterForm(t, author, http.MethodPost, "/api/courses/"+courseID+"/chapters", "Roots", "[CONTENT] Roots drink.")
	resp, _ := h.do(t, author, http.MethodPost, "/api/courses/"+courseID+"/publish", map[string]bool{"published": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(t, learner, http.MethodPost, "/api/courses/"+courseID+"/enroll", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	certPath := "/api/courses/" + courseID + "/certificate"
	reviewPath := "/api/courses/" + courseID + "/reviews"

	resp, _ = h.do(t, learner, http.MethodGet, certPath, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "certificate before completion")
	resp, _ = h.do(t, learner, http.MethodPost, reviewPath, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "review before completion")

	finish := func(lessonID string) map[string]any {
		var body map[string]any
		for range 2 {
			var resp *http.Response
			resp, body = h.do(t, learner, http.MethodPost, "/api/turn", map[string]string{"lesson_id": lessonID})
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}
		require.Equal(t, true, body["is_lesson_end"])
		return body
	}

	end := finish(first["id"].(string))
	assert.Equal(t, second["id"], end["next_lesson_id"])
	assert.Nil(t, end["certificate_url"])

	// The link handed to the learner opens the next chapter.
	resp, view := h.do(t, learner, http.MethodPost, end["next_chapter_url"].(string), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), view["chapter_number"])

	end = finish(second["id"].(string))
	assert.Nil(t, end["next_chapter_url"])
	assert.Equal(t, certPath, end["certificate_url"])

	resp, cert := h.do(t, learner, http.MethodGet, end["certificate_url"].(string), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Botany", cert["course_title"])
	assert.Equal(t, "learner", cert["learner"])
	assert.NotEmpty(t, cert["completed_at"])
	assert.Nil(t, cert["review"])

	resp, _ = h.do(t, stranger, http.MethodGet, certPath, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.do(t, learner, http.MethodPost, reviewPath, map[string]any{"rating": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, rv := h.do(t, learner, http.MethodPost, reviewPath, map[string]any{"rating": 4, "comment": "  Clear and short.  "})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Clear and short.", rv["comment"])
	resp, _ = h.do(t, learner, http.MethodPost, reviewPath, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "one review per learner")

	resp, list := h.do(t, stranger, http.MethodGet, reviewPath, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(4), list["average_rating"])
	require.Len(t, list["reviews"], 1)
	assert.Equal(t, "learner", list["reviews"].([]any)[0].(map[string]any)["username"])

	_, cert = h.do(t, learner, http.MethodGet, certPath, nil)
	assert.Equal(t, float64(4), cert["review"].(map[string]any)["rating"])
}

func TestChapterUploadRejectsOtherFileFields(t *testing.T) {
	h := newHarness(t)
	author := h.user(t, "author")
	_, course := h.do(t, author, http.MethodPost, "/api/courses", map[string]string{"title": "Botany"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Leaves"))
	require.NoError(t, mw.WriteField("script", "[IMAGE: a leaf]"))
	part, err := mw.CreateFormFile("attachment", "leaf.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/api/courses/"+course["id"].(string)+"/chapters", &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+author)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, body := h.send(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], `"attachment"`)
}

func TestFilePartsKeepsFormOrder(t *testing.T) {
	a := &multipart.FileHeader{Filename: "a.png"}
	b := &multipart.FileHeader{Filename: "b.mp3"}
	c := &multipart.FileHeader{Filename: "c.png"}

	got, err := fileParts(&multipart.Form{File: map[string][]*multipart.FileHeader{"media": {a, b, c}}})
	require.NoError(t, err)
	assert.Equal(t, []*multipart.FileHeader{a, b, c}, got)

	_, err = fileParts(&multipart.Form{File: map[string][]*multipart.FileHeader{"media": {a}, "extra": {b}}})
	assert.ErrorIs(t, err, errBadRequest)

	got, err = fileParts(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{dialogue.ErrUnauthorized, http.StatusForbidden},
		{fmt.Errorf("wrap: %w", authoring.ErrForbidden), http.StatusForbidden},
		{authoring.ErrNotCompleted, http.StatusForbidden},
		{dialogue.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("course: %w", store.ErrNotFound), http.StatusNotFound},
		{&compiler.CompileError{Reason: "bad"}, http.StatusUnprocessableEntity},
		{authoring.ErrNoChapters, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: x", errBadRequest), http.StatusBadRequest},
		{media.ErrUnsupported, http.StatusBadRequest},
		{store.ErrConflict, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{JWTSecret: "short"}.Validate())
	assert.NoError(t, Config{JWTSecret: testSecret}.Validate())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("COURSEWELL_ADDR", ":9999")
	t.Setenv("COURSEWELL_TOKEN_TTL", "2h")
	t.Setenv("COURSEWELL_MAX_UPLOAD_MB", "5")
	t.Setenv("COURSEWELL_REDIS_ADDR", "localhost:6379")
	t.Setenv("COURSEWELL_REDIS_DB", "2")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadSize)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)

	t.Setenv("COURSEWELL_TOKEN_TTL", "soon")
	_, err = ConfigFromEnv()
	assert.Error(t, err)
}
