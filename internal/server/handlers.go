package server

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abhisek/coursewell/internal/authoring"
	"github.com/abhisek/coursewell/internal/dialogue"
	"github.com/abhisek/coursewell/internal/lesson"
	"github.com/abhisek/coursewell/internal/media"
	"github.com/abhisek/coursewell/internal/store"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

type turnRequest struct {
	LessonID    string `json:"lesson_id"`
	UserInput   string `json:"user_input"`
	RequestKind string `json:"request_kind"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.LessonID == "" {
		s.fail(w, r, fmt.Errorf("%w: lesson_id is required", errBadRequest))
		return
	}
	resp, err := s.dialogue.HandleTurn(r.Context(), callerFrom(r.Context()), req.LessonID, dialogue.ParseKind(req.RequestKind), req.UserInput)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type lessonRequest struct {
	LessonID string             `json:"lesson_id"`
	History  []dialogue.Message `json:"history,omitempty"`
}

type ackResponse struct {
	Success bool               `json:"success"`
	Cursor  *lesson.Cursor     `json:"cursor,omitempty"`
	History []dialogue.Message `json:"history,omitempty"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.dialogue.Reset(r.Context(), callerFrom(r.Context()), req.LessonID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Success: true, Cursor: &lesson.Start})
}

func (s *Server) handleStepBack(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, history, err := s.dialogue.StepBack(r.Context(), callerFrom(r.Context()), req.LessonID, req.History)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if history == nil {
		history = []dialogue.Message{}
	}
	writeJSON(w, http.StatusOK, ackResponse{Success: true, Cursor: &c, History: history})
}

func (s *Server) handleEnter(w http.ResponseWriter, r *http.Request) {
	view, err := s.dialogue.EnterChapter(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "lessonID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type courseRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.authoring.CreateCourse(r.Context(), callerFrom(r.Context()).UserID, req.Title)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, courseJSON(c))
}

// readScript parses a multipart chapter submission. Every file part is
// stored in the order it appears in the form.
func (s *Server) readScript(r *http.Request) (authoring.Script, []string, error) {
	if err := r.ParseMultipartForm(s.cfg.MaxUploadSize); err != nil {
		return authoring.Script{}, nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	sc := authoring.Script{
		Title: r.FormValue("title"),
		Text:  r.FormValue("script"),
	}

	parts, err := fileParts(r.MultipartForm)
	if err != nil {
		return sc, nil, err
	}
	var uploads []media.Upload
	for _, fh := range parts {
		f, err := fh.Open()
		if err != nil {
			return sc, nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		defer f.Close()
		uploads = append(uploads, media.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}

	saved, err := s.media.SaveAll(uploads)
	if err != nil {
		return sc, nil, err
	}
	sc.Uploads = saved
	return sc, append(append([]string(nil), saved.Images...), saved.Audio...), nil
}

// fileParts returns the files uploaded under the "media" field in form
// order. Any other file field is rejected.
func fileParts(form *multipart.Form) ([]*multipart.FileHeader, error) {
	if form == nil {
		return nil, nil
	}
	for name := range form.File {
		if name != "media" {
			return nil, fmt.Errorf("%w: unexpected file field %q, upload files as \"media\"", errBadRequest, name)
		}
	}
	return form.File["media"], nil
}

func (s *Server) handleAddChapter(w http.ResponseWriter, r *http.Request) {
	sc, stored, err := s.readScript(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	l, err := s.authoring.AddChapter(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "courseID"), sc)
	if err != nil {
		s.media.Remove(stored...)
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, chapterJSON(l))
}

func (s *Server) handleEditChapter(w http.ResponseWriter, r *http.Request) {
	sc, stored, err := s.readScript(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	l, err := s.authoring.EditChapter(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "lessonID"), sc)
	if err != nil {
		s.media.Remove(stored...)
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chapterJSON(l))
}

func (s *Server) handleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	if err := s.authoring.DeleteChapter(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "lessonID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

type reorderRequest struct {
	Order []string `json:"order"`
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.authoring.ReorderChapters(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "courseID"), req.Order); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

type publishRequest struct {
	Published bool `json:"published"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.authoring.SetPublished(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "courseID"), req.Published); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	e, created, err := s.authoring.Enroll(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "courseID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"enrollment_id":                 e.ID,
		"course_id":                     e.CourseID,
		"last_completed_chapter_number": e.LastCompletedChapterNumber,
		"created":                       created,
	})
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	lessons, err := s.authoring.Chapters(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "courseID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]map[string]any, len(lessons))
	for i := range lessons {
		c := chapterJSON(&lessons[i])
		delete(c, "steps")
		out[i] = c
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	cert, err := s.authoring.Certificate(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "courseID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := map[string]any{
		"course_id":    cert.CourseID,
		"course_title": cert.CourseTitle,
		"learner":      cert.Learner,
		"completed_at": cert.CompletedAt,
		"reviews_url":  "/api/courses/" + cert.CourseID + "/reviews",
	}
	if cert.Review != nil {
		out["review"] = reviewJSON(cert.Review)
	}
	writeJSON(w, http.StatusOK, out)
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	rv, err := s.authoring.SubmitReview(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "courseID"), req.Rating, req.Comment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reviewJSON(rv))
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	list, avg, err := s.authoring.Reviews(r.Context(), callerFrom(r.Context()).UserID, chi.URLParam(r, "courseID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]map[string]any, len(list))
	for i := range list {
		out[i] = reviewJSON(&list[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"average_rating": avg,
		"reviews":        out,
	})
}

func reviewJSON(rv *store.Review) map[string]any {
	return map[string]any{
		"id":         rv.ID,
		"username":   rv.Username,
		"rating":     rv.Rating,
		"comment":    rv.Comment,
		"created_at": rv.CreatedAt,
	}
}

func courseJSON(c *store.Course) map[string]any {
	return map[string]any{
		"id":           c.ID,
		"title":        c.Title,
		"creator_id":   c.CreatorID,
		"is_published": c.IsPublished,
	}
}

func chapterJSON(l *store.Lesson) map[string]any {
	return map[string]any{
		"id":             l.ID,
		"course_id":      l.CourseID,
		"title":          l.Title,
		"chapter_number": l.ChapterNumber,
		"steps":          l.Steps,
	}
}
