package api

import (
	"context"
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-backend/internal/service"
	"rag-backend/internal/tasks"
)

const uploadStatus = "File uploaded successfully. Ready for processing."

type AskRequest struct {
	Query string `json:"query"`
}

type AskResponse struct {
	Answer          string   `json:"answer"`
	SourceDocuments []string `json:"source_documents"`
}

type SearchRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

type SearchResult struct {
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata"`
	SimilarityScore float64        `json:"similarity_score"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

type UploadResponse struct {
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
	Status   string `json:"status"`
	TaskID   string `json:"task_id"`
}

type TaskRequest struct {
	Name string `json:"name"`
}

type TaskSubmitted struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// health godoc
// @Summary Liveness check
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// upload godoc
// @Summary Upload a PDF for ingestion
// @Description Saves the file and enqueues a background ingestion task.
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF document"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} errorResponse
// @Failure 503 {object} errorResponse
// @Router /documents/upload [post]
func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{Detail: "file is too large"})
			return
		}
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	mediaType, _, _ := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if mediaType != "application/pdf" {
		s.fail(c, errNotPDF)
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()

	location, err := s.uploads.Save(c.Request.Context(), fh.Filename, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	taskID, err := s.queue.Submit(c.Request.Context(), tasks.KindProcessDocument, map[string]string{
		service.PayloadLocation: location,
		service.PayloadFilename: fh.Filename,
	})
	if err != nil {
		// Nothing will ever read the file back.
		if derr := s.uploads.Delete(context.WithoutCancel(c.Request.Context()), location); derr != nil {
			s.logger.Warn("remove orphaned upload", "location", location, "error", derr)
		}
		s.fail(c, err)
		return
	}
	s.logger.Info("upload accepted", "filename", fh.Filename, "location", location, "task_id", taskID, "bytes", fh.Size)
	c.JSON(http.StatusOK, UploadResponse{
		Filename: fh.Filename,
		FilePath: location,
		Status:   uploadStatus,
		TaskID:   taskID,
	})
}

// ask godoc
// @Summary Answer a question from the indexed documents
// @Accept json
// @Produce json
// @Param request body AskRequest true "question"
// @Success 200 {object} AskResponse
// @Failure 400 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Failure 504 {object} errorResponse
// @Router /chat/ask [post]
func (s *Server) ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	ans, err := s.rag.Ask(ctx, req.Query)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AskResponse{Answer: ans.Text, SourceDocuments: ans.Sources})
}

// search godoc
// @Summary Similarity search without generation
// @Accept json
// @Produce json
// @Param request body SearchRequest true "query and optional top_k (default 3)"
// @Success 200 {object} SearchResponse
// @Failure 400 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Router /chat/search [post]
func (s *Server) search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	topK := 3
	if req.TopK != nil {
		if *req.TopK < 1 {
			badRequest(c, "top_k must be >= 1")
			return
		}
		topK = *req.TopK
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	docs, err := s.rag.Search(ctx, req.Query, topK)
	if err != nil {
		s.fail(c, err)
		return
	}
	results := make([]SearchResult, len(docs))
	for i, d := range docs {
		results[i] = SearchResult{Content: d.Text, Metadata: d.Metadata, SimilarityScore: d.Score}
	}
	c.JSON(http.StatusOK, SearchResponse{Results: results})
}

// submitTask godoc
// @Summary Submit the echo test task
// @Accept json
// @Produce json
// @Param request body TaskRequest true "name to greet"
// @Success 200 {object} TaskSubmitted
// @Router /tasks [post]
func (s *Server) submitTask(c *gin.Context) {
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	id, err := s.queue.Submit(c.Request.Context(), tasks.KindEcho, map[string]string{"name": req.Name})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, TaskSubmitted{TaskID: id, Status: "Task has been submitted"})
}

// getTask godoc
// @Summary Task state by id
// @Produce json
// @Param id path string true "task id"
// @Success 200 {object} tasks.Task
// @Failure 404 {object} errorResponse
// @Router /tasks/{id} [get]
func (s *Server) getTask(c *gin.Context) {
	t, err := s.queue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
