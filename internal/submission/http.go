package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abduss/stopsurvey/internal/auth"
	"github.com/abduss/stopsurvey/internal/ledger"
	"github.com/abduss/stopsurvey/internal/media"
	"github.com/abduss/stopsurvey/internal/objectstore"
	"github.com/abduss/stopsurvey/internal/survey"
)

const (
	mediaField  = "media"
	resumeField = "resume"
)

// RegisterRoutes mounts survey listing, submission and ledger read-back under the group.
// Submissions require an authenticated staff member.
func RegisterRoutes(group *gin.RouterGroup, o *Orchestrator, maxUploadBytes int64) {
	handler := &httpHandler{orchestrator: o, maxUploadBytes: maxUploadBytes}
	group.GET("/surveys", handler.listVariants)
	group.POST("/surveys/:variant/submissions", handler.submit)
	group.GET("/surveys/:variant/ledgers/:key/rows", handler.rows)
}

type httpHandler struct {
	orchestrator   *Orchestrator
	maxUploadBytes int64
}

type fieldResponse struct {
	Name     string   `json:"name"`
	Column   string   `json:"column"`
	Optional bool     `json:"optional"`
	Options  []string `json:"options,omitempty"`
	MinWords int      `json:"min_words,omitempty"`
}

type variantResponse struct {
	Name     string          `json:"name"`
	Title    string          `json:"title"`
	Header   []string        `json:"header"`
	Fields   []fieldResponse `json:"fields"`
	MediaMin int             `json:"media_min"`
	MediaMax int             `json:"media_max"`
}

type failureResponse struct {
	Error        string                    `json:"error"`
	Stage        State                     `json:"stage"`
	SubmissionID string                    `json:"submission_id,omitempty"`
	References   []MediaRef                `json:"references,omitempty"`
	Resume       *Resume                   `json:"resume,omitempty"`
	Violations   []*survey.ValidationError `json:"violations,omitempty"`
}

func (h *httpHandler) listVariants(c *gin.Context) {
	variants := survey.All()
	out := make([]variantResponse, 0, len(variants))
	for _, v := range variants {
		fields := make([]fieldResponse, 0, len(v.Fields))
		for _, f := range v.Fields {
			fields = append(fields, fieldResponse{
				Name:     f.Name,
				Column:   f.Column,
				Optional: f.Optional,
				Options:  f.Options,
				MinWords: f.MinWords,
			})
		}
		out = append(out, variantResponse{
			Name:     v.Name,
			Title:    v.Title,
			Header:   v.Header(),
			Fields:   fields,
			MediaMin: v.Media.Min,
			MediaMax: v.Media.Max,
		})
	}
	c.JSON(http.StatusOK, gin.H{"variants": out})
}

func (h *httpHandler) submit(c *gin.Context) {
	staff, ok := auth.CurrentStaff(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "submission too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form is required"})
		return
	}

	rec := survey.Record{Variant: c.Param("variant"), Answers: survey.Answers{}}
	for name, values := range form.Value {
		if name == resumeField {
			continue
		}
		for _, v := range values {
			rec.Answers.Add(name, v)
		}
	}
	// The authenticated identity wins over any submitted staff_id.
	rec.Answers.Set("staff_id", staff.ID)

	rec.Media, err = readMedia(form.File[mediaField])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var resume *Resume
	if raw := form.Value[resumeField]; len(raw) > 0 && raw[0] != "" {
		resume = &Resume{}
		if err := json.Unmarshal([]byte(raw[0]), resume); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid resume payload"})
			return
		}
	}

	result, err := h.orchestrator.Submit(c.Request.Context(), rec, resume)
	if err != nil {
		h.writeFailure(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func readMedia(files []*multipart.FileHeader) ([]survey.MediaItem, error) {
	items := make([]survey.MediaItem, 0, len(files))
	for i, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			return nil, fmt.Errorf("read media %d: %w", i+1, err)
		}
		items = append(items, survey.MediaItem{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return items, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *httpHandler) writeFailure(c *gin.Context, err error) {
	f, ok := AsFailure(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record submission"})
		return
	}

	body := failureResponse{
		Error:        f.Err.Error(),
		Stage:        f.Stage,
		SubmissionID: f.SubmissionID,
		References:   f.References,
	}
	if f.Stage != StateValidating {
		resume := f.Resume()
		body.Resume = &resume
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, survey.ErrUnknownVariant):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidResume):
		status = http.StatusBadRequest
	case len(survey.Violations(err)) > 0:
		status = http.StatusUnprocessableEntity
		body.Violations = survey.Violations(err)
		body.Error = survey.FirstViolation(err).Error()
	case errors.Is(err, media.ErrUnreadableImage), errors.Is(err, objectstore.ErrRejected):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrSchemaMismatch):
		status = http.StatusConflict
	case errors.Is(err, objectstore.ErrUnavailable),
		errors.Is(err, objectstore.ErrConflict),
		errors.Is(err, ledger.ErrLedgerUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, body)
}

func (h *httpHandler) rows(c *gin.Context) {
	table, rows, err := h.orchestrator.Rows(c.Request.Context(), c.Param("variant"), c.Param("key"))
	if err != nil {
		switch {
		case errors.Is(err, survey.ErrUnknownVariant):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown survey variant"})
		case errors.Is(err, ledger.ErrSchemaMismatch):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, ledger.ErrLedgerUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "ledger unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read ledger"})
		}
		return
	}
	if rows == nil {
		rows = [][]string{}
	}
	c.JSON(http.StatusOK, gin.H{"ledger": table.Name, "header": table.Header, "rows": rows})
}
