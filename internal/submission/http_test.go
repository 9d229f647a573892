package submission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abduss/stopsurvey/internal/auth"
	"github.com/abduss/stopsurvey/internal/objectstore"
)

type staticValidator struct{}

func (staticValidator) ValidateAccessToken(token string) (auth.StaffClaims, error) {
	if token != "good-token" {
		return auth.StaffClaims{}, auth.ErrUnauthorized
	}
	return auth.StaffClaims{StaffID: "S100", Name: "Asha"}, nil
}

func newTestRouter(f fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/v1", auth.AuthMiddleware(staticValidator{}))
	RegisterRoutes(api, f.orchestrator, 8<<20)
	return r
}

func multipartSubmission(t *testing.T, fields map[string][]string, photos int, jpegData []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, w.WriteField(name, v))
		}
	}
	for i := 0; i < photos; i++ {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename="p%d.jpg"`, i+1))
		h.Set("Content-Type", "image/jpeg")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(jpegData)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func busStopFields() map[string][]string {
	return map[string][]string{
		"staff_id":   {"S999"},
		"depot":      {"Depot 12"},
		"route":      {"500D"},
		"stop":       {"Silk Board"},
		"condition":  {"Poor"},
		"activity":   {"Routine inspection"},
		"conditions": {"Garbage", "Poor lighting"},
	}
}

func postSubmission(r *gin.Engine, variant string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/surveys/"+variant+"/submissions", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer good-token")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestSubmitHandlerRecordsRow(t *testing.T) {
	f := newFixture(t, nil, nil, 1)
	r := newTestRouter(f)

	body, ct := multipartSubmission(t, busStopFields(), 2, testJPEG(t))
	rr := postSubmission(r, "bus_stop", body, ct)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var result Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, testSubmissionID, result.SubmissionID)
	assert.Equal(t, "Depot 12", result.LedgerKey)
	assert.Len(t, result.References, 2)
	// staff_id comes from the token, not the form.
	assert.Equal(t, "S100", result.Row[1])

	req := httptest.NewRequest(http.MethodGet, "/v1/surveys/bus_stop/ledgers/Depot%2012/rows", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rows struct {
		Header []string   `json:"header"`
		Rows   [][]string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, "Timestamp", rows.Header[0])
	assert.Equal(t, result.Row, rows.Rows[0])
}

func TestSubmitHandlerValidationFailure(t *testing.T) {
	f := newFixture(t, nil, nil, 1)
	r := newTestRouter(f)

	body, ct := multipartSubmission(t, busStopFields(), 0, nil)
	rr := postSubmission(r, "bus_stop", body, ct)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())

	var resp failureResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Violations)
	assert.Equal(t, "media", resp.Violations[0].Field)
	assert.Nil(t, resp.Resume)
	assert.Zero(t, f.store.calls)
}

func TestSubmitHandlerUploadFailureCarriesResume(t *testing.T) {
	store := &recordingStore{failOn: map[int]error{2: fmt.Errorf("%w: minio 503", objectstore.ErrUnavailable)}}
	f := newFixture(t, store, nil, 1)
	r := newTestRouter(f)

	body, ct := multipartSubmission(t, busStopFields(), 3, testJPEG(t))
	rr := postSubmission(r, "bus_stop", body, ct)
	require.Equal(t, http.StatusBadGateway, rr.Code, rr.Body.String())

	var resp failureResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Resume)
	require.Len(t, resp.Resume.References, 1)
	assert.Equal(t, 1, resp.Resume.References[0].Index)
	assert.Equal(t, testSubmissionID, resp.Resume.SubmissionID)

	// Retry with the resume payload; only items 2 and 3 are uploaded again.
	store.failOn = nil
	payload, err := json.Marshal(resp.Resume)
	require.NoError(t, err)
	fields := busStopFields()
	fields["resume"] = []string{string(payload)}
	body, ct = multipartSubmission(t, fields, 3, testJPEG(t))
	rr = postSubmission(r, "bus_stop", body, ct)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, 4, store.calls)
}

func TestSubmitHandlerRejectsUnknownVariantAndMissingToken(t *testing.T) {
	f := newFixture(t, nil, nil, 1)
	r := newTestRouter(f)

	body, ct := multipartSubmission(t, busStopFields(), 1, testJPEG(t))
	rr := postSubmission(r, "parking", body, ct)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	body, ct = multipartSubmission(t, busStopFields(), 1, testJPEG(t))
	req := httptest.NewRequest(http.MethodPost, "/v1/surveys/bus_stop/submissions", body)
	req.Header.Set("Content-Type", ct)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListVariants(t *testing.T) {
	f := newFixture(t, nil, nil, 1)
	r := newTestRouter(f)

	req := httptest.NewRequest(http.MethodGet, "/v1/surveys", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Variants []variantResponse `json:"variants"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Variants, 3)
	assert.Equal(t, "hub_profile", resp.Variants[2].Name)
	assert.Equal(t, 3, resp.Variants[2].MediaMin)
	assert.Equal(t, 3, resp.Variants[2].MediaMax)
}
