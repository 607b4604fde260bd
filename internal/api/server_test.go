package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrevmissing/internal/missing"
	"github.com/gitrevmissing/pkg/models"
)

type fakeRunner struct {
	report *models.Report
	err    error
	got    []missing.Request
}

func (f *fakeRunner) Run(ctx context.Context, req missing.Request) (*models.Report, error) {
	f.got = append(f.got, req)
	return f.report, f.err
}

func newServer(t *testing.T, runner Runner) *Server {
	t.Helper()
	s, err := NewServer(0, runner, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newServer(t, &fakeRunner{})
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestFindMissing(t *testing.T) {
	runner := &fakeRunner{report: &models.Report{
		Missing: []models.CommitRecord{{
			Commit: models.Commit{SHA: "a2", Message: "Add router tests"},
			Link:   "https://github.com/ihomeland/prtest/commit/a2",
		}},
	}}
	s := newServer(t, runner)

	rec := do(t, s, http.MethodPost, "/api/v1/missing",
		`{"compareUrl":"https://github.com/ihomeland/prtest/compare/1.0.0...1.0.2","token":"t","months":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp MissingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Clean)
	require.Len(t, resp.Commits, 1)
	assert.Equal(t, "a2", resp.Commits[0].Commit.SHA)
	assert.Equal(t, "https://github.com/ihomeland/prtest/commit/a2", resp.Commits[0].Link)
	assert.NotContains(t, rec.Body.String(), "suspiciousCommits")

	require.Len(t, runner.got, 1)
	assert.Equal(t, missing.Request{
		CompareURL: "https://github.com/ihomeland/prtest/compare/1.0.0...1.0.2",
		Token:      "t",
		Months:     3,
	}, runner.got[0])
}

func TestFindMissing_Clean(t *testing.T) {
	s := newServer(t, &fakeRunner{report: &models.Report{}})
	rec := do(t, s, http.MethodPost, "/api/v1/missing", `{"compareUrl":"https://github.com/o/r/compare/a...b"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"compareUrl":"https://github.com/o/r/compare/a...b","clean":true,"commits":[]}`, rec.Body.String())
}

func TestFindMissing_BadRequest(t *testing.T) {
	runner := &fakeRunner{}
	s := newServer(t, runner)

	for _, body := range []string{
		`{`,
		`{}`,
		`{"compareUrl":""}`,
		`{"compareUrl":"https://github.com/o/r/compare/a...b","months":-1}`,
		`{"compareUrl":"https://github.com/o/r/compare/a...b","months":1.5}`,
		`{"compareUrl":42}`,
	} {
		rec := do(t, s, http.MethodPost, "/api/v1/missing", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, runner.got)
}

func TestFindMissing_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: no token", models.ErrConfiguration), http.StatusBadRequest},
		{fmt.Errorf("failed to list commits: %w", fmt.Errorf("%w: 404", models.ErrLookup)), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("%w: failed to get commit abc in o/r: %w", models.ErrLookup, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		s := newServer(t, &fakeRunner{err: tt.err})
		rec := do(t, s, http.MethodPost, "/api/v1/missing", `{"compareUrl":"https://github.com/o/r/compare/a...b"}`)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tt.err.Error(), resp.Error)
	}
}

func TestOpenAPI(t *testing.T) {
	doc, err := LoadOpenAPI(context.Background())
	require.NoError(t, err)
	require.NotNil(t, doc.Paths.Value("/api/v1/missing"))

	s := newServer(t, &fakeRunner{})
	rec := do(t, s, http.MethodGet, "/api/v1/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var served map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &served))
	assert.Equal(t, "3.0.3", served["openapi"])
}

func TestValidateBody(t *testing.T) {
	doc, err := LoadOpenAPI(context.Background())
	require.NoError(t, err)

	assert.NoError(t, validateBody(doc, "MissingRequest", []byte(`{"compareUrl":"u","months":2}`)))
	assert.Error(t, validateBody(doc, "MissingRequest", []byte(`{"token":"t"}`)))
	assert.Error(t, validateBody(doc, "Unknown", []byte(`{}`)))
}
