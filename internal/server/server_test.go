package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristidraghici/open-file-sharing/internal/config"
	"github.com/cristidraghici/open-file-sharing/internal/creds"
	"github.com/cristidraghici/open-file-sharing/internal/logging"
)

type testEnv struct {
	srv    *Server
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	storage := t.TempDir()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StoragePath = storage
	cfg.UsersCSVPath = filepath.Join(storage, "users.csv")
	cfg.Secret = "test-secret"
	cfg.TokenTTL = time.Hour

	users := creds.NewStore(cfg.UsersCSVPath)
	_, err := users.AddUser("alice", "alice-pw", creds.RoleUser)
	require.NoError(t, err)
	_, err = users.AddUser("root", "root-pw", creds.RoleAdmin)
	require.NoError(t, err)

	log := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	srv, err := New(cfg, log)
	require.NoError(t, err)

	return &testEnv{srv: srv, router: srv.Router()}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	rec := e.do(t, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

// upload posts one file under the "files[]" multipart key and returns the
// stored object's id.
func (e *testEnv) upload(t *testing.T, token, filename string, content []byte) string {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files[]", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/media/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := e.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	return resp.Data[0].ID
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code, resp.Error.Message
}

func TestLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "alice-pw"})
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Token string `json:"token"`
			User  struct {
				ID       string `json:"id"`
				Username string `json:"username"`
				Role     string `json:"role"`
			} `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.Token)
	assert.Equal(t, "alice", resp.Data.User.Username)
	assert.Equal(t, "user", resp.Data.User.Role)
	assert.Equal(t, creds.DeriveUserID("alice"), resp.Data.User.ID)
}

func TestLogin_MissingFields(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	body, _ := json.Marshal(map[string]string{"username": "alice"})
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code, _ := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", code)
	assert.Contains(t, rec.Body.String(), `"fields"`)
}

func TestLogin_BadCredentials(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "wrong"})
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	code, message := decodeError(t, rec)
	assert.Equal(t, "UNAUTHORIZED", code)
	assert.Equal(t, "Invalid credentials", message)
}

func TestMe(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tok := env.login(t, "alice", "alice-pw")

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Data.Username)
	assert.Equal(t, "user", resp.Data.Role)
}

func TestMe_Unauthorized(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec = env.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpload_RequiresAuth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/media/uploads", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpload_MissingFiles(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tok := env.login(t, "alice", "alice-pw")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no files here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/media/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code, _ := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", code)
}

func TestUploadThenFetch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tok := env.login(t, "alice", "alice-pw")

	content := []byte("%PDF-1.4\nhello")
	id := env.upload(t, tok, "report.pdf", content)

	// Metadata is public.
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/media/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			ID         string `json:"id"`
			FileName   string `json:"fileName"`
			FileType   string `json:"fileType"`
			Size       int64  `json:"size"`
			UploadedBy string `json:"uploadedBy"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Data.ID)
	assert.Equal(t, "report.pdf", resp.Data.FileName)
	assert.Equal(t, "document", resp.Data.FileType)
	assert.Equal(t, int64(len(content)), resp.Data.Size)
	assert.Equal(t, "alice", resp.Data.UploadedBy)

	// So is the payload.
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/media/"+id+"/content", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "inline", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, content, rec.Body.Bytes())
}

func TestGetByID_NotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/media/0123456789abcdef0123456789abcdef", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	code, _ := decodeError(t, rec)
	assert.Equal(t, "NOT_FOUND", code)
}

func TestList(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tok := env.login(t, "alice", "alice-pw")
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		env.upload(t, tok, name, []byte("contents of "+name))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/media?page=1&per_page=2", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []struct {
			FileName string `json:"fileName"`
		} `json:"data"`
		Meta struct {
			Page    int `json:"page"`
			PerPage int `json:"per_page"`
			Total   int `json:"total"`
		} `json:"meta"`
		Links struct {
			First string  `json:"first"`
			Last  string  `json:"last"`
			Prev  *string `json:"prev"`
			Next  *string `json:"next"`
		} `json:"links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 1, resp.Meta.Page)
	assert.Equal(t, 2, resp.Meta.PerPage)
	assert.Equal(t, 3, resp.Meta.Total)
	assert.Equal(t, "/api/media?per_page=2&page=1", resp.Links.First)
	assert.Equal(t, "/api/media?per_page=2&page=2", resp.Links.Last)
	assert.Nil(t, resp.Links.Prev)
	require.NotNil(t, resp.Links.Next)
	assert.Equal(t, "/api/media?per_page=2&page=2", *resp.Links.Next)
}

func TestList_RequiresAuth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/media", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestList_InvalidType(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tok := env.login(t, "alice", "alice-pw")

	req := httptest.NewRequest(http.MethodGet, "/api/media?type=audio", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code, _ := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", code)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	userTok := env.login(t, "alice", "alice-pw")
	adminTok := env.login(t, "root", "root-pw")
	id := env.upload(t, userTok, "doomed.txt", []byte("doomed"))

	// Plain users cannot delete.
	req := httptest.NewRequest(http.MethodDelete, "/api/media/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+userTok)
	rec := env.do(t, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admins can.
	req = httptest.NewRequest(http.MethodDelete, "/api/media/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+adminTok)
	rec = env.do(t, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/media/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelete_NotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	adminTok := env.login(t, "root", "root-pw")

	req := httptest.NewRequest(http.MethodDelete, "/api/media/0123456789abcdef0123456789abcdef", nil)
	req.Header.Set("Authorization", "Bearer "+adminTok)
	rec := env.do(t, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHome(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":"Welcome to Open File Sharing API"}`, rec.Body.String())
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/no/such/route", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found","code":404}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/media", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := env.do(t, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Basic abc", ""},
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc.def.ghi", "abc.def.ghi"},
		{"Bearer   spaced-token", "spaced-token"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		assert.Equal(t, tc.want, bearerToken(req), "header %q", tc.header)
	}
}
