package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"gemchat/internal/models"
)

type fakeGenerator struct {
	result       string
	err          error
	calls        int
	lastContents []*genai.Content
}

func (f *fakeGenerator) Generate(_ context.Context, contents []*genai.Content) (string, error) {
	f.calls++
	f.lastContents = contents
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func newTestHandler(t *testing.T, gen *fakeGenerator) (*ChatHandler, string) {
	t.Helper()
	uploadPath := t.TempDir()
	return NewChatHandler(gen, uploadPath, false), uploadPath
}

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	jsonBody, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

type formFile struct {
	name      string
	mediaType string
	content   string
}

func postMultipart(t *testing.T, h http.HandlerFunc, message, conversation string, files []formFile) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if message != "" {
		w.WriteField("message", message)
	}
	if conversation != "" {
		w.WriteField("conversation", conversation)
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.name))
		header.Set("Content-Type", f.mediaType)
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatalf("Failed to create part: %v", err)
		}
		part.Write([]byte(f.content))
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/chat-with-files", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestChat_TextOnly(t *testing.T) {
	gen := &fakeGenerator{result: "General Kenobi"}
	h, _ := newTestHandler(t, gen)

	rr := postJSON(t, h.Chat, models.ChatRequest{Conversation: []models.ChatTurn{
		{Role: "user", Text: "hi"},
		{Role: "user", Text: "there"},
	}})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var resp models.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Result != "General Kenobi" {
		t.Errorf("Expected generated text, got %q", resp.Result)
	}

	// The two consecutive user turns must reach the model unmerged
	if len(gen.lastContents) != 2 {
		t.Fatalf("Expected 2 contents, got %d", len(gen.lastContents))
	}
	for i, c := range gen.lastContents {
		if c.Role != "user" {
			t.Errorf("Content %d: expected role user, got %q", i, c.Role)
		}
	}
}

func TestChat_MissingConversation(t *testing.T) {
	gen := &fakeGenerator{result: "should not be called"}
	h, _ := newTestHandler(t, gen)

	rr := postJSON(t, h.Chat, map[string]interface{}{})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	if gen.calls != 0 {
		t.Errorf("Expected no remote call, got %d", gen.calls)
	}
}

func TestChat_InvalidRole(t *testing.T) {
	gen := &fakeGenerator{}
	h, _ := newTestHandler(t, gen)

	rr := postJSON(t, h.Chat, models.ChatRequest{Conversation: []models.ChatTurn{
		{Role: "assistant", Text: "hi"},
	}})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	if gen.calls != 0 {
		t.Errorf("Expected no remote call, got %d", gen.calls)
	}
}

func TestChat_UpstreamFailure(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("quota exceeded")}
	h, _ := newTestHandler(t, gen)

	rr := postJSON(t, h.Chat, models.ChatRequest{Conversation: []models.ChatTurn{
		{Role: "user", Text: "hi"},
	}})

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rr.Code)
	}

	var resp models.ErrorResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if !strings.Contains(resp.Error, "quota exceeded") {
		t.Errorf("Expected the remote message to be surfaced, got %q", resp.Error)
	}
}

func TestChatWithFiles_EmptySubmission(t *testing.T) {
	gen := &fakeGenerator{}
	h, _ := newTestHandler(t, gen)

	rr := postMultipart(t, h.ChatWithFiles, "", "", nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	if gen.calls != 0 {
		t.Errorf("Expected no remote call, got %d", gen.calls)
	}
}

func TestChatWithFiles_TooManyFiles(t *testing.T) {
	gen := &fakeGenerator{}
	h, uploadPath := newTestHandler(t, gen)

	var files []formFile
	for i := 0; i < 6; i++ {
		files = append(files, formFile{
			name:      fmt.Sprintf("f%d.txt", i),
			mediaType: "text/plain",
			content:   "x",
		})
	}

	rr := postMultipart(t, h.ChatWithFiles, "look at these", "", files)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	if gen.calls != 0 {
		t.Errorf("Expected no remote call, got %d", gen.calls)
	}
	assertNoLeftoverUploads(t, uploadPath)
}

func TestChatWithFiles_DisallowedType(t *testing.T) {
	gen := &fakeGenerator{}
	h, uploadPath := newTestHandler(t, gen)

	rr := postMultipart(t, h.ChatWithFiles, "", "", []formFile{
		{name: "archive.zip", mediaType: "application/zip", content: "PK"},
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	if gen.calls != 0 {
		t.Errorf("Expected no remote call, got %d", gen.calls)
	}
	assertNoLeftoverUploads(t, uploadPath)
}

func TestChatWithFiles_MalformedConversation(t *testing.T) {
	gen := &fakeGenerator{}
	h, _ := newTestHandler(t, gen)

	rr := postMultipart(t, h.ChatWithFiles, "hello", "{not json", nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	if gen.calls != 0 {
		t.Errorf("Expected no remote call, got %d", gen.calls)
	}
}

func TestChatWithFiles_Success(t *testing.T) {
	gen := &fakeGenerator{result: "That is a text file."}
	h, uploadPath := newTestHandler(t, gen)

	conversation := `[{"role":"user","text":"hi"},{"role":"model","text":"hello"}]`
	rr := postMultipart(t, h.ChatWithFiles, "what is this", conversation, []formFile{
		{name: "notes.txt", mediaType: "text/plain", content: "some notes"},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var resp models.ChatWithFilesResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Result != "That is a text file." {
		t.Errorf("Expected generated text, got %q", resp.Result)
	}
	if resp.FilesProcessed != 1 {
		t.Errorf("Expected filesProcessed 1, got %d", resp.FilesProcessed)
	}

	// History turns plus the new user turn carrying text + blob
	if len(gen.lastContents) != 3 {
		t.Fatalf("Expected 3 contents, got %d", len(gen.lastContents))
	}
	last := gen.lastContents[2]
	if last.Role != "user" || len(last.Parts) != 2 {
		t.Errorf("Expected trailing user turn with 2 parts, got role %q with %d parts", last.Role, len(last.Parts))
	}

	assertNoLeftoverUploads(t, uploadPath)
}

func TestChatWithFiles_CleanupOnUpstreamFailure(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("network is down")}
	h, uploadPath := newTestHandler(t, gen)

	rr := postMultipart(t, h.ChatWithFiles, "what is this", "", []formFile{
		{name: "notes.txt", mediaType: "text/plain", content: "some notes"},
	})

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rr.Code)
	}
	assertNoLeftoverUploads(t, uploadPath)
}

func assertNoLeftoverUploads(t *testing.T, uploadPath string) {
	t.Helper()
	entries, err := os.ReadDir(uploadPath)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		t.Fatalf("Failed to read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no leftover uploads, found %d", len(entries))
	}
}
