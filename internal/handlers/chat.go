package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"

	"gemchat/internal/models"
	"gemchat/internal/services"
)

// maxRequestBytes bounds a multipart request body: five files at the per-file
// limit plus form overhead.
const maxRequestBytes = services.MaxFilesPerRequest*services.MaxFileSize + 1024*1024

type generator interface {
	Generate(ctx context.Context, contents []*genai.Content) (string, error)
}

type ChatHandler struct {
	gemini     generator
	uploadPath string
	devMode    bool
}

func NewChatHandler(gemini generator, uploadPath string, devMode bool) *ChatHandler {
	return &ChatHandler{
		gemini:     gemini,
		uploadPath: uploadPath,
		devMode:    devMode,
	}
}

// Chat serves the text-only path. The request carries the full flattened
// history, new user turn included.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid conversation format"})
		return
	}

	contents, err := services.BuildTextContents(req.Conversation)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	result, err := h.gemini.Generate(r.Context(), contents)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{Result: result})
}

// ChatWithFiles serves the multipart path: optional message text, optional
// JSON-encoded prior history, and up to five attachments. Transient uploads
// are deleted on every exit path.
func (h *ChatHandler) ChatWithFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "File size too large. Maximum 10MB allowed."})
		return
	}
	defer r.MultipartForm.RemoveAll()

	message := strings.TrimSpace(r.FormValue("message"))

	var history []models.ChatTurn
	if raw := r.FormValue("conversation"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &history); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid conversation format"})
			return
		}
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) > services.MaxFilesPerRequest {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error: fmt.Sprintf("Too many files. Maximum %d allowed.", services.MaxFilesPerRequest),
		})
		return
	}

	if message == "" && len(fileHeaders) == 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Message or files are required"})
		return
	}

	// Reject oversize or disallowed files up front, before a single byte of
	// file content is read.
	for _, fh := range fileHeaders {
		if err := services.ValidateAttachment(fh.Filename, fh.Size, partMediaType(fh)); err != nil {
			h.handleServiceError(w, err)
			return
		}
	}

	uploads, err := h.saveUploads(fileHeaders)

	// The encoder removes each file it touches; this catches files saved
	// before an early exit, including panics unwound by the router's
	// Recoverer.
	defer func() {
		for _, u := range uploads {
			if rmErr := os.Remove(u.Path); rmErr != nil && !os.IsNotExist(rmErr) {
				log.Printf("Error deleting file %s: %v", u.Path, rmErr)
			}
		}
	}()

	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to store uploaded files"})
		return
	}

	parts := services.EncodeAll(uploads)

	contents, err := services.BuildContents(history, message, parts)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	result, err := h.gemini.Generate(r.Context(), contents)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ChatWithFilesResponse{
		Result:         result,
		FilesProcessed: len(parts),
	})
}

// saveUploads writes each part to the upload dir under a fresh name. Already
// saved files are returned even on error so the caller can clean them up.
func (h *ChatHandler) saveUploads(fileHeaders []*multipart.FileHeader) ([]services.Upload, error) {
	if len(fileHeaders) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(h.uploadPath, 0o755); err != nil {
		return nil, err
	}

	var uploads []services.Upload
	for _, fh := range fileHeaders {
		path, err := h.saveUpload(fh)
		if err != nil {
			return uploads, err
		}
		uploads = append(uploads, services.Upload{
			Path:      path,
			Name:      fh.Filename,
			MediaType: partMediaType(fh),
		})
	}
	return uploads, nil
}

func (h *ChatHandler) saveUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	path := filepath.Join(h.uploadPath, uuid.New().String()+filepath.Ext(fh.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	return path, dst.Close()
}

func partMediaType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}

func (h *ChatHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *services.ValidationError:
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: e.Message})
	case *services.EmptyTurnError:
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: e.Error()})
	case *services.AttachmentError:
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: e.Error()})
	case *services.UpstreamError:
		resp := models.ErrorResponse{Error: e.Error()}
		if h.devMode {
			resp.Details = fmt.Sprintf("%+v", e.Unwrap())
		}
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal Server Error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
