// Package client speaks to the relay server's chat endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"gemchat/internal/models"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// No client-side timeout: generation time is bounded upstream, and an
		// in-flight request cannot be aborted by the user anyway.
		http: &http.Client{},
	}
}

type chatResponse struct {
	Result         string `json:"result"`
	FilesProcessed int    `json:"filesProcessed"`
	Error          string `json:"error"`
}

// Chat submits a text-only turn. The conversation must already include the new
// user turn.
func (c *Client) Chat(ctx context.Context, conversation []models.ChatTurn) (string, error) {
	body, err := json.Marshal(map[string]interface{}{"conversation": conversation})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	return resp.Result, nil
}

// ChatWithFiles submits a multipart turn: message text, the prior history, and
// the named files.
func (c *Client) ChatWithFiles(ctx context.Context, message string, conversation []models.ChatTurn, files []string) (string, int, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("message", message); err != nil {
		return "", 0, err
	}

	histJSON, err := json.Marshal(conversation)
	if err != nil {
		return "", 0, err
	}
	if err := w.WriteField("conversation", string(histJSON)); err != nil {
		return "", 0, err
	}

	for _, path := range files {
		if err := writeFilePart(w, path); err != nil {
			return "", 0, err
		}
	}

	if err := w.Close(); err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat-with-files", &buf)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return "", 0, err
	}
	return resp.Result, resp.FilesProcessed, nil
}

// writeFilePart adds a file part with its media type declared, the way a
// browser tags an uploaded File. CreateFormFile would stamp everything
// application/octet-stream and fail the server's allow-list.
func writeFilePart(w *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="files"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", MediaTypeOf(path))

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// MediaTypeOf guesses a file's media type by extension.
func MediaTypeOf(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		if parsed, _, err := mime.ParseMediaType(mt); err == nil {
			return parsed
		}
		return mt
	}
	return "application/octet-stream"
}

func (c *Client) do(req *http.Request) (*chatResponse, error) {
	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var resp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("server returned status %d", httpResp.StatusCode)
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("server returned status %d", httpResp.StatusCode)
		}
		return nil, fmt.Errorf("%s", msg)
	}

	return &resp, nil
}
