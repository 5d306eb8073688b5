package services

import (
	"encoding/base64"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"gemchat/internal/models"
)

func TestBuildTextContents_PassesHistoryThroughUnmodified(t *testing.T) {
	// Two consecutive user turns are legal and must not be merged.
	history := []models.ChatTurn{
		{Role: "user", Text: "hi"},
		{Role: "user", Text: "there"},
	}

	contents, err := BuildTextContents(history)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(contents) != 2 {
		t.Fatalf("Expected 2 contents, got %d", len(contents))
	}
	for i, want := range []string{"hi", "there"} {
		if contents[i].Role != "user" {
			t.Errorf("Content %d: expected role user, got %q", i, contents[i].Role)
		}
		if len(contents[i].Parts) != 1 {
			t.Fatalf("Content %d: expected 1 part, got %d", i, len(contents[i].Parts))
		}
		if text, ok := contents[i].Parts[0].(genai.Text); !ok || string(text) != want {
			t.Errorf("Content %d: expected text part %q, got %#v", i, want, contents[i].Parts[0])
		}
	}
}

func TestBuildTextContents_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		history []models.ChatTurn
	}{
		{"empty history", nil},
		{"unknown role", []models.ChatTurn{{Role: "assistant", Text: "hi"}}},
		{"blank role", []models.ChatTurn{{Role: "", Text: "hi"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildTextContents(tc.history)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if _, ok := err.(*ValidationError); !ok {
				t.Errorf("Expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestBuildContents_TextAndAttachment(t *testing.T) {
	history := []models.ChatTurn{
		{Role: "user", Text: "hi"},
		{Role: "model", Text: "hello"},
	}
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	parts := []models.InlinePart{
		{MediaType: "image/png", Data: base64.StdEncoding.EncodeToString(payload)},
	}

	contents, err := BuildContents(history, "what is this", parts)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(contents) != 3 {
		t.Fatalf("Expected 3 contents, got %d", len(contents))
	}

	last := contents[2]
	if last.Role != "user" {
		t.Errorf("Expected trailing role user, got %q", last.Role)
	}
	if len(last.Parts) != 2 {
		t.Fatalf("Expected text part followed by blob, got %d parts", len(last.Parts))
	}
	if text, ok := last.Parts[0].(genai.Text); !ok || string(text) != "what is this" {
		t.Errorf("Expected leading text part, got %#v", last.Parts[0])
	}
	blob, ok := last.Parts[1].(genai.Blob)
	if !ok {
		t.Fatalf("Expected blob part, got %#v", last.Parts[1])
	}
	if blob.MIMEType != "image/png" {
		t.Errorf("Expected image/png, got %q", blob.MIMEType)
	}
	if string(blob.Data) != string(payload) {
		t.Error("Blob data does not match decoded payload")
	}
}

func TestBuildContents_AttachmentOnlyTurn(t *testing.T) {
	parts := []models.InlinePart{
		{MediaType: "text/plain", Data: base64.StdEncoding.EncodeToString([]byte("notes"))},
	}

	contents, err := BuildContents(nil, "", parts)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(contents) != 1 || len(contents[0].Parts) != 1 {
		t.Fatalf("Expected a single attachment-only turn, got %#v", contents)
	}
}

func TestBuildContents_EmptyTurn(t *testing.T) {
	history := []models.ChatTurn{{Role: "user", Text: "hi"}}

	_, err := BuildContents(history, "", nil)
	if err == nil {
		t.Fatal("Expected an error")
	}
	if _, ok := err.(*EmptyTurnError); !ok {
		t.Errorf("Expected *EmptyTurnError, got %T", err)
	}
}

func TestBuildContents_InvalidEncoding(t *testing.T) {
	parts := []models.InlinePart{{MediaType: "image/png", Data: "%%% not base64 %%%"}}

	_, err := BuildContents(nil, "", parts)
	if err == nil {
		t.Fatal("Expected an error")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("Expected *ValidationError, got %T", err)
	}
}
