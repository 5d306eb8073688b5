package services

import (
	"encoding/base64"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"gemchat/internal/models"
)

// BuildTextContents converts a flattened history into the message sequence the
// model expects. Used by the text-only path, where the caller has already
// appended its new user turn to the history.
func BuildTextContents(history []models.ChatTurn) ([]*genai.Content, error) {
	if len(history) == 0 {
		return nil, &ValidationError{Message: "Invalid conversation format"}
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		if turn.Role != models.RoleUser && turn.Role != models.RoleModel {
			return nil, &ValidationError{Message: fmt.Sprintf("Invalid role %q in conversation", turn.Role)}
		}
		contents = append(contents, &genai.Content{
			Role:  turn.Role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}

	return contents, nil
}

// BuildContents assembles prior history plus a new user turn made of optional
// text and inline attachment parts. History turns are forwarded in order and
// unmerged; consecutive same-role turns are legal. The trailing user turn must
// carry at least one part.
func BuildContents(history []models.ChatTurn, text string, parts []models.InlinePart) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		if turn.Role != models.RoleUser && turn.Role != models.RoleModel {
			return nil, &ValidationError{Message: fmt.Sprintf("Invalid role %q in conversation", turn.Role)}
		}
		contents = append(contents, &genai.Content{
			Role:  turn.Role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}

	var turnParts []genai.Part
	if text != "" {
		turnParts = append(turnParts, genai.Text(text))
	}
	for _, p := range parts {
		data, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return nil, &ValidationError{Message: "Invalid attachment encoding"}
		}
		turnParts = append(turnParts, genai.Blob{MIMEType: p.MediaType, Data: data})
	}

	if len(turnParts) == 0 {
		return nil, &EmptyTurnError{}
	}

	contents = append(contents, &genai.Content{
		Role:  models.RoleUser,
		Parts: turnParts,
	})

	return contents, nil
}
