package models

// Role values accepted on the wire. The Gemini API uses "model" rather than
// "assistant" for generated turns.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatTurn is one flattened role/text entry of a conversation history.
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// InlinePart is a base64-encoded attachment payload tagged with its media
// type, embedded directly in the request to the model.
type InlinePart struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ChatRequest is the payload for the text-only chat endpoint. The caller
// appends its new user turn to the conversation before sending.
type ChatRequest struct {
	Conversation []ChatTurn `json:"conversation"`
}

// ChatResponse carries the generated text.
type ChatResponse struct {
	Result string `json:"result"`
}

// ChatWithFilesResponse additionally reports how many attachments were
// successfully forwarded to the model.
type ChatWithFilesResponse struct {
	Result         string `json:"result"`
	FilesProcessed int    `json:"filesProcessed"`
}

// ErrorResponse is the error envelope for both chat endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
