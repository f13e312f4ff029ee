package imagegen

import (
	"encoding/json"
	"fmt"
)

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// rejection builds the error for a non-success status. The message comes
// from a structured error body when one parses.
func rejection(status int, body []byte) *RemoteRejectedError {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return &RemoteRejectedError{Status: status}
	}
	return &RemoteRejectedError{Status: status, Message: er.Error.Message}
}

// parseResult scans the first candidate: the first inline image wins, then
// the first text part is a refusal.
func parseResult(body []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrMalformedResponse
	}
	parts := resp.Candidates[0].Content.Parts
	for _, p := range parts {
		if p.InlineData != nil {
			return "data:" + p.InlineData.MimeType + ";base64," + p.InlineData.Data, nil
		}
	}
	for _, p := range parts {
		if p.Text != "" {
			return "", &ModelDeclinedError{Text: p.Text}
		}
	}
	return "", ErrMalformedResponse
}
