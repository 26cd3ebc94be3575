package parasut

import (
	"encoding/json"
	"strings"
)

// Company is an organization the authenticated user belongs to.
type Company struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name      string `json:"name"`
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	} `json:"attributes"`
}

// ErrorResponse is the JSON:API error document returned on failures.
type ErrorResponse struct {
	Errors []APIError `json:"errors"`
}

// APIError is a single entry of ErrorResponse.
type APIError struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Source *struct {
		Pointer   string `json:"pointer,omitempty"`
		Parameter string `json:"parameter,omitempty"`
	} `json:"source,omitempty"`
}

// errorDetails turns a rejected response body into readable messages. Bodies
// that are not JSON:API error documents yield nothing.
func errorDetails(_ int, body []byte) []string {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	out := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		parts := make([]string, 0, 2)
		if e.Title != "" {
			parts = append(parts, e.Title)
		}
		if e.Detail != "" {
			parts = append(parts, e.Detail)
		}
		if len(parts) > 0 {
			out = append(out, strings.Join(parts, ": "))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
