package kratos

import (
	"encoding/json"
	"errors"
	"fmt"

	kratos "github.com/ory/kratos-client-go"
)

// ProviderError carries the message Kratos reported for a failed call.
type ProviderError struct {
	Op      string
	Message string
	Err     error
}

func (e *ProviderError) Error() string { return e.Message }

func (e *ProviderError) Unwrap() error { return e.Err }

type errorBody struct {
	UI *struct {
		Messages []uiText `json:"messages"`
		Nodes    []struct {
			Messages []uiText `json:"messages"`
		} `json:"nodes"`
	} `json:"ui"`
	Error *struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

type uiText struct {
	Text string `json:"text"`
}

// describe turns a client error into a ProviderError whose message is the
// first human readable text found in the response body.
func describe(op string, err error) error {
	msg := ""
	var apiErr *kratos.GenericOpenAPIError
	if errors.As(err, &apiErr) {
		msg = messageFromBody(apiErr.Body())
	}
	if msg == "" {
		msg = fmt.Sprintf("kratos: %s: %v", op, err)
	}
	return &ProviderError{Op: op, Message: msg, Err: err}
}

func messageFromBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.UI != nil {
		for _, m := range parsed.UI.Messages {
			if m.Text != "" {
				return m.Text
			}
		}
		for _, node := range parsed.UI.Nodes {
			for _, m := range node.Messages {
				if m.Text != "" {
					return m.Text
				}
			}
		}
	}
	if parsed.Error != nil {
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
		return parsed.Error.Reason
	}
	return ""
}
