package dlapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the body of every response served by a filesystem service.
// Exactly one of Result and Error is set.
type Envelope struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody carries a failure reported by the service.
type ErrorBody struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorBody) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// ExtractResult unwraps a response envelope, returning the JSON payload stored
// under "result" verbatim. Bodies without an envelope are returned unchanged.
// An envelope carrying an error is returned as *ErrorBody.
func ExtractResult(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return append([]byte(nil), trimmed...), nil
	}
	if env.Error != nil {
		return nil, env.Error
	}
	if env.Result == nil {
		return append([]byte(nil), trimmed...), nil
	}
	return append([]byte(nil), env.Result...), nil
}

// DecodeResult decodes the payload obtained via ExtractResult into out.
// An empty body decodes as JSON null.
func DecodeResult(body []byte, out any) error {
	payload, err := ExtractResult(body)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		payload = []byte("null")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("dlapi: decode result: %w", err)
	}
	return nil
}

// DecodeError extracts the error body of a failed response, if present.
func DecodeError(body []byte) (*ErrorBody, bool) {
	var env Envelope
	if err := json.Unmarshal(bytes.TrimSpace(body), &env); err != nil || env.Error == nil {
		return nil, false
	}
	return env.Error, true
}

// EncodeResult wraps v in a success envelope.
func EncodeResult(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("dlapi: encode result: %w", err)
	}
	return json.Marshal(Envelope{Result: raw})
}

// EncodeError wraps code and message in an error envelope.
func EncodeError(code uint32, message string) []byte {
	out, _ := json.Marshal(Envelope{Error: &ErrorBody{Code: code, Message: message}})
	return out
}
