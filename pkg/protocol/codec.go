package protocol

import (
	"encoding/json"
	"fmt"
)

// MaxPayloadSize is the largest encoded Request or Response this protocol
// allows. pkg/transport's DefaultMaxMessageSize is defined in terms of this
// constant, so a frame exceeding it is rejected by the framing layer
// (classified as ErrorKindFrameTooLarge) before a decode is even attempted.
const MaxPayloadSize = 65536

// Marshal encodes a value to its wire bytes.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes wire bytes into v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// EncodeRequest validates req and encodes it to wire bytes.
func EncodeRequest(req *Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return Marshal(req)
}

// DecodeRequest decodes wire bytes into a Request and validates it.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// EncodeResponse encodes resp to wire bytes.
func EncodeResponse(resp *Response) ([]byte, error) {
	return Marshal(resp)
}

// DecodeResponse decodes wire bytes into a Response.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}
