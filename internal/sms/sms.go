// Package sms delivers text messages through a hosted gateway.
package sms

import "context"

// Provider sends a single text message
type Provider interface {
	SendSMS(ctx context.Context, request *Request) (*Response, error)
	Name() string
}

// Request is one outgoing message
type Request struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
	Type    string `json:"type"` // transactional, promotional
}

// Response describes the gateway's acceptance of a message
type Response struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func failed(err error) *Response {
	return &Response{Status: "failed", Error: err.Error()}
}
