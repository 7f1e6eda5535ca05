package model

import (
	"net/http"
	"time"
)

// Request is the backend-independent fetch request used by the webclient.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Response is the backend-independent fetch response.
type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
}
