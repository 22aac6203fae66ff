package config

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestDoWithBackoff(t *testing.T) {
	tests := []struct {
		name          string
		maxRetries    int
		ctxTimeout    time.Duration
		handler       func(req *http.Request) (*http.Response, error)
		expectErr     string
		expectCalls   int
		expectSuccess bool
	}{
		{
			name:       "success on first try",
			maxRetries: 3,
			handler: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 200, Body: http.NoBody}, nil
			},
			expectCalls:   1,
			expectSuccess: true,
		},
		{
			name:       "max retries exceeded",
			maxRetries: 2,
			handler: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("mock error")
			},
			expectErr:   "max retries exceeded",
			expectCalls: 3,
		},
		{
			name:       "5xx responses are retried",
			maxRetries: 1,
			handler: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 503, Body: http.NoBody}, nil
			},
			expectErr:   "max retries exceeded",
			expectCalls: 2,
		},
		{
			name:       "4xx responses are returned as-is",
			maxRetries: 3,
			handler: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 404, Body: http.NoBody}, nil
			},
			expectCalls:   1,
			expectSuccess: true,
		},
		{
			name:       "context canceled",
			maxRetries: 5,
			ctxTimeout: 50 * time.Millisecond,
			handler: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("mock error")
			},
			expectErr: "context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockRoundTripper{handler: tt.handler}
			client := &http.Client{Transport: mock}

			ctx := context.Background()
			if tt.ctxTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.ctxTimeout)
				defer cancel()
			}

			req, err := http.NewRequest("GET", "http://example.com", nil)
			if err != nil {
				t.Fatalf("Failed to create request: %v", err)
			}

			resp, err := DoWithBackoff(ctx, client, req, tt.maxRetries)

			if tt.expectSuccess {
				if err != nil {
					t.Fatalf("Expected success, got error: %v", err)
				}
				resp.Body.Close()
			} else {
				if err == nil {
					t.Fatal("Expected error, got none")
				}
				if !strings.Contains(err.Error(), tt.expectErr) {
					t.Errorf("Expected error containing %q, got: %v", tt.expectErr, err)
				}
			}

			if tt.expectCalls > 0 && mock.calls != tt.expectCalls {
				t.Errorf("Expected %d calls, got %d", tt.expectCalls, mock.calls)
			}
		})
	}
}
