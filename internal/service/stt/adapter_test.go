package stt

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsAborted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, true},
		{"wrapped canceled", fmt.Errorf("recv: %w", context.Canceled), true},
		{"grpc canceled", status.Error(codes.Canceled, "context canceled"), true},
		{"deadline", context.DeadlineExceeded, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "no route"), false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAborted(tt.err); got != tt.want {
				t.Errorf("IsAborted(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
