// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

package eventprocessor

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name          string
		err           error
		wantRetryable bool
		wantPermanent bool
	}{
		{
			name:          "retryable",
			err:           NewRetryableError(base),
			wantRetryable: true,
		},
		{
			name:          "permanent",
			err:           NewPermanentError(base),
			wantPermanent: true,
		},
		{
			name:          "wrapped retryable",
			err:           fmt.Errorf("handler: %w", NewRetryableError(base)),
			wantRetryable: true,
		},
		{
			name:          "wrapped permanent",
			err:           fmt.Errorf("handler: %w", NewPermanentError(base)),
			wantPermanent: true,
		},
		{
			name: "plain error is neither",
			err:  base,
		},
		{
			name: "nil error",
			err:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.wantRetryable {
				t.Errorf("IsRetryableError() = %v, want %v", got, tt.wantRetryable)
			}
			if got := IsPermanentError(tt.err); got != tt.wantPermanent {
				t.Errorf("IsPermanentError() = %v, want %v", got, tt.wantPermanent)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("boom")

	if !errors.Is(NewRetryableError(base), base) {
		t.Error("RetryableError should unwrap to the base error")
	}
	if !errors.Is(NewPermanentError(base), base) {
		t.Error("PermanentError should unwrap to the base error")
	}
}
