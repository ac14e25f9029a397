package telegram

import (
	"errors"
	"fmt"
	"testing"

	"community_broadcast_bot/internal/domain/messaging"

	"github.com/stretchr/testify/assert"
	"gopkg.in/telebot.v3"
)

func TestClassifySendError(t *testing.T) {
	flood := telebot.FloodError{RetryAfter: 5}

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "nil stays nil", in: nil, want: nil},
		{name: "blocked by user", in: telebot.ErrBlockedByUser, want: messaging.ErrPermissionDenied},
		{name: "chat not found", in: telebot.ErrChatNotFound, want: messaging.ErrUnreachable},
		{name: "deactivated account", in: telebot.ErrUserIsDeactivated, want: messaging.ErrUnreachable},
		{name: "flood wait", in: flood, want: messaging.ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifySendError(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestClassifySendError_UnknownErrorPassesThrough(t *testing.T) {
	unknown := fmt.Errorf("tls handshake failed")

	got := classifySendError(unknown)

	assert.ErrorIs(t, got, unknown)
	assert.False(t, errors.Is(got, messaging.ErrPermissionDenied))
	assert.False(t, errors.Is(got, messaging.ErrUnreachable))
	assert.False(t, errors.Is(got, messaging.ErrRateLimited))
}

func TestClassifySendError_FloodCarriesRetryAfter(t *testing.T) {
	flood := telebot.FloodError{RetryAfter: 31}

	got := classifySendError(flood)

	assert.ErrorIs(t, got, messaging.ErrRateLimited)
	assert.Contains(t, got.Error(), "retry after 31s")
}
