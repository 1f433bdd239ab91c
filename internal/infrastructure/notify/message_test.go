package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("123456", 5*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, html, "123456")
	assert.Contains(t, html, "expire in 5 minutes")
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Your OTP for login is 654321. It expires in 5 minutes.", PlainText("654321", 5*time.Minute))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.SendOTP(context.Background(), "a@x.com", "123456"))
}

func TestAwait_ReturnsSendError(t *testing.T) {
	boom := errors.New("boom")
	err := Await(context.Background(), func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestAwait_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	release := make(chan struct{})
	defer close(release)

	err := Await(ctx, func() error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
