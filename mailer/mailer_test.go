package mailer

import (
	"context"
	"errors"
	"testing"
)

func TestSendWithoutConfiguration(t *testing.T) {
	cases := []*SendGrid{
		NewSendGrid(nil, "bot@example.com", "Bot", "home@example.com", ""),
		NewSendGrid(nil, "", "", "", ""),
	}
	for _, m := range cases {
		err := m.Send(context.Background(), "subject", "body")
		if !errors.Is(err, ErrNotConfigured) {
			t.Errorf("Send on unconfigured mailer = %v, want ErrNotConfigured", err)
		}
	}
}
