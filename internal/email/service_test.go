package email

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/devconnector/internal/config"
)

func TestNewService_InvalidSender(t *testing.T) {
	cfg := enabledConfig()
	cfg.From = "not-an-address"
	_, err := NewService(cfg, "http://localhost:5000", zerolog.Nop())
	require.ErrorContains(t, err, "invalid sender email")
}

func TestNewService_DisabledSkipsSenderCheck(t *testing.T) {
	svc, err := NewService(config.EmailConfig{}, "http://localhost:5000", zerolog.Nop())
	require.NoError(t, err)
	require.Nil(t, svc.resendClient)
}

func TestSendWelcome_DisabledOnlyLogs(t *testing.T) {
	var buf bytes.Buffer
	svc, err := NewService(config.EmailConfig{}, "http://localhost:5000", zerolog.New(&buf))
	require.NoError(t, err)

	require.NoError(t, svc.SendWelcome(context.Background(), "ada@example.com", "Ada"))
	require.Contains(t, buf.String(), "skipping welcome email")
	require.Contains(t, buf.String(), "ada@example.com")
}

func TestSendWelcome_InvalidRecipient(t *testing.T) {
	svc, err := NewService(config.EmailConfig{}, "http://localhost:5000", zerolog.Nop())
	require.NoError(t, err)
	require.Error(t, svc.SendWelcome(context.Background(), "nobody", "Ada"))
}

func TestValidateEmailAddress(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"plain", "ada@example.com", false},
		{"display name", "Ada <ada@example.com>", false},
		{"missing at", "ada.example.com", true},
		{"empty", "", true},
		{"header injection", "ada@example.com\r\nBcc: eve@example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEmailAddress(tt.email)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRenderTemplate_Unknown(t *testing.T) {
	svc, err := NewService(config.EmailConfig{}, "http://localhost:5000", zerolog.Nop())
	require.NoError(t, err)
	_, err = svc.renderTemplate("missing.html", nil)
	require.Error(t, err)
}
