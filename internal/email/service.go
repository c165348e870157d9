package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/devconnector/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

const welcomeSubject = "Welcome to DevConnector"

// Service delivers transactional email through Resend. When email is
// disabled it only logs what it would have sent.
type Service struct {
	config       config.EmailConfig
	resendClient *resend.Client
	templates    *template.Template
	baseURL      string
	logger       zerolog.Logger
}

type WelcomeData struct {
	Name         string
	DashboardURL string
	CurrentYear  int
}

func NewService(cfg config.EmailConfig, baseURL string, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	s := &Service{
		config:    cfg,
		templates: templates,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger.With().Str("component", "email").Logger(),
	}
	if cfg.Enabled {
		s.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return s, nil
}

// WithResendBaseURL points the Resend client at another API host.
func (s *Service) WithResendBaseURL(raw string) error {
	if s.resendClient == nil {
		return fmt.Errorf("resend client not initialized")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse resend base url: %w", err)
	}
	s.resendClient.BaseURL = u
	return nil
}

// SendWelcome greets a newly registered user.
func (s *Service) SendWelcome(ctx context.Context, to, name string) error {
	if err := validateEmailAddress(to); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}

	if !s.config.Enabled {
		s.logger.Info().
			Str("to", to).
			Str("subject", welcomeSubject).
			Msg("email service disabled, skipping welcome email")
		return nil
	}

	body, err := s.renderTemplate("welcome.html", WelcomeData{
		Name:         name,
		DashboardURL: s.baseURL + "/dashboard",
		CurrentYear:  time.Now().Year(),
	})
	if err != nil {
		return err
	}
	return s.sendViaResend(ctx, to, welcomeSubject, body)
}

// validateEmailAddress rejects malformed addresses and header injection.
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}

func (s *Service) renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
