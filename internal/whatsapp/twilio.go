package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"legal-ease-backend/internal/shared/telemetry"
	"legal-ease-backend/internal/shared/util"
)

var apiBase = "https://api.twilio.com"

// ErrMediaUnavailable means the inbound attachment could not be downloaded.
var ErrMediaUnavailable = errors.New("media unavailable")

// Sender delivers outbound chat messages.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// MediaFetcher downloads inbound attachments.
type MediaFetcher interface {
	Fetch(ctx context.Context, mediaURL string) ([]byte, error)
}

// TwilioConfig holds REST credentials and pacing for the Twilio client.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	// SendRPS caps outbound messages per second across all recipients.
	SendRPS float64
	// MaxMediaBytes bounds attachment downloads. One extra byte is read so
	// oversize files can be reported as such downstream.
	MaxMediaBytes int64
	Timeout       time.Duration
}

// Twilio sends messages through the Twilio REST API and fetches media with the same credentials.
type Twilio struct {
	cfg     TwilioConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewTwilio constructs a Twilio client. Credentials are required.
func NewTwilio(cfg TwilioConfig) (*Twilio, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" || strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("twilio account sid and auth token are required")
	}
	if cfg.From == "" {
		return nil, errors.New("twilio sender number is required")
	}
	if cfg.SendRPS <= 0 {
		cfg.SendRPS = 1
	}
	if cfg.MaxMediaBytes <= 0 {
		cfg.MaxMediaBytes = 10 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Twilio{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.SendRPS), 1),
	}, nil
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send posts one message. It waits for the outbound pacing limiter first.
func (t *Twilio) Send(ctx context.Context, to, body string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("From", withPrefix(t.cfg.From))
	form.Set("To", withPrefix(to))
	form.Set("Body", clamp(body))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(apiBase, "/"), url.PathEscape(t.cfg.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr twilioError
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio send: status %d code %d: %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("twilio send: status %d", resp.StatusCode)
	}
	return nil
}

// Fetch downloads an attachment, reading at most MaxMediaBytes+1 bytes.
func (t *Twilio) Fetch(ctx context.Context, mediaURL string) ([]byte, error) {
	return fetchMedia(ctx, t.http, mediaURL, t.cfg.AccountSID, t.cfg.AuthToken, t.cfg.MaxMediaBytes)
}

// fetchMedia only contacts Twilio hosts. Webhook fields are not signed, so
// any other host could be attacker controlled.
func fetchMedia(ctx context.Context, client *http.Client, mediaURL, user, pass string, maxBytes int64) ([]byte, error) {
	parsed, err := url.Parse(mediaURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bad url", ErrMediaUnavailable)
	}
	if !twilioMediaURL(parsed) {
		return nil, fmt.Errorf("%w: untrusted host %q", ErrMediaUnavailable, parsed.Hostname())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrMediaUnavailable, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	return data, nil
}

// LogSender logs outbound messages instead of sending them. Used when Twilio is not configured.
type LogSender struct{}

// Send logs the message with the recipient hashed.
func (LogSender) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	telemetry.Info("whatsapp.outbound_logged", map[string]any{
		"owner_hash": util.HashUserKey(to),
		"length":     len([]rune(body)),
	})
	return nil
}

// PlainFetcher downloads media from Twilio hosts without credentials. Used alongside LogSender.
type PlainFetcher struct {
	MaxBytes int64
	Client   *http.Client
}

// Fetch downloads an attachment, reading at most MaxBytes+1 bytes.
func (f PlainFetcher) Fetch(ctx context.Context, mediaURL string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	maxBytes := f.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return fetchMedia(ctx, client, mediaURL, "", "", maxBytes)
}

// twilioMediaURL reports whether u is an https URL on twilio.com or one of its
// subdomains, or on the configured API base.
func twilioMediaURL(u *url.URL) bool {
	if u.User != nil {
		return false
	}
	if base, err := url.Parse(apiBase); err == nil && u.Scheme == base.Scheme && strings.EqualFold(u.Host, base.Host) {
		return true
	}
	if u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "twilio.com" || strings.HasSuffix(host, ".twilio.com")
}

func withPrefix(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
