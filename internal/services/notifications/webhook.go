// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/autobrr/sitestats/internal/buildinfo"
	"github.com/autobrr/sitestats/internal/models"
	"github.com/autobrr/sitestats/pkg/httphelpers"
	"github.com/autobrr/sitestats/pkg/redact"
)

const (
	webhookTimeout  = 30 * time.Second
	webhookAttempts = 3
)

type webhookPayload struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// permanentError marks responses that will not succeed on retry.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

type webhookSender struct {
	client     *http.Client
	logger     zerolog.Logger
	retryDelay time.Duration
}

func newWebhookSender(logger zerolog.Logger) *webhookSender {
	return &webhookSender{
		client:     &http.Client{Timeout: webhookTimeout},
		logger:     logger,
		retryDelay: time.Second,
	}
}

// webhookEndpoint builds <server>/<subPath>/<apiKey>.
func webhookEndpoint(target *models.NotificationTarget) (string, error) {
	server := strings.TrimRight(strings.TrimSpace(target.URL), "/")
	parsed, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid webhook server: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("webhook server must be http or https")
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", errors.New("webhook server host required")
	}

	apiKey := strings.TrimSpace(target.APIKey)
	if apiKey == "" {
		return "", errors.New("webhook api key required")
	}

	subPath := strings.Trim(strings.TrimSpace(target.SubPath), "/")
	if subPath == "" {
		subPath = models.DefaultWebhookSubPath
	}

	return fmt.Sprintf("%s/%s/%s", server, subPath, url.PathEscape(apiKey)), nil
}

// renderWebhookText renders the title as a markdown heading followed by the
// message.
func renderWebhookText(title, message string, breaks bool) string {
	var b strings.Builder
	if trimmed := strings.TrimSpace(title); trimmed != "" {
		fmt.Fprintf(&b, "# %s \n", trimmed)
	}
	if trimmed := strings.TrimSpace(message); trimmed != "" {
		fmt.Fprintf(&b, "%s \n", trimmed)
	}

	text := b.String()
	if breaks {
		text = markdownBreaks(text)
	}
	return text
}

func (w *webhookSender) send(ctx context.Context, target *models.NotificationTarget, title, message, image string) error {
	endpoint, err := webhookEndpoint(target)
	if err != nil {
		return err
	}

	text := renderWebhookText(title, message, target.MarkdownBreaks)
	if text == "" {
		return errors.New("title and message are both empty")
	}

	encoded, err := json.Marshal(webhookPayload{Text: text, Image: image})
	if err != nil {
		return err
	}

	return retry.Do(
		func() error {
			return w.post(ctx, endpoint, encoded)
		},
		retry.Context(ctx),
		retry.Attempts(webhookAttempts),
		retry.Delay(w.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var perm *permanentError
			return !errors.As(err, &perm)
		}),
		retry.OnRetry(func(n uint, err error) {
			w.logger.Debug().Err(err).Uint("attempt", n+1).Str("target", target.Name).Msg("notifications: retrying webhook")
		}),
	)
}

func (w *webhookSender) post(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &permanentError{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	res, err := w.client.Do(req)
	if err != nil {
		// the endpoint carries the api key in its path
		return errors.New(strings.ReplaceAll(redact.URLError(err).Error(), endpoint, redactEndpoint(endpoint)))
	}
	defer httphelpers.DrainAndClose(res)

	if res.StatusCode == http.StatusOK {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	statusErr := fmt.Errorf("unexpected status: %d body: %s", res.StatusCode, strings.TrimSpace(string(snippet)))
	if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
		return &permanentError{err: statusErr}
	}
	return statusErr
}

func redactEndpoint(endpoint string) string {
	idx := strings.LastIndex(endpoint, "/")
	if idx < 0 {
		return endpoint
	}
	return endpoint[:idx+1] + "REDACTED"
}
