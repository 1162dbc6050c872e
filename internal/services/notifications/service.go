// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifications

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/rs/zerolog"

	"github.com/autobrr/sitestats/internal/models"
)

const (
	defaultQueueSize = 100
	defaultWorkers   = 2
)

type Notifier interface {
	Notify(event Event)
}

type Event struct {
	Type    EventType
	Title   string
	Message string
	// Image is forwarded to webhook targets only.
	Image        string
	Site         string
	Day          string
	Count        int
	ErrorMessage string
}

type Service struct {
	store     *models.NotificationTargetStore
	logger    zerolog.Logger
	queue     chan Event
	startOnce sync.Once
	webhook   *webhookSender
}

func NewService(store *models.NotificationTargetStore, logger zerolog.Logger) *Service {
	if store == nil {
		return nil
	}

	return &Service{
		store:   store,
		logger:  logger,
		queue:   make(chan Event, defaultQueueSize),
		webhook: newWebhookSender(logger),
	}
}

// ValidateTarget checks that a target can be delivered to without sending.
func ValidateTarget(target *models.NotificationTarget) error {
	if target == nil {
		return errors.New("notification target required")
	}

	switch target.Kind {
	case models.NotificationKindWebhook:
		_, err := webhookEndpoint(target)
		return err
	default:
		_, err := router.New(nil, target.URL)
		return err
	}
}

func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}

	s.startOnce.Do(func() {
		for range defaultWorkers {
			go s.worker(ctx)
		}
	})
}

func (s *Service) Notify(event Event) {
	if s == nil || s.store == nil {
		return
	}

	select {
	case s.queue <- event:
	default:
		s.logger.Warn().Str("event", string(event.Type)).Msg("notifications: queue full, dropping event")
	}
}

// Dispatch delivers event synchronously to every enabled target subscribed
// to its type and returns the number of successful sends.
func (s *Service) Dispatch(ctx context.Context, event Event) (int, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}

	targets, err := s.store.ListEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("list notification targets: %w", err)
	}
	if len(targets) == 0 {
		return 0, nil
	}

	title, message := formatEvent(event)
	if strings.TrimSpace(message) == "" {
		return 0, nil
	}

	sent := 0
	var errs []error
	for _, target := range targets {
		if !allowsEvent(target.EventTypes, event.Type) {
			s.logger.Debug().Str("target", target.Name).Str("event", string(event.Type)).Msg("notifications: event type not enabled for target")
			continue
		}

		if err := s.send(ctx, target, title, message, event.Image); err != nil {
			s.logger.Error().Err(err).Str("target", target.Name).Str("event", string(event.Type)).Msg("notifications: send failed")
			errs = append(errs, fmt.Errorf("%s: %w", target.Name, err))
			continue
		}
		sent++
	}

	return sent, errors.Join(errs...)
}

func (s *Service) SendTest(ctx context.Context, target *models.NotificationTarget, title, message string) error {
	if target == nil {
		return errors.New("notification target required")
	}

	return s.send(ctx, target, title, message, "")
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.queue:
			if _, err := s.Dispatch(ctx, event); err != nil {
				s.logger.Debug().Err(err).Str("event", string(event.Type)).Msg("notifications: dispatch finished with errors")
			}
		}
	}
}

func (s *Service) send(ctx context.Context, target *models.NotificationTarget, title, message, image string) error {
	if target.Kind == models.NotificationKindWebhook {
		return s.webhook.send(ctx, target, title, message, image)
	}
	return sendShoutrrr(target, title, message)
}

func sendShoutrrr(target *models.NotificationTarget, title, message string) error {
	sender, err := router.New(nil, target.URL)
	if err != nil {
		return err
	}

	params := types.Params{}
	if trimmed := strings.TrimSpace(title); trimmed != "" {
		params.SetTitle(truncateMessage(trimmed, maxTitleLength))
	}

	body := truncateMessage(message, maxMessageLength)
	if target.MarkdownBreaks {
		body = markdownBreaks(body)
	}

	results := sender.Send(body, &params)
	var errs []error
	for _, sendErr := range results {
		if sendErr != nil {
			errs = append(errs, sendErr)
		}
	}

	return errors.Join(errs...)
}

func formatEvent(event Event) (string, string) {
	customMessage := strings.TrimSpace(event.Message)

	switch event.Type {
	case EventSiteStatisticsDigest:
		return withDefaultTitle(event.Title, "Site statistics"), customMessage
	case EventSiteRefreshFailed:
		lines := []string{
			formatLine("Site", event.Site),
			formatLine("Day", event.Day),
			formatLine("Error", formatErrorMessage(event.ErrorMessage)),
		}
		return withDefaultTitle(event.Title, "Site refresh failed"), buildMessage(lines)
	case EventFillForwardCompleted:
		lines := []string{
			formatLine("Day", event.Day),
			formatLine("Sites copied", fmt.Sprintf("%d", event.Count)),
		}
		if customMessage != "" {
			lines = append(lines, splitMessageLines(customMessage)...)
		}
		return withDefaultTitle(event.Title, "Fill-forward completed"), buildMessage(lines)
	case EventFillForwardFailed:
		lines := []string{
			formatLine("Day", event.Day),
			formatLine("Error", formatErrorMessage(event.ErrorMessage)),
		}
		return withDefaultTitle(event.Title, "Fill-forward failed"), buildMessage(lines)
	case EventTest:
		return withDefaultTitle(event.Title, "Test notification"), customMessage
	default:
		return "", ""
	}
}

func allowsEvent(eventTypes []string, eventType EventType) bool {
	if len(eventTypes) == 0 || eventType == EventTest {
		return true
	}

	return slices.Contains(eventTypes, string(eventType))
}

func withDefaultTitle(override, fallback string) string {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		return trimmed
	}
	return fallback
}

func formatLine(label, value string) string {
	trimmedLabel := strings.TrimSpace(label)
	trimmedValue := strings.TrimSpace(value)
	if trimmedLabel == "" || trimmedValue == "" {
		return ""
	}
	return fmt.Sprintf("%s: %s", trimmedLabel, trimmedValue)
}

func buildMessage(lines []string) string {
	payload := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			payload = append(payload, trimmed)
		}
	}
	return strings.Join(payload, "\n")
}

func splitMessageLines(message string) []string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "\n")
	lines := make([]string, 0, len(parts))
	for _, part := range parts {
		if line := strings.TrimSpace(part); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// markdownBreaks turns every newline into a markdown hard break, dropping
// spaces that already precede it.
func markdownBreaks(text string) string {
	lines := strings.Split(text, "\n")
	for i := range len(lines) - 1 {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.Join(lines, "  \n")
}

const (
	// digests list every site, so this sits just under Discord's 2000 limit
	maxMessageLength = 1900
	maxTitleLength   = 80
)

func truncateMessage(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if utf8.RuneCountInString(trimmed) <= limit {
		return trimmed
	}
	runes := []rune(trimmed)
	if limit <= 1 {
		return string(runes[:limit])
	}
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

func formatErrorMessage(message string) string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "Unknown error"
	}
	return trimmed
}
