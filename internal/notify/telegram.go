// Package notify reports finished planning runs to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"surveyplanner/internal/planning"
	"surveyplanner/internal/trigger"
)

// Sender is the part of *tele.Bot used here.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

const (
	sendTimeout = 10 * time.Second
	// Telegram rejects messages longer than 4096 characters.
	maxMessageRunes = 4096
	maxSkippedLines = 10
	maxReasonRunes  = 200
)

type Telegram struct {
	sender Sender
	chat   tele.ChatID
	log    *zap.Logger
	wg     sync.WaitGroup
}

// NewTelegram builds an offline bot: it only sends and never polls.
func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	tb, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: sendTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telebot: %w", err)
	}
	return NewWithSender(tb, chatID, log), nil
}

func NewWithSender(s Sender, chatID int64, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{sender: s, chat: tele.ChatID(chatID), log: log}
}

// RunFinished sends a summary of report in the background so the planning
// run does not wait on Telegram. Send errors are logged.
func (t *Telegram) RunFinished(_ context.Context, report planning.RunReport) {
	text := FormatReport(report)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.log.Error("panic sending run report", zap.Any("panic", r))
			}
		}()
		if _, err := t.sender.Send(t.chat, text, tele.ModeHTML); err != nil {
			t.log.Warn("failed to send run report", zap.String("run_id", report.RunID), zap.Error(err))
		}
	}()
}

// Wait blocks until every pending report has been sent or has failed.
func (t *Telegram) Wait() {
	t.wg.Wait()
}

// FormatReport renders report as Telegram HTML.
func FormatReport(r planning.RunReport) string {
	var b strings.Builder
	icon := "✅"
	switch r.Status {
	case trigger.StatusPartialSuccess:
		icon = "⚠️"
	case trigger.StatusError:
		icon = "❌"
	}
	fmt.Fprintf(&b, "%s <b>Planning run %s</b>\n", icon, html.EscapeString(r.Status))
	fmt.Fprintf(&b, "Base date: %s\nGroup: %s\n", r.BaseDate, html.EscapeString(r.Group))
	fmt.Fprintf(&b, "Surveys: %d planned / %d considered\n", r.SurveysPlanned, r.SurveysConsidered)
	fmt.Fprintf(&b, "Triggers: %d planned, %d created, %d existing, %d failed, %d not attempted\n",
		r.TriggersPlanned, r.Dispatch.CreatedCount, r.Dispatch.SkippedExistingCount,
		len(r.Dispatch.Failed), len(r.Dispatch.NotAttempted))
	if r.Repair != nil {
		fmt.Fprintf(&b, "Repair: %d missing, %d unexpected\n", len(r.Repair.Missing), len(r.Repair.Unexpected))
	}
	for i, s := range r.Skipped {
		if i == maxSkippedLines {
			fmt.Fprintf(&b, "... and %d more skipped\n", len(r.Skipped)-i)
			break
		}
		fmt.Fprintf(&b, "Skipped survey %d: %s\n", s.SurveyID, html.EscapeString(clip(s.Reason, maxReasonRunes)))
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "Warnings: %d\n", len(r.Warnings))
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "Error: <code>%s</code>\n", html.EscapeString(clip(r.Error, maxReasonRunes)))
	}
	return clip(strings.TrimRight(b.String(), "\n"), maxMessageRunes)
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// Nop discards reports.
type Nop struct{}

func (Nop) RunFinished(context.Context, planning.RunReport) {}

func (Nop) Wait() {}
