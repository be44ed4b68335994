package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	tele "gopkg.in/telebot.v3"

	"surveyplanner/internal/planning"
	"surveyplanner/internal/trigger"
)

type fakeSender struct {
	to   tele.Recipient
	text string
	opts []interface{}
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.to = to
	f.text, _ = what.(string)
	f.opts = opts
	return &tele.Message{}, f.err
}

func report() planning.RunReport {
	return planning.RunReport{
		RunID:             "run-1",
		BaseDate:          planning.Date{Year: 2025, Month: 1, Day: 10},
		Group:             "crypto-forecast-schedules",
		Status:            trigger.StatusPartialSuccess,
		SurveysConsidered: 3,
		SurveysPlanned:    2,
		TriggersPlanned:   10,
		Skipped:           []planning.SkippedSurvey{{SurveyID: 9, Reason: "schedule <4> not found"}},
		Dispatch: trigger.DispatchReport{
			CreatedCount:         8,
			SkippedExistingCount: 1,
			Failed:               []trigger.Failure{{TriggerName: "x", Error: "throttled"}},
		},
	}
}

func TestRunFinishedSendsSummary(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	n := NewWithSender(s, 4242, nil)
	n.RunFinished(context.Background(), report())
	n.Wait()

	if s.to.Recipient() != "4242" {
		t.Fatalf("recipient = %q", s.to.Recipient())
	}
	for _, want := range []string{
		"Planning run partial_success",
		"Base date: 2025-01-10",
		"Surveys: 2 planned / 3 considered",
		"10 planned, 8 created, 1 existing, 1 failed, 0 not attempted",
		"Skipped survey 9: schedule &lt;4&gt; not found",
	} {
		if !strings.Contains(s.text, want) {
			t.Fatalf("message missing %q:\n%s", want, s.text)
		}
	}
	if len(s.opts) != 1 || s.opts[0] != tele.ModeHTML {
		t.Fatalf("opts = %v", s.opts)
	}
}

func TestRunFinishedIgnoresSendError(t *testing.T) {
	t.Parallel()

	s := &fakeSender{err: errors.New("chat not found")}
	n := NewWithSender(s, 1, nil)
	n.RunFinished(context.Background(), report())
	n.Wait()
	if s.text == "" {
		t.Fatal("send not attempted")
	}
}

func TestFormatReportCapsLongRuns(t *testing.T) {
	t.Parallel()

	r := report()
	r.Skipped = nil
	for i := 0; i < 500; i++ {
		r.Skipped = append(r.Skipped, planning.SkippedSurvey{SurveyID: int64(i), Reason: strings.Repeat("schedule missing ", 40)})
	}
	r.Error = strings.Repeat("x", 10000)

	text := FormatReport(r)
	if n := utf8.RuneCountInString(text); n > maxMessageRunes {
		t.Fatalf("message has %d runes, limit %d", n, maxMessageRunes)
	}
	if got := strings.Count(text, "Skipped survey"); got != maxSkippedLines {
		t.Fatalf("skipped lines = %d, want %d", got, maxSkippedLines)
	}
	if !strings.Contains(text, "... and 490 more skipped") {
		t.Fatalf("missing overflow line:\n%s", text)
	}
	if !strings.HasSuffix(text, "</code>") {
		t.Fatalf("error line was cut:\n%s", text[len(text)-80:])
	}
}

func TestNewTelegramOffline(t *testing.T) {
	t.Parallel()

	n, err := NewTelegram("123456:TEST", 1, nil)
	if err != nil || n == nil {
		t.Fatalf("NewTelegram = %v, %v", n, err)
	}
}
