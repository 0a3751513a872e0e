package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var sample = Event{
	Kind:     KindCertificateApproved,
	Title:    "Certificate QCC2026100001 approved",
	Body:     "Approved by customer",
	Severity: SeveritySuccess,
	Fields: []Field{
		{Name: "order", Value: "po-1", Short: true},
		{Name: "approved_by", Value: "cust-1", Short: true},
	},
}

// --- Multi / Log ---

type recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recorder) Notify(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func TestMulti_DeliversToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{err: errors.New("down")}
	c := &recorder{}
	err := Multi{a, b, c}.Notify(context.Background(), sample)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(a.events) != 1 || len(c.events) != 1 {
		t.Errorf("delivery stopped at failing notifier: a=%d c=%d", len(a.events), len(c.events))
	}
}

func TestMulti_Empty(t *testing.T) {
	if err := (Multi{}).Notify(context.Background(), sample); err != nil {
		t.Errorf("empty Multi = %v", err)
	}
}

func TestLog_WritesEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLog(zap.New(core))
	if err := n.Notify(context.Background(), sample); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Message != sample.Title {
		t.Errorf("Message = %q", entries[0].Message)
	}
	if entries[0].ContextMap()["order"] != "po-1" {
		t.Errorf("fields = %v", entries[0].ContextMap())
	}
}

func TestEvent_Color(t *testing.T) {
	tests := map[string]string{
		SeveritySuccess: ColorSuccess,
		SeverityInfo:    ColorInfo,
		SeverityWarning: ColorWarning,
		SeverityError:   ColorError,
		"":              ColorInfo,
	}
	for sev, want := range tests {
		if got := (Event{Severity: sev}).Color(); got != want {
			t.Errorf("Color(%q) = %q, want %q", sev, got, want)
		}
	}
}

// --- Slack ---

type mockSlack struct {
	mu        sync.Mutex
	channels  []string
	calls     int
	failCount int
	err       error
}

func (m *mockSlack) PostMessageContext(_ context.Context, channelID string, _ ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", "", m.err
	}
	if m.calls <= m.failCount {
		return "", "", &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
	}
	m.channels = append(m.channels, channelID)
	return channelID, "1234.5678", nil
}

func TestNewSlack_Validation(t *testing.T) {
	if _, err := NewSlack(SlackOpts{ChannelID: "C1"}); err == nil {
		t.Error("expected error without token")
	}
	if _, err := NewSlack(SlackOpts{BotToken: "xoxb"}); err == nil {
		t.Error("expected error without channel")
	}
}

func TestSlack_Notify(t *testing.T) {
	mock := &mockSlack{}
	s, err := NewSlack(SlackOpts{ChannelID: "C1", Client: mock})
	if err != nil {
		t.Fatalf("NewSlack: %v", err)
	}
	if err := s.Notify(context.Background(), sample); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(mock.channels) != 1 || mock.channels[0] != "C1" {
		t.Errorf("channels = %v", mock.channels)
	}
}

func TestSlack_RetriesRateLimit(t *testing.T) {
	mock := &mockSlack{failCount: 2}
	s, _ := NewSlack(SlackOpts{ChannelID: "C1", Client: mock})
	if err := s.Notify(context.Background(), sample); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if mock.calls != 3 {
		t.Errorf("calls = %d, want 3", mock.calls)
	}
}

func TestSlack_NonRateLimitErrorNotRetried(t *testing.T) {
	mock := &mockSlack{err: errors.New("channel_not_found")}
	s, _ := NewSlack(SlackOpts{ChannelID: "C1", Client: mock})
	if err := s.Notify(context.Background(), sample); err == nil {
		t.Fatal("expected error")
	}
	if mock.calls != 1 {
		t.Errorf("calls = %d, want 1", mock.calls)
	}
}

func TestEventToAttachment(t *testing.T) {
	att := eventToAttachment(sample)
	if att.Title != sample.Title || att.Text != sample.Body {
		t.Errorf("attachment = %+v", att)
	}
	if att.Color != ColorSuccess {
		t.Errorf("Color = %q", att.Color)
	}
	if len(att.Fields) != 2 || !att.Fields[0].Short {
		t.Errorf("Fields = %+v", att.Fields)
	}
}

// --- Discord ---

type mockDiscord struct {
	mu        sync.Mutex
	embeds    []*discordgo.MessageEmbed
	calls     int
	failCount int
}

func (m *mockDiscord) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failCount {
		return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: 429}}
	}
	m.embeds = append(m.embeds, embed)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func TestDiscord_Notify(t *testing.T) {
	mock := &mockDiscord{}
	d, err := NewDiscord(DiscordOpts{ChannelID: "42", Session: mock})
	if err != nil {
		t.Fatalf("NewDiscord: %v", err)
	}
	if err := d.Notify(context.Background(), sample); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(mock.embeds) != 1 {
		t.Fatalf("embeds = %d", len(mock.embeds))
	}
	e := mock.embeds[0]
	if e.Title != sample.Title || e.Color != 0x36a64f {
		t.Errorf("embed = %+v", e)
	}
	if len(e.Fields) != 2 || !e.Fields[1].Inline {
		t.Errorf("Fields = %+v", e.Fields)
	}
}

func TestDiscord_RetriesRateLimit(t *testing.T) {
	mock := &mockDiscord{failCount: 1}
	d, _ := NewDiscord(DiscordOpts{ChannelID: "42", Session: mock})
	d.baseBackoff = time.Millisecond
	if err := d.Notify(context.Background(), sample); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if mock.calls != 2 {
		t.Errorf("calls = %d, want 2", mock.calls)
	}
}

func TestDiscord_CancelledDuringBackoff(t *testing.T) {
	mock := &mockDiscord{failCount: 10}
	d, _ := NewDiscord(DiscordOpts{ChannelID: "42", Session: mock})
	d.baseBackoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := d.Notify(ctx, sample); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := map[string]int{
		"#36a64f": 0x36a64f,
		"e53935":  0xe53935,
		"#zzz":    0,
	}
	for in, want := range tests {
		if got := parseHexColor(in); got != want {
			t.Errorf("parseHexColor(%q) = %#x, want %#x", in, got, want)
		}
	}
}

// --- NATS ---

type mockPublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	return nil
}

func TestNATS_Notify(t *testing.T) {
	pub := &mockPublisher{}
	n := NewNATS(pub, "factory.qc.")
	if err := n.Notify(context.Background(), sample); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != "factory.qc.certificate.approved" {
		t.Fatalf("subjects = %v", pub.subjects)
	}
	var got Event
	if err := json.Unmarshal(pub.payloads[0], &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Kind != sample.Kind || len(got.Fields) != 2 {
		t.Errorf("payload = %+v", got)
	}
}

func TestNATS_CancelledContext(t *testing.T) {
	pub := &mockPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewNATS(pub, "qc").Notify(ctx, sample); err == nil {
		t.Fatal("expected context error")
	}
	if len(pub.subjects) != 0 {
		t.Error("published despite cancelled context")
	}
}

func TestNATS_PublishError(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats: connection closed")}
	if err := NewNATS(pub, "qc").Notify(context.Background(), sample); err == nil {
		t.Fatal("expected error")
	}
}
