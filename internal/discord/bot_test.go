package discord

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/telephonist/internal/app"
	"github.com/MrWong99/telephonist/internal/config"
	"github.com/MrWong99/telephonist/internal/discord/mock"
	"github.com/MrWong99/telephonist/internal/effect"
	"github.com/MrWong99/telephonist/internal/observe"
	dialermock "github.com/MrWong99/telephonist/pkg/dialer/mock"
)

const contactsYAML = `
contacts:
  - id: alice
    name: Alice Smith
    numbers: ["111"]
  - id: bob
    name: Bob
    numbers: ["222", "223"]
`

func newApp(t *testing.T, dial *dialermock.Dispatcher) *app.App {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.yaml")
	if err := os.WriteFile(path, []byte(contactsYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Directory: config.DirectoryConfig{ContactsFile: path},
		Matcher:   config.MatcherConfig{TokenWindows: true},
		Discord:   config.DiscordConfig{Token: "test"},
		Dialogue:  config.DialogueConfig{TurnsPerSecond: 0.001, TurnBurst: 3},
	}
	cfg.ApplyDefaults()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("config: %v", err)
	}
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	a, err := app.New(context.Background(), cfg, app.WithDispatcher(dial), app.WithMetrics(m))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { a.Shutdown(context.Background()) })
	return a
}

func message(channel, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "m1",
		ChannelID: channel,
		GuildID:   "g1",
		Content:   content,
		Author:    &discordgo.User{ID: "u1"},
	}
}

func buttonClick(channel, customID string, member *discordgo.Member) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: channel,
		Member:    member,
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID},
	}}
}

func TestPermissionChecker_IsCaller(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		roleID string
		member *discordgo.Member
		want   bool
	}{
		{"member with role", "role-123", &discordgo.Member{Roles: []string{"role-456", "role-123"}}, true},
		{"member without role", "role-123", &discordgo.Member{Roles: []string{"role-456"}}, false},
		{"no role configured", "", &discordgo.Member{}, true},
		{"direct message without role configured", "", nil, true},
		{"direct message with role configured", "role-123", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NewPermissionChecker(tt.roleID).IsCaller(tt.member); got != tt.want {
				t.Errorf("IsCaller = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOnMessage_ConfirmFlow(t *testing.T) {
	t.Parallel()

	dial := &dialermock.Dispatcher{}
	a := newApp(t, dial)
	h := NewHandler(a, NewPermissionChecker(""), "", nil)
	s := &mock.Session{}
	ctx := context.Background()

	h.OnMessage(ctx, s, message("c1", "call Alice"), "bot")
	sent := s.LastSent()
	if sent == nil {
		t.Fatal("no reply sent")
	}
	if sent.ChannelID != "c1" || sent.Message.Content != "Should I call Alice Smith?" {
		t.Errorf("reply = %+v", sent.Message)
	}
	if sent.Message.Reference == nil || sent.Message.Reference.MessageID != "m1" {
		t.Error("reply does not reference the request")
	}

	// Someone else in the same channel answers the question.
	answer := message("c1", "yes")
	answer.Author = &discordgo.User{ID: "u2"}
	h.OnMessage(ctx, s, answer, "bot")
	if got := dial.Calls(); len(got) != 1 || got[0] != "111" {
		t.Errorf("dialled %v, want [111]", got)
	}
	if len(s.Sent) != 2 || s.Sent[1].Message.Embeds[0].Title != "Calling 111" {
		t.Errorf("confirmation reply = %+v", s.LastSent())
	}
}

func TestOnMessage_ListWithButtons(t *testing.T) {
	t.Parallel()

	a := newApp(t, &dialermock.Dispatcher{})
	h := NewHandler(a, NewPermissionChecker(""), "", nil)
	s := &mock.Session{}

	h.OnMessage(context.Background(), s, message("c1", "call bob"), "bot")
	sent := s.LastSent()
	if sent == nil {
		t.Fatal("no reply sent")
	}
	if sent.Message.Content != "I found 2 contacts" {
		t.Errorf("content = %q", sent.Message.Content)
	}
	if len(sent.Message.Components) != 1 {
		t.Fatalf("components = %+v", sent.Message.Components)
	}
	row := sent.Message.Components[0].(discordgo.ActionsRow)
	var ids []string
	for _, c := range row.Components {
		ids = append(ids, c.(discordgo.Button).CustomID)
	}
	if strings.Join(ids, ",") != "call:222,call:223,call:111" {
		t.Errorf("button ids = %v", ids)
	}
}

func TestOnMessage_Ignored(t *testing.T) {
	t.Parallel()

	a := newApp(t, &dialermock.Dispatcher{})
	h := NewHandler(a, NewPermissionChecker("callers"), "g1", []string{"c1"})
	s := &mock.Session{}
	member := &discordgo.Member{Roles: []string{"callers"}}

	tests := []struct {
		name string
		msg  func() *discordgo.Message
	}{
		{"bot author", func() *discordgo.Message {
			m := message("c1", "call bob")
			m.Author.Bot = true
			m.Member = member
			return m
		}},
		{"self", func() *discordgo.Message {
			m := message("c1", "call bob")
			m.Author.ID = "bot"
			m.Member = member
			return m
		}},
		{"other channel", func() *discordgo.Message {
			m := message("c2", "call bob")
			m.Member = member
			return m
		}},
		{"other guild", func() *discordgo.Message {
			m := message("c1", "call bob")
			m.GuildID = "g2"
			m.Member = member
			return m
		}},
		{"missing role", func() *discordgo.Message { return message("c1", "call bob") }},
		{"blank", func() *discordgo.Message {
			m := message("c1", "   ")
			m.Member = member
			return m
		}},
		{"chatter", func() *discordgo.Message {
			m := message("c1", "good morning everyone")
			m.Member = member
			return m
		}},
	}
	for _, tt := range tests {
		h.OnMessage(context.Background(), s, tt.msg(), "bot")
		if len(s.Sent) != 0 {
			t.Errorf("%s: reply sent: %+v", tt.name, s.LastSent())
			s.Reset()
		}
	}
}

func TestOnMessage_RateLimited(t *testing.T) {
	t.Parallel()

	a := newApp(t, &dialermock.Dispatcher{})
	h := NewHandler(a, NewPermissionChecker(""), "", nil)
	s := &mock.Session{}

	for range 5 {
		h.OnMessage(context.Background(), s, message("c1", "call bob"), "bot")
	}
	if len(s.Sent) != 3 {
		t.Errorf("replies = %d, want burst of 3", len(s.Sent))
	}
	// Other channels have their own budget.
	h.OnMessage(context.Background(), s, message("c2", "call bob"), "bot")
	if len(s.Sent) != 4 {
		t.Errorf("replies = %d, want 4", len(s.Sent))
	}
}

func TestCallButton(t *testing.T) {
	t.Parallel()

	dial := &dialermock.Dispatcher{}
	a := newApp(t, dial)
	h := NewHandler(a, NewPermissionChecker("callers"), "", nil)
	r := NewCommandRouter()
	h.Register(r)
	s := &mock.Session{}
	ctx := context.Background()

	r.Handle(ctx, s, buttonClick("c1", "call:222", &discordgo.Member{Roles: []string{"callers"}}))
	if got := dial.Calls(); len(got) != 1 || got[0] != "222" {
		t.Errorf("dialled %v", got)
	}
	resp := s.LastResponse()
	if resp == nil || resp.Data.Content != "Calling 222" || resp.Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Errorf("response = %+v", resp)
	}

	r.Handle(ctx, s, buttonClick("c1", "call:223", &discordgo.Member{}))
	if len(dial.Calls()) != 1 {
		t.Error("call placed without caller role")
	}
	if resp := s.LastResponse(); !strings.Contains(resp.Data.Content, "not allowed") {
		t.Errorf("response = %q", resp.Data.Content)
	}

	r.Handle(ctx, s, buttonClick("c1", "other", nil))
	if resp := s.LastResponse(); resp.Data.Content != "Unknown component." {
		t.Errorf("response = %q", resp.Data.Content)
	}
}

func TestResetCommand(t *testing.T) {
	t.Parallel()

	a := newApp(t, &dialermock.Dispatcher{})
	h := NewHandler(a, NewPermissionChecker(""), "", nil)
	r := NewCommandRouter()
	h.Register(r)
	s := &mock.Session{}
	ctx := context.Background()

	h.OnMessage(ctx, s, message("c1", "call Alice"), "bot")
	if _, ok := a.Conversations().Get(ConversationID("c1")); !ok {
		t.Fatal("channel conversation not opened")
	}

	reset := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "c1",
		Data:      discordgo.ApplicationCommandInteractionData{Name: "reset"},
	}}
	r.Handle(ctx, s, reset)
	if _, ok := a.Conversations().Get(ConversationID("c1")); ok {
		t.Error("conversation still open after reset")
	}
	if resp := s.LastResponse(); resp.Data.Content != "Conversation reset." {
		t.Errorf("response = %q", resp.Data.Content)
	}

	if cmds := r.ApplicationCommands(); len(cmds) != 1 || cmds[0].Name != "reset" {
		t.Errorf("commands = %+v", cmds)
	}
}

func TestMessageBuilder(t *testing.T) {
	t.Parallel()

	b := &messageBuilder{}
	ctx := context.Background()
	_ = b.Speak(ctx, "one")
	_ = b.Speak(ctx, "two")

	rows := make([]effect.Row, 30)
	for i := range rows {
		rows[i] = effect.Row{Name: "N", Number: string(rune('a' + i%26)), Clickable: i%2 == 0}
	}
	_ = b.Show(ctx, effect.ShowRows(rows))
	msg := b.build()

	if msg.Content != "one\ntwo" {
		t.Errorf("content = %q", msg.Content)
	}
	// 15 clickable rows fill three action rows of five.
	if len(msg.Components) != 3 {
		t.Errorf("action rows = %d, want 3", len(msg.Components))
	}
	if got := buttonLabel("", "123"); got != "123" {
		t.Errorf("label = %q", got)
	}
	if got := []rune(buttonLabel(strings.Repeat("x", 100), "1")); len(got) != 80 {
		t.Errorf("label length = %d, want 80", len(got))
	}
}
