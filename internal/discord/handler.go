package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/MrWong99/telephonist/internal/app"
	"github.com/MrWong99/telephonist/internal/effect"
	"github.com/MrWong99/telephonist/internal/observe"
)

// CallButtonPrefix prefixes the custom_id of the buttons under a result set.
// The rest of the custom_id is the number to call.
const CallButtonPrefix = "call:"

// maxButtons is Discord's limit of 5 action rows with 5 buttons each.
const maxButtons = 25

// Session is the subset of [discordgo.Session] the handlers use.
type Session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

var _ Session = (*discordgo.Session)(nil)

// Handler turns channel messages into dialogue turns. Every channel holds
// one conversation shared by everyone writing in it.
type Handler struct {
	app      *app.App
	perms    *PermissionChecker
	guildID  string
	channels []string
	timeout  time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHandler returns a Handler for a. An empty channels list accepts every
// channel; an empty guildID accepts every guild.
func NewHandler(a *app.App, perms *PermissionChecker, guildID string, channels []string) *Handler {
	return &Handler{
		app:      a,
		perms:    perms,
		guildID:  guildID,
		channels: channels,
		timeout:  30 * time.Second,
		limiters: make(map[string]*rate.Limiter),
	}
}

// ConversationID returns the conversation id used for a channel.
func ConversationID(channelID string) string {
	return "discord:" + channelID
}

// Register adds the handler's commands and components to r.
func (h *Handler) Register(r *CommandRouter) {
	r.RegisterComponentPrefix(CallButtonPrefix, h.handleCallButton)
	r.RegisterCommand(&discordgo.ApplicationCommand{
		Name:        "reset",
		Description: "Forget the pending question in this channel",
	}, h.handleReset)
}

// accepts reports whether a message should be treated as a turn.
func (h *Handler) accepts(m *discordgo.Message, selfID string) bool {
	if m.Author == nil || m.Author.Bot || m.Author.ID == selfID {
		return false
	}
	if h.guildID != "" && m.GuildID != "" && m.GuildID != h.guildID {
		return false
	}
	if len(h.channels) > 0 && !slices.Contains(h.channels, m.ChannelID) {
		return false
	}
	if strings.TrimSpace(m.Content) == "" {
		return false
	}
	return h.perms.IsCaller(m.Member)
}

func (h *Handler) limiter(channelID string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[channelID]
	if !ok {
		l = h.app.NewTurnLimiter()
		h.limiters[channelID] = l
	}
	return l
}

// OnMessage processes one channel message. Messages that start nothing and
// answer nothing get no reply, so the bot stays quiet in busy channels.
func (h *Handler) OnMessage(ctx context.Context, s Session, m *discordgo.Message, selfID string) {
	if !h.accepts(m, selfID) {
		return
	}
	log := observe.Logger(ctx).With("channel", m.ChannelID, "author", m.Author.ID)
	if !h.limiter(m.ChannelID).Allow() {
		log.Debug("discord: turn rate limited")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	conv, _ := h.app.Conversations().GetOrOpen(ConversationID(m.ChannelID), "discord")
	reply, err := conv.Turn(ctx, m.Content)
	if err != nil {
		log.Error("discord: turn failed", "err", err)
		return
	}
	if reply.Effect.IsZero() {
		return
	}

	out := &messageBuilder{}
	if err := h.app.Performer(out, out).Perform(ctx, reply.Effect); err != nil {
		log.Warn("discord: effect failed", "err", err)
	}
	if out.empty() {
		return
	}
	msg := out.build()
	msg.Reference = m.Reference()
	if _, err := s.ChannelMessageSendComplex(m.ChannelID, msg); err != nil {
		log.Warn("discord: failed to send reply", "err", err)
	}
}

func (h *Handler) handleCallButton(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	if !h.perms.IsCaller(i.Member) {
		RespondEphemeral(s, i, "You are not allowed to place calls.")
		return
	}
	number := strings.TrimPrefix(i.MessageComponentData().CustomID, CallButtonPrefix)
	if number == "" {
		RespondEphemeral(s, i, "Unknown component.")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.app.CallNumber(ctx, nil, number); err != nil {
		slog.Warn("discord: call failed", "number", number, "err", err)
		RespondError(s, i, fmt.Errorf("call to %s failed", number))
		return
	}
	RespondEphemeral(s, i, h.app.Messages().Calling(number))
}

func (h *Handler) handleReset(_ context.Context, s Session, i *discordgo.InteractionCreate) {
	if h.app.Conversations().Close(ConversationID(i.ChannelID)) {
		RespondEphemeral(s, i, "Conversation reset.")
		return
	}
	RespondEphemeral(s, i, "Nothing to reset.")
}

// messageBuilder collects the speech and display steps of one effect into a
// single Discord message. Spoken text becomes the content, message blocks
// become embeds and result sets become an embed with call buttons.
type messageBuilder struct {
	lines   []string
	embeds  []*discordgo.MessageEmbed
	buttons []discordgo.MessageComponent
}

var (
	_ effect.Speaker = (*messageBuilder)(nil)
	_ effect.Display = (*messageBuilder)(nil)
)

func (b *messageBuilder) Speak(_ context.Context, message string) error {
	b.lines = append(b.lines, message)
	return nil
}

func (b *messageBuilder) Show(_ context.Context, step effect.Step) error {
	if len(step.Rows) == 0 {
		b.embeds = append(b.embeds, &discordgo.MessageEmbed{Title: step.Message, Description: step.Detail})
		return nil
	}

	var desc strings.Builder
	name := ""
	for _, row := range step.Rows {
		if row.Name != "" {
			name = row.Name
			fmt.Fprintf(&desc, "**%s** %s\n", row.Name, row.Number)
		} else {
			fmt.Fprintf(&desc, "%s\n", row.Number)
		}
		if row.Clickable && len(b.buttons) < maxButtons {
			b.buttons = append(b.buttons, discordgo.Button{
				Label:    buttonLabel(name, row.Number),
				Style:    discordgo.SuccessButton,
				CustomID: CallButtonPrefix + row.Number,
			})
		}
	}
	b.embeds = append(b.embeds, &discordgo.MessageEmbed{Description: strings.TrimRight(desc.String(), "\n")})
	return nil
}

func buttonLabel(name, number string) string {
	label := number
	if name != "" {
		label = name + " · " + number
	}
	// Discord caps button labels at 80 characters.
	if r := []rune(label); len(r) > 80 {
		label = string(r[:79]) + "…"
	}
	return label
}

func (b *messageBuilder) empty() bool {
	return len(b.lines) == 0 && len(b.embeds) == 0
}

func (b *messageBuilder) build() *discordgo.MessageSend {
	msg := &discordgo.MessageSend{
		Content: strings.Join(b.lines, "\n"),
		Embeds:  b.embeds,
	}
	for start := 0; start < len(b.buttons); start += 5 {
		end := min(start+5, len(b.buttons))
		msg.Components = append(msg.Components, discordgo.ActionsRow{Components: b.buttons[start:end]})
	}
	return msg
}
