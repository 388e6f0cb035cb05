package channel

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bwmarrin/discordgo"

	"multibot/internal/message"
)

// PlatformDiscord tags requests from the Discord gateway.
const PlatformDiscord = "Discord"

// Discord listens on the gateway and answers in the originating
// channel.
type Discord struct {
	token   string
	guildID string
	factory Factory
	logger  *slog.Logger
	session *discordgo.Session
}

type DiscordAdapterConfig struct {
	Token   string
	GuildID string // restrict to one guild when set
	Factory Factory
	Logger  *slog.Logger
}

func NewDiscord(cfg DiscordAdapterConfig) *Discord {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Discord{
		token:   cfg.Token,
		guildID: cfg.GuildID,
		factory: cfg.Factory,
		logger:  cfg.Logger,
	}
}

// Run connects and listens until the context is cancelled.
func (d *Discord) Run(ctx context.Context) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author.ID == s.State.User.ID || m.Author.Bot {
			return
		}
		if d.guildID != "" && m.GuildID != d.guildID {
			return
		}
		d.handleMessage(m)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.logger.Info("discord adapter connected")

	<-ctx.Done()
	d.logger.Info("discord adapter stopping")
	return session.Close()
}

func (d *Discord) handleMessage(m *discordgo.MessageCreate) {
	req := &message.Request{
		Platform: PlatformDiscord,
		UserID:   m.Author.ID,
		Msg:      m.Content,
	}
	if m.GuildID != "" {
		req.GroupID = m.ChannelID
	}

	disp, err := d.factory()
	if err != nil {
		d.logger.Error("cannot build dispatcher", "error", err)
		return
	}
	Deliver(disp, disp.Handle(req), func(resp message.Response) {
		d.send(m.ChannelID, resp)
	}, nil)
}

func (d *Discord) send(channelID string, resp message.Response) {
	switch v := resp.(type) {
	case *message.Msg:
		d.sendText(channelID, withMentions(v.Text, v.AtList))
	case *message.GroupMsg:
		target := v.GroupID
		if target == "" {
			target = channelID
		}
		d.sendText(target, withMentions(v.Text, v.AtList))
	case *message.Image:
		d.sendFile(channelID, v.File)
	case *message.GroupImage:
		target := v.GroupID
		if target == "" {
			target = channelID
		}
		d.sendFile(target, v.File)
	case *message.Music:
		d.sendText(channelID, v.Info())
	default:
		d.logger.Warn("unsupported response on discord", "kind", fmt.Sprintf("%T", resp))
	}
}

func (d *Discord) sendText(channelID, text string) {
	if text == "" {
		return
	}
	if _, err := d.session.ChannelMessageSend(channelID, text); err != nil {
		d.logger.Error("cannot send discord message", "channel_id", channelID, "error", err)
	}
}

func (d *Discord) sendFile(channelID, path string) {
	file, err := os.Open(path)
	if err != nil {
		d.logger.Error("cannot open file for discord", "path", path, "error", err)
		return
	}
	defer file.Close()
	if _, err := d.session.ChannelFileSend(channelID, file.Name(), file); err != nil {
		d.logger.Error("cannot send discord file", "channel_id", channelID, "error", err)
	}
}
