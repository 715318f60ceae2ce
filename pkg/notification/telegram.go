// Package notification provides the Telegram delivery channel and its inbound command handling
package notification

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/dexwatch/pkg/command"
	"github.com/raykavin/dexwatch/pkg/core"
	"github.com/raykavin/dexwatch/pkg/logger"
	tb "gopkg.in/tucnak/telebot.v2"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultCommandTimeout = 30 * time.Second
)

// chatRecipient addresses a chat by its numeric id or @username
type chatRecipient string

func (r chatRecipient) Recipient() string { return string(r) }

// Telegram implements the core.NotifierWithStart interface
type Telegram struct {
	client         *tb.Bot
	router         *command.Router
	log            logger.Logger
	timeout        time.Duration
	commandTimeout time.Duration
}

// Option is a function that configures a Telegram instance
type Option func(telegram *Telegram)

// WithTimeout sets the deadline of every Telegram API call
func WithTimeout(timeout time.Duration) Option {
	return func(telegram *Telegram) {
		telegram.timeout = timeout
	}
}

// WithCommandTimeout sets the deadline of an inbound command, the reply has its own
func WithCommandTimeout(timeout time.Duration) Option {
	return func(telegram *Telegram) {
		telegram.commandTimeout = timeout
	}
}

// NewTelegram creates the Telegram sink. When router is not nil the bot also
// answers inbound commands from the users allowed by settings.
func NewTelegram(settings core.TelegramSettings, router *command.Router, log logger.Logger, options ...Option) (*Telegram, error) {
	if settings.Token == "" {
		return nil, fmt.Errorf("%w: telegram token is required", core.ErrConfig)
	}

	bot := &Telegram{
		router:         router,
		log:            log,
		timeout:        defaultTimeout,
		commandTimeout: defaultCommandTimeout,
	}

	// Apply custom options if provided
	for _, option := range options {
		option(bot)
	}

	poller := &tb.LongPoller{Timeout: 10 * time.Second}
	reporter := func(err error) {
		log.WithError(err).Error("telegram poller error")
	}

	client, err := tb.NewBot(tb.Settings{
		Token:    settings.Token,
		Poller:   createAuthMiddleware(poller, settings.Users, log),
		Client:   &http.Client{Timeout: bot.timeout + poller.Timeout},
		Reporter: reporter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.client = client

	if router != nil {
		if err := setupCommands(client, router); err != nil {
			return nil, fmt.Errorf("failed to set commands: %w", err)
		}
		registerHandlers(client, bot)
	}

	return bot, nil
}

// createAuthMiddleware drops updates from senders outside the allow-list, an
// empty allow-list accepts everyone
func createAuthMiddleware(poller tb.Poller, users []int64, log logger.Logger) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			return false
		}

		if len(users) == 0 || slices.Contains(users, u.Message.Sender.ID) {
			return true
		}

		log.WithField("sender", u.Message.Sender.ID).Warn("unauthorized user")
		return false
	})
}

// setupCommands publishes the router commands in the bot menu
func setupCommands(client *tb.Bot, router *command.Router) error {
	commands := make([]tb.Command, 0, len(router.Commands()))
	for _, cmd := range router.Commands() {
		commands = append(commands, tb.Command{Text: cmd.Name, Description: cmd.Description})
	}
	return client.SetCommands(commands)
}

// registerHandlers binds every router command plus free text
func registerHandlers(client *tb.Bot, bot *Telegram) {
	for _, cmd := range bot.router.Commands() {
		client.Handle("/"+cmd.Name, bot.handle(cmd.Name))
	}
	client.Handle(tb.OnText, bot.handle(""))
}

func (t *Telegram) handle(name string) func(m *tb.Message) {
	return func(m *tb.Message) {
		req := command.Request{
			Subscriber: strconv.FormatInt(m.Sender.ID, 10),
			Command:    name,
			Args:       m.Payload,
		}
		if name == "" {
			req.Command, req.Args = splitCommand(m.Text)
		}

		ctx, cancel := context.WithTimeout(context.Background(), t.commandTimeout)
		reply := t.router.Dispatch(ctx, req)
		cancel()

		sendCtx, cancelSend := context.WithTimeout(context.Background(), t.timeout)
		defer cancelSend()

		chat := strconv.FormatInt(m.Chat.ID, 10)
		if err := t.Send(sendCtx, chat, reply.Text, reply.Action); err != nil {
			t.log.WithError(err).WithField("chat", chat).Error("failed to send reply")
		}
	}
}

// splitCommand separates "/name@bot args" into name and args. Text without a
// leading slash is free text and yields an empty name.
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	token, args, _ := strings.Cut(text, " ")
	token, _, _ = strings.Cut(strings.TrimPrefix(token, "/"), "@")
	if token == "" {
		token = command.Help
	}
	return token, strings.TrimSpace(args)
}

// Start begins polling Telegram for inbound commands
func (t *Telegram) Start() {
	go t.client.Start()
}

// Stop ends polling
func (t *Telegram) Stop() {
	t.client.Stop()
}

// Send delivers text to recipient, with an optional link button
func (t *Telegram) Send(ctx context.Context, recipient string, text string, action *core.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	options := &tb.SendOptions{DisableWebPagePreview: true}
	if action != nil {
		options.ReplyMarkup = &tb.ReplyMarkup{
			InlineKeyboard: [][]tb.InlineButton{{{Text: action.Label, URL: action.URL}}},
		}
	}

	if _, err := t.client.Send(chatRecipient(recipient), text, options); err != nil {
		return fmt.Errorf("failed to send telegram message to %s: %w", recipient, err)
	}
	return nil
}
