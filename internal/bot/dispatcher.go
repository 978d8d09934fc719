// Package bot turns chat updates into generation flows: it routes commands and
// photos, keeps per-user session state and drives the remote client.
package bot

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"docbot/internal/domain"
	"docbot/internal/metrics"
	"docbot/internal/params"
	"docbot/internal/providers/veriftools"
	"docbot/internal/workpool"
)

// Message is one inbound chat update reduced to what the dispatcher needs.
type Message struct {
	ChatID      int64
	UserID      int64
	Text        string
	PhotoFileID string
}

// Replier sends replies back to a chat.
type Replier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, img domain.RenderedImage, caption string) error
}

// PhotoFetcher downloads a photo the user uploaded.
type PhotoFetcher interface {
	FetchPhoto(ctx context.Context, fileID string) ([]byte, error)
}

// Generator is the remote document API.
type Generator interface {
	Submit(ctx context.Context, generator string, fields map[string]string, image *veriftools.Attachment) (string, error)
	AwaitCompletion(ctx context.Context, taskID string, interval, timeout time.Duration) (domain.TaskSnapshot, error)
	PayForResult(ctx context.Context, taskID string) (string, error)
	FetchImage(ctx context.Context, url string) (domain.RenderedImage, error)
	Profile() veriftools.Profile
}

// SessionStore keeps per-user flow state between updates.
type SessionStore interface {
	SetAwaitingPhoto(user int64, template string, fields map[string]string, needsParams bool)
	AttachPhoto(user int64, data []byte) (domain.Session, error)
	SetAwaitingParameters(user int64) error
	SetFields(user int64, fields map[string]string)
	Get(user int64) domain.Session
	Clear(user int64)
}

// Diagnostics keeps remote payloads of failed flows.
type Diagnostics interface {
	Dump(ctx context.Context, flowID, stage string, payload []byte) (string, error)
}

// Options wires a Dispatcher.
type Options struct {
	Templates    []domain.Template
	Generator    Generator
	Sessions     SessionStore
	Replier      Replier
	Photos       PhotoFetcher
	Pool         *workpool.Pool
	Metrics      *metrics.Metrics
	Diagnostics  Diagnostics
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Dispatcher routes messages to commands and generation flows.
type Dispatcher struct {
	templates    map[string]domain.Template
	order        []string
	gen          Generator
	sessions     SessionStore
	replier      Replier
	photos       PhotoFetcher
	pool         *workpool.Pool
	metrics      *metrics.Metrics
	diagnostics  Diagnostics
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewDispatcher validates opts and builds a Dispatcher.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.Generator == nil || opts.Sessions == nil || opts.Replier == nil {
		return nil, fmt.Errorf("%w: bot: generator, sessions and replier are required", domain.ErrConfiguration)
	}
	if len(opts.Templates) == 0 {
		return nil, fmt.Errorf("%w: bot: no templates", domain.ErrConfiguration)
	}
	pool := opts.Pool
	if pool == nil {
		pool = workpool.New(0)
	}
	d := &Dispatcher{
		templates:    make(map[string]domain.Template, len(opts.Templates)),
		gen:          opts.Generator,
		sessions:     opts.Sessions,
		replier:      opts.Replier,
		photos:       opts.Photos,
		pool:         pool,
		metrics:      opts.Metrics,
		diagnostics:  opts.Diagnostics,
		pollInterval: opts.PollInterval,
		pollTimeout:  opts.PollTimeout,
	}
	for _, t := range opts.Templates {
		t = t.Normalize()
		if _, dup := d.templates[t.Command]; dup {
			return nil, fmt.Errorf("%w: bot: duplicate command /%s", domain.ErrConfiguration, t.Command)
		}
		d.templates[t.Command] = t
		d.order = append(d.order, t.Command)
	}
	return d, nil
}

// Handle processes one update. Errors are reported to the user and logged;
// the returned error is only the failure to reply.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) error {
	if msg.PhotoFileID != "" {
		d.metrics.Update("photo")
		return d.handlePhoto(ctx, msg)
	}
	name, args, ok := splitCommand(msg.Text)
	if !ok {
		d.metrics.Update("text")
		return d.handleText(ctx, msg)
	}
	d.metrics.Update("command")

	switch name {
	case "start", "help":
		return d.reply(ctx, msg, d.helpText())
	case "cancel":
		if d.sessions.Get(msg.UserID).Step == domain.StepIdle {
			return d.reply(ctx, msg, msgNothingToCancel)
		}
		d.sessions.Clear(msg.UserID)
		return d.reply(ctx, msg, msgCancelled)
	case "params":
		return d.handleParams(ctx, msg, args)
	}
	if tpl, found := d.templates[name]; found {
		return d.handleTemplate(ctx, msg, tpl, args)
	}
	return d.reply(ctx, msg, msgUnknownCommand)
}

func (d *Dispatcher) handleTemplate(ctx context.Context, msg Message, tpl domain.Template, args string) error {
	inline, err := params.Parse(args)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("command", tpl.Command).Msg("bot: rejected inline parameters")
		return d.reply(ctx, msg, invalidParams(err))
	}
	fields := tpl.DefaultFields()
	maps.Copy(fields, inline)

	if !tpl.RequiresPhoto {
		if tpl.NeedsParams {
			d.sessions.SetAwaitingPhoto(msg.UserID, tpl.Command, fields, true)
			if err := d.sessions.SetAwaitingParameters(msg.UserID); err != nil {
				return err
			}
			return d.reply(ctx, msg, paramsPrompt(fields))
		}
		return d.runGeneration(ctx, msg, tpl, fields, nil)
	}
	d.sessions.SetAwaitingPhoto(msg.UserID, tpl.Command, fields, tpl.NeedsParams)
	return d.reply(ctx, msg, fmt.Sprintf(msgSendPhoto, tpl.Command))
}

func (d *Dispatcher) handlePhoto(ctx context.Context, msg Message) error {
	sess := d.sessions.Get(msg.UserID)
	if sess.Step == domain.StepIdle {
		return d.reply(ctx, msg, fmt.Sprintf(msgUseCommandFirst, d.photoCommand()))
	}
	tpl, ok := d.templates[sess.Template]
	if !ok {
		d.sessions.Clear(msg.UserID)
		return d.reply(ctx, msg, fmt.Sprintf(msgUseCommandFirst, d.photoCommand()))
	}
	if !tpl.RequiresPhoto {
		return d.reply(ctx, msg, fmt.Sprintf(msgNoPhotoNeeded, tpl.Command)+" "+paramsPrompt(sess.Fields))
	}
	if d.photos == nil {
		return d.reply(ctx, msg, msgPhotoUnavailable)
	}

	data, err := workpool.Call(ctx, d.pool, func(ctx context.Context) ([]byte, error) {
		return d.photos.FetchPhoto(ctx, msg.PhotoFileID)
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("bot: photo download failed")
		return d.reply(ctx, msg, msgPhotoUnavailable)
	}
	sess, err = d.sessions.AttachPhoto(msg.UserID, data)
	if err != nil {
		return d.reply(ctx, msg, fmt.Sprintf(msgUseCommandFirst, d.photoCommand()))
	}

	if sess.NeedsParams {
		if sess.Step == domain.StepAwaitingPhoto {
			if err := d.sessions.SetAwaitingParameters(msg.UserID); err != nil {
				return err
			}
		}
		return d.reply(ctx, msg, paramsPrompt(sess.Fields))
	}
	return d.runGeneration(ctx, msg, tpl, sess.Fields, sess.Image)
}

func (d *Dispatcher) handleParams(ctx context.Context, msg Message, args string) error {
	sess := d.sessions.Get(msg.UserID)
	switch sess.Step {
	case domain.StepIdle:
		return d.reply(ctx, msg, msgGenerateFirst)
	case domain.StepAwaitingPhoto:
		return d.reply(ctx, msg, msgPhotoFirst)
	}

	tpl, ok := d.templates[sess.Template]
	if !ok {
		d.sessions.Clear(msg.UserID)
		return d.reply(ctx, msg, msgGenerateFirst)
	}
	parsed, err := params.Parse(args)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("bot: rejected parameters")
		return d.reply(ctx, msg, invalidParams(err))
	}
	d.sessions.SetFields(msg.UserID, parsed)
	sess = d.sessions.Get(msg.UserID)
	return d.runGeneration(ctx, msg, tpl, sess.Fields, sess.Image)
}

func (d *Dispatcher) handleText(ctx context.Context, msg Message) error {
	sess := d.sessions.Get(msg.UserID)
	switch sess.Step {
	case domain.StepAwaitingPhoto:
		return d.reply(ctx, msg, fmt.Sprintf(msgSendPhoto, sess.Template))
	case domain.StepAwaitingParameters:
		return d.reply(ctx, msg, paramsPrompt(sess.Fields))
	}
	return d.reply(ctx, msg, msgUnknownCommand)
}

func (d *Dispatcher) reply(ctx context.Context, msg Message, text string) error {
	if err := d.replier.SendText(ctx, msg.ChatID, text); err != nil {
		return fmt.Errorf("bot: reply: %w", err)
	}
	return nil
}

// photoCommand names the first command that takes a photo, for hints.
func (d *Dispatcher) photoCommand() string {
	for _, name := range d.order {
		if d.templates[name].RequiresPhoto {
			return name
		}
	}
	return d.order[0]
}

func (d *Dispatcher) helpText() string {
	var b strings.Builder
	b.WriteString(msgWelcome)
	for _, name := range d.order {
		t := d.templates[name]
		desc := t.Description
		if desc == "" {
			desc = veriftools.GeneratorSlug(t.Generator)
		}
		fmt.Fprintf(&b, "\n/%s - %s", name, desc)
	}
	b.WriteString("\n/params KEY=value ... - supply fields when asked")
	b.WriteString("\n/cancel - abandon the current request")
	return b.String()
}

// splitCommand returns the lower-cased command name without the leading slash
// or @botname suffix, and the remaining argument text.
func splitCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		rest = head[i+1:] + " " + rest
		head = head[:i]
	}
	head, _, _ = strings.Cut(strings.TrimPrefix(head, "/"), "@")
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

func invalidParams(err error) string {
	reason := err.Error()
	if errors.Is(err, domain.ErrValidation) {
		reason = strings.TrimPrefix(reason, domain.ErrValidation.Error()+": ")
	}
	return msgInvalidParams + reason
}
