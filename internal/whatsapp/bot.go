package whatsapp

import (
	"context"
	"errors"
	"time"

	"legal-ease-backend/internal/orchestrator"
	"legal-ease-backend/internal/shared/telemetry"
	"legal-ease-backend/internal/shared/util"
)

// uploadFilename names chat uploads, which arrive without one.
const uploadFilename = "whatsapp_document.pdf"

const defaultSendTimeout = 30 * time.Second

// Orchestrator is the subset of the orchestrator the chat channel drives.
type Orchestrator interface {
	Upload(ctx context.Context, req orchestrator.UploadRequest) (orchestrator.Result, error)
	Ask(ctx context.Context, req orchestrator.QuestionRequest) (orchestrator.Result, error)
	Reset(ctx context.Context, req orchestrator.ResetRequest) (orchestrator.Result, error)
}

// Counter counts chat traffic.
type Counter interface {
	IncWhatsApp(direction, status string)
}

// Bot turns classified inbound messages into orchestrator calls and chat replies.
type Bot struct {
	Svc     Orchestrator
	Sender  Sender
	Media   MediaFetcher
	Metrics Counter
	// Timeout bounds the media download and orchestrator call for one message.
	Timeout time.Duration
	// SendTimeout bounds each outbound reply. Replies are detached from the
	// handling deadline so a timed-out analysis still reports its failure.
	SendTimeout time.Duration
}

// Handle processes one inbound message. Errors are reported to the user and logged.
func (b *Bot) Handle(ctx context.Context, m Message) {
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	kind := Classify(m)
	b.count("inbound", string(kind))

	switch kind {
	case KindHelp:
		b.send(ctx, m.From, helpText)
	case KindWelcome:
		b.send(ctx, m.From, welcomeText)
	case KindUnsupported:
		b.send(ctx, m.From, unsupportedText)
	case KindReset:
		res, err := b.Svc.Reset(ctx, orchestrator.ResetRequest{Owner: m.From, Channel: orchestrator.ChannelWhatsApp})
		b.reply(ctx, m.From, res, err)
	case KindAsk:
		res, err := b.Svc.Ask(ctx, orchestrator.QuestionRequest{
			Owner:    m.From,
			Channel:  orchestrator.ChannelWhatsApp,
			Question: m.Body,
		})
		b.reply(ctx, m.From, res, err)
	case KindUpload:
		b.upload(ctx, m)
	}
}

func (b *Bot) upload(ctx context.Context, m Message) {
	b.send(ctx, m.From, analyzingText)

	data, err := b.Media.Fetch(ctx, m.MediaURL)
	if err != nil {
		telemetry.Warn("whatsapp.media_fetch_failed", map[string]any{
			"owner_hash": util.HashUserKey(m.From),
			"error":      err,
		})
		b.send(ctx, m.From, formatError(downloadFailed))
		return
	}

	res, err := b.Svc.Upload(ctx, orchestrator.UploadRequest{
		Owner:    m.From,
		Channel:  orchestrator.ChannelWhatsApp,
		Filename: uploadFilename,
		Data:     data,
	})
	b.reply(ctx, m.From, res, err)
}

func (b *Bot) reply(ctx context.Context, to string, res orchestrator.Result, err error) {
	if err != nil {
		telemetry.Error("whatsapp.orchestrator_failed", map[string]any{
			"owner_hash": util.HashUserKey(to),
			"error":      err,
		})
		b.send(ctx, to, formatError(internalFailure))
		return
	}
	b.send(ctx, to, orchestrator.Render[string](replies{}, res))
}

func (b *Bot) send(ctx context.Context, to, body string) {
	timeout := b.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := b.Sender.Send(sendCtx, to, body); err != nil {
		status := "failed"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = "timeout"
		}
		b.count("outbound", status)
		telemetry.Error("whatsapp.send_failed", map[string]any{
			"owner_hash": util.HashUserKey(to),
			"error":      err,
		})
		return
	}
	b.count("outbound", "sent")
}

func (b *Bot) count(direction, status string) {
	if b.Metrics != nil {
		b.Metrics.IncWhatsApp(direction, status)
	}
}
