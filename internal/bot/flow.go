package bot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docbot/internal/domain"
	"docbot/internal/middleware"
	"docbot/internal/providers/veriftools"
	"docbot/internal/workpool"
)

// runGeneration drives submit, poll, pay and download for one attempt and
// replies with the image or a failure summary. The user's session is cleared
// on every exit path.
func (d *Dispatcher) runGeneration(ctx context.Context, msg Message, tpl domain.Template, fields map[string]string, image []byte) error {
	defer d.sessions.Clear(msg.UserID)

	flowID := middleware.RequestIDFromContext(ctx)
	if flowID == "" {
		flowID = uuid.NewString()
	}
	log := zerolog.Ctx(ctx).With().
		Str("flow_id", flowID).
		Str("template", tpl.Command).
		Int64("user_id", msg.UserID).
		Logger()

	if err := d.reply(ctx, msg, msgProcessing); err != nil {
		log.Warn().Err(err).Msg("bot: processing notice not sent")
	}

	d.metrics.FlowStarted()
	task, img, err := d.generate(ctx, tpl, fields, image)
	d.metrics.FlowFinished(tpl.Command, outcome(err))

	if err != nil {
		log.Error().Err(err).
			Str("task_id", task.ID).
			Str("status", string(task.Status)).
			Msg("bot: generation failed")
		d.keepDiagnostics(ctx, log, flowID, err)
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		return d.reply(ctx, msg, failureText(err))
	}

	if err := d.replier.SendPhoto(ctx, msg.ChatID, img, tpl.Caption); err != nil {
		log.Error().Err(err).Str("task_id", task.ID).Msg("bot: result delivery failed")
		return d.reply(ctx, msg, msgDeliveryFailed)
	}
	log.Info().Str("task_id", task.ID).Int("bytes", len(img.Data)).Msg("bot: generation delivered")
	return nil
}

// generate runs the remote stages through the worker pool. The returned task
// reflects how far the attempt got.
func (d *Dispatcher) generate(ctx context.Context, tpl domain.Template, fields map[string]string, image []byte) (domain.GenerationTask, domain.RenderedImage, error) {
	task := domain.GenerationTask{Template: tpl.Command}

	var attachment *veriftools.Attachment
	if len(image) > 0 {
		attachment = &veriftools.Attachment{
			Field:       tpl.ImageField,
			Filename:    "photo.jpg",
			ContentType: "image/jpeg",
			Data:        image,
		}
	}

	id, err := stage(ctx, d, "submit", func(ctx context.Context) (string, error) {
		return d.gen.Submit(ctx, tpl.Generator, fields, attachment)
	})
	if err != nil {
		task.Status = domain.TaskStatusError
		return task, domain.RenderedImage{}, err
	}
	task.ID = id
	task.Status = domain.TaskStatusSubmitted

	snap, err := stage(ctx, d, "poll", func(ctx context.Context) (domain.TaskSnapshot, error) {
		return d.gen.AwaitCompletion(ctx, id, d.pollInterval, d.pollTimeout)
	})
	if err != nil {
		task.Status = domain.TaskStatusError
		return task, domain.RenderedImage{}, err
	}
	task.Status = snap.Status
	task.ResultURL = snap.ResultURL

	if d.gen.Profile().PaymentRequired {
		url, err := stage(ctx, d, "pay", func(ctx context.Context) (string, error) {
			return d.gen.PayForResult(ctx, id)
		})
		if err != nil {
			task.Status = domain.TaskStatusError
			return task, domain.RenderedImage{}, err
		}
		task.Status = domain.TaskStatusPaid
		task.ResultURL = url
	}
	if task.ResultURL == "" {
		task.Status = domain.TaskStatusError
		return task, domain.RenderedImage{}, &domain.RemoteError{Kind: domain.ErrDownload, Op: "download", Err: errors.New("no result location")}
	}

	img, err := stage(ctx, d, "download", func(ctx context.Context) (domain.RenderedImage, error) {
		return d.gen.FetchImage(ctx, task.ResultURL)
	})
	if err != nil {
		task.Status = domain.TaskStatusError
		return task, domain.RenderedImage{}, err
	}
	return task, img, nil
}

func stage[T any](ctx context.Context, d *Dispatcher, name string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := workpool.Call(ctx, d.pool, fn)
	d.metrics.ObserveStage(name, time.Since(start), err)
	return out, err
}

func (d *Dispatcher) keepDiagnostics(ctx context.Context, log zerolog.Logger, flowID string, err error) {
	payload := domain.PayloadOf(err)
	if d.diagnostics == nil || len(payload) == 0 {
		return
	}
	var re *domain.RemoteError
	op := "remote"
	if errors.As(err, &re) && re.Op != "" {
		op = re.Op
	}
	key, dumpErr := d.diagnostics.Dump(context.WithoutCancel(ctx), flowID, op, payload)
	if dumpErr != nil {
		log.Warn().Err(dumpErr).Msg("bot: diagnostics not saved")
		return
	}
	log.Info().Str("key", key).Msg("bot: diagnostics saved")
}
