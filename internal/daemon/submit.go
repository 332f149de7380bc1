package daemon

import (
	"context"
	"net/url"
	"strings"

	"reelhouse/internal/api"
	"reelhouse/internal/config"
	"reelhouse/internal/fileutil"
	"reelhouse/internal/logging"
	"reelhouse/internal/queue"
	"reelhouse/internal/services"
)

func (d *Daemon) resolvePath(field, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", services.Wrap(services.ErrValidation, "api", "submit", field+" is required", nil)
	}
	path, err := d.cfg.ResolveLibraryPath(value)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "api", "submit", field, err)
	}
	return path, nil
}

func (d *Daemon) resolveExisting(field, value string) (string, error) {
	path, err := d.resolvePath(field, value)
	if err != nil {
		return "", err
	}
	exists, err := fileutil.Exists(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "api", "submit", path, err)
	}
	if !exists {
		return "", services.Wrap(services.ErrNotFound, "api", "submit", field+" does not exist: "+path, nil)
	}
	return path, nil
}

func validateCallbackURL(raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return services.Wrap(services.ErrValidation, "api", "submit", "callbackUrl must be an absolute http(s) URL", nil)
	}
	return nil
}

func validateTier(tier string) error {
	switch tier {
	case "", config.TierSmall, config.TierLarge:
		return nil
	default:
		return services.Wrap(services.ErrValidation, "api", "submit", "unknown tier "+tier, nil)
	}
}

func correlationID(ctx context.Context) string {
	id, _ := services.RequestIDFromContext(ctx)
	return id
}

// SubmitConvert enqueues a conversion and the subtitle extraction for the
// same input.
func (d *Daemon) SubmitConvert(ctx context.Context, req api.ConvertRequest) (*api.SubmitResponse, error) {
	input, err := d.resolveExisting("input", req.Input)
	if err != nil {
		return nil, err
	}
	output, err := d.resolvePath("output", req.Output)
	if err != nil {
		return nil, err
	}
	callbackURL := strings.TrimSpace(req.CallbackURL)
	if err := validateCallbackURL(callbackURL); err != nil {
		return nil, err
	}
	tier := strings.ToLower(strings.TrimSpace(req.Tier))
	if err := validateTier(tier); err != nil {
		return nil, err
	}

	correlation := correlationID(ctx)
	job, err := d.store.Enqueue(ctx, queue.NewJob{
		CorrelationID: correlation,
		Kind:          queue.KindConvert,
		Input:         input,
		Output:        output,
		CallbackURL:   callbackURL,
		Tier:          tier,
	})
	if err != nil {
		return nil, err
	}
	d.workflow.Notify(queue.LaneConversion)

	resp := &api.SubmitResponse{Job: api.FromJob(job)}
	related, err := d.store.Enqueue(ctx, queue.NewJob{
		CorrelationID: correlation,
		Kind:          queue.KindExtractSubtitles,
		Input:         input,
	})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "subtitle extraction not queued", "subtitle_enqueue_failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
	} else {
		d.workflow.Notify(queue.LaneSubtitles)
		resp.Related = append(resp.Related, api.FromJob(related))
	}

	d.logger.Info("conversion queued",
		logging.String(logging.FieldEventType, "conversion_queued"),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldCorrelationID, job.CorrelationID),
		logging.String("input", input),
		logging.String("output", output),
		logging.Bool("callback", callbackURL != ""),
	)
	return resp, nil
}

// SubmitSubtitles enqueues an extract-subtitles or convert-subtitles job.
func (d *Daemon) SubmitSubtitles(ctx context.Context, kind queue.Kind, req api.InputRequest) (*api.SubmitResponse, error) {
	input, err := d.resolveExisting("input", req.Input)
	if err != nil {
		return nil, err
	}
	job, err := d.store.Enqueue(ctx, queue.NewJob{
		CorrelationID: correlationID(ctx),
		Kind:          kind,
		Input:         input,
	})
	if err != nil {
		return nil, err
	}
	d.workflow.Notify(queue.LaneSubtitles)
	d.logger.Info("subtitle job queued",
		logging.String(logging.FieldEventType, "subtitle_job_queued"),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("kind", string(kind)),
		logging.String("input", input),
	)
	return &api.SubmitResponse{Job: api.FromJob(job)}, nil
}
