// processor.go
package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrIndexExhausted is returned when the index has no postable image even
// after a reset
var ErrIndexExhausted = errors.New("no postable images in index")

// PostProcessor handles the pick, fetch, post, record workflow for one image
type PostProcessor struct {
	store       ImageStore
	fetcher     Fetcher
	composer    *PostComposer
	gateway     Gateway
	credentials *Credentials
	altText     AltTextWriter
	logger      *zap.Logger
	dryRun      bool
}

// NewPostProcessor creates a processor with its collaborators
func NewPostProcessor(
	store ImageStore,
	fetcher Fetcher,
	composer *PostComposer,
	gateway Gateway,
	credentials *Credentials,
	logger *zap.Logger,
) *PostProcessor {
	return &PostProcessor{
		store:       store,
		fetcher:     fetcher,
		composer:    composer,
		gateway:     gateway,
		credentials: credentials,
		logger:      logger,
	}
}

// SetAltTextWriter enables generated alt text for posts without configured alt text
func (p *PostProcessor) SetAltTextWriter(w AltTextWriter) {
	p.altText = w
}

// SetDryRun stops the processor before submission. A dry run never writes to
// the store, so an exhausted index is reported instead of reset.
func (p *PostProcessor) SetDryRun(dryRun bool) {
	p.dryRun = dryRun
}

// Run posts one image and records the outcome. Per-image failures are
// recorded as statuses; the returned error is reserved for failures that
// leave no record context or break the store.
func (p *PostProcessor) Run(ctx context.Context) (*RunResult, error) {
	record, err := p.selectRecord(ctx)
	if err != nil {
		return nil, err
	}

	log := p.logger.With(zap.Uint64("image_id", record.ID))
	log.Info("Selected image",
		zap.String("title", record.Title),
		zap.String("image_url", record.ImageURL),
		zap.Stringer("licence", record.Licence))

	result := &RunResult{ImageID: record.ID, Title: record.Title}

	post, status, err := p.preparePost(ctx, record, log)
	if err != nil {
		return nil, err
	}

	if p.dryRun {
		result.DryRun = true
		result.Status = status
		if post == nil {
			log.Info("Dry run, status not written", zap.Stringer("status", status))
			return result, nil
		}
		log.Info("Dry run, not posting",
			zap.String("headline", post.Headline),
			zap.String("markdown", post.Markdown),
			zap.Strings("tags", post.Tags),
			zap.String("alt_text", post.Attachments[0].AltText),
			zap.Int("bytes", len(post.Attachments[0].Data)))
		return result, nil
	}

	if post != nil {
		status, result.PostID = p.submit(ctx, post, log)
		if err := ctx.Err(); err != nil && status != StatusSuccess {
			return nil, fmt.Errorf("run interrupted while posting image %d: %w", record.ID, err)
		}
	}

	if err := p.recordStatus(ctx, record.ID, status, log); err != nil {
		return nil, err
	}

	result.Status = status
	return result, nil
}

// selectRecord returns the next unposted image, resetting the index once if
// none is left
func (p *PostProcessor) selectRecord(ctx context.Context) (*ImageRecord, error) {
	record, err := p.store.NextPending(ctx)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if p.dryRun {
		p.logger.Info("Dry run, index would be reset")
		return nil, ErrIndexExhausted
	}

	p.logger.Info("Resetting index...")
	n, err := p.store.ResetRetryable(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Index reset", zap.Int64("rows_updated", n))

	record, err = p.store.NextPending(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrIndexExhausted
		}
		return nil, err
	}
	return record, nil
}

// preparePost downloads the image and composes the post. A nil post comes
// with the failure status to record.
func (p *PostProcessor) preparePost(ctx context.Context, record *ImageRecord, log *zap.Logger) (*Post, Status, error) {
	log.Debug("Fetching image")
	data, err := p.fetcher.Fetch(ctx, record.ImageURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, StatusUnposted, fmt.Errorf("run interrupted while fetching image %d: %w", record.ID, ctxErr)
		}
		status := statusForFetchError(err)
		log.Error("Fetching image failed", zap.Error(err), zap.Stringer("status", status))
		return nil, status, nil
	}
	log.Debug("Fetched image", zap.Int("bytes", len(data)))

	altText := ""
	if p.altText != nil && p.composer.AltText() == "" {
		altText, err = p.altText.Describe(ctx, record, data)
		if err != nil {
			log.Warn("Generating alt text failed", zap.Error(err))
			altText = ""
		} else {
			log.Debug("Generated alt text", zap.String("alt_text", altText))
		}
	}

	post, err := p.composer.Compose(record, data, altText)
	if err != nil {
		return nil, StatusUnposted, fmt.Errorf("composing post for image %d: %w", record.ID, err)
	}
	return post, StatusUnposted, nil
}

// submit logs in and creates the post, returning the status to record
func (p *PostProcessor) submit(ctx context.Context, post *Post, log *zap.Logger) (Status, string) {
	session, err := p.gateway.Login(ctx, p.credentials.Email, p.credentials.Password)
	if err != nil {
		log.Error("Login failed", zap.Error(err))
		return StatusPostFail, ""
	}

	postID, err := session.CreatePost(ctx, p.credentials.Project, post)
	if err != nil {
		log.Error("Creating post failed", zap.Error(err), zap.String("project", p.credentials.Project))
		return StatusPostFail, ""
	}

	log.Info("Posted image", zap.String("post_id", postID), zap.String("project", p.credentials.Project))
	return StatusSuccess, postID
}

func (p *PostProcessor) recordStatus(ctx context.Context, id uint64, status Status, log *zap.Logger) error {
	log.Info("Writing new status", zap.Stringer("status", status))
	// The outcome is recorded even if the run is being interrupted
	n, err := p.store.WriteStatus(context.WithoutCancel(ctx), id, status)
	if err != nil {
		return err
	}
	if n == 0 {
		log.Warn("Image no longer in index, status not written", zap.Stringer("status", status))
		return nil
	}
	log.Debug("Status written", zap.Int64("rows_updated", n))
	return nil
}
