// Package submission validates and sends the current image and description
// to the recommendation backend and tracks the request phase.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raine/fittingap/internal/media"
	"github.com/raine/fittingap/internal/recommend"
	"github.com/raine/fittingap/internal/results"
	"github.com/rs/zerolog/log"
)

// Phase is the lifecycle phase of a submission.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseSucceeded
	PhaseFailed
)

// String returns a human-readable name for the Phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseSubmitting:
		return "Submitting"
	case PhaseSucceeded:
		return "Succeeded"
	case PhaseFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// GenericErrorMessage is shown when a failure carries no status text.
const GenericErrorMessage = "Something went wrong"

var (
	// ErrNothingToSubmit is returned when there is neither an image nor a
	// non-blank description. Its text is the prompt shown to the user.
	ErrNothingToSubmit = errors.New("Please provide either an image or a description.")
	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("a submission is already in progress")
)

// State is the observable submission state. ErrorMessage is set only in
// PhaseFailed. ID names the latest submission that passed validation and
// stays set after it completes; it is zero before the first one.
type State struct {
	ID           uint64
	Phase        Phase
	Description  string
	ErrorMessage string
}

// Busy reports whether a request is in flight.
func (s State) Busy() bool {
	return s.Phase == PhaseSubmitting
}

// Uploader sends one multipart upload to the backend.
type Uploader interface {
	UploadImage(ctx context.Context, req recommend.UploadRequest) ([]recommend.Product, error)
}

// Request is a submission that passed validation and is ready to be sent.
type Request struct {
	ID     uint64
	Upload recommend.UploadRequest
}

// Outcome is the result of executing a Request.
type Outcome struct {
	ID       uint64
	Products []recommend.Product
	Err      error
}

// Controller owns the submission state. Like media.Controller it is driven by
// a single goroutine; only Execute may run elsewhere.
type Controller struct {
	uploader Uploader
	state    State
	seq      uint64
	inflight uint64
}

func NewController(uploader Uploader) *Controller {
	return &Controller{uploader: uploader}
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// SetDescription updates the description sent with the next submission.
func (c *Controller) SetDescription(description string) {
	c.state.Description = description
}

// Begin validates the image and description and moves to PhaseSubmitting.
// It fails with ErrNothingToSubmit when there is no payload and the trimmed
// description is empty, and with ErrBusy while a request is in flight. In
// both cases the state is left untouched.
func (c *Controller) Begin(image media.CurrentImage) (Request, error) {
	if c.state.Busy() {
		return Request{}, ErrBusy
	}

	payload, hasPayload := image.Payload()
	if !hasPayload && strings.TrimSpace(c.state.Description) == "" {
		return Request{}, ErrNothingToSubmit
	}

	c.seq++
	c.inflight = c.seq
	c.state.ID = c.seq
	c.state.Phase = PhaseSubmitting
	c.state.ErrorMessage = ""

	req := Request{
		ID:     c.seq,
		Upload: recommend.UploadRequest{Description: c.state.Description},
	}
	if hasPayload {
		req.Upload.File = &recommend.File{
			Name:     payload.Name,
			MimeType: payload.MimeType,
			Data:     payload.Data,
		}
	}

	log.Info().
		Uint64("submission", req.ID).
		Bool("hasImage", hasPayload).
		Str("source", image.Kind().String()).
		Msg("submission started")
	return req, nil
}

// Execute performs the network round trip for req. It does not touch the
// controller's state and may be called from any goroutine.
func (c *Controller) Execute(ctx context.Context, req Request) Outcome {
	products, err := c.uploader.UploadImage(ctx, req.Upload)
	return Outcome{ID: req.ID, Products: products, Err: err}
}

// Complete applies an outcome. It returns the received items and true when
// the outcome belongs to the in-flight submission; stale outcomes are
// dropped and return false.
func (c *Controller) Complete(out Outcome) ([]results.Item, bool) {
	if !c.state.Busy() || out.ID != c.inflight {
		log.Warn().Uint64("submission", out.ID).Msg("dropping stale submission result")
		return nil, false
	}
	c.inflight = 0

	if out.Err != nil {
		c.state.Phase = PhaseFailed
		c.state.ErrorMessage = ErrorMessage(out.Err)
		log.Error().Err(out.Err).Uint64("submission", out.ID).Msg("submission failed")
		return []results.Item{}, true
	}

	c.state.Phase = PhaseSucceeded
	items := Items(out.Products)
	log.Info().Uint64("submission", out.ID).Int("items", len(items)).Msg("submission succeeded")
	return items, true
}

// ErrorMessage converts a request error into the message shown to the user.
func ErrorMessage(err error) string {
	var statusErr *recommend.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusText != "" {
		return statusErr.Error()
	}
	return GenericErrorMessage
}

// Items converts backend products into result items, keeping their order.
func Items(products []recommend.Product) []results.Item {
	items := make([]results.Item, 0, len(products))
	for _, p := range products {
		items = append(items, results.Item{
			Name:              p.Name,
			RawPriceText:      p.Price,
			Description:       p.Description,
			ImagePathFragment: p.ImagePath,
		})
	}
	return items
}
