package linky

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/pevans/linky/nativemsg"
	"github.com/rs/zerolog"
)

// internalErrorMessage is the reply for failures that are not the sender's
// fault.
const internalErrorMessage = "Internal error processing message"

// Host serves the browser's native messaging connection. It reads framed
// messages from in, runs each through the pipeline, and writes one framed
// reply per message to out.
type Host struct {
	pipeline *Pipeline
	in       io.Reader
	out      io.Writer
	log      zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostLogger sets the host's logger. It must not write to out.
func WithHostLogger(l zerolog.Logger) HostOption {
	return func(h *Host) { h.log = l }
}

// NewHost creates a host over the given streams.
func NewHost(pipeline *Pipeline, in io.Reader, out io.Writer, opts ...HostOption) *Host {
	h := &Host{
		pipeline: pipeline,
		in:       in,
		out:      out,
		log:      zerolog.Nop(),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type frame struct {
	payload []byte
	err     error
}

// Run serves messages until the input reaches a clean end, Stop is called,
// or ctx is cancelled. A broken frame or a failed reply ends the loop with an
// error.
func (h *Host) Run(ctx context.Context) error {
	h.log.Info().Msg("Native host starting")
	defer h.Stop()

	frames := make(chan frame)
	h.wg.Add(1)
	go h.readFrames(frames)

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Native host stopping (context cancelled)")
			return ctx.Err()
		case <-h.stopChan:
			h.log.Info().Msg("Native host stopping")
			return nil
		case f := <-frames:
			if errors.Is(f.err, io.EOF) {
				h.log.Info().Msg("Input closed, native host exiting")
				return nil
			}
			if f.err != nil {
				h.log.Error().Err(f.err).Msg("Failed to read message")
				if err := nativemsg.WriteMessage(h.out, nativemsg.Response{Saved: false, Error: internalErrorMessage}); err != nil {
					return fmt.Errorf("failed to write response: %w", err)
				}
				return fmt.Errorf("failed to read message: %w", f.err)
			}

			resp := h.Handle(ctx, f.payload)
			if err := nativemsg.WriteMessage(h.out, resp); err != nil {
				h.log.Error().Err(err).Msg("Failed to write response")
				return fmt.Errorf("failed to write response: %w", err)
			}
		}
	}
}

// Stop signals the host to stop. It does not interrupt a blocked read.
func (h *Host) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

// Wait blocks until the reader goroutine has exited.
func (h *Host) Wait() {
	h.wg.Wait()
}

// readFrames delivers frames until the first error, which is delivered too.
func (h *Host) readFrames(frames chan<- frame) {
	defer h.wg.Done()

	for {
		payload, err := nativemsg.ReadFrame(h.in)
		select {
		case frames <- frame{payload: payload, err: err}:
		case <-h.stopChan:
			return
		}
		if err != nil {
			return
		}
	}
}

// Handle processes one frame body and returns the reply for it.
func (h *Host) Handle(ctx context.Context, payload []byte) nativemsg.Response {
	requestID := uuid.NewString()
	log := h.log.With().Str("request_id", requestID).Logger()

	msg, err := nativemsg.Decode(payload)
	if err != nil {
		var verr *nativemsg.ValidationError
		if errors.As(err, &verr) {
			log.Warn().Str("reason", verr.Message).Msg("Rejected invalid message")
			return nativemsg.Response{Saved: false, Error: "Validation error: " + verr.Message}
		}
		log.Error().Err(err).Msg("Failed to decode message")
		return nativemsg.Response{Saved: false, Error: internalErrorMessage}
	}

	log.Debug().Str("url", msg.URL).Str("type", string(msg.Type)).Bool("markup", msg.Markup).Msg("Received message")

	var result Result
	if msg.Markup {
		result = h.pipeline.Process(ctx, Page{URL: msg.URL, Markup: msg.Content, Title: msg.Title})
	} else {
		result = h.pipeline.Save(ctx, msg.URL, msg.Content)
	}

	return responseFor(result)
}

// responseFor converts a pipeline result to the wire reply. Skipped captures
// are reported as unsaved with the reason.
func responseFor(r Result) nativemsg.Response {
	resp := nativemsg.Response{
		Saved:          r.Saved,
		CollectionName: r.Bucket,
		Filename:       r.Filename,
		Error:          r.Error,
	}
	if r.Skipped != "" && resp.Error == "" {
		resp.Error = "skipped: " + r.Skipped
	}
	return resp
}
