// Package worker consumes widget-script execution requests from a NATS queue
// group, runs them through the sandbox engine and replies with structured
// results. Oversized payloads travel through blob storage in both directions.
//
// Script failures are ordinary replies, not worker errors: only internal
// faults (broken envelopes aside, blob fetch/offload failures and the like)
// are logged as errors and reported to Sentry.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	inkererrors "github.com/usetrmnl/inker/pkg/errors"
	"github.com/usetrmnl/inker/pkg/message"
	"github.com/usetrmnl/inker/pkg/sandbox"
	"github.com/usetrmnl/inker/pkg/storage"
)

// Worker processes execution requests from a NATS queue subscription.
type Worker struct {
	conn   *nats.Conn
	engine *sandbox.Engine
	blobs  storage.BlobClient
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
}

// Option customizes a Worker.
type Option func(*Worker)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithBlobClient enables payload and result offloading through blob storage.
func WithBlobClient(blobs storage.BlobClient) Option {
	return func(w *Worker) {
		w.blobs = blobs
	}
}

// New creates a Worker bound to a connected NATS connection and an engine.
func New(conn *nats.Conn, engine *sandbox.Engine, cfg Config, opts ...Option) (*Worker, error) {
	if conn == nil {
		return nil, errors.New("NATS connection cannot be nil")
	}
	if engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	worker := &Worker{
		conn:   conn,
		engine: engine,
		cfg:    cfg,
		logger: zap.NewNop(),
		tracer: otel.Tracer("inker/worker"),
	}
	for _, opt := range opts {
		opt(worker)
	}
	return worker, nil
}

// Run subscribes to the configured subject as part of the queue group and
// processes requests until the context is cancelled. It blocks until all
// handler goroutines have drained.
func (w *Worker) Run(ctx context.Context) error {
	if !w.conn.IsConnected() {
		return inkererrors.ErrNotConnected
	}

	pending := make(chan *nats.Msg, w.cfg.PendingBuffer)
	sub, err := w.conn.ChanQueueSubscribe(w.cfg.Subject, w.cfg.Queue, pending)
	if err != nil {
		return inkererrors.NewError("SUBSCRIBE_FAILED",
			fmt.Sprintf("failed to subscribe to %s", w.cfg.Subject), err)
	}

	w.logger.Info("worker started",
		zap.String("subject", w.cfg.Subject),
		zap.String("queue", w.cfg.Queue),
		zap.Int("num_workers", w.cfg.NumWorkers))

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.NumWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for msg := range pending {
				w.handle(ctx, workerID, msg)
			}
		}(i)
	}

	<-ctx.Done()
	w.logger.Info("worker shutting down")

	if err := sub.Unsubscribe(); err != nil {
		w.logger.Warn("failed to unsubscribe", zap.Error(err))
	}
	close(pending)
	wg.Wait()

	w.logger.Info("worker stopped")
	return ctx.Err()
}

// handle processes one inbound message and replies to its reply subject.
func (w *Worker) handle(ctx context.Context, workerID int, msg *nats.Msg) {
	ctx, span := w.tracer.Start(ctx, "worker.handle",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("subject", msg.Subject),
		))
	defer span.End()

	start := time.Now()

	req, err := message.UnmarshalRequest(msg.Data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.logger.Error("malformed execution request",
			zap.Int("worker_id", workerID),
			zap.Error(err))
		w.reply(msg, &message.ExecuteReply{Success: false, Error: "malformed request envelope"})
		return
	}

	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.String("request.widget_id", req.WidgetID),
	)

	reply := w.process(ctx, req)
	reply.DurationMs = time.Since(start).Milliseconds()

	if reply.Success {
		span.SetStatus(codes.Ok, "request processed")
	} else {
		// A failed script is a normal outcome for the worker; the span
		// still records the message for trace search.
		span.SetAttributes(attribute.String("script.error", reply.Error))
	}

	w.logger.Info("processed execution request",
		zap.Int("worker_id", workerID),
		zap.String("request_id", req.RequestID),
		zap.String("widget_id", req.WidgetID),
		zap.Bool("success", reply.Success),
		zap.Int64("duration_ms", reply.DurationMs))

	w.reply(msg, reply)
}

// process resolves the request's data, executes the script and assembles the
// reply, offloading oversized results when a blob client is configured.
func (w *Worker) process(ctx context.Context, req *message.ExecuteRequest) *message.ExecuteReply {
	reply := &message.ExecuteReply{RequestID: req.RequestID}

	if err := req.Validate(); err != nil {
		reply.Error = fmt.Sprintf("%v: %v", inkererrors.ErrInvalidRequest, err)
		return reply
	}

	data, err := w.resolveData(ctx, req)
	if err != nil {
		w.reportInternal(err)
		w.logger.Error("failed to resolve request data",
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		reply.Error = fmt.Sprintf("failed to resolve request data: %v", err)
		return reply
	}

	result := w.engine.Execute(ctx, sandbox.Request{
		Code: req.Script,
		Data: data,
		Mode: req.Mode,
	})

	reply.Success = result.Success
	reply.Error = result.Error
	reply.Variables = result.Variables
	reply.Value = result.Value

	if result.Success && result.Value != nil {
		if err := w.maybeOffloadValue(ctx, req.RequestID, reply); err != nil {
			w.reportInternal(err)
			w.logger.Error("failed to offload result",
				zap.String("request_id", req.RequestID),
				zap.Error(err))
			*reply = message.ExecuteReply{
				RequestID: req.RequestID,
				Error:     fmt.Sprintf("failed to offload result: %v", err),
			}
		}
	}

	return reply
}

// resolveData produces the value bound to $ from the inline payload or the
// blob reference.
func (w *Worker) resolveData(ctx context.Context, req *message.ExecuteRequest) (interface{}, error) {
	raw := req.Data
	if req.DataRef != nil {
		if w.blobs == nil {
			return nil, fmt.Errorf("request references offloaded data but no blob client is configured")
		}
		fetched, err := w.blobs.Download(ctx, req.DataRef.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", inkererrors.ErrBlobNotFound, err)
		}
		raw = fetched
	}

	if len(raw) == 0 {
		return nil, nil
	}

	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("request data is not valid JSON: %w", err)
	}
	return data, nil
}

// maybeOffloadValue moves a reply value exceeding the inline limit into blob
// storage, replacing it with a reference.
func (w *Worker) maybeOffloadValue(ctx context.Context, requestID string, reply *message.ExecuteReply) error {
	raw, err := json.Marshal(reply.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal result value: %w", err)
	}
	if len(raw) <= w.cfg.MaxInlineResult {
		return nil
	}
	if w.blobs == nil {
		return fmt.Errorf("%w: result is %d bytes and no blob client is configured",
			inkererrors.ErrPayloadTooLarge, len(raw))
	}

	url, err := w.blobs.Upload(ctx, storage.ResultPath(requestID), raw, map[string]string{
		"request_id": requestID,
	})
	if err != nil {
		return fmt.Errorf("failed to upload result: %w", err)
	}

	reply.Value = nil
	reply.ValueRef = &message.BlobReference{URL: url, SizeBytes: len(raw)}
	return nil
}

func (w *Worker) reply(msg *nats.Msg, reply *message.ExecuteReply) {
	if msg.Reply == "" {
		return
	}
	payload, err := reply.Marshal()
	if err != nil {
		w.logger.Error("failed to marshal reply", zap.Error(err))
		return
	}
	if err := msg.Respond(payload); err != nil {
		w.logger.Error("failed to send reply",
			zap.String("request_id", reply.RequestID),
			zap.Error(err))
	}
}

// reportInternal forwards internal worker faults to Sentry. With no Sentry
// client initialized this is a no-op.
func (w *Worker) reportInternal(err error) {
	sentry.CaptureException(err)
}
