// Package transcode is the asynchronous job executor fronted by a simple
// submit API (spec.md §4.D). The broker and task queue are assumed external
// collaborators; this package supplies the minimal in-process FIFO stand-in
// with the same at-least-once contract, grounded on eleven-am/goshl's
// channel-consumer worker pool shape.
package transcode

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zenderock/focus-agency-server/internal/jobstore"
	"github.com/zenderock/focus-agency-server/pkg/ffmpeg"
)

// KeySize is the AES-128 content key length (16 random bytes) per
// spec.md §3.
const KeySize = 16

// Job is the orchestrator's submit payload, matching the enqueue signature
// in spec.md §4.D.
type Job struct {
	ID         uuid.UUID
	SourcePath string
	HLSDir     string
	SuccessURL string
	ErrorURL   string
	UserID     string
	VideoID    string
	Key        []byte // optional; drawn fresh when nil
	KeyURL     string // optional; resolved from HLSDir when empty
	Context    map[string]string
}

// Status reports a job's current state to callers that want to poll
// in-process (the jobstore gives durable observability; this is the
// degrade-gracefully fallback when no store is configured).
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Orchestrator owns a buffered in-process FIFO job channel and a fixed
// worker pool. hostBaseURL is used to resolve key_url when a job doesn't
// supply one (spec.md §4.D step 3).
type Orchestrator struct {
	hostBaseURL     string
	callbackBearer  string
	hlsRoot         string
	workers         int
	store           *jobstore.Store // optional; nil means in-memory-only status
	callbackClient  *CallbackClient

	jobs   chan Job
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	statuses map[uuid.UUID]Status
}

// Config configures a new Orchestrator.
type Config struct {
	HostBaseURL    string
	CallbackBearer string
	HLSRoot        string
	Workers        int
	Store          *jobstore.Store // optional
}

// New builds an Orchestrator. The job channel holds up to 4096 queued jobs;
// when it is full, Enqueue blocks until a slot frees or its context is done.
// Workers consume in arrival order.
func New(cfg Config) *Orchestrator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{
		hostBaseURL:    strings.TrimRight(cfg.HostBaseURL, "/"),
		callbackBearer: cfg.CallbackBearer,
		hlsRoot:        cfg.HLSRoot,
		workers:        workers,
		store:          cfg.Store,
		callbackClient: NewCallbackClient(cfg.CallbackBearer),
		jobs:           make(chan Job, 4096),
		statuses:       make(map[uuid.UUID]Status),
	}
}

// Start spawns the worker pool.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}
}

// Stop cancels the workers' context and waits for every worker to return.
// Cancellation also kills any running ffmpeg process, so an in-flight job
// ends as failed rather than running to completion.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Enqueue persists the job onto the FIFO queue and assigns it a task_id.
// Per spec.md §4.D, at-least-once delivery is assumed; steps are idempotent
// except the source unlink, which tolerates absence.
func (o *Orchestrator) Enqueue(ctx context.Context, job Job) (uuid.UUID, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	o.setStatus(job.ID, StatusQueued)
	if o.store != nil {
		if err := o.store.Create(ctx, job.ID, job.SourcePath, job.HLSDir, job.UserID, job.VideoID); err != nil {
			slog.Warn("jobstore create failed, continuing without durable tracking", "job_id", job.ID, "error", err)
		}
	}

	select {
	case o.jobs <- job:
		return job.ID, nil
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
}

// Status returns the orchestrator's in-memory view of a job's state.
func (o *Orchestrator) Status(id uuid.UUID) (Status, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.statuses[id]
	return s, ok
}

func (o *Orchestrator) setStatus(id uuid.UUID, s Status) {
	o.mu.Lock()
	o.statuses[id] = s
	o.mu.Unlock()
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-o.jobs:
			if !ok {
				return
			}
			o.processJob(ctx, job)
		}
	}
}

// processJob executes steps 1-7 of spec.md §4.D's per-job execution.
func (o *Orchestrator) processJob(ctx context.Context, job Job) {
	o.setStatus(job.ID, StatusRunning)
	if o.store != nil {
		if err := o.store.MarkRunning(ctx, job.ID); err != nil {
			slog.Warn("jobstore mark-running failed", "job_id", job.ID, "error", err)
		}
	}

	if err := o.runTranscode(ctx, job); err != nil {
		o.setStatus(job.ID, StatusFailed)
		if o.store != nil {
			if serr := o.store.MarkFailed(ctx, job.ID, err.Error()); serr != nil {
				slog.Warn("jobstore mark-failed failed", "job_id", job.ID, "error", serr)
			}
		}
		o.callbackClient.PostError(ctx, job.ErrorURL, ErrorPayload{
			Status:  "error",
			UserID:  job.UserID,
			VideoID: job.VideoID,
			Error:   err.Error(),
			Message: "transcode failed",
			Context: job.Context,
		})
		slog.Error("transcode job failed", "job_id", job.ID, "hls_dir", job.HLSDir, "error", err)
		return
	}

	o.setStatus(job.ID, StatusSucceeded)
	if o.store != nil {
		if serr := o.store.MarkSucceeded(ctx, job.ID); serr != nil {
			slog.Warn("jobstore mark-succeeded failed", "job_id", job.ID, "error", serr)
		}
	}

	o.callbackClient.PostSuccess(ctx, job.SuccessURL, SuccessPayload{
		Status:  "success",
		UserID:  job.UserID,
		VideoID: job.VideoID,
		HLSPath: hlsPath(job),
		Message: "transcode succeeded",
		Context: job.Context,
	})
}

// runTranscode performs the hls_dir preparation, key generation, key-info
// write, and external ffmpeg invocation. It deletes the source on success.
func (o *Orchestrator) runTranscode(ctx context.Context, job Job) error {
	if err := os.MkdirAll(job.HLSDir, 0o755); err != nil {
		return fmt.Errorf("ensure hls_dir: %w", err)
	}

	key := job.Key
	if len(key) == 0 {
		key = make([]byte, KeySize)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
	}
	keyPath := filepath.Join(job.HLSDir, "enc.key")
	if err := os.WriteFile(keyPath, key, 0o600); err != nil {
		return fmt.Errorf("write enc.key: %w", err)
	}

	keyURL := job.KeyURL
	if keyURL == "" {
		keyURL = o.resolveKeyURL(job)
	}

	absKeyPath, err := filepath.Abs(keyPath)
	if err != nil {
		return fmt.Errorf("resolve absolute key path: %w", err)
	}
	keyInfoPath := filepath.Join(job.HLSDir, "enc.keyinfo")
	keyInfo := keyURL + "\n" + absKeyPath + "\n"
	if err := os.WriteFile(keyInfoPath, []byte(keyInfo), 0o600); err != nil {
		return fmt.Errorf("write enc.keyinfo: %w", err)
	}

	outputPath := filepath.Join(job.HLSDir, "output.m3u8")
	segPattern := filepath.Join(job.HLSDir, "segment_%03d.ts")

	result := ffmpeg.RunCapture(ctx, job.SourcePath, outputPath,
		ffmpeg.VideoCodec("h264"),
		ffmpeg.AudioCodec("aac"),
		ffmpeg.ExtraArgs(
			"-hls_time", "10",
			"-hls_list_size", "0",
			"-hls_key_info_file", keyInfoPath,
			"-hls_segment_filename", segPattern,
		),
	)
	if result.Err != nil {
		return fmt.Errorf("ffmpeg: %w", result.Err)
	}

	if err := os.Remove(job.SourcePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove source: %w", err)
	}

	return nil
}

// resolveKeyURL implements spec.md §4.D step 3: when hls_dir lies under a
// v2 path (more than two components beneath the HLS root), use the
// /hls2/<rel>/key form; otherwise the legacy /<user_id>/<video_id>/key form.
func (o *Orchestrator) resolveKeyURL(job Job) string {
	rel, err := filepath.Rel(o.hlsRoot, job.HLSDir)
	if err == nil {
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) > 2 {
			return fmt.Sprintf("%s/hls2/%s/key", o.hostBaseURL, strings.Join(parts, "/"))
		}
	}
	return fmt.Sprintf("%s/hls/%s/%s/key", o.hostBaseURL, job.UserID, job.VideoID)
}

// hlsPath builds the success payload's hls_path: /hls2/<rel>/output.m3u8
// when the job context carries v2 identifiers, else the legacy form.
func hlsPath(job Job) string {
	if rel, ok := job.Context["rel"]; ok && rel != "" {
		return fmt.Sprintf("/hls2/%s/output.m3u8", rel)
	}
	return fmt.Sprintf("/hls/%s/%s/output.m3u8", job.UserID, job.VideoID)
}
