// Package cron implements a file-backed scheduled-job store: standard cron
// expressions, evaluated on a polling tick, dispatching into a caller-
// supplied handler (the agent loop, via the scheduler's cron lane).
package cron

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// RetryConfig controls how many times a failed job is retried and the
// backoff between attempts, matching the runtime's general retry policy
// (bounded attempts, linearly increasing backoff).
type RetryConfig struct {
	MaxRetries  int
	BackoffBase time.Duration
}

// DefaultRetryConfig matches the runtime-wide retry policy: up to 3
// attempts, backoff growing ~0.35s per attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BackoffBase: 350 * time.Millisecond}
}

const pollInterval = 30 * time.Second

// Service is a file-backed store.CronStore.
type Service struct {
	mu   sync.Mutex
	path string
	jobs map[string]*store.CronJob

	handler   store.CronJobHandler
	retryCfg  RetryConfig
	gron      gronx.Gronx
	stopCh    chan struct{}
	wg        sync.WaitGroup
	log       *slog.Logger
}

// NewService loads (or initializes) the job file at path. retryCfg may be
// nil to use DefaultRetryConfig.
func NewService(path string, retryCfg *RetryConfig) *Service {
	cfg := DefaultRetryConfig()
	if retryCfg != nil {
		cfg = *retryCfg
	}
	s := &Service{
		path:     path,
		jobs:     make(map[string]*store.CronJob),
		retryCfg: cfg,
		gron:     gronx.New(),
		stopCh:   make(chan struct{}),
		log:      slog.Default().With("component", "cron"),
	}
	s.load()
	return s
}

// SetRetryConfig overrides the retry policy after construction (wired from
// config.json at startup).
func (s *Service) SetRetryConfig(cfg RetryConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryCfg = cfg
}

func (s *Service) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var jobs []*store.CronJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		s.log.Warn("failed to parse cron job file", "path", s.path, "error", err)
		return
	}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
}

func (s *Service) saveLocked() error {
	jobs := make([]*store.CronJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Create validates the schedule expression and persists a new job.
func (s *Service) Create(job *store.CronJob) (*store.CronJob, error) {
	if _, err := s.gron.IsDue(job.Schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", job.Schedule, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	s.jobs[job.ID] = job
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) Get(id string) (*store.CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("cron job %q not found", id)
	}
	return j, nil
}

func (s *Service) List(agentID string) []store.CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.CronJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		if agentID != "" && j.AgentID != agentID {
			continue
		}
		out = append(out, *j)
	}
	return out
}

func (s *Service) Update(id string, updates map[string]any) (*store.CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("cron job %q not found", id)
	}
	if v, ok := updates["name"].(string); ok {
		j.Name = v
	}
	if v, ok := updates["schedule"].(string); ok {
		if _, err := s.gron.IsDue(v); err != nil {
			return nil, fmt.Errorf("invalid cron schedule %q: %w", v, err)
		}
		j.Schedule = v
	}
	if v, ok := updates["enabled"].(bool); ok {
		j.Enabled = v
	}
	j.UpdatedAt = time.Now().UTC()
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("cron job %q not found", id)
	}
	delete(s.jobs, id)
	return s.saveLocked()
}

func (s *Service) SetOnJob(handler store.CronJobHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Start begins the polling loop. Due jobs run in their own goroutine so a
// slow job never delays the next tick's due-check for other jobs.
func (s *Service) Start() error {
	s.wg.Add(1)
	go s.run()
	return nil
}

func (s *Service) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Service) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *Service) tick(now time.Time) {
	s.mu.Lock()
	handler := s.handler
	var due []*store.CronJob
	for _, j := range s.jobs {
		if !j.Enabled {
			continue
		}
		isDue, err := s.gron.IsDue(j.Schedule, now)
		if err != nil {
			s.log.Warn("cron schedule parse failed", "job", j.ID, "schedule", j.Schedule, "error", err)
			continue
		}
		if isDue {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	if handler == nil {
		return
	}
	for _, job := range due {
		s.wg.Add(1)
		go func(j *store.CronJob) {
			defer s.wg.Done()
			s.runJobWithRetry(j, handler)
		}(job)
	}
}

func (s *Service) runJobWithRetry(job *store.CronJob, handler store.CronJobHandler) {
	var lastErr error
	maxAttempts := s.retryCfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err := handler(job)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if attempt < maxAttempts {
			time.Sleep(s.retryCfg.BackoffBase * time.Duration(attempt))
		}
	}

	s.mu.Lock()
	now := time.Now().UTC()
	job.LastRunAt = &now
	if lastErr != nil {
		job.LastError = lastErr.Error()
		s.log.Warn("cron job failed", "job", job.ID, "error", lastErr)
	} else {
		job.LastError = ""
	}
	s.saveLocked()
	s.mu.Unlock()
}
