package cron

import (
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

func TestCreateRejectsInvalidSchedule(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"), nil)
	_, err := s.Create(&store.CronJob{Name: "bad", Schedule: "not a cron expr", Enabled: true})
	if err == nil {
		t.Fatalf("expected invalid schedule to be rejected")
	}
}

func TestCreateListUpdateDeleteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	s := NewService(path, nil)

	job, err := s.Create(&store.CronJob{
		Name:     "daily digest",
		AgentID:  "default",
		Schedule: "0 9 * * *",
		Enabled:  true,
		Payload:  store.CronPayload{Message: "summarize today"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.ID == "" {
		t.Fatalf("expected a generated job ID")
	}

	listed := s.List("default")
	if len(listed) != 1 || listed[0].ID != job.ID {
		t.Fatalf("expected job listed under agent, got %+v", listed)
	}

	if _, err := s.Update(job.ID, map[string]any{"enabled": false}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Enabled {
		t.Fatalf("expected job disabled after update")
	}

	// Reload from disk: state must have persisted.
	reloaded := NewService(path, nil)
	if len(reloaded.List("")) != 1 {
		t.Fatalf("expected job to survive reload")
	}

	if err := s.Delete(job.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(s.List("")) != 0 {
		t.Fatalf("expected job removed after delete")
	}
}

func TestUpdateRejectsInvalidSchedule(t *testing.T) {
	s := NewService(filepath.Join(t.TempDir(), "jobs.json"), nil)
	job, _ := s.Create(&store.CronJob{Name: "ok", Schedule: "* * * * *", Enabled: true})
	if _, err := s.Update(job.ID, map[string]any{"schedule": "garbage"}); err == nil {
		t.Fatalf("expected invalid schedule update to be rejected")
	}
}
