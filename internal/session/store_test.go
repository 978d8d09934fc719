package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"docbot/internal/domain"
)

func TestPhotoFlowLifecycle(t *testing.T) {
	s := NewStore(time.Hour)
	s.SetAwaitingPhoto(1, "uk_passport", map[string]string{"SURNAME": "DOE"}, true)

	got := s.Get(1)
	if got.Step != domain.StepAwaitingPhoto || got.Template != "uk_passport" || !got.NeedsParams {
		t.Fatalf("unexpected session after SetAwaitingPhoto: %+v", got)
	}

	sess, err := s.AttachPhoto(1, []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("attach photo: %v", err)
	}
	if len(sess.Image) != 2 {
		t.Fatalf("image len = %d, want 2", len(sess.Image))
	}
	if err := s.SetAwaitingParameters(1); err != nil {
		t.Fatalf("set awaiting parameters: %v", err)
	}
	s.SetFields(1, map[string]string{"fn": "Jane"})

	got = s.Get(1)
	if got.Step != domain.StepAwaitingParameters {
		t.Fatalf("step = %v, want awaiting_parameters", got.Step)
	}
	if got.Fields["FN"] != "Jane" || got.Fields["SURNAME"] != "DOE" {
		t.Fatalf("fields = %#v", got.Fields)
	}

	s.Clear(1)
	got = s.Get(1)
	if got.Step != domain.StepIdle || got.Image != nil || len(got.Fields) != 0 {
		t.Fatalf("session not reset: %+v", got)
	}
}

func TestAttachPhotoWhileIdleIsRejected(t *testing.T) {
	s := NewStore(0)
	if _, err := s.AttachPhoto(7, []byte("x")); !errors.Is(err, domain.ErrNoPendingFlow) {
		t.Fatalf("err = %v, want ErrNoPendingFlow", err)
	}
	if s.Len() != 0 {
		t.Fatalf("idle photo must not create a session")
	}
	if got := s.Get(7); got.Image != nil {
		t.Fatalf("image stored for idle user")
	}
}

func TestSetFieldsOverridesDefaultsWithSameKey(t *testing.T) {
	s := NewStore(time.Hour)
	defaults := domain.Template{Fields: map[string]string{"straße": "Alt"}}.Normalize().DefaultFields()
	s.SetAwaitingPhoto(1, "form", defaults, true)
	s.SetFields(1, map[string]string{" straße ": "Neu"})

	got := s.Get(1).Fields
	if len(got) != 1 || got["STRASSE"] != "Neu" {
		t.Fatalf("fields = %v", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore(0)
	s.SetAwaitingPhoto(1, "t", map[string]string{"A": "1"}, false)
	got := s.Get(1)
	got.Fields["A"] = "changed"
	if s.Get(1).Fields["A"] != "1" {
		t.Fatalf("mutating a returned session leaked into the store")
	}
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	s := NewStore(0)
	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			s.SetAwaitingPhoto(user, "t", nil, false)
			if _, err := s.AttachPhoto(user, []byte{byte(user)}); err != nil {
				t.Errorf("attach %d: %v", user, err)
			}
		}(i)
	}
	wg.Wait()
	for i := int64(1); i <= 50; i++ {
		got := s.Get(i)
		if len(got.Image) != 1 || got.Image[0] != byte(i) {
			t.Fatalf("user %d image = %v", i, got.Image)
		}
	}
}

func TestSweepDropsStaleSessions(t *testing.T) {
	s := NewStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.SetAwaitingPhoto(1, "old", nil, false)

	now = now.Add(30 * time.Second)
	s.SetAwaitingPhoto(2, "fresh", nil, false)

	now = now.Add(45 * time.Second)
	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if s.Get(1).Step != domain.StepIdle {
		t.Fatalf("stale session survived sweep")
	}
	if s.Get(2).Step != domain.StepAwaitingPhoto {
		t.Fatalf("fresh session swept")
	}
}
