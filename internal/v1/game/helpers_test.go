package game

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/partyline/soundclash/internal/v1/catalog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingSender is a fake transport connection that appends every sent
// event to an in-memory log instead of touching a network. Safe for
// concurrent use since timer callbacks deliver onto the room's own
// goroutine but tests read the log from the calling goroutine.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentEvent
}

type sentEvent struct {
	event   string
	payload any
}

func (s *recordingSender) Send(event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentEvent{event: event, payload: payload})
}

func (s *recordingSender) events() []sentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentEvent, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *recordingSender) has(event string) bool {
	for _, e := range s.events() {
		if e.event == event {
			return true
		}
	}
	return false
}

func (s *recordingSender) last() sentEvent {
	ev := s.events()
	if len(ev) == 0 {
		return sentEvent{}
	}
	return ev[len(ev)-1]
}

// newTestCatalog writes a small prompt/sound catalog to a temp directory
// and loads it with caching disabled, so every sample call reflects the
// files as written (no stale-cache races in a test).
func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompts.ndjson")
	soundPath := filepath.Join(dir, "sounds.ndjson")

	var prompts []string
	for i := 0; i < 12; i++ {
		prompts = append(prompts, fmt.Sprintf(`{"id":"p%d","text":"the sound of <ANY> arriving late %d","category":"general","adult":false}`, i, i))
	}
	if err := os.WriteFile(promptPath, []byte(joinLines(prompts)), 0o600); err != nil {
		t.Fatalf("write prompts: %v", err)
	}

	var sounds []string
	for i := 0; i < 20; i++ {
		sounds = append(sounds, fmt.Sprintf(`{"id":"s%d","name":"sound %d","category":"general","adult":false}`, i, i))
	}
	if err := os.WriteFile(soundPath, []byte(joinLines(sounds)), 0o600); err != nil {
		t.Fatalf("write sounds: %v", err)
	}

	return catalog.New(promptPath, soundPath, 0)
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}

// newTestRoom returns a lobby-phase room backed by a throwaway catalog, with
// grace/vote windows left at their production defaults (tests that need to
// observe grace/vote timing drive the controller's internal methods
// directly rather than waiting out real 30s/20s windows).
func newTestRoom(t *testing.T) *Room {
	t.Helper()
	r := NewRoom(RoomCode("TEST"), newTestCatalog(t), 30, 20, nil)
	t.Cleanup(r.cancelTimer)
	return r
}

// seatParticipants adds n participants (each with its own recordingSender)
// to room r and returns them in join order; the first becomes host.
func seatParticipants(t *testing.T, r *Room, n int) ([]*Participant, []*recordingSender) {
	t.Helper()
	participants := make([]*Participant, 0, n)
	senders := make([]*recordingSender, 0, n)
	for i := 0; i < n; i++ {
		s := &recordingSender{}
		p, err := r.AddParticipant(ParticipantID(fmt.Sprintf("p%d", i)), fmt.Sprintf("Player%d", i), "", "", s)
		if err != nil {
			t.Fatalf("seat participant %d: %v", i, err)
		}
		participants = append(participants, p)
		senders = append(senders, s)
	}
	return participants, senders
}
