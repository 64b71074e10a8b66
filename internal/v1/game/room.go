package game

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/set"

	"github.com/partyline/soundclash/internal/v1/catalog"
	"github.com/partyline/soundclash/internal/v1/logging"
	"github.com/partyline/soundclash/internal/v1/metrics"
	"github.com/partyline/soundclash/internal/v1/timer"
)

// sender is anything that can receive a JSON-encoded outbound event. Both
// participant and viewer transport clients implement it.
type sender interface {
	Send(event string, payload any)
}

// Room holds all state for one game and runs its own single-goroutine
// command loop (run). Every mutation happens from within that goroutine:
// inbound WebSocket events, timer ticks, and the disconnection controller's
// grace/vote timers all post closures through Post rather than touching
// fields from another goroutine. This is the actor model the design notes
// call for in place of a room-wide mutex shared with timer callbacks.
type Room struct {
	Code      RoomCode
	CreatedAt time.Time
	SeqNum    uint64

	Participants []*Participant
	Disconnected []*DisconnectedParticipant

	Phase         Phase
	PreviousPhase Phase

	Round      int
	MaxRounds  int
	MaxScore   int
	AllowAdult bool

	JudgeID ParticipantID
	// judgeVacancyIndex is the roster index the judge occupied at the moment
	// they were moved to the disconnected list, or -1 if no judge vacancy is
	// pending. resumeGame consults it to pick the next-in-rotation judge
	// when the disconnected judge never reconnects (see disconnect.go).
	judgeVacancyIndex int
	CurrentPrompt     *Prompt
	AvailablePrompts  []*Prompt
	UsedPromptIDs     set.Set[string]

	Submissions           []*Submission
	RandomizedSubmissions []*Submission
	ShuffleSeed           string
	PlaybackCursor        int

	SoundSelectionTimerStarted bool
	JudgeSelectionTimerStarted bool

	LastWinnerID          ParticipantID
	LastWinningSubmission *Submission
	OverallWinnerID       ParticipantID

	PausedForDisconnection bool
	DisconnectionTimestamp time.Time
	PendingVote            *ReconnectionVote

	Viewers *ViewerRegistry

	graceSeconds int
	voteSeconds  int

	timers  *timer.Registry
	catalog *catalog.Catalog

	participantClients map[ParticipantID]sender
	viewerClients      map[string]sender

	cmd      chan func()
	stopOnce chan struct{}
	onEmpty  func(RoomCode)
}

// NewRoom constructs an empty, lobby-phase room. graceSeconds/voteSeconds
// come from config (RECONNECT_GRACE_SECONDS / RECONNECT_VOTE_SECONDS).
func NewRoom(code RoomCode, cat *catalog.Catalog, graceSeconds, voteSeconds int, onEmpty func(RoomCode)) *Room {
	r := &Room{
		Code:               code,
		CreatedAt:          time.Now(),
		Phase:              PhaseLobby,
		MaxRounds:          5,
		MaxScore:           5,
		judgeVacancyIndex:  -1,
		UsedPromptIDs:      set.New[string](),
		Viewers:            NewViewerRegistry(),
		graceSeconds:       graceSeconds,
		voteSeconds:        voteSeconds,
		timers:             timer.NewRegistry(),
		catalog:            cat,
		participantClients: make(map[ParticipantID]sender),
		viewerClients:      make(map[string]sender),
		cmd:                make(chan func(), 64),
		stopOnce:           make(chan struct{}),
		onEmpty:            onEmpty,
	}
	return r
}

// Run processes commands until Stop is called. Intended to run in its own
// goroutine, started once by the hub when the room is created.
func (r *Room) Run() {
	for {
		select {
		case fn := <-r.cmd:
			r.runCommand(fn)
		case <-r.stopOnce:
			return
		}
	}
}

// runCommand executes fn with a recover guard: a panic inside one inbound
// event handler or timer callback must not take down the room's goroutine,
// which would wedge every future command for that room.
func (r *Room) runCommand(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logWarn("recovered from panic in room command", zap.Any("panic", rec))
		}
	}()
	fn()
}

// Post enqueues fn to run on the room's own goroutine. Safe to call from
// any goroutine (client read pumps, timer callbacks).
func (r *Room) Post(fn func()) {
	select {
	case r.cmd <- fn:
	case <-r.stopOnce:
	}
}

// Stop terminates the room's command loop and cancels its timer.
func (r *Room) Stop() {
	r.timers.Cancel(string(r.Code))
	select {
	case <-r.stopOnce:
	default:
		close(r.stopOnce)
	}
}

func (r *Room) ctx() context.Context {
	return logging.WithRoom(context.Background(), string(r.Code))
}

// nextSeq stamps and returns the room's next event sequence number.
func (r *Room) nextSeq() uint64 {
	r.SeqNum++
	return r.SeqNum
}

// --- Outbound fan-out -------------------------------------------------

// broadcastRoom sends event to every connected participant and viewer.
func (r *Room) broadcastRoom(event string, payload any) {
	for _, c := range r.participantClients {
		c.Send(event, payload)
	}
	for _, c := range r.viewerClients {
		c.Send(event, payload)
	}
}

// broadcastParticipants sends event only to participant connections.
func (r *Room) broadcastParticipants(event string, payload any) {
	for _, c := range r.participantClients {
		c.Send(event, payload)
	}
}

// broadcastViewers sends event to every connected viewer.
func (r *Room) broadcastViewers(event string, payload any) {
	for _, c := range r.viewerClients {
		c.Send(event, payload)
	}
}

// sendTo sends event to a single participant, if connected.
func (r *Room) sendTo(id ParticipantID, event string, payload any) {
	if c, ok := r.participantClients[id]; ok {
		c.Send(event, payload)
	}
}

// sendToPrimaryViewer sends event only to the current primary viewer.
func (r *Room) sendToPrimaryViewer(event string, payload any) {
	primary := r.Viewers.Primary()
	if primary == nil {
		return
	}
	if c, ok := r.viewerClients[primary.ID]; ok {
		c.Send(event, payload)
	}
}

func (r *Room) emitRoomUpdated() {
	metrics.RoomParticipants.WithLabelValues(string(r.Code)).Set(float64(len(r.Participants)))
	r.broadcastRoom(EventRoomUpdated, r.Snapshot())
}

func (r *Room) logWarn(msg string, fields ...zap.Field) {
	logging.Warn(r.ctx(), msg, fields...)
}

func (r *Room) logInfo(msg string, fields ...zap.Field) {
	logging.Info(r.ctx(), msg, fields...)
}

// RoomSnapshot is the JSON shape broadcast as roomUpdated. It carries the
// full round state (prompt, submissions, last winner) so a client landing
// mid-round from a reconnect can render its screen without having seen the
// transition events that originally delivered each piece.
type RoomSnapshot struct {
	Code                  RoomCode       `json:"code"`
	Phase                 Phase          `json:"phase"`
	Round                 int            `json:"round"`
	MaxRounds             int            `json:"maxRounds"`
	MaxScore              int            `json:"maxScore"`
	AllowAdult            bool           `json:"allowExplicitContent"`
	JudgeID               ParticipantID  `json:"judgeId"`
	Participants          []*Participant `json:"participants"`
	ViewerCount           int            `json:"viewerCount"`
	CurrentPrompt         *Prompt        `json:"currentPrompt,omitempty"`
	Submissions           []*Submission  `json:"submissions,omitempty"`
	RandomizedSubmissions []*Submission  `json:"randomizedSubmissions,omitempty"`
	LastWinnerID          ParticipantID  `json:"lastWinnerId,omitempty"`
	LastWinningSubmission *Submission    `json:"lastWinningSubmission,omitempty"`
	OverallWinnerID       ParticipantID  `json:"overallWinnerId,omitempty"`
	SeqNum                uint64         `json:"seq"`
}

// Snapshot returns the current full room state for roomUpdated broadcasts.
func (r *Room) Snapshot() RoomSnapshot {
	return RoomSnapshot{
		Code:                  r.Code,
		Phase:                 r.Phase,
		Round:                 r.Round,
		MaxRounds:             r.MaxRounds,
		MaxScore:              r.MaxScore,
		AllowAdult:            r.AllowAdult,
		JudgeID:               r.JudgeID,
		Participants:          r.Participants,
		ViewerCount:           r.Viewers.Count(),
		CurrentPrompt:         r.CurrentPrompt,
		Submissions:           r.Submissions,
		RandomizedSubmissions: r.RandomizedSubmissions,
		LastWinnerID:          r.LastWinnerID,
		LastWinningSubmission: r.LastWinningSubmission,
		OverallWinnerID:       r.OverallWinnerID,
		SeqNum:                r.nextSeq(),
	}
}

// --- Membership lookups -------------------------------------------------

func (r *Room) findParticipant(id ParticipantID) *Participant {
	for _, p := range r.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) participantIndex(id ParticipantID) int {
	for i, p := range r.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *Room) removeParticipantAt(i int) *Participant {
	p := r.Participants[i]
	r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
	return p
}

func (r *Room) isEmpty() bool {
	return len(r.Participants) == 0
}

func marshalPayload(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
