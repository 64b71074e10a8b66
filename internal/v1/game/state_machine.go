package game

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"k8s.io/utils/set"

	"github.com/partyline/soundclash/internal/v1/metrics"
)

var (
	ErrWrongPhase    = errors.New("event not permitted in the current phase")
	ErrNotAuthorized = errors.New("caller is not authorized for this action")
	ErrNotFound      = errors.New("referenced entity not found")
	ErrInvalidInput  = errors.New("invalid input")
)

// GameStateChangedPayload carries the phase-specific data clients need to
// render the new phase. Unused fields are omitted.
type GameStateChangedPayload struct {
	Phase                 Phase          `json:"phase"`
	Round                 int            `json:"round"`
	JudgeID               ParticipantID  `json:"judgeId,omitempty"`
	Prompts               []*Prompt      `json:"prompts,omitempty"`
	Prompt                *Prompt        `json:"prompt,omitempty"`
	TimeLimitSeconds      int            `json:"timeLimitSeconds,omitempty"`
	Submissions           []*Submission  `json:"submissions,omitempty"`
	RandomizedSubmissions []*Submission  `json:"randomizedSubmissions,omitempty"`
	Winner                ParticipantID  `json:"winner,omitempty"`
	FinalScores           []*Participant `json:"finalScores,omitempty"`
}

// startCountdown installs the room's single timer, driving both the
// periodic timeUpdate broadcast and the expiry effect. Both callbacks post
// back onto the room's own goroutine, so onExpire runs serialized with
// every other room mutation.
func (r *Room) startCountdown(purpose string, duration time.Duration, onExpire func()) {
	r.timers.Start(string(r.Code), duration, func(remaining time.Duration) {
		r.Post(func() {
			r.broadcastRoom(EventTimeUpdate, map[string]any{
				"remainingSeconds": int(remaining.Seconds()),
				"purpose":          purpose,
			})
		})
	}, func() {
		metrics.TimerExpirations.WithLabelValues(purpose).Inc()
		r.Post(onExpire)
	})
}

func (r *Room) cancelTimer() {
	r.timers.Cancel(string(r.Code))
}

// StartGame transitions LOBBY -> JUDGE_SELECTION. Host-only, requires at
// least MinParticipants active participants.
func (r *Room) StartGame(by ParticipantID) error {
	if r.Phase != PhaseLobby {
		return ErrWrongPhase
	}
	caller := r.findParticipant(by)
	if caller == nil || !caller.IsHost {
		return ErrNotAuthorized
	}
	if len(r.Participants) < MinParticipants {
		return fmt.Errorf("%w: need at least %d participants", ErrInvalidInput, MinParticipants)
	}

	r.JudgeID = r.assignInitialJudge()
	r.Round = 1
	r.enterJudgeSelection()
	return nil
}

func (r *Room) enterJudgeSelection() {
	metrics.RoomPhaseTransitions.WithLabelValues(string(r.Phase), string(PhaseJudgeSelection)).Inc()
	r.Phase = PhaseJudgeSelection
	r.emitRoomUpdated()
	r.broadcastRoom(EventGameStateChanged, GameStateChangedPayload{Phase: r.Phase, Round: r.Round, JudgeID: r.JudgeID})
	r.broadcastRoom(EventJudgeSelected, map[string]any{"judgeId": r.JudgeID})

	if !r.JudgeSelectionTimerStarted {
		r.JudgeSelectionTimerStarted = true
		r.startCountdown("judgeSelection", JudgeSelectionAutoAdvance, r.advanceToPromptSelection)
	}
}

func (r *Room) advanceToPromptSelection() {
	if r.Phase != PhaseJudgeSelection {
		return // stale tick from a superseded phase
	}
	metrics.RoomPhaseTransitions.WithLabelValues(string(r.Phase), string(PhasePromptSelection)).Inc()

	r.AvailablePrompts = r.samplePrompts()
	r.Phase = PhasePromptSelection
	r.emitRoomUpdated()
	r.broadcastRoom(EventGameStateChanged, GameStateChangedPayload{
		Phase: r.Phase, Round: r.Round, JudgeID: r.JudgeID,
		Prompts: r.AvailablePrompts, TimeLimitSeconds: int(PromptSelectionTimeout.Seconds()),
	})
	r.startCountdown("promptSelection", PromptSelectionTimeout, r.autoSelectPrompt)
}

func (r *Room) samplePrompts() []*Prompt {
	used := make(map[string]bool, r.UsedPromptIDs.Len())
	for k := range r.UsedPromptIDs {
		used[k] = true
	}
	entries := r.catalog.SamplePrompts(r.ctx(), PromptChoiceCount, used, r.AllowAdult)
	prompts := make([]*Prompt, 0, len(entries))
	for _, e := range entries {
		prompts = append(prompts, r.substitutePlaceholder(&Prompt{ID: e.ID, Text: e.Text, Category: e.Category, AudioRef: e.AudioRef}))
	}
	return prompts
}

// substitutePlaceholder replaces the "<ANY>" token with a random
// participant's display name, if present.
func (r *Room) substitutePlaceholder(p *Prompt) *Prompt {
	if !strings.Contains(p.Text, AnyToken) || len(r.Participants) == 0 {
		return p
	}
	name := r.Participants[rand.Intn(len(r.Participants))].DisplayName
	cp := *p
	cp.Text = strings.ReplaceAll(p.Text, AnyToken, name)
	return &cp
}

// SelectPrompt is the judge's choice during PROMPT_SELECTION.
func (r *Room) SelectPrompt(by ParticipantID, promptID string) error {
	if r.Phase != PhasePromptSelection {
		return ErrWrongPhase
	}
	if by != r.JudgeID {
		return ErrNotAuthorized
	}
	for _, p := range r.AvailablePrompts {
		if p.ID == promptID {
			r.finishPromptSelection(p)
			return nil
		}
	}
	return ErrNotFound
}

func (r *Room) autoSelectPrompt() {
	if r.Phase != PhasePromptSelection {
		return
	}
	if len(r.AvailablePrompts) == 0 {
		r.logWarn("prompt selection timed out with no prompts sampled")
		return
	}
	r.finishPromptSelection(r.AvailablePrompts[0])
}

func (r *Room) finishPromptSelection(chosen *Prompt) {
	metrics.RoomPhaseTransitions.WithLabelValues(string(r.Phase), string(PhaseSoundSelection)).Inc()
	r.cancelTimer()

	r.CurrentPrompt = chosen
	r.UsedPromptIDs.Insert(chosen.ID)
	r.Submissions = nil
	r.RandomizedSubmissions = nil
	r.ShuffleSeed = ""
	r.PlaybackCursor = 0
	r.SoundSelectionTimerStarted = false
	r.assignSoundSets()

	r.Phase = PhaseSoundSelection
	r.emitRoomUpdated()
	r.broadcastRoom(EventGameStateChanged, GameStateChangedPayload{Phase: r.Phase, Round: r.Round, JudgeID: r.JudgeID, Prompt: chosen})
	r.broadcastRoom(EventPromptSelected, map[string]any{"prompt": chosen})
	// The sound-selection timer is intentionally not started here; it starts
	// on the first submission (see SubmitSounds).
}

func (r *Room) assignSoundSets() {
	for _, p := range r.nonJudgeParticipants() {
		entries := r.catalog.SampleSounds(r.ctx(), SoundSetSize, "", r.AllowAdult)
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		p.SoundSet = ids
	}
}

// SubmitSounds records a non-judge participant's 1-2 sound picks.
func (r *Room) SubmitSounds(by ParticipantID, soundIDs []string) error {
	if r.Phase != PhaseSoundSelection {
		return ErrWrongPhase
	}
	if by == r.JudgeID {
		return ErrNotAuthorized
	}
	p := r.findParticipant(by)
	if p == nil {
		return ErrNotFound
	}
	if r.hasSubmitted(by) {
		return fmt.Errorf("%w: submission already recorded this round", ErrInvalidInput)
	}
	if len(soundIDs) < 1 || len(soundIDs) > 2 {
		return fmt.Errorf("%w: submission must contain 1 or 2 sound ids", ErrInvalidInput)
	}
	for _, id := range soundIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: sound id must not be empty", ErrInvalidInput)
		}
	}

	r.Submissions = append(r.Submissions, &Submission{ParticipantID: by, DisplayName: p.DisplayName, SoundIDs: soundIDs})
	r.broadcastRoom(EventSoundSubmitted, map[string]any{"participantId": by})

	if !r.SoundSelectionTimerStarted {
		r.SoundSelectionTimerStarted = true
		r.startCountdown("soundSelection", SoundSelectionTimeout, r.autoCompleteSoundSelection)
	}

	if r.allNonJudgesSubmitted() {
		r.cancelTimer()
		r.finishSoundSelection()
	}
	return nil
}

func (r *Room) autoCompleteSoundSelection() {
	if r.Phase != PhaseSoundSelection {
		return
	}
	for _, p := range r.nonJudgeParticipants() {
		if r.hasSubmitted(p.ID) {
			continue
		}
		ids := autoSampleSoundSet(p.SoundSet)
		r.Submissions = append(r.Submissions, &Submission{ParticipantID: p.ID, DisplayName: p.DisplayName, SoundIDs: ids})
	}
	r.finishSoundSelection()
}

// autoSampleSoundSet draws 2 distinct sounds with 70% probability, 1 with
// 30%, from a participant's pre-generated set.
func autoSampleSoundSet(set []string) []string {
	if len(set) == 0 {
		return nil
	}
	n := 1
	if len(set) >= 2 && rand.Float64() < 0.7 {
		n = 2
	}
	perm := rand.Perm(len(set))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = set[perm[i]]
	}
	return out
}

func (r *Room) finishSoundSelection() {
	r.ShuffleSeed = fmt.Sprintf("%s-%d-%d", r.Code, r.Round, time.Now().UnixNano())
	r.RandomizedSubmissions = shuffleSubmissions(r.Submissions, r.ShuffleSeed)

	nextPhase := PhaseJudging
	if r.Viewers.Count() > 0 {
		nextPhase = PhasePlayback
		r.PlaybackCursor = 0
	}
	metrics.RoomPhaseTransitions.WithLabelValues(string(r.Phase), string(nextPhase)).Inc()
	r.Phase = nextPhase
	r.emitRoomUpdated()

	payload := GameStateChangedPayload{Phase: r.Phase, Round: r.Round, JudgeID: r.JudgeID}
	if nextPhase == PhaseJudging {
		// Without viewers the submission lists go out right away; with viewers
		// they arrive one playSubmission at a time, paced by the primary.
		payload.Submissions = r.Submissions
		payload.RandomizedSubmissions = r.RandomizedSubmissions
	}
	r.broadcastRoom(EventGameStateChanged, payload)
}

// RequestNextSubmission advances viewer-driven playback. Primary-viewer only.
func (r *Room) RequestNextSubmission(viewerID string) error {
	if r.Phase != PhasePlayback {
		return ErrWrongPhase
	}
	if !r.Viewers.IsPrimary(viewerID) {
		return ErrNotAuthorized
	}
	if r.PlaybackCursor >= len(r.RandomizedSubmissions) {
		return nil
	}
	sub := r.RandomizedSubmissions[r.PlaybackCursor]
	r.broadcastRoom(EventPlaySubmission, map[string]any{"index": r.PlaybackCursor, "submission": sub})
	r.PlaybackCursor++

	if r.PlaybackCursor >= len(r.RandomizedSubmissions) {
		r.startCountdown("postPlayback", PostPlaybackDelay, r.finishPlayback)
	}
	return nil
}

func (r *Room) finishPlayback() {
	if r.Phase != PhasePlayback {
		return
	}
	metrics.RoomPhaseTransitions.WithLabelValues(string(r.Phase), string(PhaseJudging)).Inc()
	r.Phase = PhaseJudging
	r.emitRoomUpdated()
	r.broadcastRoom(EventGameStateChanged, GameStateChangedPayload{
		Phase: r.Phase, Round: r.Round, JudgeID: r.JudgeID,
		Submissions: r.Submissions, RandomizedSubmissions: r.RandomizedSubmissions,
	})
}

// SelectWinner is the judge's pick, indexing into RandomizedSubmissions.
func (r *Room) SelectWinner(by ParticipantID, index int) error {
	if r.Phase != PhaseJudging {
		return ErrWrongPhase
	}
	if by != r.JudgeID {
		return ErrNotAuthorized
	}
	sub := r.resolveSubmission(index)
	if sub == nil {
		return ErrNotFound
	}
	winner := r.findParticipant(sub.ParticipantID)
	if winner == nil {
		return ErrNotFound
	}

	winner.Score++
	r.LastWinnerID = winner.ID
	r.LastWinningSubmission = sub

	metrics.RoomPhaseTransitions.WithLabelValues(string(r.Phase), string(PhaseRoundResults)).Inc()
	r.Phase = PhaseRoundResults
	r.emitRoomUpdated()
	r.broadcastRoom(EventGameStateChanged, GameStateChangedPayload{Phase: r.Phase, Round: r.Round, JudgeID: r.JudgeID, Winner: winner.ID})
	r.broadcastRoom(EventRoundComplete, map[string]any{"winnerId": winner.ID, "submission": sub})

	if r.Viewers.Count() == 0 {
		r.startCountdown("winnerAudioNone", NoViewerWinnerAudioDelay, r.onWinnerAudioComplete)
	}
	return nil
}

// WinnerAudioComplete signals that the winning submission finished playing.
// Primary-viewer only when viewers exist; otherwise the server self-signals.
func (r *Room) WinnerAudioComplete(by string, isViewer bool) error {
	if r.Phase != PhaseRoundResults {
		return ErrWrongPhase
	}
	if r.Viewers.Count() > 0 {
		if !isViewer || !r.Viewers.IsPrimary(by) {
			return ErrNotAuthorized
		}
	}
	r.cancelTimer()
	r.onWinnerAudioComplete()
	return nil
}

func (r *Room) onWinnerAudioComplete() {
	if r.Phase != PhaseRoundResults {
		return
	}
	top, topPlayers := r.topScore()
	endOfRounds := r.Round >= r.MaxRounds
	scoreReached := top >= r.MaxScore

	if (endOfRounds || scoreReached) && len(topPlayers) == 1 {
		winner := topPlayers[0]
		// The decisive round announces itself too, so main screens can flag
		// the round that ended the game.
		r.broadcastRoom(EventTieBreakerRound, map[string]any{"tied": topPlayers})
		r.startCountdown("celebration", PostWinCelebrationDelay, func() { r.finishGame(winner) })
		return
	}
	if (endOfRounds || scoreReached) && len(topPlayers) > 1 {
		r.broadcastRoom(EventTieBreakerRound, map[string]any{"tied": topPlayers})
	}
	r.advanceToNextRound()
}

func (r *Room) finishGame(winner ParticipantID) {
	metrics.RoomPhaseTransitions.WithLabelValues(string(r.Phase), string(PhaseGameOver)).Inc()
	r.OverallWinnerID = winner
	r.Phase = PhaseGameOver
	r.emitRoomUpdated()
	r.broadcastRoom(EventGameStateChanged, GameStateChangedPayload{Phase: r.Phase, Round: r.Round, Winner: winner, FinalScores: r.Participants})
	r.broadcastRoom(EventGameComplete, map[string]any{"winnerId": winner, "finalScores": r.Participants})
}

func (r *Room) advanceToNextRound() {
	r.JudgeID = r.rotateJudge()
	r.Round++
	r.clearRoundState()
	r.enterJudgeSelection()
}

// RequestJudgingPlayback lets the judge replay submissions during JUDGING.
// With viewers connected, it fans out to them; otherwise it hints the judge
// to play the audio locally.
func (r *Room) RequestJudgingPlayback(by ParticipantID) error {
	if r.Phase != PhaseJudging {
		return ErrWrongPhase
	}
	if by != r.JudgeID {
		return ErrNotAuthorized
	}
	if r.Viewers.Count() > 0 {
		r.broadcastViewers(EventPlayJudgingSubmission, map[string]any{"randomizedSubmissions": r.RandomizedSubmissions})
	} else {
		r.sendTo(by, EventPlayJudgingSubmission, map[string]any{"hint": "playLocally"})
	}
	return nil
}

// UpdateGameSettings is host-only and only permitted in the lobby.
func (r *Room) UpdateGameSettings(by ParticipantID, maxRounds, maxScore int, allowAdult bool) error {
	if r.Phase != PhaseLobby {
		return ErrWrongPhase
	}
	caller := r.findParticipant(by)
	if caller == nil || !caller.IsHost {
		return ErrNotAuthorized
	}
	if maxRounds < 1 || maxRounds > 20 {
		return fmt.Errorf("%w: maxRounds must be between 1 and 20", ErrInvalidInput)
	}
	if maxScore < 1 || maxScore > 10 {
		return fmt.Errorf("%w: maxScore must be between 1 and 10", ErrInvalidInput)
	}

	r.MaxRounds = maxRounds
	r.MaxScore = maxScore
	r.AllowAdult = allowAdult
	r.broadcastRoom(EventGameSettingsUpdated, map[string]any{
		"maxRounds": maxRounds, "maxScore": maxScore, "allowExplicitContent": allowAdult,
	})
	r.emitRoomUpdated()
	return nil
}

// RestartGame returns a finished game to the lobby: host-only, GAME_OVER
// only. Scores, rounds, and the used-prompt set reset; participants and
// their roles are preserved.
func (r *Room) RestartGame(by ParticipantID) error {
	if r.Phase != PhaseGameOver {
		return ErrWrongPhase
	}
	caller := r.findParticipant(by)
	if caller == nil || !caller.IsHost {
		return ErrNotAuthorized
	}

	for _, p := range r.Participants {
		p.Score = 0
	}
	r.Round = 0
	r.JudgeID = ""
	r.UsedPromptIDs = set.New[string]()
	r.OverallWinnerID = ""
	r.LastWinnerID = ""
	r.LastWinningSubmission = nil
	r.clearRoundState()
	r.Phase = PhaseLobby
	r.emitRoomUpdated()
	r.broadcastRoom(EventGameStateChanged, GameStateChangedPayload{Phase: r.Phase, Round: r.Round})
	return nil
}
