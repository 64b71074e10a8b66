package game

import (
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/partyline/soundclash/internal/v1/metrics"
)

// HandleDisconnect reacts to an unexpected transport drop (as opposed to an
// explicit leaveRoom). In the lobby or after the game ends there is nothing
// to preserve, so the participant is removed outright. Mid-game, the
// participant is parked in Disconnected and the room enters the grace/vote
// grace/vote protocol.
func (r *Room) HandleDisconnect(id ParticipantID) {
	delete(r.participantClients, id)

	if r.Phase == PhaseLobby || r.Phase == PhaseGameOver {
		r.removeParticipantImmediately(id)
		return
	}

	idx := r.participantIndex(id)
	if idx < 0 {
		return
	}
	if id == r.JudgeID {
		r.judgeVacancyIndex = idx
	} else if r.judgeVacancyIndex >= 0 && idx < r.judgeVacancyIndex {
		r.judgeVacancyIndex--
	}
	p := r.removeParticipantAt(idx)
	r.Disconnected = append(r.Disconnected, &DisconnectedParticipant{
		Snapshot:       p.Clone(),
		DisconnectedAt: time.Now(),
		OriginalID:     id,
	})
	r.broadcastRoom(EventPlayerDisconnected, map[string]any{"participantId": id})
	r.scheduleSweep(id)

	if !r.PausedForDisconnection {
		r.pauseForDisconnection()
	}
}

// pauseForDisconnection snapshots the interrupted phase and starts the 30s
// grace timer (phase A of the disconnection controller).
func (r *Room) pauseForDisconnection() {
	r.PreviousPhase = r.Phase
	r.PausedForDisconnection = true
	r.DisconnectionTimestamp = time.Now()
	r.cancelTimer() // suspend whatever phase timer was running
	if r.Phase == PhaseJudgeSelection {
		// The auto-advance countdown was just cancelled; clearing its flag
		// lets resumption re-arm it exactly once, even if two reconnection
		// attempts race to resume the room.
		r.JudgeSelectionTimerStarted = false
	}

	metrics.DisconnectionEvents.WithLabelValues("paused").Inc()
	r.Phase = PhasePausedForDisconnection
	r.emitRoomUpdated()
	r.broadcastRoom(EventGamePausedForDisconnection, map[string]any{"previousPhase": r.PreviousPhase})

	r.startCountdown("disconnectGrace", time.Duration(r.graceSeconds)*time.Second, r.onGraceExpired)
}

func (r *Room) onGraceExpired() {
	if r.Phase != PhasePausedForDisconnection {
		return
	}
	if len(r.Disconnected) == 0 {
		r.resumeOrEnd()
		return
	}
	r.startVote()
}

// startVote enters phase B: a single remaining participant, chosen at
// random, is asked whether to keep waiting for everyone currently
// disconnected or to proceed without them.
func (r *Room) startVote() {
	if len(r.Participants) == 0 {
		r.removeAllDisconnected()
		r.resumeOrEnd()
		return
	}

	names := make([]string, 0, len(r.Disconnected))
	for _, d := range r.Disconnected {
		names = append(names, d.Snapshot.DisplayName)
	}
	voter := r.Participants[rand.Intn(len(r.Participants))]
	r.PendingVote = &ReconnectionVote{
		VoterID:          voter.ID,
		DisconnectedName: strings.Join(names, ", "),
		Deadline:         time.Now().Add(time.Duration(r.voteSeconds) * time.Second),
	}
	r.sendTo(voter.ID, EventReconnectionVoteRequest, map[string]any{"disconnectedNames": names, "timeoutSeconds": r.voteSeconds})
	r.broadcastRoom(EventReconnectionVoteUpdate, map[string]any{"voterId": voter.ID, "disconnectedNames": names})

	r.startCountdown("disconnectVote", time.Duration(r.voteSeconds)*time.Second, r.onVoteExpired)
}

// VoteOnReconnection resolves a pending vote. keepWaiting true restarts the
// grace period; false proceeds without the disconnected participants.
func (r *Room) VoteOnReconnection(by ParticipantID, keepWaiting bool) error {
	if r.Phase != PhasePausedForDisconnection {
		return ErrWrongPhase
	}
	if r.PendingVote == nil || r.PendingVote.VoterID != by {
		return ErrNotAuthorized
	}
	r.cancelTimer()
	r.resolveVote(keepWaiting)
	return nil
}

// onVoteExpired treats silence as a vote to proceed without the
// disconnected participants rather than waiting indefinitely.
func (r *Room) onVoteExpired() {
	if r.Phase != PhasePausedForDisconnection || r.PendingVote == nil {
		return
	}
	r.resolveVote(false)
}

func (r *Room) resolveVote(keepWaiting bool) {
	r.broadcastRoom(EventReconnectionVoteResult, map[string]any{"keepWaiting": keepWaiting})
	r.PendingVote = nil

	if keepWaiting {
		metrics.DisconnectionEvents.WithLabelValues("voteKeepWaiting").Inc()
		r.startCountdown("disconnectGrace", time.Duration(r.graceSeconds)*time.Second, r.onGraceExpired)
		return
	}
	metrics.DisconnectionEvents.WithLabelValues("voteProceed").Inc()
	r.removeAllDisconnected()
	r.resumeOrEnd()
}

func (r *Room) removeAllDisconnected() {
	r.Disconnected = nil
	r.ensureHost()
}

func (r *Room) resumeOrEnd() {
	if len(r.Participants) < MinParticipants {
		r.endGameInsufficientParticipants()
		return
	}
	r.resumeGame()
}

func (r *Room) endGameInsufficientParticipants() {
	metrics.DisconnectionEvents.WithLabelValues("insufficientParticipants").Inc()
	r.cancelTimer()
	r.PausedForDisconnection = false
	r.Phase = PhaseGameOver
	r.emitRoomUpdated()
	r.broadcastRoom(EventGameStateChanged, GameStateChangedPayload{Phase: r.Phase, Round: r.Round})
	r.broadcastRoom(EventGameComplete, map[string]any{"reason": "insufficientParticipants"})
}

// resumeGame restores the phase interrupted by the disconnection, picking a
// new judge if the old one never reconnected, and restarts the interrupted
// phase's timer idempotently.
func (r *Room) resumeGame() {
	metrics.DisconnectionEvents.WithLabelValues("resumed").Inc()
	r.cancelTimer() // the grace countdown may still be running on a reconnect
	r.PausedForDisconnection = false
	resumed := r.PreviousPhase
	r.Phase = resumed

	if r.findParticipant(r.JudgeID) == nil {
		r.JudgeID = r.nextJudgeAfterVacancy()
	}
	r.judgeVacancyIndex = -1

	r.emitRoomUpdated()
	r.broadcastRoom(EventGameResumed, map[string]any{"phase": resumed})
	r.broadcastRoom(EventGameStateChanged, r.resumedStatePayload(resumed))
	r.restartPhaseTimerIfNeeded(resumed)
}

// resumedStatePayload rebuilds the gameStateChanged payload for the phase a
// room resumes into, so a participant who reconnected mid-round gets the
// same data the original transition carried (the prompt choices, the round's
// submissions) rather than just a bare phase name.
func (r *Room) resumedStatePayload(phase Phase) GameStateChangedPayload {
	payload := GameStateChangedPayload{Phase: phase, Round: r.Round, JudgeID: r.JudgeID}
	switch phase {
	case PhasePromptSelection:
		payload.Prompts = r.AvailablePrompts
		payload.TimeLimitSeconds = int(PromptSelectionTimeout.Seconds())
	case PhaseSoundSelection:
		payload.Prompt = r.CurrentPrompt
	case PhasePlayback, PhaseJudging, PhaseRoundResults:
		payload.Prompt = r.CurrentPrompt
		payload.Submissions = r.Submissions
		payload.RandomizedSubmissions = r.RandomizedSubmissions
	}
	return payload
}

func (r *Room) restartPhaseTimerIfNeeded(phase Phase) {
	switch phase {
	case PhaseJudgeSelection:
		if !r.JudgeSelectionTimerStarted {
			r.JudgeSelectionTimerStarted = true
			r.startCountdown("judgeSelection", JudgeSelectionAutoAdvance, r.advanceToPromptSelection)
		}
	case PhaseSoundSelection:
		if r.SoundSelectionTimerStarted {
			r.startCountdown("soundSelection", SoundSelectionTimeout, r.autoCompleteSoundSelection)
		}
	default:
		// No other phase restarts a countdown on resume: PROMPT_SELECTION and
		// JUDGING wait on the judge, and a post-playback or no-viewer
		// winner-audio countdown cancelled by the pause is not re-armed.
	}
}

// Reconnect restores a previously disconnected participant matched by
// (display name, original participant identifier), cancelling the grace/vote
// protocol if nobody is left disconnected. An
// empty originalID matches on display name alone, for callers that only
// captured the name (e.g. a same-tab refresh racing the disconnect signal).
func (r *Room) Reconnect(displayName string, originalID ParticipantID) (*Participant, error) {
	for i, d := range r.Disconnected {
		if d.Snapshot.DisplayName != displayName {
			continue
		}
		if originalID != "" && d.OriginalID != originalID {
			continue
		}
		p := d.Snapshot
		p.Disconnected = false
		r.Participants = append(r.Participants, p)
		r.Disconnected = append(r.Disconnected[:i], r.Disconnected[i+1:]...)
		r.broadcastRoom(EventPlayerReconnected, map[string]any{"participantId": p.ID})
		metrics.DisconnectionEvents.WithLabelValues("reconnected").Inc()

		if len(r.Disconnected) == 0 && r.Phase == PhasePausedForDisconnection {
			r.PendingVote = nil
			r.resumeGame()
		}
		return p, nil
	}
	return nil, ErrNotFound
}

// LeaveRoom is an intentional departure: it always removes the participant
// outright, whether they were active or parked in the disconnected set.
func (r *Room) LeaveRoom(id ParticipantID) {
	delete(r.participantClients, id)

	if idx := r.participantIndex(id); idx >= 0 {
		r.removeParticipantImmediately(id)
		return
	}

	for i, d := range r.Disconnected {
		if d.OriginalID != id {
			continue
		}
		r.Disconnected = append(r.Disconnected[:i], r.Disconnected[i+1:]...)
		r.ensureHost()
		if len(r.Disconnected) == 0 && r.Phase == PhasePausedForDisconnection {
			r.PendingVote = nil
			r.resumeOrEnd()
		}
		return
	}
}

// removeParticipantImmediately drops a participant with no grace period:
// used in the lobby, after game over, and for explicit leaveRoom calls.
func (r *Room) removeParticipantImmediately(id ParticipantID) {
	idx := r.participantIndex(id)
	if idx < 0 {
		return
	}
	wasHost := r.Participants[idx].IsHost
	r.removeParticipantAt(idx)
	delete(r.participantClients, id)

	if wasHost {
		r.reassignHost()
	}
	r.broadcastRoom(EventPlayerLeft, map[string]any{"participantId": id})

	if r.isEmpty() {
		r.closeRoom()
		return
	}
	r.emitRoomUpdated()
}

func (r *Room) closeRoom() {
	r.broadcastViewers(EventRoomClosed, map[string]any{"code": r.Code})
	r.Stop()
	if r.onEmpty != nil {
		r.onEmpty(r.Code)
	}
}

// scheduleSweep arms the outer safety net for one disconnected entry: if
// originalID is still on the disconnected list after DisconnectedSweepInterval
// (well past the 30s grace + 20s vote the normal protocol allows), it is
// dropped unconditionally. This is a deferred check, not a countdown the
// client observes, so it does not compete with the at-most-one-timer
// invariant on the room's phase timer.
func (r *Room) scheduleSweep(originalID ParticipantID) {
	time.AfterFunc(DisconnectedSweepInterval, func() {
		r.Post(func() { r.sweepDisconnected(originalID) })
	})
}

func (r *Room) sweepDisconnected(originalID ParticipantID) {
	for i, d := range r.Disconnected {
		if d.OriginalID != originalID {
			continue
		}
		if time.Since(d.DisconnectedAt) < DisconnectedSweepInterval {
			return // reconnected and disconnected again under the same id since
		}
		r.logWarn("sweeping stale disconnected participant", zap.String("participant", string(originalID)))
		r.Disconnected = append(r.Disconnected[:i], r.Disconnected[i+1:]...)
		r.ensureHost()
		if len(r.Disconnected) == 0 && r.Phase == PhasePausedForDisconnection {
			r.PendingVote = nil
			r.resumeOrEnd()
		}
		return
	}
}
