package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDisconnectInLobbyRemovesImmediately(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 3)

	r.HandleDisconnect(participants[1].ID)

	assert.Len(t, r.Participants, 2)
	assert.Empty(t, r.Disconnected)
	assert.False(t, r.PausedForDisconnection)
}

func TestHandleDisconnectReassignsHostWhenHostLeaves(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 3)

	r.HandleDisconnect(participants[0].ID)

	require.Len(t, r.Participants, 2)
	assert.True(t, r.Participants[0].IsHost)
}

func TestHandleDisconnectDuringGamePauses(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 3)
	enterSoundSelection(t, r, participants)
	previousPhase := r.Phase
	target := r.nonJudgeParticipants()[0]

	r.HandleDisconnect(target.ID)

	assert.Equal(t, PhasePausedForDisconnection, r.Phase)
	assert.Equal(t, previousPhase, r.PreviousPhase)
	assert.Len(t, r.Disconnected, 1)
	assert.Equal(t, target.ID, r.Disconnected[0].OriginalID)
	assert.True(t, r.timers.Active(string(r.Code)), "grace timer should be armed")
	assert.Nil(t, r.PendingVote, "a vote has not started yet during the grace period")
}

func TestReconnectWithinGraceRestoresParticipantAndResumes(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 3)
	enterSoundSelection(t, r, participants)
	target := r.nonJudgeParticipants()[0]
	target.Score = 2
	originalID := target.ID
	name := target.DisplayName

	r.HandleDisconnect(originalID)
	require.Equal(t, PhasePausedForDisconnection, r.Phase)

	p, err := r.Reconnect(name, originalID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Score)
	assert.Empty(t, r.Disconnected)
	assert.Equal(t, PhaseSoundSelection, r.Phase, "room resumes the phase it was interrupted in")
}

func TestReconnectWrongOriginalIDFails(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 3)
	enterSoundSelection(t, r, participants)
	target := r.nonJudgeParticipants()[0]
	name := target.DisplayName

	r.HandleDisconnect(target.ID)

	_, err := r.Reconnect(name, ParticipantID("not-the-original-id"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconnectedJudgeRemainsJudge(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 3)
	enterSoundSelection(t, r, participants)
	judgeID := r.JudgeID
	judge := r.findParticipant(judgeID)
	name := judge.DisplayName

	r.HandleDisconnect(judgeID)
	// Judge is the disconnected party; resumption will need a stand-in once
	// the grace/vote protocol concludes, but while still disconnected the
	// room just waits.
	require.Equal(t, PhasePausedForDisconnection, r.Phase)

	_, err := r.Reconnect(name, judgeID)
	require.NoError(t, err)
	assert.Equal(t, judgeID, r.JudgeID)
}

func TestVoteContinueOnDisconnectedJudgeAdvancesToNextInRotationNotHost(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 4)
	// Advance into round 2 so the judge has rotated away from index 0 (the
	// host) before disconnecting.
	require.NoError(t, r.StartGame(participants[0].ID))
	r.advanceToNextRound()
	require.Equal(t, 2, r.Round)
	r.advanceToPromptSelection()
	require.NoError(t, r.SelectPrompt(r.JudgeID, r.AvailablePrompts[0].ID))
	require.Equal(t, PhaseSoundSelection, r.Phase)

	judgeID := r.JudgeID
	judgeIdx := r.participantIndex(judgeID)
	require.Greater(t, judgeIdx, 0, "judge must have rotated off the host by round 2")
	expectedNext := r.Participants[(judgeIdx+1)%len(r.Participants)].ID

	r.HandleDisconnect(judgeID)
	require.Equal(t, PhasePausedForDisconnection, r.Phase)
	r.startVote()
	voter := r.PendingVote.VoterID

	require.NoError(t, r.VoteOnReconnection(voter, false))

	assert.Equal(t, PhaseSoundSelection, r.Phase)
	assert.Equal(t, expectedNext, r.JudgeID)
	assert.NotEqual(t, participants[0].ID, r.JudgeID, "must not silently fall back to the host")
}

func TestVoteContinueOnDisconnectedHostReassignsHost(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 4)
	enterSoundSelection(t, r, participants)
	require.True(t, participants[0].IsHost)
	// Rotate the judge off the host so the host is an eligible submitter.
	r.JudgeID = participants[1].ID

	r.HandleDisconnect(participants[0].ID)
	require.Equal(t, PhasePausedForDisconnection, r.Phase)
	r.startVote()
	voter := r.PendingVote.VoterID

	require.NoError(t, r.VoteOnReconnection(voter, false))

	hosts := 0
	for _, p := range r.Participants {
		if p.IsHost {
			hosts++
		}
	}
	assert.Equal(t, 1, hosts, "voting off the host must hand the flag to a remaining participant")
}

func TestResumeInJudgeSelectionReArmsAutoAdvance(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 4)
	require.NoError(t, r.StartGame(participants[0].ID))
	require.Equal(t, PhaseJudgeSelection, r.Phase)
	target := r.nonJudgeParticipants()[0]

	r.HandleDisconnect(target.ID)
	require.Equal(t, PhasePausedForDisconnection, r.Phase)
	assert.False(t, r.JudgeSelectionTimerStarted, "pausing judge selection releases the auto-advance flag")

	_, err := r.Reconnect(target.DisplayName, target.ID)
	require.NoError(t, err)

	assert.Equal(t, PhaseJudgeSelection, r.Phase)
	assert.True(t, r.JudgeSelectionTimerStarted)
	assert.True(t, r.timers.Active(string(r.Code)), "the 3-second auto-advance must be re-armed on resume")
}

func TestResumeInPromptSelectionDoesNotAutoRestartTimer(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 4)
	startThroughPromptSelection(t, r, participants)
	require.Equal(t, PhasePromptSelection, r.Phase)
	target := r.nonJudgeParticipants()[0]

	r.HandleDisconnect(target.ID)
	require.Equal(t, PhasePausedForDisconnection, r.Phase)

	_, err := r.Reconnect(target.DisplayName, target.ID)
	require.NoError(t, err)

	assert.Equal(t, PhasePromptSelection, r.Phase)
	assert.False(t, r.timers.Active(string(r.Code)), "prompt selection waits on the judge after a resume; no countdown restarts")
}

func TestResumeInSoundSelectionOnlyRestartsStartedTimer(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 4)
	enterSoundSelection(t, r, participants)
	target := r.nonJudgeParticipants()[0]

	// No submission yet: the sound timer was never started, so resumption
	// must not start it either.
	r.HandleDisconnect(target.ID)
	_, err := r.Reconnect(target.DisplayName, target.ID)
	require.NoError(t, err)
	assert.Equal(t, PhaseSoundSelection, r.Phase)
	assert.False(t, r.timers.Active(string(r.Code)))

	// After the first submission the flag is set; a pause/resume cycle now
	// restarts the countdown.
	other := r.nonJudgeParticipants()[1]
	require.NoError(t, r.SubmitSounds(other.ID, []string{"s0"}))
	require.True(t, r.SoundSelectionTimerStarted)

	r.HandleDisconnect(target.ID)
	_, err = r.Reconnect(target.DisplayName, target.ID)
	require.NoError(t, err)
	assert.True(t, r.timers.Active(string(r.Code)), "a sound timer that had started before the pause resumes with it")
}

func TestResumeIntoJudgingRedeliversSubmissions(t *testing.T) {
	r := newTestRoom(t)
	participants, senders := seatParticipants(t, r, 4)
	enterJudging(t, r, participants)
	target := r.nonJudgeParticipants()[0]

	r.HandleDisconnect(target.ID)
	require.Equal(t, PhasePausedForDisconnection, r.Phase)

	_, err := r.Reconnect(target.DisplayName, target.ID)
	require.NoError(t, err)
	require.Equal(t, PhaseJudging, r.Phase)

	var last *GameStateChangedPayload
	for _, e := range senders[0].events() {
		if e.event != EventGameStateChanged {
			continue
		}
		if p, ok := e.payload.(GameStateChangedPayload); ok {
			last = &p
		}
	}
	require.NotNil(t, last, "resumption must re-broadcast gameStateChanged for the restored phase")
	assert.Equal(t, PhaseJudging, last.Phase)
	assert.Len(t, last.RandomizedSubmissions, len(r.Submissions),
		"the judge needs the round's randomized submissions back to pick a winner")
	assert.Len(t, last.Submissions, len(r.Submissions))
}

func TestSnapshotCarriesRoundStateForReconnectors(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 3)
	enterJudging(t, r, participants)

	snap := r.Snapshot()

	assert.NotNil(t, snap.CurrentPrompt)
	assert.Len(t, snap.Submissions, len(r.Submissions))
	assert.Len(t, snap.RandomizedSubmissions, len(r.RandomizedSubmissions))
}

func TestVoteContinueRemovesDisconnectedAndResumes(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 4)
	enterSoundSelection(t, r, participants)
	target := r.nonJudgeParticipants()[0]

	r.HandleDisconnect(target.ID)
	require.Equal(t, PhasePausedForDisconnection, r.Phase)

	r.startVote()
	require.NotNil(t, r.PendingVote)
	voter := r.PendingVote.VoterID

	require.NoError(t, r.VoteOnReconnection(voter, false))

	assert.Empty(t, r.Disconnected)
	assert.Nil(t, r.PendingVote)
	assert.Equal(t, PhaseSoundSelection, r.Phase)
}

func TestVoteWaitRestartsGracePeriod(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 4)
	enterSoundSelection(t, r, participants)
	target := r.nonJudgeParticipants()[0]

	r.HandleDisconnect(target.ID)
	r.startVote()
	voter := r.PendingVote.VoterID

	require.NoError(t, r.VoteOnReconnection(voter, true))

	assert.Nil(t, r.PendingVote)
	assert.Len(t, r.Disconnected, 1, "the disconnected participant is still awaited")
	assert.True(t, r.timers.Active(string(r.Code)), "a fresh grace countdown should be armed")
}

func TestVoteFromNonVoterRejected(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 4)
	enterSoundSelection(t, r, participants)
	target := r.nonJudgeParticipants()[0]

	r.HandleDisconnect(target.ID)
	r.startVote()

	var notVoter ParticipantID
	for _, p := range r.Participants {
		if p.ID != r.PendingVote.VoterID {
			notVoter = p.ID
			break
		}
	}

	err := r.VoteOnReconnection(notVoter, false)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestVoteExpiryDefaultsToContinue(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 4)
	enterSoundSelection(t, r, participants)
	target := r.nonJudgeParticipants()[0]

	r.HandleDisconnect(target.ID)
	r.startVote()

	r.onVoteExpired()

	assert.Empty(t, r.Disconnected, "silence defaults to continuing without the player")
	assert.Equal(t, PhaseSoundSelection, r.Phase)
}

func TestDisconnectionBelowMinParticipantsEndsGame(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 3)
	enterSoundSelection(t, r, participants)
	a := r.nonJudgeParticipants()[0]

	r.HandleDisconnect(a.ID)
	require.Equal(t, PhasePausedForDisconnection, r.Phase)
	r.startVote()
	voter := r.PendingVote.VoterID

	require.NoError(t, r.VoteOnReconnection(voter, false))

	assert.Equal(t, PhaseGameOver, r.Phase, "dropping below the 3-participant minimum ends the game")
}

func TestLeaveRoomDuringPauseRemovesDisconnectedEntryOutright(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 4)
	enterSoundSelection(t, r, participants)
	target := r.nonJudgeParticipants()[0]

	r.HandleDisconnect(target.ID)
	require.Len(t, r.Disconnected, 1)

	r.LeaveRoom(target.ID)

	assert.Empty(t, r.Disconnected)
	assert.Equal(t, PhaseSoundSelection, r.Phase, "the room resumes once the only pending disconnection leaves for good")
}

func TestSweepDisconnectedDropsStaleEntry(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 4)
	enterSoundSelection(t, r, participants)
	target := r.nonJudgeParticipants()[0]

	r.HandleDisconnect(target.ID)
	require.Len(t, r.Disconnected, 1)
	r.Disconnected[0].DisconnectedAt = r.Disconnected[0].DisconnectedAt.Add(-DisconnectedSweepInterval * 2)

	r.sweepDisconnected(target.ID)

	assert.Empty(t, r.Disconnected)
}

func TestSweepDisconnectedKeepsFreshEntry(t *testing.T) {
	r := newTestRoom(t)
	participants, _ := seatParticipants(t, r, 4)
	enterSoundSelection(t, r, participants)
	target := r.nonJudgeParticipants()[0]

	r.HandleDisconnect(target.ID)
	r.sweepDisconnected(target.ID)

	assert.Len(t, r.Disconnected, 1, "an entry well within the window must survive a sweep")
}
