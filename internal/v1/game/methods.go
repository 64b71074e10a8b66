package game

// rotateJudge returns the participant one position after the current judge
// within the active participants list, wrapping on overflow. Returns "" if
// there are no participants.
func (r *Room) rotateJudge() ParticipantID {
	if len(r.Participants) == 0 {
		return ""
	}
	cur := r.participantIndex(r.JudgeID)
	next := (cur + 1) % len(r.Participants)
	return r.Participants[next].ID
}

// assignInitialJudge picks the first participant as judge (rotation starts
// from index 0 when the game begins).
func (r *Room) assignInitialJudge() ParticipantID {
	if len(r.Participants) == 0 {
		return ""
	}
	return r.Participants[0].ID
}

// nextJudgeAfterVacancy resolves the judge when the previous judge departed
// while disconnected and never reconnected. Removing a participant shifts
// everyone after them left by one, so the participant now occupying the
// vacated judge's roster index is exactly the next participant in rotation
// (wrapping if the judge held the last slot), matching what rotateJudge
// does on an ordinary round advance. Falls back to the first participant
// if no vacancy was recorded.
func (r *Room) nextJudgeAfterVacancy() ParticipantID {
	if len(r.Participants) == 0 {
		return ""
	}
	idx := r.judgeVacancyIndex
	if idx < 0 {
		idx = 0
	}
	idx %= len(r.Participants)
	return r.Participants[idx].ID
}

// nonJudgeParticipants returns every active participant except the judge.
func (r *Room) nonJudgeParticipants() []*Participant {
	out := make([]*Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.ID != r.JudgeID {
			out = append(out, p)
		}
	}
	return out
}

// hasSubmitted reports whether participant id already has a submission this round.
func (r *Room) hasSubmitted(id ParticipantID) bool {
	for _, s := range r.Submissions {
		if s.ParticipantID == id {
			return true
		}
	}
	return false
}

// allNonJudgesSubmitted reports whether every non-judge active participant
// has a recorded submission.
func (r *Room) allNonJudgesSubmitted() bool {
	for _, p := range r.nonJudgeParticipants() {
		if !r.hasSubmitted(p.ID) {
			return false
		}
	}
	return true
}

// topScore returns the highest score among active participants, and the set
// of participant ids tied at that score.
func (r *Room) topScore() (int, []ParticipantID) {
	top := 0
	for _, p := range r.Participants {
		if p.Score > top {
			top = p.Score
		}
	}
	var topPlayers []ParticipantID
	for _, p := range r.Participants {
		if p.Score == top {
			topPlayers = append(topPlayers, p.ID)
		}
	}
	return top, topPlayers
}

// clearRoundState resets per-round fields ahead of judge selection.
func (r *Room) clearRoundState() {
	r.Submissions = nil
	r.RandomizedSubmissions = nil
	r.ShuffleSeed = ""
	r.PlaybackCursor = 0
	r.CurrentPrompt = nil
	r.AvailablePrompts = nil
	r.SoundSelectionTimerStarted = false
	r.JudgeSelectionTimerStarted = false
}

// reassignHost makes the first remaining participant the host, clearing the
// flag from everyone else.
func (r *Room) reassignHost() {
	for i, p := range r.Participants {
		p.IsHost = i == 0
	}
}

// ensureHost restores the one-host invariant after a disconnected entry is
// removed for good: if that entry carried the host flag, the active list is
// left hostless until someone inherits it.
func (r *Room) ensureHost() {
	if len(r.Participants) == 0 {
		return
	}
	for _, p := range r.Participants {
		if p.IsHost {
			return
		}
	}
	r.reassignHost()
}

// resolveSubmission maps a randomized-order index back to the underlying
// submission (the judge always picks from the shuffled order).
func (r *Room) resolveSubmission(index int) *Submission {
	if index < 0 || index >= len(r.RandomizedSubmissions) {
		return nil
	}
	return r.RandomizedSubmissions[index]
}
