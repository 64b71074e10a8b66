package game

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"github.com/partyline/soundclash/internal/v1/tracing"
)

// ErrorPayload is the body of an outbound "error" event.
type ErrorPayload struct {
	Message string `json:"message"`
}

type updateGameSettingsPayload struct {
	MaxRounds            int  `json:"maxRounds"`
	MaxScore             int  `json:"maxScore"`
	AllowExplicitContent bool `json:"allowExplicitContent"`
}

type selectPromptPayload struct {
	PromptID string `json:"promptId"`
}

type submitSoundsPayload struct {
	SoundIDs []string `json:"soundIds"`
}

type selectWinnerPayload struct {
	Index int `json:"index"`
}

type voteOnReconnectionPayload struct {
	KeepWaiting bool `json:"keepWaiting"`
}

// Dispatch routes one decoded participant event to the corresponding Room
// method. Every branch validates and mutates on the room's own goroutine
// (the caller must already be inside a Post closure); failures are reported
// back to the originating client only, never broadcast.
func (r *Room) Dispatch(client sender, participantID ParticipantID, event string, payload json.RawMessage) {
	_, span := tracing.StartDispatchSpan(r.ctx(), "room.Dispatch", string(r.Code), event)
	defer span.End()

	var err error

	switch event {
	case EventStartGame:
		err = r.StartGame(participantID)

	case EventUpdateGameSettings:
		var p updateGameSettingsPayload
		if e := json.Unmarshal(payload, &p); e != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidInput, e)
			break
		}
		err = r.UpdateGameSettings(participantID, p.MaxRounds, p.MaxScore, p.AllowExplicitContent)

	case EventSelectPrompt:
		var p selectPromptPayload
		if e := json.Unmarshal(payload, &p); e != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidInput, e)
			break
		}
		err = r.SelectPrompt(participantID, p.PromptID)

	case EventSubmitSounds:
		var p submitSoundsPayload
		if e := json.Unmarshal(payload, &p); e != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidInput, e)
			break
		}
		err = r.SubmitSounds(participantID, p.SoundIDs)

	case EventSelectWinner:
		var p selectWinnerPayload
		if e := json.Unmarshal(payload, &p); e != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidInput, e)
			break
		}
		err = r.SelectWinner(participantID, p.Index)

	case EventVoteOnReconnection:
		var p voteOnReconnectionPayload
		if e := json.Unmarshal(payload, &p); e != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidInput, e)
			break
		}
		err = r.VoteOnReconnection(participantID, p.KeepWaiting)

	case EventWinnerAudioComplete:
		err = r.WinnerAudioComplete(string(participantID), false)

	case EventRequestJudgingPlayback:
		err = r.RequestJudgingPlayback(participantID)

	case EventRestartGame:
		err = r.RestartGame(participantID)

	case EventLeaveRoom:
		r.LeaveRoom(participantID)

	default:
		err = fmt.Errorf("%w: unrecognized event %q", ErrInvalidInput, event)
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		client.Send(EventError, ErrorPayload{Message: err.Error()})
	}
}

// DispatchViewer routes one decoded viewer event. Viewers have a narrower
// surface: they pace main-screen playback and signal winner-audio
// completion, but cannot submit, vote, or change settings.
func (r *Room) DispatchViewer(client sender, viewerID string, event string, payload json.RawMessage) {
	_, span := tracing.StartDispatchSpan(r.ctx(), "room.DispatchViewer", string(r.Code), event)
	defer span.End()

	switch event {
	case EventRequestNextSubmission:
		if err := r.RequestNextSubmission(viewerID); err != nil {
			client.Send(EventError, ErrorPayload{Message: err.Error()})
		}

	case EventWinnerAudioComplete:
		if err := r.WinnerAudioComplete(viewerID, true); err != nil {
			client.Send(EventError, ErrorPayload{Message: err.Error()})
		}

	case EventRequestMainScreenUpdate:
		client.Send(EventMainScreenUpdate, r.Snapshot())

	default:
		client.Send(EventError, ErrorPayload{Message: fmt.Sprintf("unrecognized viewer event %q", event)})
	}
}
