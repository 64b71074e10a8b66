package game

import (
	"fmt"

	"github.com/partyline/soundclash/internal/v1/idalloc"
)

// AddParticipant seats a new player. Only permitted in the lobby; the first
// participant to join becomes host. preferredColor/preferredEmoji are
// honored when given and not already in use, otherwise one is assigned from
// the standard palettes.
func (r *Room) AddParticipant(id ParticipantID, displayName, preferredColor, preferredEmoji string, client sender) (*Participant, error) {
	if r.Phase != PhaseLobby {
		return nil, fmt.Errorf("%w: room already in progress", ErrWrongPhase)
	}
	if len(r.Participants) >= MaxParticipants {
		return nil, fmt.Errorf("%w: room is full", ErrInvalidInput)
	}
	for _, p := range r.Participants {
		if p.DisplayName == displayName {
			return nil, fmt.Errorf("%w: name %q is already taken", ErrInvalidInput, displayName)
		}
	}

	takenColors := make(map[string]bool, len(r.Participants))
	takenEmoji := make(map[string]bool, len(r.Participants))
	for _, p := range r.Participants {
		takenColors[p.Color] = true
		takenEmoji[p.Emoji] = true
	}

	color := preferredColor
	if color == "" || takenColors[color] {
		color = idalloc.AssignColor(takenColors)
	}
	emoji := preferredEmoji
	if emoji == "" || takenEmoji[emoji] {
		emoji = idalloc.AssignEmoji(takenEmoji)
	}

	p := &Participant{
		ID:          id,
		DisplayName: displayName,
		Color:       color,
		Emoji:       emoji,
		IsHost:      len(r.Participants) == 0,
	}
	r.Participants = append(r.Participants, p)
	r.participantClients[id] = client

	r.broadcastRoom(EventPlayerJoined, map[string]any{"participant": p})
	r.emitRoomUpdated()
	return p, nil
}

// BindParticipantClient re-attaches a transport connection to an existing
// participant id, used after Reconnect has moved a disconnected participant
// back onto the Participants list.
func (r *Room) BindParticipantClient(id ParticipantID, client sender) {
	r.participantClients[id] = client
}

// AddViewer registers a main-screen viewer connection, electing it primary
// if it is the first to join.
func (r *Room) AddViewer(id string, client sender) *Viewer {
	v := r.Viewers.Join(id)
	r.viewerClients[id] = client
	r.emitRoomUpdated()
	return v
}

// RemoveViewer drops a viewer connection, promoting a new primary if needed.
func (r *Room) RemoveViewer(id string) {
	delete(r.viewerClients, id)
	r.Viewers.Leave(id)
	r.emitRoomUpdated()
}
