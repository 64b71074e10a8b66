package game

import "encoding/json"

// Envelope is the wire format for every WebSocket message in both
// directions: {"event": "...", "payload": {...}}.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event names, from participants.
const (
	EventCreateRoom             = "createRoom"
	EventJoinRoom               = "joinRoom"
	EventReconnectToRoom        = "reconnectToRoom"
	EventLeaveRoom              = "leaveRoom"
	EventStartGame              = "startGame"
	EventUpdateGameSettings     = "updateGameSettings"
	EventSelectPrompt           = "selectPrompt"
	EventSubmitSounds           = "submitSounds"
	EventSelectWinner           = "selectWinner"
	EventVoteOnReconnection     = "voteOnReconnection"
	EventWinnerAudioComplete    = "winnerAudioComplete"
	EventRequestJudgingPlayback = "requestJudgingPlayback"
	EventRestartGame            = "restartGame"
)

// Inbound event names, from viewers.
const (
	EventJoinRoomAsViewer        = "joinRoomAsViewer"
	EventRequestNextSubmission   = "requestNextSubmission"
	EventRequestMainScreenUpdate = "requestMainScreenUpdate"
)

// Outbound event names.
const (
	EventRoomCreated                = "roomCreated"
	EventRoomJoined                 = "roomJoined"
	EventRoomUpdated                = "roomUpdated"
	EventGameStateChanged           = "gameStateChanged"
	EventPlayerJoined               = "playerJoined"
	EventPlayerLeft                 = "playerLeft"
	EventPlayerDisconnected         = "playerDisconnected"
	EventPlayerReconnected          = "playerReconnected"
	EventReconnectionVoteRequest    = "reconnectionVoteRequest"
	EventReconnectionVoteUpdate     = "reconnectionVoteUpdate"
	EventReconnectionVoteResult     = "reconnectionVoteResult"
	EventGamePausedForDisconnection = "gamePausedForDisconnection"
	EventGameResumed                = "gameResumed"
	EventJudgeSelected              = "judgeSelected"
	EventPromptSelected             = "promptSelected"
	EventSoundSubmitted             = "soundSubmitted"
	EventRoundComplete              = "roundComplete"
	EventGameComplete               = "gameComplete"
	EventGameSettingsUpdated        = "gameSettingsUpdated"
	EventTimeUpdate                 = "timeUpdate"
	EventPlaySubmission             = "playSubmission"
	EventPlayJudgingSubmission      = "playJudgingSubmission"
	EventTieBreakerRound            = "tieBreakerRound"
	EventMainScreenUpdate           = "mainScreenUpdate"
	EventRoomClosed                 = "roomClosed"
	EventError                      = "error"
)
