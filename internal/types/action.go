// internal/types/action.go
package types

import "time"

// ActionKind enumerates the outbound steps a conversation turn produces.
type ActionKind string

const (
	ActionTypingOn     ActionKind = "typing_on"
	ActionTypingOff    ActionKind = "typing_off"
	ActionWait         ActionKind = "wait"
	ActionSendText     ActionKind = "send_text"
	ActionSendLocation ActionKind = "send_location"
)

// Action is one declarative outbound step. Delay is set for waits, Text for
// text sends and Place for location sends.
type Action struct {
	Kind  ActionKind
	Delay time.Duration
	Text  string
	Place *Place
}

func TypingOn() Action {
	return Action{Kind: ActionTypingOn}
}

func TypingOff() Action {
	return Action{Kind: ActionTypingOff}
}

func Wait(d time.Duration) Action {
	return Action{Kind: ActionWait, Delay: d}
}

func SendText(text string) Action {
	return Action{Kind: ActionSendText, Text: text}
}

func SendLocation(place Place) Action {
	return Action{Kind: ActionSendLocation, Place: &place}
}
