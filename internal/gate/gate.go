// Package gate decides whether a checkout proceeds, must wait for an authentication
// choice, or resumes after one. All decisions go through Transition.
package gate

import "github.com/angelmondragon/packfinderz-storefront/pkg/enums"

type State string

const (
	StateNotStarted         State = "not_started"
	StateAwaitingAuthChoice State = "awaiting_auth_choice"
	StateAuthenticating     State = "authenticating"
	StateProceeding         State = "proceeding"
)

type EventKind string

const (
	EventCheckout       EventKind = "checkout"
	EventChooseSignIn   EventKind = "choose_sign_in"
	EventChooseRegister EventKind = "choose_register"
	EventAuthSucceeded  EventKind = "auth_succeeded"
	EventAuthAbandoned  EventKind = "auth_abandoned"
	EventChooseGuest    EventKind = "choose_guest"
	EventSwitchMode     EventKind = "switch_mode"
	EventAuthRejected   EventKind = "auth_rejected"
)

// Action tells the caller what to do after a transition.
type Action string

const (
	ActionNone       Action = "none"
	ActionProceed    Action = "proceed"
	ActionPromptAuth Action = "prompt_auth"
	// ActionResume re-invokes the checkout that was suspended at the gate.
	ActionResume Action = "resume"
)

// Snapshot is the complete gate state of one browsing session.
type Snapshot struct {
	State         State             `json:"state"`
	Mode          enums.PaymentMode `json:"mode"`
	Authenticated bool              `json:"authenticated"`
	GuestChosen   bool              `json:"guest_chosen"`
	AuthKind      enums.AuthKind    `json:"auth_kind,omitempty"`
	Suspended     bool              `json:"suspended"`
}

type Event struct {
	Kind          EventKind
	Mode          enums.PaymentMode
	Authenticated bool
}

// Initial is the snapshot of a session that has not checked out yet.
func Initial() Snapshot {
	return Snapshot{State: StateNotStarted, Mode: enums.PaymentModePayNow}
}

func Checkout(mode enums.PaymentMode, authenticated bool) Event {
	return Event{Kind: EventCheckout, Mode: mode, Authenticated: authenticated}
}

func SwitchMode(mode enums.PaymentMode) Event {
	return Event{Kind: EventSwitchMode, Mode: mode}
}

func Simple(kind EventKind) Event {
	return Event{Kind: kind}
}

// Transition is the only place gate state changes.
func Transition(s Snapshot, e Event) (Snapshot, Action) {
	if s.State == "" {
		s.State = StateNotStarted
	}

	switch e.Kind {
	case EventCheckout:
		if e.Mode.IsValid() {
			s.Mode = e.Mode
		}
		// identity comes from the current request only
		s.Authenticated = e.Authenticated
		if s.Mode == enums.PaymentModeRequestQuote || s.Authenticated || s.GuestChosen {
			s.State = StateProceeding
			s.Suspended = false
			s.AuthKind = ""
			return s, ActionProceed
		}
		s.State = StateAwaitingAuthChoice
		s.Suspended = true
		return s, ActionPromptAuth

	case EventChooseSignIn, EventChooseRegister:
		if !gated(s.State) {
			return s, ActionNone
		}
		s.State = StateAuthenticating
		s.AuthKind = enums.AuthKindSignIn
		if e.Kind == EventChooseRegister {
			s.AuthKind = enums.AuthKindRegister
		}
		return s, ActionNone

	case EventAuthSucceeded:
		s.Authenticated = true
		s.AuthKind = ""
		if !gated(s.State) {
			return s, ActionNone
		}
		return resume(s)

	case EventAuthAbandoned:
		if s.State != StateAuthenticating {
			return s, ActionNone
		}
		s.State = StateAwaitingAuthChoice
		s.AuthKind = ""
		return s, ActionNone

	case EventChooseGuest:
		s.GuestChosen = true
		if !gated(s.State) {
			return s, ActionNone
		}
		s.AuthKind = ""
		return resume(s)

	case EventSwitchMode:
		if !e.Mode.IsValid() || e.Mode == s.Mode {
			return s, ActionNone
		}
		return Snapshot{
			State:         StateNotStarted,
			Mode:          e.Mode,
			Authenticated: s.Authenticated,
		}, ActionNone

	case EventAuthRejected:
		if s.Mode == enums.PaymentModeRequestQuote {
			return s, ActionNone
		}
		s.Authenticated = false
		s.GuestChosen = false
		s.AuthKind = ""
		s.State = StateAwaitingAuthChoice
		s.Suspended = true
		return s, ActionPromptAuth
	}
	return s, ActionNone
}

func gated(state State) bool {
	return state == StateAwaitingAuthChoice || state == StateAuthenticating
}

func resume(s Snapshot) (Snapshot, Action) {
	s.State = StateProceeding
	if s.Suspended {
		s.Suspended = false
		return s, ActionResume
	}
	return s, ActionProceed
}
