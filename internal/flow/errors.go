package flow

import "errors"

// ErrMissingContext marks a turn whose step arrived without the state it
// needs, usually because the session expired or the user replayed an old
// button. The engine answers it with a restart prompt, not a failure.
var ErrMissingContext = errors.New("flow: conversation context missing")
