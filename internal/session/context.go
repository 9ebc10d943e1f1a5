// Package session persists the per-conversation contexts that carry the
// booking flow across turns. A context is a named record with a parameter
// bag and a lifespan in turns; it is the only state that survives between
// turns, everything else is recomputed.
package session

// Flow context names. At most one of the two ongoing contexts may be active
// for a conversation at any time.
const (
	CtxOngoingAppointment = "ongoing-appointment"
	CtxOngoingModify      = "ongoing-modify-appointment"
)

// Parameter bag keys.
const (
	ParamCustomer      = "customer"
	ParamPhoneNumber   = "phoneNumber"
	ParamServices      = "services"
	ParamDate          = "date"
	ParamTimeBand      = "timeBand"
	ParamTime          = "time"
	ParamBookingNumber = "bookingNumber"
	ParamEventID       = "eventId"
)

// DefaultLifespan is the number of turns a freshly installed context
// survives without being refreshed.
const DefaultLifespan = 5

// Context is one named state record of a conversation.
type Context struct {
	Name       string         `json:"name"`
	Lifespan   int            `json:"lifespan"`
	Parameters map[string]any `json:"parameters"`
}

// StringParam reads a string parameter, tolerating absent or non-string
// values.
func (c *Context) StringParam(key string) string {
	if c == nil || c.Parameters == nil {
		return ""
	}
	if v, ok := c.Parameters[key].(string); ok {
		return v
	}
	return ""
}

// StringSliceParam reads a list parameter. JSON round-trips deliver lists
// as []any, so both shapes are accepted.
func (c *Context) StringSliceParam(key string) []string {
	if c == nil || c.Parameters == nil {
		return nil
	}
	switch v := c.Parameters[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ContextSet is the full set of active contexts for one conversation.
type ContextSet []Context

// Find returns the context with the given name, or nil.
func (s ContextSet) Find(name string) *Context {
	for i := range s {
		if s[i].Name == name {
			return &s[i]
		}
	}
	return nil
}

// FindAny returns the first context matching any of the given names. The
// shared sub-chain of the booking flow uses this to accept either the new
// or the modify flow context.
func (s ContextSet) FindAny(names ...string) *Context {
	for _, name := range names {
		if c := s.Find(name); c != nil {
			return c
		}
	}
	return nil
}

// Set installs or replaces a context by name and returns the updated set.
func (s ContextSet) Set(c Context) ContextSet {
	if c.Parameters == nil {
		c.Parameters = map[string]any{}
	}
	for i := range s {
		if s[i].Name == c.Name {
			s[i] = c
			return s
		}
	}
	return append(s, c)
}

// Delete removes a context by name and returns the updated set.
func (s ContextSet) Delete(name string) ContextSet {
	out := s[:0]
	for _, c := range s {
		if c.Name != name {
			out = append(out, c)
		}
	}
	return out
}

// MergeParams merges parameters into the named context, creating it with
// the default lifespan when absent. Existing keys are overwritten.
func (s ContextSet) MergeParams(name string, params map[string]any) ContextSet {
	c := s.Find(name)
	if c == nil {
		fresh := Context{Name: name, Lifespan: DefaultLifespan, Parameters: map[string]any{}}
		for k, v := range params {
			fresh.Parameters[k] = v
		}
		return append(s, fresh)
	}
	if c.Parameters == nil {
		c.Parameters = map[string]any{}
	}
	for k, v := range params {
		c.Parameters[k] = v
	}
	return s
}

// Refresh resets the named context's lifespan to the default.
func (s ContextSet) Refresh(name string) ContextSet {
	if c := s.Find(name); c != nil {
		c.Lifespan = DefaultLifespan
	}
	return s
}

// Tick decrements every lifespan by one turn and drops expired contexts.
// Called once per turn before the step handler runs; contexts the handler
// installs or refreshes afterwards do not decay this turn.
func (s ContextSet) Tick() ContextSet {
	out := s[:0]
	for _, c := range s {
		c.Lifespan--
		if c.Lifespan > 0 {
			out = append(out, c)
		}
	}
	return out
}

// EnsureSingleFlow removes whichever ongoing flow context is not keep.
// Exactly one ongoing-* context may drive a conversation.
func (s ContextSet) EnsureSingleFlow(keep string) ContextSet {
	for _, name := range []string{CtxOngoingAppointment, CtxOngoingModify} {
		if name != keep {
			s = s.Delete(name)
		}
	}
	return s
}
