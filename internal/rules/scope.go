package rules

// Scope names the room types a rule applies to. The zero value is NOT
// valid; construct scopes with ScopeAll or ScopeOf.
type Scope struct {
	// All marks the wildcard scope covering every room type.
	All bool `json:"all,omitempty"`

	// RoomTypes lists specific room type identifiers. Ignored when All
	// is set.
	RoomTypes []string `json:"room_types,omitempty"`
}

// ScopeAll returns the wildcard scope.
func ScopeAll() Scope {
	return Scope{All: true}
}

// ScopeOf returns a scope covering exactly the given room types.
func ScopeOf(roomTypes ...string) Scope {
	return Scope{RoomTypes: roomTypes}
}

// Valid reports whether the scope names at least one room type or the
// wildcard.
func (s Scope) Valid() bool {
	return s.All || len(s.RoomTypes) > 0
}

// Intersects reports whether two scopes share at least one room type.
// The wildcard intersects everything.
func (s Scope) Intersects(o Scope) bool {
	if s.All || o.All {
		return true
	}
	for _, a := range s.RoomTypes {
		for _, b := range o.RoomTypes {
			if a == b {
				return true
			}
		}
	}
	return false
}

// String renders the scope for logs and CLI output.
func (s Scope) String() string {
	if s.All {
		return "all"
	}
	out := ""
	for i, rt := range s.RoomTypes {
		if i > 0 {
			out += ","
		}
		out += rt
	}
	return out
}
