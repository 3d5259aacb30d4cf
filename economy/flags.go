package economy

import (
	"encoding/json"
	"strings"
)

// ModifyFlags alter how a wallet applies an add or take.
type ModifyFlags uint32

const (
	FlagsNone ModifyFlags = 0

	// FlagIgnoreConditions skips the permission checks. Balance invariants still apply: a take
	// is clamped to the available balance and an add saturates instead of overflowing.
	FlagIgnoreConditions ModifyFlags = 1 << 0
)

// Has reports whether all bits of flag are set.
func (f ModifyFlags) Has(flag ModifyFlags) bool {
	return f&flag == flag
}

// ActionSource tells a wallet who asked for the change. Internal changes are silent: no hooks,
// no published events.
type ActionSource uint8

const (
	ActionSourceExternal ActionSource = iota
	ActionSourceInternal
)

func (s ActionSource) String() string {
	if s == ActionSourceInternal {
		return "internal"
	}
	return "external"
}

func (s ActionSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ActionSource) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch strings.ToLower(raw) {
	case "", "external":
		*s = ActionSourceExternal
	case "internal":
		*s = ActionSourceInternal
	default:
		return ErrBadInput
	}
	return nil
}
