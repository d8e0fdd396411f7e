// Copyright 2025 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package reqvcr

import "fmt"

// Mode is the record mode: the policy deciding whether an intercepted
// request replays, records or fails.
type Mode int

const (
	// ModeOnce replays matching entries. When the cassette file was absent
	// at install time it records every unmatched request for the life of the
	// stub; when the file existed, a miss is a CassetteMissError.
	ModeOnce Mode = iota

	// ModeNewEpisodes replays matching entries and records unmatched
	// requests, appending them to the cassette.
	ModeNewEpisodes

	// ModeAll records every request, ignoring existing entries. Useful to
	// force a re-record during a recording session.
	ModeAll

	// ModeNone replays matching entries and never touches the network. A
	// miss is a CassetteMissError.
	ModeNone
)

func (m Mode) String() string {
	switch m {
	case ModeOnce:
		return "once"
	case ModeNewEpisodes:
		return "new_episodes"
	case ModeAll:
		return "all"
	case ModeNone:
		return "none"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses the string form used by the REQVCR_MODE environment
// variable.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "once":
		return ModeOnce, nil
	case "new_episodes":
		return ModeNewEpisodes, nil
	case "all":
		return ModeAll, nil
	case "none":
		return ModeNone, nil
	}
	return 0, fmt.Errorf("unknown record mode %q", s)
}
