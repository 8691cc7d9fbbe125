package domain

// Progress is a user's module completion record. PhaseProgress keys are
// module keys ("module_<id>"); presence of a key marks the module complete.
// CompletedModules is a client-maintained counter and is not authoritative.
type Progress struct {
	CompletedModules int             `json:"completedModules"`
	PhaseProgress    map[string]bool `json:"phaseProgress"`
}

// DefaultProgress returns the empty record handed to users with no saved state.
func DefaultProgress() Progress {
	return Progress{
		CompletedModules: 0,
		PhaseProgress:    map[string]bool{},
	}
}
