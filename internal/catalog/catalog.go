// Package catalog defines the fixed curriculum layout: ordered phases and the
// module ids that belong to them. Module ids are global and sequential across
// phases, so phase 2 starts where phase 1 ends.
package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase is a named group of consecutive modules.
type Phase struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ModuleCount int    `json:"moduleCount"`
	FirstModule int    `json:"firstModule"`
}

var phases = []Phase{
	{ID: "p1", Name: "Foundations", ModuleCount: 9, FirstModule: 1},
	{ID: "p2", Name: "Core Skills", ModuleCount: 7, FirstModule: 10},
	{ID: "p3", Name: "Mastery", ModuleCount: 7, FirstModule: 17},
}

// Phases returns the curriculum phases in order.
func Phases() []Phase {
	out := make([]Phase, len(phases))
	copy(out, phases)
	return out
}

// TotalModules is the module count summed across all phases.
func TotalModules() int {
	total := 0
	for _, p := range phases {
		total += p.ModuleCount
	}
	return total
}

// ModuleKey renders the progress-record key for a module id.
func ModuleKey(id int) string {
	return fmt.Sprintf("module_%d", id)
}

// KnownKey reports whether key names a module inside the catalog.
func KnownKey(key string) bool {
	rest, ok := strings.CutPrefix(key, "module_")
	if !ok {
		return false
	}
	id, err := strconv.Atoi(rest)
	if err != nil {
		return false
	}
	return id >= 1 && id <= TotalModules()
}
