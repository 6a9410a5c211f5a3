package common

import (
	"errors"
	"strings"
)

var (
	ErrModulePaused = errors.New("module paused")
	ErrActionPaused = errors.New("action paused")
)

type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects mutations while the module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// GuardAction additionally honours a pause on a single action, keyed as
// "<module>.<action>".
func GuardAction(p PauseView, module, action string) error {
	if err := Guard(p, module); err != nil {
		return err
	}
	action = strings.TrimSpace(action)
	if p == nil || module == "" || action == "" {
		return nil
	}
	if p.IsPaused(module + "." + action) {
		return ErrActionPaused
	}
	return nil
}

// PauseSet is a static PauseView built from configuration.
type PauseSet map[string]bool

// NewPauseSet marks each listed key as paused.
func NewPauseSet(keys ...string) PauseSet {
	set := make(PauseSet, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			set[k] = true
		}
	}
	return set
}

func (s PauseSet) IsPaused(module string) bool {
	return s[module]
}
