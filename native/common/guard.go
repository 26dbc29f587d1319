package common

import protoerrors "stakevault/core/errors"

// ErrModulePaused is returned by Guard when the protocol pause switch is set.
var ErrModulePaused = protoerrors.ErrProtocolPaused

// PauseView reports whether mutations for the named module are halted.
type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
