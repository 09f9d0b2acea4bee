package auth

import "microboard/internal/model"

type Decision int

const (
	Deny Decision = iota
	Allow
)

// Decide allows only the recorded owner of a resource.
func Decide(identity model.Identity, ownerID int64) Decision {
	if identity.ID != 0 && identity.ID == ownerID {
		return Allow
	}
	return Deny
}

// Authorize is Decide as an error: nil on Allow, Forbidden on Deny. Callers must have
// authenticated the identity and confirmed the resource exists before calling it.
func Authorize(identity model.Identity, ownerID int64, action string) error {
	if Decide(identity, ownerID) == Allow {
		return nil
	}

	message := "you can only modify your own resources"
	if action != "" {
		message = "you can only " + action
	}
	return NewError(KindForbidden, message, nil)
}
