// Package access decides which administrative actions a caller may take.
// The rules are pure functions of the caller's role, identity and the target
// event; they are applied once at the request boundary.
package access

import "github.com/vokorun/runclub/internal/model"

// Action is something the gate is asked about.
type Action string

const (
	ViewAdminConsole Action = "viewAdminConsole"
	CreateEvent      Action = "createEvent"
	EditEvent        Action = "editEvent"
	DeleteEvent      Action = "deleteEvent"
	ViewRegistrants  Action = "viewRegistrants"
)

// Decision is the gate's answer.
type Decision string

const (
	Allow Decision = "allow"
	Deny  Decision = "deny"
)

// Allowed reports whether d is Allow.
func (d Decision) Allowed() bool { return d == Allow }

func decide(ok bool) Decision {
	if ok {
		return Allow
	}
	return Deny
}

// CanAccess answers the role-only actions: the admin console, creating and
// deleting events all require admin. Actions that depend on the target event
// are denied here; use Check.
func CanAccess(role model.Role, action Action) Decision {
	switch action {
	case ViewAdminConsole, CreateEvent, DeleteEvent:
		return decide(role == model.RoleAdmin)
	default:
		return Deny
	}
}

// CanEdit allows only the event's creator, whatever their role.
func CanEdit(identity *model.Identity, event *model.Event) Decision {
	return decide(identity != nil && event != nil && identity.ID != "" && identity.ID == event.CreatedBy)
}

// Check answers any action for a caller. event may be nil for actions that do
// not target one.
func Check(role model.Role, identity *model.Identity, action Action, event *model.Event) Decision {
	if identity == nil {
		return Deny
	}
	switch action {
	case EditEvent:
		return CanEdit(identity, event)
	case ViewRegistrants:
		if CanEdit(identity, event).Allowed() {
			return Allow
		}
		return decide(role == model.RoleAdmin)
	default:
		return CanAccess(role, action)
	}
}

// Notice is the user-facing explanation shown with a denial.
func Notice(action Action) string {
	switch action {
	case EditEvent:
		return "You do not have permission to edit this event"
	case ViewRegistrants:
		return "You do not have permission to view this event's registrants"
	default:
		return "You do not have admin privileges"
	}
}
