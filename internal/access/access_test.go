package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vokorun/runclub/internal/model"
)

func TestCanAccess(t *testing.T) {
	tests := []struct {
		role   model.Role
		action Action
		want   Decision
	}{
		{model.RoleAdmin, CreateEvent, Allow},
		{model.RoleUser, CreateEvent, Deny},
		{model.RoleAdmin, DeleteEvent, Allow},
		{model.RoleUser, DeleteEvent, Deny},
		{model.RoleAdmin, ViewAdminConsole, Allow},
		{model.RoleUser, ViewAdminConsole, Deny},
		{"", ViewAdminConsole, Deny},
		{"superuser", CreateEvent, Deny},
		{model.RoleAdmin, EditEvent, Deny},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(tt.role, tt.action))
		})
	}
}

func TestCheck_EditIsOwnershipOnly(t *testing.T) {
	event := &model.Event{ID: "e1", CreatedBy: "owner"}
	owner := &model.Identity{ID: "owner"}
	otherAdmin := &model.Identity{ID: "someone-else"}

	assert.Equal(t, Allow, Check(model.RoleAdmin, owner, EditEvent, event))
	assert.Equal(t, Allow, Check(model.RoleUser, owner, EditEvent, event), "role does not matter for the owner")
	assert.Equal(t, Deny, Check(model.RoleAdmin, otherAdmin, EditEvent, event))
	assert.Equal(t, Deny, Check(model.RoleAdmin, nil, EditEvent, event))
	assert.Equal(t, Deny, Check(model.RoleAdmin, owner, EditEvent, nil))
	assert.Equal(t, Deny, CanEdit(&model.Identity{}, &model.Event{}))
}

func TestCheck_Registrants(t *testing.T) {
	event := &model.Event{ID: "e1", CreatedBy: "owner"}

	assert.Equal(t, Allow, Check(model.RoleUser, &model.Identity{ID: "owner"}, ViewRegistrants, event))
	assert.Equal(t, Allow, Check(model.RoleAdmin, &model.Identity{ID: "admin"}, ViewRegistrants, event))
	assert.Equal(t, Deny, Check(model.RoleUser, &model.Identity{ID: "runner"}, ViewRegistrants, event))
}

func TestCheck_AnonymousDenied(t *testing.T) {
	for _, action := range []Action{ViewAdminConsole, CreateEvent, DeleteEvent, EditEvent, ViewRegistrants} {
		assert.Equal(t, Deny, Check(model.RoleAdmin, nil, action, &model.Event{}), action)
	}
}

func TestNotice(t *testing.T) {
	assert.Equal(t, "You do not have admin privileges", Notice(CreateEvent))
	assert.Contains(t, Notice(EditEvent), "edit")
}
