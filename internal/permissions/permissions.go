// Package permissions resolves sub-user capabilities from role presets and per-user overrides.
package permissions

import "github.com/aura-portal/backend/internal/models"

// Key names one capability flag.
type Key string

const (
	ViewTasks           Key = "can_view_tasks"
	ApproveDeliverables Key = "can_approve_deliverables"
	ManageBilling       Key = "can_manage_billing"
	SendMessages        Key = "can_send_messages"
	RequestDeliverables Key = "can_request_deliverables"
	ViewAnalytics       Key = "can_view_analytics"
)

// Keys lists every capability in display order.
var Keys = []Key{ViewTasks, ApproveDeliverables, ManageBilling, SendMessages, RequestDeliverables, ViewAnalytics}

var roleDefaults = map[models.SubUserRole]map[Key]bool{
	models.SubUserViewer: {
		ViewTasks:     true,
		ViewAnalytics: true,
	},
	models.SubUserApprover: {
		ViewTasks:           true,
		ApproveDeliverables: true,
		SendMessages:        true,
		RequestDeliverables: true,
		ViewAnalytics:       true,
	},
	models.SubUserBillingManager: {
		ViewTasks:     true,
		ManageBilling: true,
		SendMessages:  true,
		ViewAnalytics: true,
	},
	models.SubUserAdmin: {
		ViewTasks:           true,
		ApproveDeliverables: true,
		ManageBilling:       true,
		SendMessages:        true,
		RequestDeliverables: true,
		ViewAnalytics:       true,
	},
}

// ValidKey reports whether s names a known capability.
func ValidKey(s string) bool {
	for _, k := range Keys {
		if string(k) == s {
			return true
		}
	}
	return false
}

// RoleDefault returns the preset value of key for role. Unknown roles get nothing.
func RoleDefault(role models.SubUserRole, key Key) bool {
	return roleDefaults[role][key]
}

// Defaults returns a copy of the full preset vector for role.
func Defaults(role models.SubUserRole) map[Key]bool {
	out := make(map[Key]bool, len(Keys))
	for _, k := range Keys {
		out[k] = RoleDefault(role, k)
	}
	return out
}

// Resolve returns the sub-user's override for key when one is stored,
// otherwise the role preset.
func Resolve(su *models.SubUser, key Key) bool {
	if su == nil {
		return false
	}
	if v, ok := su.Permissions[string(key)]; ok {
		return v
	}
	return RoleDefault(su.Role, key)
}

// Effective resolves every key for su.
func Effective(su *models.SubUser) map[Key]bool {
	out := make(map[Key]bool, len(Keys))
	for _, k := range Keys {
		out[k] = Resolve(su, k)
	}
	return out
}

// All returns a vector with every capability granted, used for agency staff and client owners.
func All() map[Key]bool {
	out := make(map[Key]bool, len(Keys))
	for _, k := range Keys {
		out[k] = true
	}
	return out
}
