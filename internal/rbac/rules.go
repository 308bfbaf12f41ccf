package rbac

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	"user": {
		"task:submit",
		"stats:view-own",
	},
	"admin": {
		"*",
	},
}
