package http

import (
	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-mobile/internal/auth/middleware"
	"github.com/mind-engage/mindengage-mobile/internal/grading"
	"github.com/mind-engage/mindengage-mobile/internal/identity"
	"github.com/mind-engage/mindengage-mobile/internal/ledger"
	"github.com/mind-engage/mindengage-mobile/internal/rbac"
	"github.com/mind-engage/mindengage-mobile/internal/task"
)

type Deps struct {
	Identity *identity.Resolver
	Tasks    *task.Catalogue
	Ledger   *ledger.Ledger
	Grader   *grading.Engine
	Auth     *auth.AuthService

	EnableRegistration bool
}

// MountMobile registers the mobile API on r, normally at /mobile/api/v1.
func MountMobile(r chi.Router, d Deps) {
	r.Get("/ping", PingHandler())
	r.Post("/register", RegisterHandler(d.Identity, d.Auth, d.EnableRegistration))
	r.Post("/login", LoginHandler(d.Identity, d.Auth))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.Credentials(d.Auth, d.Identity))

		// Listing and detail also serve anonymous callers.
		pr.Get("/tasks", ListTasksHandler(d.Tasks))
		pr.Get("/tasks/{taskID}", GetTaskHandler(d.Tasks))

		pr.Group(func(ur chi.Router) {
			ur.Use(auth.AttachRole(d.Identity))
			ur.With(rbac.Require("task:submit")).Post("/tasks/{taskID}/solutions", SubmitSolutionHandler(d.Grader))
			ur.With(rbac.Require("stats:view-own")).Get("/stats", StatsHandler(d.Ledger))
		})

		pr.Route("/admin", func(ar chi.Router) {
			ar.Use(auth.AttachRole(d.Identity))

			ar.With(rbac.Require("task:create")).Post("/tasks", CreateTaskHandler(d.Tasks))
			ar.With(rbac.Require("task:delete")).Delete("/tasks/{taskID}", DeleteTaskHandler(d.Tasks))
			ar.With(rbac.Require("task:review")).Get("/tasks/{taskID}", ReviewTaskHandler(d.Tasks))
			ar.With(rbac.Require("solution:list")).Get("/tasks/{taskID}/solutions", TaskSolutionsHandler(d.Ledger))
			ar.With(rbac.Require("users:list")).Get("/users", ListUsersHandler(d.Identity))
			ar.With(rbac.Require("stats:view-all")).Get("/stats", UserStatsHandler(d.Ledger))
		})
	})
}
