package http

import (
	"encoding/json"
	"net/http"

	auth "github.com/mind-engage/mindengage-mobile/internal/auth/middleware"
	"github.com/mind-engage/mindengage-mobile/internal/identity"
	"github.com/mind-engage/mindengage-mobile/internal/ledger"
	"github.com/mind-engage/mindengage-mobile/internal/task"
)

// CreateTaskRequest is the authoring payload sent by the admin screen.
type CreateTaskRequest struct {
	SolutionInfo struct {
		Title           string `json:"title"`
		Description     string `json:"description"`
		FullDescription string `json:"fullDescription"`
	} `json:"solutionInfo"`
	Tasks []struct {
		Question string              `json:"question"`
		Options  []task.AnswerOption `json:"options"`
	} `json:"tasks"`
	UserList []struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Selected bool   `json:"selected"`
	} `json:"userList"`
}

func (req CreateTaskRequest) toNewTask() task.NewTask {
	n := task.NewTask{
		Title:           req.SolutionInfo.Title,
		Description:     req.SolutionInfo.Description,
		FullDescription: req.SolutionInfo.FullDescription,
		Items:           make([]task.NewItem, 0, len(req.Tasks)),
	}
	for _, it := range req.Tasks {
		n.Items = append(n.Items, task.NewItem{Question: it.Question, Options: it.Options})
	}
	for _, u := range req.UserList {
		if u.Selected {
			n.AssignedUsers = append(n.AssignedUsers, u.ID)
		}
	}
	return n
}

func CreateTaskHandler(cat *task.Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		id, err := cat.Create(r.Context(), auth.CredentialsFromContext(r.Context()), req.toNewTask())
		if err != nil {
			writeError(w, "create task", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	}
}

func DeleteTaskHandler(cat *task.Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskIDParam(r)
		if err != nil {
			writeError(w, "delete task", err)
			return
		}
		if err := cat.Delete(r.Context(), auth.CredentialsFromContext(r.Context()), id); err != nil {
			writeError(w, "delete task", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ReviewTaskHandler(cat *task.Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskIDParam(r)
		if err != nil {
			writeError(w, "review task", err)
			return
		}
		rv, err := cat.Review(r.Context(), auth.CredentialsFromContext(r.Context()), id)
		if err != nil {
			writeError(w, "review task", err)
			return
		}
		writeJSON(w, http.StatusOK, rv)
	}
}

func TaskSolutionsHandler(led *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := taskIDParam(r)
		if err != nil {
			writeError(w, "task solutions", err)
			return
		}
		list, err := led.Solutions(r.Context(), auth.CredentialsFromContext(r.Context()), id)
		if err != nil {
			writeError(w, "task solutions", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func ListUsersHandler(ids *identity.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := ids.ListUsers(r.Context(), auth.CredentialsFromContext(r.Context()))
		if err != nil {
			writeError(w, "list users", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func UserStatsHandler(led *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := led.UserStats(r.Context(), auth.CredentialsFromContext(r.Context()))
		if err != nil {
			writeError(w, "user stats", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
