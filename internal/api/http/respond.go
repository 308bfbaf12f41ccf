package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-mobile/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs the failing operation with its kind and answers with the
// matching status. Internal details stay out of 5xx bodies.
func writeError(w http.ResponseWriter, op string, err error) {
	status := apperr.HTTPStatus(err)
	log.Printf("%s: %s: %v", op, apperr.KindOf(err), err)

	msg := http.StatusText(status)
	var e *apperr.Error
	if status < 500 && errors.As(err, &e) && e.Msg != "" {
		msg = e.Msg
	}
	http.Error(w, msg, status)
}

func taskIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.InvalidArgument, "http.taskID", "taskID must be a positive integer")
	}
	return id, nil
}
