package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
)

// maxBodyBytes bounds a request body.
const maxBodyBytes = 4 << 20

// ErrUnknownAction is returned by Actions.Invoke for a name not in the table.
var ErrUnknownAction = errors.New("unknown action")

// Action executes one named operation on a JSON request body and returns
// the JSON response body, or nil for an empty response.
type Action func(ctx context.Context, body []byte) ([]byte, error)

// Actions is a fixed table of named operations shared by the HTTP
// controllers and the bus objects.
type Actions map[string]Action

// Names returns the action names in sorted order.
func (a Actions) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the named action. A panic inside the action is returned as
// an error.
func (a Actions) Invoke(ctx context.Context, name string, body []byte) (resp []byte, err error) {
	fn, ok := a[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, name)
	}
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("action %s panicked: %v", name, r)
		}
	}()
	return fn(ctx, body)
}

// actionController serves POST /{prefix}/{Action}. GET, any other method
// and unknown actions get 400. A failing action gets 500 with an empty body;
// the error goes to the log only.
type actionController struct {
	name    string
	actions Actions
	logger  *slog.Logger
}

// NewController creates a Controller dispatching to actions.
func NewController(name string, actions Actions, logger *slog.Logger) Controller {
	return &actionController{
		name:    name,
		actions: actions,
		logger:  logger.With("component", name+"-controller"),
	}
}

func (c *actionController) Service(w http.ResponseWriter, r *http.Request) {
	action := ActionName(r.URL.Path)

	if r.Method != http.MethodPost {
		c.logger.Debug("method not allowed", "method", r.Method, "action", action)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if _, ok := c.actions[action]; !ok {
		c.logger.Debug("unknown action", "action", action)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		c.logger.Warn("read request body", "action", action, "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	resp, err := c.actions.Invoke(r.Context(), action, body)
	if err != nil {
		c.logger.Error("action failed", "action", action, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if len(resp) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp)
}

// ActionName returns the path segment after the first two slash-delimited
// segments: "/executor/SubmitJob" yields "SubmitJob".
func ActionName(path string) string {
	parts := strings.SplitN(path, "/", 4)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
