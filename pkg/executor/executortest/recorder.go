// Package executortest provides a recording executor.Runner for tests.
package executortest

import (
	"context"
	"strings"
	"sync"

	"github.com/kinecosystem/localnet/pkg/executor"
)

// Recorder is a Runner that records commands instead of executing them.
// Responses are matched by command-line prefix; the first match wins.
type Recorder struct {
	mu        sync.Mutex
	log       []string
	responses []recorded
	commands  []executor.Command
}

type recorded struct {
	prefix string
	result *executor.Result
	err    error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// On registers the outcome for commands whose line starts with prefix.
func (r *Recorder) On(prefix string, result *executor.Result, err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, recorded{prefix: prefix, result: result, err: err})
	return r
}

// Run records cmd and returns the registered outcome, or an empty result.
func (r *Recorder) Run(ctx context.Context, cmd executor.Command) (*executor.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := cmd.String()
	r.log = append(r.log, line)
	r.commands = append(r.commands, cmd)

	for _, resp := range r.responses {
		if strings.HasPrefix(line, resp.prefix) {
			if resp.err != nil {
				return nil, resp.err
			}
			if resp.result != nil {
				return resp.result, nil
			}
			return &executor.Result{}, nil
		}
	}
	return &executor.Result{}, nil
}

// Note appends an entry that is not a command, such as an HTTP call, so the
// log keeps the true interleaving.
func (r *Recorder) Note(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, entry)
}

// Lines returns the recorded command lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

// Commands returns the recorded commands.
func (r *Recorder) Commands() []executor.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]executor.Command(nil), r.commands...)
}
