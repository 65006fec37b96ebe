package systemd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/remeh/sizedwaitgroup"
)

var ErrUnknownService = errors.New("unknown service")

const (
	defaultTimeout = 8 * time.Second
	maxParallel    = 4
	unknownState   = "unknown"
)

// UnitState is the JSON body returned for one unit.
type UnitState struct {
	Service string `json:"service"`
	Unit    string `json:"unit"`
	Active  bool   `json:"active"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

// Result is the raw outcome of a command. A non-zero exit code is not an
// error.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes name with args.
type Runner func(ctx context.Context, name string, args ...string) (Result, error)

// ExecRunner runs the command as a subprocess.
func ExecRunner(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%s timed out: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return res, err
		}
		res.ExitCode = exitErr.ExitCode()
	}
	return res, nil
}

// Checker answers "is this allow-listed unit active?" by running
// `systemctl is-active <unit>`.
type Checker struct {
	// Services maps the public service name to its systemd unit.
	Services map[string]string
	Timeout  time.Duration
	Run      Runner
}

func NewChecker(services map[string]string, timeout time.Duration) *Checker {
	return &Checker{Services: services, Timeout: timeout, Run: ExecRunner}
}

// Names returns the allow-listed service names in sorted order.
func (c *Checker) Names() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check queries one service. It returns ErrUnknownService for names outside
// the allow-list. Any other error means the query itself could not run; the
// returned state is still filled in for reporting.
func (c *Checker) Check(ctx context.Context, service string) (UnitState, error) {
	unit, ok := c.Services[service]
	if !ok {
		return UnitState{}, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	run := c.Run
	if run == nil {
		run = ExecRunner
	}

	state := UnitState{Service: service, Unit: unit, State: unknownState}
	res, err := run(ctx, "systemctl", "is-active", unit)
	if err != nil {
		state.Error = err.Error()
		return state, err
	}

	state.Active = res.ExitCode == 0
	state.State = parseState(res)
	return state, nil
}

// CheckAll queries every allow-listed service with bounded parallelism. The
// result is sorted by service name.
func (c *Checker) CheckAll(ctx context.Context) []UnitState {
	names := c.Names()
	states := make([]UnitState, len(names))

	swg := sizedwaitgroup.New(maxParallel)
	for i, name := range names {
		swg.Add()
		go func(i int, name string) {
			defer swg.Done()
			state, _ := c.Check(ctx, name)
			states[i] = state
		}(i, name)
	}
	swg.Wait()

	return states
}

func parseState(res Result) string {
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		out = strings.TrimSpace(res.Stderr)
	}
	if out == "" {
		return unknownState
	}
	return out
}
