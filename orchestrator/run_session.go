package orchestrator

import (
	"fmt"

	"github.com/ckoons/argo-sub001/bus"
	"github.com/ckoons/argo-sub001/internal/obslog"
	"github.com/ckoons/argo-sub001/runtimeconfig"
)

// Setup configures CIs and tasks on a freshly constructed Orchestrator
// before its workflow starts.
type Setup func(o *Orchestrator, userdata any) error

// RunSession creates an Orchestrator, invokes setup for CI/task
// configuration, starts the workflow, prints status, and unconditionally
// destroys the orchestrator on return — success or failure (spec §4.H's
// run_session convenience helper).
func RunSession(cfg *runtimeconfig.Config, id, baseBranch string, transport bus.Transport, log obslog.Logger, setup Setup, userdata any) (err error) {
	o := New(cfg, id, baseBranch, transport, log)
	defer o.Destroy()

	if setup != nil {
		if setupErr := setup(o, userdata); setupErr != nil {
			return setupErr
		}
	}

	if startErr := o.StartWorkflow(id); startErr != nil {
		return startErr
	}

	fmt.Println(o.StatusText())
	return nil
}
