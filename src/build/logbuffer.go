package build

import (
	"fmt"
	"sync"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/kilnbuild/kiln/src/core"
)

var log = logging.MustGetLogger("build")

// targetLog buffers every log line produced while building one target. It is
// printed contiguously once the target finishes, so interleaved worker
// output never splits one target's log across another's, while still
// emitting the immediate "Building ..." banner line as soon as work starts.
type targetLog struct {
	mu    sync.Mutex
	label core.Label
	lines []string
}

func newTargetLog(label core.Label) *targetLog {
	return &targetLog{label: label}
}

func (l *targetLog) banner(description string) {
	log.Infof("[%d] %s: %s", 0, l.label, description)
}

func (l *targetLog) Printf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

// flush emits every buffered line as one contiguous block, with a closing
// marker line so a scrollback search for a target's log finds clean
// boundaries.
func (l *targetLog) flush(severity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		log.Debugf("%s: %s", l.label, line)
	}
	log.Infof("*** %s: %s", l.label, severity)
}
