package inject

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/luci/go-render/render"
)

var (
	debugLock     sync.Mutex
	debug         uint32
	debugOutput   string
	debugOutputMu sync.Mutex
)

var (
	debuglnHook func(...any)
	debugfHook  func(string, ...any)
)

func debugEnabled() bool {
	return atomic.LoadUint32(&debug) == 1
}

func debugln(stuff ...any) {
	if !debugEnabled() {
		return
	}

	debugOutputMu.Lock()
	if debuglnHook != nil {
		debuglnHook(stuff...)
	} else {
		debugOutput += fmt.Sprintln(stuff...)
	}
	debugOutputMu.Unlock()
}

func debugf(format string, stuff ...any) {
	if !debugEnabled() {
		return
	}

	debugOutputMu.Lock()
	if debugfHook != nil {
		debugfHook(format, stuff...)
	} else {
		debugOutput += fmt.Sprintf(format+"\n", stuff...)
	}
	debugOutputMu.Unlock()
}

// Debugf writes to the debug trace when tracing is enabled.  It is
// exported for use by back ends in sub-packages.
func Debugf(format string, stuff ...any) {
	debugf(format, stuff...)
}

// CaptureDebugging turns on tracing while f runs and returns what was
// traced.  Only one capture runs at a time.
func CaptureDebugging(f func()) string {
	debugLock.Lock()
	defer debugLock.Unlock()
	atomic.StoreUint32(&debug, 1)
	defer atomic.StoreUint32(&debug, 0)

	debugOutputMu.Lock()
	debugOutput = ""
	debugOutputMu.Unlock()

	f()

	debugOutputMu.Lock()
	defer debugOutputMu.Unlock()
	return debugOutput
}

// Dump renders bindings in full for diagnostics
func Dump(bindings ...Binding) string {
	var b strings.Builder
	for _, binding := range bindings {
		b.WriteString(binding.String())
		b.WriteString("\n\t")
		b.WriteString(render.Render(binding.Desc()))
		b.WriteString("\n")
	}
	return b.String()
}
