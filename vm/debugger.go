package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
)

// StopReason labels why execution paused.
type StopReason string

const (
	StopEntry      StopReason = "entry"
	StopBreakpoint StopReason = "breakpoint"
	StopStep       StopReason = "step"
	StopPause      StopReason = "pause"
	StopTerminated StopReason = "terminated"
)

// StepMode selects when the next line transition pauses execution.
type StepMode int

const (
	StepNone StepMode = iota
	StepOver
	StepInto
	StepOut
)

// Event is delivered to the installed callback whenever execution stops
// (or terminates).
type Event struct {
	Reason    StopReason
	Line      int
	Source    string
	Depth     int
	SessionID uuid.UUID
}

// DebugFrame is one entry of a stack-trace snapshot.
type DebugFrame struct {
	Index    int
	Function string
	Source   string
	Line     int
}

// LocalValue is one local variable in a frame snapshot.
type LocalValue struct {
	Name  string
	Slot  int
	Value string
}

// Debugger is the debug controller embedded in the VM: breakpoint table,
// step-mode state machine, and the pause/resume rendezvous between the
// execution thread and an external adapter thread.
//
// The execution thread calls only instructionHook and the lifecycle
// notifications. Everything else is the adapter surface; breakpoint
// mutation and inspection are expected while the VM is paused, and are
// guarded by the controller mutex regardless.
type Debugger struct {
	mu         sync.Mutex
	pauseCond  *sync.Cond
	resumeCond *sync.Cond

	paused         atomic.Bool
	pauseRequested atomic.Bool
	disconnected   atomic.Bool

	blocking    bool
	stopOnEntry bool

	breakpoints *breakpointTable

	stepMode StepMode
	// stepDepth and stepLine snapshot the call depth and line at the pause
	// that armed the step.
	stepDepth    int
	stepLine     int
	previousLine int

	// skipBreakpointOnce suppresses re-triggering the breakpoint on the
	// current line right after a resume; it clears on the first line
	// change.
	skipBreakpointOnce bool

	callback func(Event)

	sessionID uuid.UUID
	logger    zerolog.Logger

	vm *VM
}

// DebuggerOption configures a Debugger.
type DebuggerOption func(*Debugger)

// WithEventCallback installs the single event callback. Callbacks run on
// the execution thread while it is pausing and must not re-enter the VM.
func WithEventCallback(fn func(Event)) DebuggerOption {
	return func(d *Debugger) {
		d.callback = fn
	}
}

// WithStopOnEntry pauses before the first instruction.
func WithStopOnEntry() DebuggerOption {
	return func(d *Debugger) {
		d.stopOnEntry = true
	}
}

// WithNonBlocking disables parking the execution thread on pause; useful
// for tests that only record events.
func WithNonBlocking() DebuggerOption {
	return func(d *Debugger) {
		d.blocking = false
	}
}

// WithLogger sets the structured logger for controller state transitions.
func WithLogger(logger zerolog.Logger) DebuggerOption {
	return func(d *Debugger) {
		d.logger = logger
	}
}

// NewDebugger creates a debug controller.
func NewDebugger(opts ...DebuggerOption) *Debugger {
	d := &Debugger{
		blocking:    true,
		breakpoints: newBreakpointTable(),
		sessionID:   uuid.Must(uuid.NewV4()),
		logger:      zerolog.Nop(),
	}
	d.pauseCond = sync.NewCond(&d.mu)
	d.resumeCond = sync.NewCond(&d.mu)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SessionID identifies this debug session in emitted events.
func (d *Debugger) SessionID() uuid.UUID {
	return d.sessionID
}

func (d *Debugger) attach(vm *VM) {
	d.vm = vm
}

// IsPaused reports whether the execution thread is parked.
func (d *Debugger) IsPaused() bool {
	return d.paused.Load()
}

func (d *Debugger) isDisconnected() bool {
	return d.disconnected.Load()
}

// onEntry pauses before the first instruction when stop-on-entry is set.
func (d *Debugger) onEntry() {
	if !d.stopOnEntry || d.disconnected.Load() {
		return
	}
	line := d.vm.chunk.LineForOffset(0)
	d.previousLine = line
	d.pause(StopEntry, line)
}

// onTerminated notifies the adapter that execution finished.
func (d *Debugger) onTerminated() {
	d.logger.Debug().Str("session", d.sessionID.String()).Msg("debug session terminated")
	if d.callback != nil {
		d.callback(Event{Reason: StopTerminated, SessionID: d.sessionID})
	}
	// Release any adapter blocked in WaitUntilPaused.
	d.mu.Lock()
	d.pauseCond.Broadcast()
	d.mu.Unlock()
}

// instructionHook runs at every instruction boundary on the execution
// thread. ip addresses the next instruction to execute.
func (d *Debugger) instructionHook(_ int) {
	if d.disconnected.Load() {
		return
	}
	vm := d.vm
	if vm.ip >= len(vm.chunk.Code) {
		return
	}
	line := vm.chunk.LineForOffset(vm.ip)
	if line == 0 {
		// Unknown line: previousLine intentionally keeps its value.
		return
	}
	lineChanged := line != d.previousLine

	d.mu.Lock()
	if d.skipBreakpointOnce && lineChanged {
		d.skipBreakpointOnce = false
	}
	// The breakpoint on the pause line must not re-trigger before execution
	// actually advances: the one-shot flag covers a plain resume, and an
	// armed step keeps covering its anchor line across calls.
	suppressed := (d.skipBreakpointOnce || d.stepMode != StepNone) && line == d.stepLine

	reason := StopReason("")
	switch {
	case d.pauseRequested.Load():
		d.pauseRequested.Store(false)
		reason = StopPause
	default:
		if !suppressed {
			if bp := d.breakpoints.match(d.source(), line); bp != nil {
				d.logger.Debug().Int("breakpoint", bp.ID).Int("line", line).Msg("breakpoint hit")
				reason = StopBreakpoint
			}
		}
		if reason == "" {
			depth := vm.frameDepth()
			switch d.stepMode {
			case StepInto:
				if lineChanged {
					reason = StopStep
				}
			case StepOver:
				// Depth above the anchor means we are inside a call being
				// stepped over; the anchor line itself never re-triggers.
				if lineChanged && depth <= d.stepDepth && line != d.stepLine {
					reason = StopStep
				}
			case StepOut:
				if depth < d.stepDepth {
					reason = StopStep
				}
			}
		}
	}
	d.mu.Unlock()

	d.previousLine = line
	if reason != "" {
		d.pause(reason, line)
	}
}

// source returns the source path of the active body.
func (d *Debugger) source() string {
	if d.vm.chunk.Debug != nil {
		return d.vm.chunk.Debug.SourceFile
	}
	return ""
}

// pause parks the execution thread: records the step anchor, emits the
// stopped event, signals waiters, and blocks until resumed.
func (d *Debugger) pause(reason StopReason, line int) {
	vm := d.vm
	d.mu.Lock()
	d.paused.Store(true)
	d.stepDepth = vm.frameDepth()
	d.stepLine = line
	d.stepMode = StepNone
	vm.state = PausedState
	d.pauseCond.Broadcast()
	d.mu.Unlock()

	d.logger.Debug().
		Str("session", d.sessionID.String()).
		Str("reason", string(reason)).
		Int("line", line).
		Msg("execution paused")

	if d.callback != nil {
		d.callback(Event{
			Reason:    reason,
			Line:      line,
			Source:    d.source(),
			Depth:     vm.frameDepth(),
			SessionID: d.sessionID,
		})
	}

	if d.blocking {
		d.mu.Lock()
		for d.paused.Load() && !d.disconnected.Load() {
			d.resumeCond.Wait()
		}
		d.mu.Unlock()
	}
	vm.state = Running
}

// resume clears the paused flag after arming the given step mode, and
// wakes the execution thread. Commands issued while paused take effect
// before the next instruction is dispatched.
func (d *Debugger) resume(mode StepMode) {
	d.mu.Lock()
	d.stepMode = mode
	d.skipBreakpointOnce = true
	d.paused.Store(false)
	d.resumeCond.Broadcast()
	d.mu.Unlock()
}

// Continue resumes execution until the next breakpoint or pause request.
func (d *Debugger) Continue() {
	d.resume(StepNone)
}

// StepOver resumes until the next line at the same or an outer call
// depth. Stepping over a call does not pause inside it.
func (d *Debugger) StepOver() {
	d.resume(StepOver)
}

// StepInto resumes until the next line transition, entering calls.
func (d *Debugger) StepInto() {
	d.resume(StepInto)
}

// StepOut resumes until the current frame returns.
func (d *Debugger) StepOut() {
	d.resume(StepOut)
}

// RequestPause asks the execution thread to pause at the next
// instruction boundary.
func (d *Debugger) RequestPause() {
	d.pauseRequested.Store(true)
}

// WaitUntilPaused blocks the adapter thread until the execution thread
// parks (or the session disconnects).
func (d *Debugger) WaitUntilPaused() {
	d.mu.Lock()
	for !d.paused.Load() && !d.disconnected.Load() {
		d.pauseCond.Wait()
	}
	d.mu.Unlock()
}

// Disconnect detaches the adapter: execution completes the current
// instruction, observes the flag, and finishes without further pauses.
func (d *Debugger) Disconnect() {
	d.disconnected.Store(true)
	d.mu.Lock()
	d.paused.Store(false)
	d.resumeCond.Broadcast()
	d.pauseCond.Broadcast()
	d.mu.Unlock()
	d.logger.Debug().Str("session", d.sessionID.String()).Msg("debug session disconnected")
}

// AddBreakpoint registers a breakpoint; an empty source matches any body.
func (d *Debugger) AddBreakpoint(source string, line int) (*Breakpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.breakpoints.add(source, line)
}

// RemoveBreakpoint deletes a breakpoint by id.
func (d *Debugger) RemoveBreakpoint(id int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.breakpoints.remove(id)
}

// SetBreakpoints replaces every breakpoint for the source with the given
// lines, returning the installed set.
func (d *Debugger) SetBreakpoints(source string, lines []int) []*Breakpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.breakpoints.replaceForSource(source, lines)
}

// Breakpoints lists the current breakpoint table.
func (d *Debugger) Breakpoints() []*Breakpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.breakpoints.list()
}

// StackTrace snapshots the call stack, innermost frame first. Valid while
// the VM is paused.
func (d *Debugger) StackTrace() []DebugFrame {
	vm := d.vm
	var frames []DebugFrame
	for i := vm.fp - 1; i >= 0; i-- {
		chunk := vm.chunk
		ip := vm.ip
		if i < vm.fp-1 {
			chunk = vm.frames[i+1].returnChunk
			ip = vm.frames[i+1].returnIP
		}
		name := vm.frames[i].name
		if name == "" {
			name = "<anonymous>"
		}
		df := DebugFrame{
			Index:    vm.fp - 1 - i,
			Function: name,
			Line:     chunk.LineForOffset(ip),
		}
		if chunk.Debug != nil {
			df.Source = chunk.Debug.SourceFile
		}
		frames = append(frames, df)
	}
	return frames
}

// Locals snapshots the local variables of the frame at the given
// stack-trace index (0 = innermost). With debug info, locals are filtered
// by scope range; without it, every live slot appears as local_i.
func (d *Debugger) Locals(frameIndex int) []LocalValue {
	vm := d.vm
	i := vm.fp - 1 - frameIndex
	if i < 0 || i >= vm.fp {
		return nil
	}
	f := &vm.frames[i]
	chunk := vm.chunk
	ip := vm.ip
	if i < vm.fp-1 {
		chunk = vm.frames[i+1].returnChunk
		ip = vm.frames[i+1].returnIP
	}
	top := vm.sp
	if i < vm.fp-1 {
		top = vm.frames[i+1].base
	}

	if chunk.Debug != nil {
		var locals []LocalValue
		for _, l := range chunk.Debug.Locals {
			if !l.InScope(ip) {
				continue
			}
			slot := f.base + int(l.Slot)
			if slot >= top {
				continue
			}
			locals = append(locals, LocalValue{
				Name:  l.Name,
				Slot:  int(l.Slot),
				Value: vm.stack[slot].String(),
			})
		}
		return locals
	}

	var locals []LocalValue
	for slot := f.base; slot < top; slot++ {
		locals = append(locals, LocalValue{
			Name:  fmt.Sprintf("local_%d", slot-f.base),
			Slot:  slot - f.base,
			Value: vm.stack[slot].String(),
		})
	}
	return locals
}
