package vm

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/compiler"
	"github.com/sunscript-lang/sunscript/parser"
)

// debugSession runs a chunk under a blocking debug controller on a
// background goroutine and collects stopped events.
type debugSession struct {
	t        *testing.T
	debugger *Debugger
	machine  *VM
	chunk    *bytecode.Chunk
	events   chan Event
	done     chan error
	out      bytes.Buffer
}

// newDebugSession prepares a session without starting execution, so
// breakpoints can be installed race-free; call start to launch the VM.
func newDebugSession(t *testing.T, src string, opts ...DebuggerOption) *debugSession {
	t.Helper()
	s := &debugSession{
		t:      t,
		events: make(chan Event, 32),
		done:   make(chan error, 1),
	}
	opts = append(opts, WithEventCallback(func(e Event) {
		s.events <- e
	}))
	s.debugger = NewDebugger(opts...)
	s.chunk = compileSource(t, src)
	s.machine = New(WithOutput(&s.out), WithDebugger(s.debugger))
	return s
}

func (s *debugSession) start() {
	go func() {
		_, err := s.machine.Run(context.Background(), s.chunk)
		s.done <- err
	}()
}

// nextStop waits for the next stopped event.
func (s *debugSession) nextStop() Event {
	s.t.Helper()
	for {
		select {
		case e := <-s.events:
			if e.Reason == StopTerminated {
				continue
			}
			return e
		case <-time.After(5 * time.Second):
			s.t.Fatal("timed out waiting for a stopped event")
		}
	}
}

func (s *debugSession) wait() error {
	s.t.Helper()
	select {
	case err := <-s.done:
		return err
	case <-time.After(5 * time.Second):
		s.t.Fatal("timed out waiting for the VM to finish")
		return nil
	}
}

const twoLineFuncSrc = `func f() {
    let a = 1
    print(a)
}
f()`

func TestBreakpointThenStepOver(t *testing.T) {
	// Scenario: breakpoint on the first body line, then one step-over must
	// stop with reasons breakpoint then step at an unchanged call depth.
	s := newDebugSession(t, twoLineFuncSrc)
	s.debugger.SetBreakpoints("test.sun", []int{2})
	s.start()

	first := s.nextStop()
	require.Equal(t, StopBreakpoint, first.Reason)
	require.Equal(t, 2, first.Line)

	s.debugger.StepOver()
	second := s.nextStop()
	require.Equal(t, StopStep, second.Reason)
	require.Equal(t, 3, second.Line)
	require.Equal(t, first.Depth, second.Depth)

	s.debugger.Continue()
	require.NoError(t, s.wait())
	require.Equal(t, "1\n", s.out.String())
}

const callStepSrc = `func helper() -> Int {
    return 41
}
let x = helper() + 1
print(x)`

func TestStepOverDoesNotEnterCalls(t *testing.T) {
	s := newDebugSession(t, callStepSrc)
	s.debugger.SetBreakpoints("test.sun", []int{4})
	s.start()

	stop := s.nextStop()
	require.Equal(t, StopBreakpoint, stop.Reason)
	require.Equal(t, 4, stop.Line)
	baseDepth := stop.Depth

	s.debugger.StepOver()
	next := s.nextStop()
	require.Equal(t, StopStep, next.Reason)
	require.LessOrEqual(t, next.Depth, baseDepth, "step over must not pause deeper")
	require.Equal(t, 5, next.Line)

	s.debugger.Continue()
	require.NoError(t, s.wait())
	require.Equal(t, "42\n", s.out.String())
}

func TestStepIntoAndOut(t *testing.T) {
	s := newDebugSession(t, callStepSrc)
	s.debugger.SetBreakpoints("test.sun", []int{4})
	s.start()

	stop := s.nextStop()
	baseDepth := stop.Depth

	s.debugger.StepInto()
	inside := s.nextStop()
	require.Equal(t, StopStep, inside.Reason)
	require.Greater(t, inside.Depth, baseDepth, "step into enters the call")
	require.Equal(t, 2, inside.Line)

	s.debugger.StepOut()
	outside := s.nextStop()
	// Control returns into line 4, which carries the breakpoint; the
	// breakpoint check runs before the step condition.
	require.Equal(t, StopBreakpoint, outside.Reason)
	require.Equal(t, baseDepth, outside.Depth)

	s.debugger.Continue()
	require.NoError(t, s.wait())
}

func TestStopOnEntry(t *testing.T) {
	s := newDebugSession(t, "print(1)", WithStopOnEntry())
	s.start()
	stop := s.nextStop()
	require.Equal(t, StopEntry, stop.Reason)
	s.debugger.Continue()
	require.NoError(t, s.wait())
	require.Equal(t, "1\n", s.out.String())
}

func TestWaitUntilPausedAndInspection(t *testing.T) {
	s := newDebugSession(t, twoLineFuncSrc)
	s.debugger.SetBreakpoints("test.sun", []int{3})
	s.start()

	s.debugger.WaitUntilPaused()
	require.True(t, s.debugger.IsPaused())

	frames := s.debugger.StackTrace()
	require.GreaterOrEqual(t, len(frames), 2)
	require.Equal(t, "f", frames[0].Function)
	require.Equal(t, "test.sun", frames[0].Source)
	require.Equal(t, 3, frames[0].Line)
	require.Equal(t, "<main>", frames[len(frames)-1].Function)

	locals := s.debugger.Locals(0)
	require.Len(t, locals, 1)
	require.Equal(t, "a", locals[0].Name)
	require.Equal(t, "1", locals[0].Value)

	s.debugger.Continue()
	require.NoError(t, s.wait())
}

func TestBreakpointOnEveryLoopIteration(t *testing.T) {
	src := `for i in 0..<3 {
    print(i)
}`
	s := newDebugSession(t, src)
	s.debugger.SetBreakpoints("test.sun", []int{2})
	s.start()

	for i := 0; i < 3; i++ {
		stop := s.nextStop()
		require.Equal(t, StopBreakpoint, stop.Reason, "iteration %d", i)
		require.Equal(t, 2, stop.Line)
		s.debugger.Continue()
	}
	require.NoError(t, s.wait())
	require.Equal(t, "0\n1\n2\n", s.out.String())
}

func TestPauseRequest(t *testing.T) {
	src := `var i = 0
while i < 100000 {
    i = i + 1
}
print(i)`
	s := newDebugSession(t, src)
	s.start()

	// Let it run a little, then interrupt.
	time.Sleep(10 * time.Millisecond)
	s.debugger.RequestPause()
	stop := s.nextStop()
	require.Equal(t, StopPause, stop.Reason)

	s.debugger.Continue()
	require.NoError(t, s.wait())
	require.Equal(t, "100000\n", s.out.String())
}

func TestDisconnectHaltsExecution(t *testing.T) {
	src := `var i = 0
while true {
    i = i + 1
}`
	s := newDebugSession(t, src)
	s.debugger.SetBreakpoints("test.sun", []int{3})
	s.start()
	s.nextStop()

	s.debugger.Disconnect()
	require.NoError(t, s.wait())
}

func TestBreakpointSourceMatching(t *testing.T) {
	s := newDebugSession(t, twoLineFuncSrc)
	// A breakpoint for a different source never fires.
	s.debugger.SetBreakpoints("other.sun", []int{2})
	s.start()
	require.NoError(t, s.wait())
	require.Equal(t, "1\n", s.out.String())
}

func TestEmptyBreakpointSourceMatchesAnyBody(t *testing.T) {
	s := newDebugSession(t, twoLineFuncSrc)
	bp, err := s.debugger.AddBreakpoint("", 2)
	require.NoError(t, err)
	s.start()

	stop := s.nextStop()
	require.Equal(t, StopBreakpoint, stop.Reason)
	require.Equal(t, 2, stop.Line)
	require.Equal(t, 1, bp.HitCount)

	s.debugger.Continue()
	require.NoError(t, s.wait())
}

func TestBreakpointTableMutation(t *testing.T) {
	d := NewDebugger()
	bp1, err := d.AddBreakpoint("a.sun", 3)
	require.NoError(t, err)
	_, err = d.AddBreakpoint("b.sun", 3)
	require.NoError(t, err)
	require.Len(t, d.Breakpoints(), 2)

	require.True(t, d.RemoveBreakpoint(bp1.ID))
	require.False(t, d.RemoveBreakpoint(bp1.ID))
	require.Len(t, d.Breakpoints(), 1)

	installed := d.SetBreakpoints("b.sun", []int{1, 2})
	require.Len(t, installed, 2)
	require.Len(t, d.Breakpoints(), 2)

	_, err = d.AddBreakpoint("a.sun", 0)
	require.Error(t, err)
}

func TestLocalsFallbackWithoutDebugInfo(t *testing.T) {
	// A Release build carries no debug info: locals surface as anonymous
	// local_i entries for every live frame slot.
	prog, err := parser.Parse(twoLineFuncSrc)
	require.NoError(t, err)
	chunk, err := compiler.Compile(prog)
	require.NoError(t, err)
	require.Nil(t, chunk.Debug)

	s := &debugSession{
		t:      t,
		events: make(chan Event, 32),
		done:   make(chan error, 1),
	}
	s.debugger = NewDebugger(WithEventCallback(func(e Event) { s.events <- e }))
	s.chunk = chunk
	s.machine = New(WithOutput(&s.out), WithDebugger(s.debugger))
	// Without debug info an empty breakpoint source matches any body.
	_, err = s.debugger.AddBreakpoint("", 3)
	require.NoError(t, err)
	s.start()

	s.nextStop()
	locals := s.debugger.Locals(0)
	require.NotEmpty(t, locals)
	require.Equal(t, "local_0", locals[0].Name)

	s.debugger.Continue()
	require.NoError(t, s.wait())
}

func TestStoppedEventsArriveInSourceOrder(t *testing.T) {
	src := `print(1)
print(2)
print(3)`
	s := newDebugSession(t, src)
	s.debugger.SetBreakpoints("test.sun", []int{1, 2, 3})
	s.start()

	var mu sync.Mutex
	var lines []int
	for i := 0; i < 3; i++ {
		stop := s.nextStop()
		mu.Lock()
		lines = append(lines, stop.Line)
		mu.Unlock()
		s.debugger.Continue()
	}
	require.NoError(t, s.wait())
	require.Equal(t, []int{1, 2, 3}, lines)
}
