package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a motion event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Clock     uint64 // Loop time at event (µs)
	Value1    int64  // Context-dependent value
	Value2    int64  // Context-dependent value
}

// Event type codes
const (
	EvtMerge      = 1 // new command merged (target, position)
	EvtReplan     = 2 // leg planned (decel threshold, remaining)
	EvtDecelStart = 3 // deceleration threshold crossed (position, speed µsteps/ms)
	EvtSettle     = 4 // leg settled at minimum speed (position, target)
	EvtReversal   = 5 // reversal or stop forced a deceleration (position, target)
	EvtParams     = 6 // new kinematic parameters adopted (vmin, vmax in µsteps/ms)
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, log, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
// Step loops never print while disabled, so timing is unaffected.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync from the step loop)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if !debugEnabled {
		return
	}
	if debugChan == nil {
		DebugPrintln(msg)
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// TimingRing is a fixed ring of the latest motion events of one motor.
// Only the motor's step loop writes to it.
type TimingRing struct {
	events [TimingRingSize]TimingEvent
	head   uint8
	total  uint64
}

// Record captures an event. Never blocks, never allocates.
func (r *TimingRing) Record(eventType uint8, clock uint64, value1, value2 int64) {
	idx := r.head
	r.events[idx] = TimingEvent{
		EventType: eventType,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	r.head = (idx + 1) % TimingRingSize
	r.total++
}

// Events returns the recorded events, oldest first.
func (r *TimingRing) Events() []TimingEvent {
	out := make([]TimingEvent, 0, TimingRingSize)
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := r.events[(r.head+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// Total is the number of events ever recorded.
func (r *TimingRing) Total() uint64 {
	return r.total
}

// Clear empties the ring.
func (r *TimingRing) Clear() {
	*r = TimingRing{}
}

// Dump writes the ring through the debug writer, prefixed with label.
// Call it once the step loop has stopped.
func (r *TimingRing) Dump(label string) {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === " + label + " ===")
	debugPrintln("[TIMING] Total events recorded: " + utoa64(r.total))
	for _, evt := range r.Events() {
		debugPrintln("[TIMING] " + eventName(evt.EventType) +
			" clock=" + utoa64(evt.Clock) +
			" v1=" + itoa64(evt.Value1) +
			" v2=" + itoa64(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

func eventName(t uint8) string {
	switch t {
	case EvtMerge:
		return "MERGE"
	case EvtReplan:
		return "REPLAN"
	case EvtDecelStart:
		return "DECEL"
	case EvtSettle:
		return "SETTLE"
	case EvtReversal:
		return "REVERSAL"
	case EvtParams:
		return "PARAMS"
	}
	return "UNKNOWN"
}
