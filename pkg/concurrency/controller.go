package concurrency

import "time"

// DefaultPollInterval is the re-poll interval used by CheckPause and by
// worker bodies waiting on channel operations. It bounds how long a worker
// can remain blind to a Resume or RequestExit issued by the orchestrator.
const DefaultPollInterval = 50 * time.Millisecond

// Controller is the shared control signal between the orchestrator and
// every worker replica bound to it. It exposes two independent flags,
// paused and exit-requested, with cooperative semantics: workers observe
// the flags between iterations, nothing is preempted mid-iteration.
//
// All methods are safe to call concurrently from any goroutine holding a
// reference to the same Controller.
type Controller interface {
	// Pause asks all bound workers to suspend at their next CheckPause.
	Pause()

	// Resume clears the paused flag, releasing workers blocked in CheckPause.
	Resume()

	// IsPaused returns the current paused flag.
	IsPaused() bool

	// CheckPause blocks the caller while the paused flag is set, polling at
	// DefaultPollInterval. It returns as soon as the paused flag clears OR
	// exit is requested, so a paused worker can never miss a shutdown.
	// No fairness is guaranteed between multiple paused workers.
	CheckPause()

	// RequestExit latches the exit-requested flag. Once set it stays set
	// until Reset.
	RequestExit()

	// IsExitRequested returns the exit-requested flag.
	IsExitRequested() bool

	// Reset restores both flags to false so the controller can be reused.
	// Callers must ensure no worker bound to this controller is running.
	Reset()
}
