package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/telemetry"
	"github.com/ThePuug/closed-economy/logging"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to
	// per-session queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"

	coalescedMetricKey = "host_moves_coalesced_total"
	executedMetricKey  = "host_commands_executed_total"
	tickMetricKey      = "host_tick"
)

// Executor runs commands on the loop goroutine. authority.Host satisfies it.
type Executor interface {
	RequestTry(tid event.TID, evt event.Event, seq event.Seq)
	Disconnect(tid event.TID) int
	SetTick(tick uint64)
}

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerSessionLimit int
	WarningStep     int
	// Coalesce keeps only the latest move of each session per tick.
	Coalesce bool
}

// LoopHooks observe the loop. Every hook is optional.
type LoopHooks struct {
	OnQueueWarning func(length int)
	OnCommandDrop  func(reason string, cmd Command)
	OnDisconnect   func(tick uint64, cmd Command, unloaded int)
	AfterStep      func(result LoopStepResult)
}

// LoopTickContext describes the tick being advanced.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult summarises one advanced tick.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	MaxDelta     float64
	Executed     int
	Coalesced    int
}

// Deps bundles the loop's ambient dependencies.
type Deps struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Clock   logging.Clock
}

// Loop confines every protocol call to one goroutine: producers enqueue,
// and each tick drains the buffer into the executor.
type Loop struct {
	exec    Executor
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics
	clock   logging.Clock

	queueMu         sync.Mutex
	perSessionCount map[event.TID]int
	dropCounts      map[event.TID]uint64

	tick    atomic.Uint64
	scratch []Command
}

// NewLoop wraps exec with a ring-buffer queue and a fixed-rate loop.
func NewLoop(exec Executor, cfg LoopConfig, hooks LoopHooks, deps Deps) *Loop {
	if exec == nil {
		return nil
	}
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	clock := deps.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &Loop{
		exec:            exec,
		buffer:          NewCommandBuffer(cfg.CommandCapacity, metrics),
		hooks:           hooks,
		config:          cfg,
		logger:          logger,
		metrics:         metrics,
		clock:           clock,
		perSessionCount: make(map[event.TID]int),
		dropCounts:      make(map[event.TID]uint64),
	}
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Tick returns the last advanced tick.
func (l *Loop) Tick() uint64 {
	if l == nil {
		return 0
	}
	return l.tick.Load()
}

// Enqueue stages a command, enforcing per-session throttling and capacity
// limits. Disconnects bypass the per-session limit.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	l.queueMu.Lock()
	if l.config.PerSessionLimit > 0 && cmd.Type == CommandTry && cmd.TID != event.SystemTID {
		count := l.perSessionCount[cmd.TID]
		if count >= l.config.PerSessionLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.TID)
		} else {
			l.perSessionCount[cmd.TID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.TID)
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				l.queueMu.Unlock()
				l.warnQueue(length)
				return true, ""
			}
		}
	}
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

// Advance executes one tick's worth of staged commands.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	l.tick.Store(ctx.Tick)
	commands := l.drainCommands()
	coalesced := 0
	if l.config.Coalesce {
		commands, coalesced = Coalesce(commands)
		if coalesced > 0 {
			l.metrics.Add(coalescedMetricKey, uint64(coalesced))
		}
	}
	l.exec.SetTick(ctx.Tick)
	for _, cmd := range commands {
		switch cmd.Type {
		case CommandTry:
			l.exec.RequestTry(cmd.TID, cmd.Event, cmd.Seq)
		case CommandDisconnect:
			unloaded := l.exec.Disconnect(cmd.TID)
			if l.hooks.OnDisconnect != nil {
				l.hooks.OnDisconnect(ctx.Tick, cmd, unloaded)
			}
		default:
			l.logger.Printf("[loop] ignoring command type=%s tid=%s", cmd.Type, cmd.TID)
		}
	}
	l.metrics.Add(executedMetricKey, uint64(len(commands)))
	l.metrics.Store(tickMetricKey, ctx.Tick)
	return LoopStepResult{
		Tick:      ctx.Tick,
		Now:       ctx.Now,
		Delta:     ctx.Delta,
		Executed:  len(commands),
		Coalesced: coalesced,
	}
}

// Run drives the fixed-timestep loop until the stop channel closes.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	if tickRate <= 0 {
		tickRate = 15
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	last := l.clock.Now()
	budgetSeconds := 1.0 / float64(tickRate)
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}
	budgetDuration := time.Second / time.Duration(tickRate)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := l.clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			start := l.clock.Now()
			result := l.Advance(LoopTickContext{Tick: l.tick.Load() + 1, Now: now, Delta: dt})
			result.Duration = l.clock.Now().Sub(start)
			result.Budget = budgetDuration
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	l.scratch = l.buffer.Drain(l.scratch[:0])
	if len(l.perSessionCount) > 0 {
		l.perSessionCount = make(map[event.TID]int)
	}
	return l.scratch
}

func (l *Loop) incrementDropLocked(tid event.TID) uint64 {
	if tid == event.SystemTID {
		return 0
	}
	count := l.dropCounts[tid] + 1
	l.dropCounts[tid] = count
	return count
}

// Forget clears the drop statistics of a departed session.
func (l *Loop) Forget(tid event.TID) {
	if l == nil {
		return
	}
	l.queueMu.Lock()
	delete(l.dropCounts, tid)
	l.queueMu.Unlock()
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if count > 0 && count&(count-1) == 0 {
		l.logger.Printf(
			"[backpressure] dropping command tid=%s kind=%s count=%d limit=%d reason=%s",
			cmd.TID,
			cmd.Event.Kind,
			count,
			l.config.PerSessionLimit,
			reason,
		)
	}
}
