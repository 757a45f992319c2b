// Package warmer answers scheduled warm-up pings so that a pool of Lambda instances
// stays initialised. A ping with concurrency n fans out n-1 extra invocations of
// the same function version.
package warmer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	u "resumepdf/internal/utils"
)

// Sentinel is returned to the caller instead of a response envelope.
const Sentinel = "warmed"

// Invoker is the subset of the Lambda API used for fan-out.
type Invoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Event is the payload of a warm-up ping.
type Event struct {
	Warmer           bool   `json:"warmer"`
	Concurrency      int    `json:"concurrency,omitempty"`
	Test             bool   `json:"test,omitempty"`
	Invocation       int    `json:"__WARMER_INVOCATION__,omitempty"`
	TotalConcurrency int    `json:"__WARMER_CONCURRENCY__,omitempty"`
	CorrelationID    string `json:"__WARMER_CORRELATIONID__,omitempty"`
}

// Warmer tracks whether this instance has served a request before.
type Warmer struct {
	invoker         Invoker
	functionName    string
	functionVersion string
	instanceID      string
	delay           time.Duration

	mu         sync.Mutex
	warm       bool
	lastAccess time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Warmer for the given function name and version.
func New(invoker Invoker, functionName, functionVersion string, delay time.Duration) *Warmer {
	return &Warmer{
		invoker:         invoker,
		functionName:    functionName,
		functionVersion: functionVersion,
		instanceID:      uuid.NewString(),
		delay:           delay,
		now:             time.Now,
		sleep:           sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Parse reports whether raw is a warm-up ping. Only the warmer flag decides; the
// other fields are read leniently and fall back to their zero values.
func Parse(raw []byte) (Event, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Event{}, false
	}
	if !flag(fields["warmer"]) {
		return Event{}, false
	}

	ev := Event{
		Warmer:           true,
		Concurrency:      number(fields["concurrency"]),
		Test:             flag(fields["test"]),
		Invocation:       number(fields["__WARMER_INVOCATION__"]),
		TotalConcurrency: number(fields["__WARMER_CONCURRENCY__"]),
	}
	if v, ok := fields["__WARMER_CORRELATIONID__"]; ok {
		_ = json.Unmarshal(v, &ev.CorrelationID)
	}
	return ev, true
}

// flag reads a JSON boolean or a boolean string such as "true".
func flag(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		return err == nil && v
	}
	return false
}

// number reads a JSON integer or a numeric string; anything else is 0.
func number(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

// Handle answers raw if it is a warm-up ping and reports whether it was one.
// Regular invocations only refresh the instance's last-access time.
func (w *Warmer) Handle(ctx context.Context, raw []byte) (bool, error) {
	ev, ok := Parse(raw)
	if !ok {
		w.touch()
		return false, nil
	}

	concurrency := max(ev.Concurrency, 1)
	count := max(ev.Invocation, 1)
	total := ev.TotalConcurrency
	if total < 1 {
		total = concurrency
	}
	correlationID := ev.CorrelationID
	if correlationID == "" {
		correlationID = w.instanceID
	}

	wasWarm, last := w.touch()
	fields := []any{
		"action", "warmer",
		"function", w.qualifiedName(),
		"instance", w.instanceID,
		"correlation_id", correlationID,
		"count", count,
		"concurrency", total,
		"warm", wasWarm,
	}
	if !last.IsZero() {
		fields = append(fields, "last_accessed", last, "last_accessed_seconds", int(w.now().Sub(last).Seconds()))
	}
	u.Info("Warmer ping", fields...)

	if concurrency > 1 && !ev.Test {
		if err := w.fanOut(ctx, concurrency, correlationID); err != nil {
			return true, err
		}
		return true, nil
	}
	if count > 1 {
		// Keep this instance busy while sibling pings arrive.
		if err := w.sleep(ctx, w.delay); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (w *Warmer) touch() (bool, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wasWarm, last := w.warm, w.lastAccess
	w.warm = true
	w.lastAccess = w.now()
	return wasWarm, last
}

func (w *Warmer) qualifiedName() string {
	if w.functionVersion == "" {
		return w.functionName
	}
	return w.functionName + ":" + w.functionVersion
}

func (w *Warmer) fanOut(ctx context.Context, concurrency int, correlationID string) error {
	if w.invoker == nil {
		return errors.New("warmer: no lambda client configured")
	}
	if w.functionName == "" {
		return errors.New("warmer: function name is unknown")
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 2; i <= concurrency; i++ {
		payload, err := json.Marshal(Event{
			Warmer:           true,
			Invocation:       i,
			TotalConcurrency: concurrency,
			CorrelationID:    correlationID,
		})
		if err != nil {
			return err
		}
		invocationType := types.InvocationTypeEvent
		if i == concurrency {
			invocationType = types.InvocationTypeRequestResponse
		}
		input := &lambda.InvokeInput{
			FunctionName:   aws.String(w.qualifiedName()),
			InvocationType: invocationType,
			LogType:        types.LogTypeNone,
			Payload:        payload,
		}
		i := i
		g.Go(func() error {
			if _, err := w.invoker.Invoke(gctx, input); err != nil {
				return fmt.Errorf("warm invocation %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}
