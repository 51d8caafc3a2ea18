package policy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTasks struct {
	incomplete bool
	err        error
	calls      int
	lastAsOf   string
	lastSect   string
}

func (f *fakeTasks) HasIncompleteTasks(_ context.Context, sectionID, asOf string) (bool, error) {
	f.calls++
	f.lastSect = sectionID
	f.lastAsOf = asOf
	return f.incomplete, f.err
}

type doneSet map[string]string

func (d doneSet) IsDoneToday(child, today string) bool { return d[child] == today }

var london = mustLoad("Europe/London")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func at(hour, minute int) time.Time {
	return time.Date(2023, 10, 27, hour, minute, 0, 0, london)
}

var daniel = Child{Name: "daniel", SectionID: "sec-daniel", RuleName: "Block Daniel"}

func newEngine(t *testing.T, cutoff int) *Engine {
	t.Helper()
	e, err := NewEngine(cutoff)
	require.NoError(t, err)
	return e
}

func TestNewEngine_RejectsOutOfRangeCutoff(t *testing.T) {
	for _, c := range []int{-1, 24, 99} {
		_, err := NewEngine(c)
		require.Error(t, err, "cutoff %d", c)
	}
	for _, c := range []int{0, 7, 14, 20, 23} {
		e, err := NewEngine(c)
		require.NoError(t, err)
		require.Equal(t, c, e.CutoffHour())
	}
}

func TestDecide_BedtimeAlwaysBlocks(t *testing.T) {
	e := newEngine(t, 14)
	hours := []int{20, 21, 22, 23, 0, 1, 2, 3, 4, 5, 6}

	for _, h := range hours {
		for _, child := range []Child{daniel, {Name: "sophie", SectionID: "s", RuleName: "r", SuppressBlocking: true}} {
			tasks := &fakeTasks{incomplete: false}
			done := doneSet{child.Name: "2023-10-27"}

			d := e.Decide(context.Background(), at(h, 30), child, done, tasks)

			require.Equal(t, RuleEnabled, d.State, "hour %d child %s", h, child.Name)
			require.Equal(t, ReasonBedtime, d.Reason)
			require.Equal(t, WindowBedtime, d.Window)
			require.False(t, d.MarkDone)
			require.Zero(t, tasks.calls, "bedtime must not query tasks")
		}
	}
}

func TestDecide_MorningAllowsWithoutLookup(t *testing.T) {
	e := newEngine(t, 14)
	for h := 7; h < 14; h++ {
		tasks := &fakeTasks{incomplete: true}
		d := e.Decide(context.Background(), at(h, 0), daniel, doneSet{}, tasks)

		require.Equal(t, RuleDisabled, d.State, "hour %d", h)
		require.Equal(t, ReasonMorning, d.Reason)
		require.False(t, d.CheckedTasks)
		require.Zero(t, tasks.calls)
	}
}

func TestDecide_PostCutoffAlreadyDoneSkipsLookup(t *testing.T) {
	e := newEngine(t, 14)
	tasks := &fakeTasks{incomplete: true}

	d := e.Decide(context.Background(), at(14, 0), daniel, doneSet{"daniel": "2023-10-27"}, tasks)

	require.Equal(t, RuleDisabled, d.State)
	require.Equal(t, ReasonAlreadyDone, d.Reason)
	require.False(t, d.MarkDone)
	require.Zero(t, tasks.calls)
}

func TestDecide_PostCutoffStaleDoneDateStillChecks(t *testing.T) {
	e := newEngine(t, 14)
	tasks := &fakeTasks{incomplete: true}

	d := e.Decide(context.Background(), at(15, 0), daniel, doneSet{"daniel": "2023-10-26"}, tasks)

	require.Equal(t, RuleEnabled, d.State)
	require.Equal(t, 1, tasks.calls)
}

func TestDecide_PostCutoffIncompleteBlocks(t *testing.T) {
	e := newEngine(t, 14)
	tasks := &fakeTasks{incomplete: true}

	d := e.Decide(context.Background(), at(14, 0), daniel, doneSet{}, tasks)

	require.Equal(t, RuleEnabled, d.State)
	require.Equal(t, ReasonIncomplete, d.Reason)
	require.False(t, d.MarkDone)
	require.True(t, d.CheckedTasks)
	require.Equal(t, "sec-daniel", tasks.lastSect)
	require.Equal(t, "2023-10-27", tasks.lastAsOf)
}

func TestDecide_PostCutoffIncompleteSuppressedAllows(t *testing.T) {
	e := newEngine(t, 14)
	sophie := Child{Name: "sophie", SectionID: "sec-sophie", RuleName: "Block Sophie", SuppressBlocking: true}

	d := e.Decide(context.Background(), at(14, 0), sophie, doneSet{}, &fakeTasks{incomplete: true})

	require.Equal(t, RuleDisabled, d.State)
	require.Equal(t, ReasonIncompleteSuppressed, d.Reason)
	require.False(t, d.MarkDone, "suppression must not record completion")
}

func TestDecide_PostCutoffCompleteAllowsAndMarksDone(t *testing.T) {
	e := newEngine(t, 14)

	d := e.Decide(context.Background(), at(19, 59), daniel, doneSet{}, &fakeTasks{incomplete: false})

	require.Equal(t, RuleDisabled, d.State)
	require.Equal(t, ReasonComplete, d.Reason)
	require.True(t, d.MarkDone)
	require.Equal(t, "2023-10-27", d.Date)
}

func TestDecide_LookupFailureFailsClosed(t *testing.T) {
	e := newEngine(t, 14)
	boom := errors.New("todoist unreachable")

	for _, child := range []Child{daniel, {Name: "sophie", SectionID: "s", RuleName: "r", SuppressBlocking: true}} {
		d := e.Decide(context.Background(), at(16, 0), child, doneSet{}, &fakeTasks{err: boom})

		require.Equal(t, RuleEnabled, d.State, child.Name)
		require.True(t, d.FailSafe())
		require.ErrorIs(t, d.Err, boom)
		require.False(t, d.MarkDone)
	}
}

func TestDecide_NilTaskCheckerFailsClosed(t *testing.T) {
	e := newEngine(t, 14)
	d := e.Decide(context.Background(), at(16, 0), daniel, nil, nil)
	require.Equal(t, RuleEnabled, d.State)
	require.True(t, d.FailSafe())
	require.Error(t, d.Err)
}

func TestDecide_BoundaryTransitions(t *testing.T) {
	e := newEngine(t, 14)
	tasks := &fakeTasks{incomplete: true}

	cases := []struct {
		hour, minute int
		want         RuleState
		window       Window
	}{
		{6, 59, RuleEnabled, WindowBedtime},
		{7, 0, RuleDisabled, WindowMorning},
		{13, 59, RuleDisabled, WindowMorning},
		{14, 0, RuleEnabled, WindowPostCutoff},
		{19, 59, RuleEnabled, WindowPostCutoff},
		{20, 0, RuleEnabled, WindowBedtime},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%02d:%02d", c.hour, c.minute), func(t *testing.T) {
			d := e.Decide(context.Background(), at(c.hour, c.minute), daniel, doneSet{}, tasks)
			require.Equal(t, c.want, d.State)
			require.Equal(t, c.window, d.Window)
		})
	}

	// With chores complete the 19:59 -> 20:00 edge flips from allowed to blocked.
	complete := &fakeTasks{incomplete: false}
	require.Equal(t, RuleDisabled, e.Decide(context.Background(), at(19, 59), daniel, doneSet{}, complete).State)
	require.Equal(t, RuleEnabled, e.Decide(context.Background(), at(20, 0), daniel, doneSet{}, complete).State)
}

func TestDecide_CollapsedMorningWindow(t *testing.T) {
	for _, cutoff := range []int{0, 5, 7} {
		e := newEngine(t, cutoff)
		require.Equal(t, WindowBedtime, e.WindowFor(6), "cutoff %d", cutoff)
		require.Equal(t, WindowPostCutoff, e.WindowFor(7), "cutoff %d", cutoff)

		d := e.Decide(context.Background(), at(7, 0), daniel, doneSet{}, &fakeTasks{incomplete: true})
		require.Equal(t, RuleEnabled, d.State)
	}
}

func TestDecide_CollapsedPostCutoffWindow(t *testing.T) {
	for _, cutoff := range []int{20, 23} {
		e := newEngine(t, cutoff)
		tasks := &fakeTasks{incomplete: true}
		for h := 7; h < 20; h++ {
			d := e.Decide(context.Background(), at(h, 0), daniel, doneSet{}, tasks)
			require.Equal(t, RuleDisabled, d.State, "cutoff %d hour %d", cutoff, h)
		}
		require.Zero(t, tasks.calls)
		require.Equal(t, RuleEnabled, e.Decide(context.Background(), at(cutoff, 0), daniel, doneSet{}, tasks).State)
	}
}

func TestDecide_Idempotent(t *testing.T) {
	e := newEngine(t, 14)
	done := doneSet{}
	tasks := &fakeTasks{incomplete: false}

	first := e.Decide(context.Background(), at(15, 0), daniel, done, tasks)
	second := e.Decide(context.Background(), at(15, 0), daniel, done, tasks)
	require.Equal(t, first, second)

	// Once the caller applies MarkDone, a repeat needs no lookup and emits no update.
	done["daniel"] = first.Date
	third := e.Decide(context.Background(), at(15, 0), daniel, done, tasks)
	require.Equal(t, RuleDisabled, third.State)
	require.False(t, third.MarkDone)
	require.Equal(t, 2, tasks.calls)
}

func TestDecide_ExampleScenario(t *testing.T) {
	e := newEngine(t, 14)
	done := doneSet{}
	tasks := &fakeTasks{incomplete: true}

	d := e.Decide(context.Background(), at(15, 0), daniel, done, tasks)
	require.Equal(t, RuleEnabled, d.State)

	tasks.incomplete = false
	d = e.Decide(context.Background(), at(15, 0), daniel, done, tasks)
	require.Equal(t, RuleDisabled, d.State)
	require.True(t, d.MarkDone)
	require.Equal(t, "2023-10-27", d.Date)
}

func TestRuleState_Polarity(t *testing.T) {
	require.True(t, RuleEnabled.Enabled())
	require.False(t, RuleEnabled.InternetAllowed())
	require.False(t, RuleDisabled.Enabled())
	require.True(t, RuleDisabled.InternetAllowed())
}
