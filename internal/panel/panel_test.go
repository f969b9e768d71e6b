package panel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/statdash/internal/api"
	"github.com/rshade/statdash/internal/catalog"
	"github.com/rshade/statdash/internal/chart"
	"github.com/rshade/statdash/internal/sequencer"
)

const (
	testWait = 2 * time.Second
	testTick = 5 * time.Millisecond
)

func specFor(code string) json.RawMessage {
	return json.RawMessage(`{"title":"` + code + `","data":{"values":[{"x":1,"y":2},{"x":2,"y":3}]},` +
		`"mark":"line","encoding":{"x":{"field":"x","type":"quantitative"},"y":{"field":"y"}}}`)
}

// gatedFetcher blocks each fetch until its code is released.
type gatedFetcher struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	err   map[string]error
}

func newGatedFetcher(codes ...string) *gatedFetcher {
	f := &gatedFetcher{gates: map[string]chan struct{}{}, err: map[string]error{}}
	for _, c := range codes {
		f.gates[c] = make(chan struct{})
	}
	return f
}

func (f *gatedFetcher) release(code string) { close(f.gates[code]) }

func (f *gatedFetcher) FetchView(
	ctx context.Context,
	_ *catalog.Catalog,
	_ catalog.View,
	values map[string]string,
) (json.RawMessage, error) {
	code := values["selstate"]
	f.mu.Lock()
	gate, ok := f.gates[code]
	failure := f.err[code]
	f.mu.Unlock()
	if ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, failure
	}
	return specFor(code), nil
}

type recordingDisplay struct {
	mu      sync.Mutex
	loading []bool
	shown   []string
	errs    []error
}

func (d *recordingDisplay) SetLoading(loading bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading = append(d.loading, loading)
}

func (d *recordingDisplay) Show(view chart.RenderedView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, view.Title())
}

func (d *recordingDisplay) ShowError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, err)
}

func stateLoader(t *testing.T, f Fetcher) *Loader {
	t.Helper()
	cat := catalog.Default()
	view, err := cat.View(catalog.ViewStateGraph)
	require.NoError(t, err)
	return NewLoader(cat, view, f, chart.NewImageRenderer(), zerolog.Nop())
}

func TestLoader_OutOfOrderResponses(t *testing.T) {
	f := newGatedFetcher("NY", "CA", "TX")
	l := stateLoader(t, f)
	d := &recordingDisplay{}

	type outcome struct {
		res *Result
		err error
	}
	run := func(code string) (sequencer.Token, chan outcome) {
		token := l.Issue()
		out := make(chan outcome, 1)
		go func() {
			res, err := l.Load(context.Background(), token, map[string]string{"selstate": code})
			if err == nil {
				err = l.Commit(res, d)
			}
			out <- outcome{res: res, err: err}
		}()
		return token, out
	}

	t1, out1 := run("NY")
	t2, out2 := run("CA")
	t3, out3 := run("TX")
	assert.Less(t, uint64(t1), uint64(t2))
	assert.Less(t, uint64(t2), uint64(t3))

	f.release("CA")
	r2 := <-out2
	f.release("NY")
	r1 := <-out1
	f.release("TX")
	r3 := <-out3

	assert.ErrorIs(t, r2.err, sequencer.ErrSuperseded)
	assert.ErrorIs(t, r1.err, sequencer.ErrSuperseded)
	assert.Nil(t, r1.res, "the oldest load applies nothing")
	require.NoError(t, r3.err)
	assert.Equal(t, t3, r3.res.Token)
	assert.Equal(t, "TX", r3.res.Values["selstate"])

	assert.Equal(t, []string{"TX"}, d.shown)
	assert.Equal(t, []bool{false}, d.loading)
	assert.Empty(t, d.errs)
}

func TestLoader_Refresh(t *testing.T) {
	t.Run("success clears the indicator", func(t *testing.T) {
		l := stateLoader(t, newGatedFetcher())
		d := &recordingDisplay{}

		res, err := l.Refresh(context.Background(), map[string]string{"selstate": "NY"}, d)
		require.NoError(t, err)
		assert.Equal(t, "NY", res.View.Title())
		assert.JSONEq(t, string(specFor("NY")), string(res.Raw))
		assert.Equal(t, []bool{true, false}, d.loading)
		assert.Equal(t, []string{"NY"}, d.shown)
	})

	t.Run("fetch failure clears the indicator", func(t *testing.T) {
		f := newGatedFetcher()
		f.err["NY"] = &api.FetchError{URL: "http://x/api/state/graph", Status: 500, Err: errors.New("boom")}
		l := stateLoader(t, f)
		d := &recordingDisplay{}

		_, err := l.Refresh(context.Background(), map[string]string{"selstate": "NY"}, d)
		require.Error(t, err)
		assert.True(t, IsFetchError(err))
		assert.Equal(t, []bool{true, false}, d.loading)
		require.Len(t, d.errs, 1)
		assert.Empty(t, d.shown)
	})

	t.Run("render failure clears the indicator", func(t *testing.T) {
		l := NewLoader(catalog.Default(), catalog.View{ID: 10, Name: "state", Endpoint: "/api/state/graph"},
			fetcherFunc(func() (json.RawMessage, error) { return json.RawMessage(`{"mark":"line"}`), nil }),
			chart.NewImageRenderer(), zerolog.Nop())
		d := &recordingDisplay{}

		_, err := l.Refresh(context.Background(), nil, d)
		require.Error(t, err)
		assert.True(t, chart.IsCompileError(err))
		assert.False(t, IsFetchError(err))
		assert.Equal(t, []bool{true, false}, d.loading)
	})
}

func TestLoader_SupersededRefreshLeavesIndicator(t *testing.T) {
	f := newGatedFetcher("NY")
	l := stateLoader(t, f)
	slow := &recordingDisplay{}

	done := make(chan error, 1)
	go func() {
		_, err := l.Refresh(context.Background(), map[string]string{"selstate": "NY"}, slow)
		done <- err
	}()

	// Wait for the first load to be issued, then supersede it.
	require.Eventually(t, func() bool { return l.seq.Current() == 1 }, testWait, testTick)
	fast := &recordingDisplay{}
	_, err := l.Refresh(context.Background(), map[string]string{"selstate": "CA"}, fast)
	require.NoError(t, err)

	f.release("NY")
	assert.ErrorIs(t, <-done, sequencer.ErrSuperseded)
	assert.Equal(t, []bool{true}, slow.loading, "a superseded load never clears the indicator")
	assert.Empty(t, slow.shown)
	assert.Empty(t, slow.errs)
	assert.Equal(t, []string{"CA"}, fast.shown)
}

func TestLoader_Fail(t *testing.T) {
	l := stateLoader(t, newGatedFetcher())
	d := &recordingDisplay{}

	old := l.Issue()
	current := l.Issue()

	assert.False(t, l.Fail(old, errors.New("late"), d))
	assert.False(t, l.Fail(current, sequencer.ErrSuperseded, d))
	assert.True(t, l.Fail(current, errors.New("real"), d))
	assert.Len(t, d.errs, 1)
}

func TestLoaders_AreIndependent(t *testing.T) {
	a := stateLoader(t, newGatedFetcher())
	b := stateLoader(t, newGatedFetcher())

	ta := a.Issue()
	b.Issue()
	b.Issue()
	assert.True(t, a.IsCurrent(ta))
}

type fetcherFunc func() (json.RawMessage, error)

func (f fetcherFunc) FetchView(context.Context, *catalog.Catalog, catalog.View, map[string]string) (json.RawMessage, error) {
	return f()
}
