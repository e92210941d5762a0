package pane

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	out   map[string]string
	err   map[string]error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	if err := f.err[sub]; err != nil {
		return nil, err
	}
	return []byte(f.out[sub]), nil
}

func testTmux(r Runner, env map[string]string) *Tmux {
	t := NewTmux(r, "")
	t.getenv = func(k string) string { return env[k] }
	t.lookPath = func(string) (string, error) { return "/usr/bin/tmux", nil }
	return t
}

func TestTmuxCommands(t *testing.T) {
	r := &fakeRunner{out: map[string]string{
		"split-window":    "%12\n",
		"display-message": "%12\n",
	}}
	mux := testTmux(r, map[string]string{"TMUX": "/tmp/tmux-0/default,1,0"})
	ctx := context.Background()

	require.True(t, mux.Available(ctx))

	id, err := mux.CreateSplit(ctx, "flowcanvas show --id x")
	require.NoError(t, err)
	require.Equal(t, "%12", id)
	require.True(t, mux.Alive(ctx, id))
	require.NoError(t, mux.Interrupt(ctx, id))
	require.NoError(t, mux.SendKeys(ctx, id, "flowcanvas show --id y"))
	require.NoError(t, mux.Destroy(ctx, id))

	want := [][]string{
		{"split-window", "-h", "-l", "40%", "-P", "-F", "#{pane_id}", "flowcanvas show --id x"},
		{"display-message", "-p", "-t", "%12", "#{pane_id}"},
		{"send-keys", "-t", "%12", "C-c"},
		{"send-keys", "-t", "%12", "flowcanvas show --id y", "Enter"},
		{"kill-pane", "-t", "%12"},
	}
	require.Len(t, r.calls, len(want))
	for i, c := range r.calls {
		require.Equal(t, "tmux", c.name)
		require.Equal(t, want[i], c.args)
	}
}

func TestTmuxUnavailableOutsideSession(t *testing.T) {
	mux := testTmux(&fakeRunner{}, map[string]string{})
	require.False(t, mux.Available(context.Background()))
}

func TestTmuxDeadPane(t *testing.T) {
	r := &fakeRunner{err: map[string]error{"display-message": errors.New("can't find pane: %3")}}
	mux := testTmux(r, nil)
	require.False(t, mux.Alive(context.Background(), "%3"))
	require.False(t, mux.Alive(context.Background(), ""))
}

func TestITerm2(t *testing.T) {
	r := &fakeRunner{out: map[string]string{"-e": "ABC-123\n"}}
	mux := NewITerm2(r)
	mux.getenv = func(k string) string {
		if k == "TERM_PROGRAM" {
			return "iTerm.app"
		}
		return ""
	}
	mux.lookPath = func(string) (string, error) { return "/usr/bin/osascript", nil }
	ctx := context.Background()

	require.True(t, mux.Available(ctx))
	id, err := mux.CreateSplit(ctx, `flowcanvas show --config-file "/tmp/a b.json"`)
	require.NoError(t, err)
	require.Equal(t, "ABC-123", id)
	require.Equal(t, "osascript", r.calls[0].name)
	require.Contains(t, r.calls[0].args[1], `write text "flowcanvas show --config-file \"/tmp/a b.json\""`)
}

func TestAppleString(t *testing.T) {
	require.Equal(t, `"a \"b\" \\c"`, appleString(`a "b" \c`))
}

func TestDetectOrder(t *testing.T) {
	off := newFakeMux()
	off.available = false
	on := newFakeMux()
	on.kind = KindITerm2

	got, err := Detect(context.Background(), off, on)
	require.NoError(t, err)
	require.Equal(t, KindITerm2, got.Kind())

	_, err = Detect(context.Background(), off)
	require.ErrorIs(t, err, ErrNoMultiplexer)
}

func TestFileRegistry(t *testing.T) {
	ctx := context.Background()
	reg := FileRegistry{Path: filepath.Join(t.TempDir(), "state", "pane.json")}

	_, ok, err := reg.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	rec := Record{ID: "%4", Kind: KindTmux}
	require.NoError(t, reg.Save(ctx, rec))
	got, ok, err := reg.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, got)

	require.NoError(t, reg.Clear(ctx))
	require.NoError(t, reg.Clear(ctx))
	_, ok, err = reg.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileRegistryLegacyPlainID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pane-id")
	require.NoError(t, os.WriteFile(path, []byte("%17\n"), 0o600))

	got, ok, err := FileRegistry{Path: path}.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Record{ID: "%17", Kind: KindTmux}, got)
}

func TestFileRegistryConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	reg := FileRegistry{Path: filepath.Join(dir, "pane.json")}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- reg.Save(ctx, Record{ID: fmt.Sprintf("%%%d", i), Kind: KindTmux})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, ok, err := reg.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(got.ID, "%"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files left behind")
}

func TestFileRegistrySaveWrapsErrors(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := FileRegistry{Path: filepath.Join(blocker, "pane.json")}.Save(context.Background(), Record{ID: "%1", Kind: KindTmux})
	require.ErrorContains(t, err, "pane record")
}

func TestSQLiteRegistry(t *testing.T) {
	ctx := context.Background()
	reg, err := OpenSQLiteRegistry(filepath.Join(t.TempDir(), "panes.db"))
	require.NoError(t, err)
	defer reg.Close()

	_, ok, err := reg.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, reg.Save(ctx, Record{ID: "%1", Kind: KindTmux}))
	require.NoError(t, reg.Save(ctx, Record{ID: "S-2", Kind: KindITerm2}))
	got, ok, err := reg.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Record{ID: "S-2", Kind: KindITerm2}, got)

	require.NoError(t, reg.Clear(ctx))
	_, ok, err = reg.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisRegistry(t *testing.T) {
	url := strings.TrimSpace(os.Getenv("FLOWCANVAS_TEST_REDIS_URL"))
	if url == "" {
		t.Skip("FLOWCANVAS_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	reg, err := NewRedisRegistry(ctx, url, "flowcanvas:test:"+t.Name())
	require.NoError(t, err)
	defer reg.Close()
	defer reg.Clear(ctx)

	rec := Record{ID: "%8", Kind: KindTmux}
	require.NoError(t, reg.Save(ctx, rec))
	got, ok, err := reg.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, got)

	require.NoError(t, reg.Clear(ctx))
	_, ok, err = reg.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}
