package device

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	values map[string]string
	writes []string
}

func newMemStore() *memStore { return &memStore{values: make(map[string]string)} }

func (m *memStore) Get(_ context.Context, path string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[path]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, path, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[path] = state
	m.writes = append(m.writes, path+"="+state)
	return nil
}

func (m *memStore) get(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[path]
}

type recordingTx struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingTx) Transmit(_ context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, command)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(_ context.Context, e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

type fixture struct {
	dev   *Device
	store *memStore
	tx    *recordingTx
	bus   *recordingNotifier
}

func newFixture(t *testing.T, kind Kind, name string) fixture {
	t.Helper()
	f := fixture{store: newMemStore(), tx: &recordingTx{}, bus: &recordingNotifier{}}
	d, err := New(Config{
		Kind:        kind,
		Name:        name,
		Vendor:      "hunter",
		Identity:    "1011",
		Transmitter: f.tx,
		Store:       f.store,
		Notifier:    f.bus,
	})
	require.NoError(t, err)
	f.dev = d
	return f
}

func sub(t *testing.T, d *Device, name string) *SubDevice {
	t.Helper()
	s, ok := d.SubDevice(name)
	require.True(t, ok, name)
	return s
}

func TestNewValidation(t *testing.T) {
	store := newMemStore()
	tx := &recordingTx{}

	_, err := New(Config{Kind: KindLight, Name: "", Transmitter: tx, Store: store})
	assert.ErrorIs(t, err, ErrInvalidDevice)
	_, err = New(Config{Kind: KindLight, Name: "a/b", Transmitter: tx, Store: store})
	assert.ErrorIs(t, err, ErrInvalidDevice)
	_, err = New(Config{Kind: KindLight, Name: "porch", Store: store})
	assert.ErrorIs(t, err, ErrInvalidDevice)
	_, err = New(Config{Kind: Kind(99), Name: "porch", Transmitter: tx, Store: store})
	assert.ErrorIs(t, err, ErrInvalidKind)

	d, err := New(Config{Kind: KindLight, Name: "porch", Transmitter: tx, Store: store})
	require.NoError(t, err)
	assert.Equal(t, "porch", d.Label())
	assert.Equal(t, "light/porch", d.Path())
}

func TestLightAliases(t *testing.T) {
	f := newFixture(t, KindLight, "porch")
	ctx := context.Background()

	tests := []struct{ input, want string }{
		{"on", "ON"},
		{"OFF", "OFF"},
		{"1", "ON"},
		{"0", "OFF"},
		{"true", "ON"},
		{" False ", "OFF"},
	}
	for _, tt := range tests {
		got, err := f.dev.SetState(ctx, tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
		state, ok := f.dev.State(ctx)
		require.True(t, ok)
		assert.Equal(t, tt.want, state)
	}
	assert.Equal(t, []string{"ON", "OFF", "ON", "OFF", "ON", "OFF"}, f.tx.sent)
}

func TestInvalidStateHasNoSideEffects(t *testing.T) {
	f := newFixture(t, KindLight, "porch")
	_, err := f.dev.SetState(context.Background(), "DIM")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Empty(t, f.tx.sent)
	assert.Empty(t, f.store.writes)
	assert.Empty(t, f.bus.events)
}

func TestAcceptableContainsAvailable(t *testing.T) {
	for _, kind := range []Kind{KindLight, KindThreeSpeedFan, KindColorLight, KindGenericLircLight, KindGenericLircFan} {
		f := newFixture(t, kind, "x")
		acceptable := f.dev.AcceptableStates()
		for _, s := range f.dev.AvailableStates() {
			assert.Contains(t, acceptable, s, kind.String())
		}
		for _, s := range f.dev.SubDevices() {
			acceptable := s.AcceptableStates()
			for _, state := range s.AvailableStates() {
				assert.Contains(t, acceptable, state, s.Path())
			}
		}
	}
}

func TestFanPowerOnDefaultsToSpeedOne(t *testing.T) {
	f := newFixture(t, KindThreeSpeedFan, "bedroom")
	ctx := context.Background()

	got, err := sub(t, f.dev, SubPower).SetState(ctx, "ON")
	require.NoError(t, err)
	assert.Equal(t, "ON", got)

	assert.Equal(t, "1", f.store.get("fan/bedroom/speed"))
	assert.Equal(t, "1", f.store.get("fan/bedroom/command"))
	assert.Equal(t, "ON", f.store.get("fan/bedroom/power"))
	assert.Equal(t, "ON", f.store.get("fan/bedroom"))
	assert.Equal(t, []string{"1"}, f.tx.sent)
}

func TestFanResumesPreviousSpeed(t *testing.T) {
	f := newFixture(t, KindThreeSpeedFan, "bedroom")
	ctx := context.Background()
	power := sub(t, f.dev, SubPower)

	_, err := sub(t, f.dev, SubSpeed).SetState(ctx, "2")
	require.NoError(t, err)
	_, err = power.SetState(ctx, "OFF")
	require.NoError(t, err)
	assert.Equal(t, "0", f.store.get("fan/bedroom/command"))
	assert.Equal(t, "OFF", f.store.get("fan/bedroom"))

	_, err = power.SetState(ctx, "ON")
	require.NoError(t, err)

	assert.Equal(t, "2", f.store.get("fan/bedroom/speed"))
	assert.Equal(t, "2", f.store.get("fan/bedroom/command"))
	assert.Equal(t, "ON", f.store.get("fan/bedroom"))
	assert.Equal(t, []string{"2", "0", "2"}, f.tx.sent)
}

func TestFanSpeedAliasesImplyPowerOn(t *testing.T) {
	f := newFixture(t, KindThreeSpeedFan, "bedroom")
	got, err := sub(t, f.dev, SubSpeed).SetState(context.Background(), "high")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
	assert.Equal(t, "ON", f.store.get("fan/bedroom/power"))
	assert.Equal(t, "3", f.store.get("fan/bedroom/command"))
}

func TestFanTopLevelDispatchOrder(t *testing.T) {
	f := newFixture(t, KindThreeSpeedFan, "bedroom")
	ctx := context.Background()

	// "1" is a power alias before it is a speed.
	got, err := f.dev.SetState(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "ON", got)

	got, err = f.dev.SetState(ctx, "med")
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	// "0" is a power alias too.
	got, err = f.dev.SetState(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "OFF", got)

	_, err = f.dev.SetState(ctx, "4")
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.Equal(t, []string{"1", "2", "0"}, f.tx.sent)
	assert.Equal(t, []string{"OFF", "ON"}, f.dev.AvailableStates())
}

func TestFanCommandSubdevice(t *testing.T) {
	f := newFixture(t, KindGenericLircFan, "office")
	ctx := context.Background()
	command := sub(t, f.dev, SubCommand)

	_, err := command.SetState(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, "3", f.store.get("fan/office/speed"))
	assert.Equal(t, "ON", f.store.get("fan/office/power"))

	_, err = command.SetState(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "OFF", f.store.get("fan/office/power"))
	assert.Equal(t, "3", f.store.get("fan/office/speed"), "speed survives power off")
}

func TestTransmitFailurePersistsNothing(t *testing.T) {
	f := newFixture(t, KindThreeSpeedFan, "bedroom")
	f.tx.err = errors.New("radio timeout")

	_, err := f.dev.SetState(context.Background(), "ON")
	require.Error(t, err)
	assert.Empty(t, f.store.writes)
	assert.Empty(t, f.bus.events)
}

func TestObserveDoesNotTransmit(t *testing.T) {
	f := newFixture(t, KindThreeSpeedFan, "bedroom")
	got, err := sub(t, f.dev, SubCommand).Observe(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
	assert.Empty(t, f.tx.sent)
	assert.Equal(t, "2", f.store.get("fan/bedroom/speed"))

	require.NotEmpty(t, f.bus.events)
	for _, e := range f.bus.events {
		assert.Equal(t, SourceEavesdrop, e.Source)
	}
}

func TestEventsPublishedPerWrite(t *testing.T) {
	f := newFixture(t, KindThreeSpeedFan, "bedroom")
	_, err := f.dev.SetState(context.Background(), "ON")
	require.NoError(t, err)

	var paths []string
	for _, e := range f.bus.events {
		paths = append(paths, e.Path)
		assert.Equal(t, SourceCommand, e.Source)
		assert.Equal(t, "bedroom", e.Device)
	}
	assert.Equal(t, []string{"fan/bedroom/power", "fan/bedroom/speed", "fan/bedroom/command", "fan/bedroom"}, paths)
}

func TestColorLight(t *testing.T) {
	f := newFixture(t, KindColorLight, "kitchen")
	ctx := context.Background()

	got, err := f.dev.SetState(ctx, "blue")
	require.NoError(t, err)
	assert.Equal(t, "BLUE", got)
	assert.Equal(t, "BLUE", f.store.get("light/kitchen/color"))
	assert.Equal(t, "", f.store.get("light/kitchen"))

	_, err = f.dev.SetState(ctx, "on")
	require.NoError(t, err)
	assert.Equal(t, "ON", f.store.get("light/kitchen"))

	_, err = f.dev.SetState(ctx, "plus")
	require.NoError(t, err)

	assert.Equal(t, []string{"BLUE", "ON", "PLUS"}, f.tx.sent)
	assert.Equal(t, []string{"OFF", "ON", "RED", "GREEN", "BLUE", "WHITE"}, f.dev.AvailableStates())
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindLight, KindThreeSpeedFan, KindColorLight, KindGenericLircLight, KindGenericLircFan} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("toaster")
	assert.ErrorIs(t, err, ErrInvalidKind)

	assert.Equal(t, ClassFan, KindGenericLircFan.Class())
	assert.Equal(t, ClassLight, KindColorLight.Class())
}

func TestConcurrentCompositeUpdates(t *testing.T) {
	f := newFixture(t, KindThreeSpeedFan, "bedroom")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			speed := []string{"1", "2", "3"}[i%3]
			_, _ = f.dev.SetState(ctx, speed)
		}(i)
	}
	wg.Wait()

	// Each update writes power, speed, command and parent in one block.
	require.Len(t, f.store.writes, 80)
	for i := 0; i < len(f.store.writes); i += 4 {
		assert.Equal(t, "fan/bedroom/power=ON", f.store.writes[i])
	}
	assert.Equal(t, f.store.get("fan/bedroom/speed"), f.store.get("fan/bedroom/command"))
}
