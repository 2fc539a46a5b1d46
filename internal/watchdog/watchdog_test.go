package watchdog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ryzenadjd/internal/storage"
)

const infoTemplate = `CPU Family: Rembrandt
SMU BIOS Interface Version: 18
Version: v0.13.0
PM Table Version: 450005
|        Name         |   Value   |     Parameter      |
|---------------------|-----------|--------------------|
| STAPM LIMIT         |    15.000 | stapm-limit        |
| THM LIMIT CORE      |    %s | tctl-temp          |
| THM VALUE CORE      |    52.125 |                    |
`

func info(tctl string) string { return strings.Replace(infoTemplate, "%s", tctl, 1) }

type scriptedInvoker struct {
	info  string
	calls [][]string
	err   error
}

func (s *scriptedInvoker) Invoke(ctx context.Context, args ...string) (string, error) {
	s.calls = append(s.calls, args)
	if s.err != nil {
		return "", s.err
	}
	if len(args) == 1 && args[0] == "-i" {
		return s.info, nil
	}
	return "Successfully set tctl_temp to 95", nil
}

type memSaver struct{ readings []storage.Reading }

func (m *memSaver) SaveReading(ctx context.Context, r storage.Reading) error {
	m.readings = append(m.readings, r)
	return nil
}

func TestParseTctl(t *testing.T) {
	v, err := ParseTctl(info("95.000"))
	require.NoError(t, err)
	assert.Equal(t, "95.000", v)

	_, err = ParseTctl("no table here")
	assert.ErrorIs(t, err, errNoTctl)

	_, err = ParseTctl("| THM LIMIT CORE |")
	assert.ErrorIs(t, err, errNoTctl)
}

func TestCheckNoDrift(t *testing.T) {
	inv := &scriptedInvoker{info: info("95.000")}
	saver := &memSaver{}
	w := New(Config{Target: 95}, inv, saver, nil)
	require.NoError(t, w.Check(context.Background()))
	assert.Len(t, inv.calls, 1)
	assert.Empty(t, saver.readings)
}

func TestCheckReappliesTarget(t *testing.T) {
	inv := &scriptedInvoker{info: info("100.000")}
	saver := &memSaver{}
	w := New(Config{Target: 95}, inv, saver, nil)
	require.NoError(t, w.Check(context.Background()))
	require.Len(t, inv.calls, 2)
	assert.Equal(t, []string{"-f", "95"}, inv.calls[1])
	require.Len(t, saver.readings, 1)
	assert.Equal(t, ReadingName, saver.readings[0].Name)
	assert.Equal(t, "100.000", saver.readings[0].Value)

	var c Correction
	require.NoError(t, json.Unmarshal(saver.readings[0].Payload, &c))
	assert.Equal(t, Correction{Previous: "100.000", Target: 95, Output: "Successfully set tctl_temp to 95"}, c)
}

func TestCheckInvokeError(t *testing.T) {
	boom := errors.New("smu busy")
	w := New(Config{Target: 95}, &scriptedInvoker{err: boom}, nil, nil)
	assert.ErrorIs(t, w.Check(context.Background()), boom)
}

func TestSupports(t *testing.T) {
	w := New(Config{Excluded: []string{"AMD Ryzen 5 5560U with Radeon Graphics"}}, nil, nil, nil)
	assert.False(t, w.Supports("AMD Ryzen 5 5560U with Radeon Graphics"))
	assert.True(t, w.Supports("AMD Ryzen 7 5800U with Radeon Graphics"))
}

func TestSchedulerRunsCheck(t *testing.T) {
	inv := &scriptedInvoker{info: info("95.000")}
	w := New(Config{Target: 95, Interval: 5 * time.Millisecond}, inv, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	w.Scheduler().Start(ctx)
	assert.GreaterOrEqual(t, len(inv.calls), 2)
}
