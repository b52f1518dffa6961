package monitor

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, sub Subscription) []float64 {
	t.Helper()
	var out []float64
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-sub.Samples():
			if !ok {
				return out
			}
			out = append(out, s.Value)
		case <-timeout:
			t.Fatal("stream did not end")
		}
	}
}

func TestReaderSource_ParsesLines(t *testing.T) {
	input := strings.Join([]string{
		"# recorded session",
		"0.1",
		"",
		`{"probability": 0.65}`,
		"not-a-number",
		"  0.2  ",
	}, "\n")

	src := NewReaderSource(strings.NewReader(input), WithReaderNow(func() time.Time { return t0 }))
	sub, err := src.Subscribe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []float64{0.1, 0.65, 0.2}, drain(t, sub))
	assert.ErrorIs(t, sub.Err(), io.EOF)
	assert.False(t, src.Connected())

	_, err = src.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrAlreadySubscribed)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func TestReaderSource_ReadError(t *testing.T) {
	src := NewReaderSource(failingReader{})
	sub, err := src.Subscribe(context.Background())
	require.NoError(t, err)

	assert.Empty(t, drain(t, sub))
	require.Error(t, sub.Err())
	assert.NotErrorIs(t, sub.Err(), io.EOF)
	assert.Contains(t, sub.Err().Error(), "device gone")
}

func TestReaderSource_LossThroughMonitor(t *testing.T) {
	src := NewReaderSource(strings.NewReader("0.9\n0.1\n0.95\n"))
	m := New(0.3)
	log := newTriggerLog()

	lostCh := make(chan error, 1)
	h, err := m.Attach(context.Background(), src, log.onTrigger, func(err error) { lostCh <- err })
	require.NoError(t, err)

	select {
	case err := <-lostCh:
		assert.ErrorIs(t, err, ErrSubscriptionLost)
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("end of input not reported")
	}
	<-h.Done()
	assert.Equal(t, 2, log.count())
}

func TestChannelSource_PublishWithoutSubscriber(t *testing.T) {
	src := NewChannelSource(1)
	assert.False(t, src.Connected())
	assert.ErrorIs(t, src.Publish(context.Background(), Sample{Value: 0.5}), ErrNotSubscribed)

	src.Close(nil) // no-op without a subscriber
}

func TestChannelSource_PublishRespectsContext(t *testing.T) {
	src := NewChannelSource(0)
	_, err := src.Subscribe(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, src.Publish(ctx, Sample{Value: 0.5}), context.DeadlineExceeded)
}

func TestChannelSource_CloseReleasesBlockedPublish(t *testing.T) {
	src := NewChannelSource(0)
	_, err := src.Subscribe(context.Background())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- src.Publish(context.Background(), Sample{Value: 0.5}) }()

	time.Sleep(10 * time.Millisecond)
	src.Close(nil)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrNotSubscribed)
	case <-time.After(2 * time.Second):
		t.Fatal("publish stayed blocked after close")
	}
}

func TestParseProbability(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "0.42", want: 0.42},
		{in: " 1 ", want: 1},
		{in: `{"probability":0.7}`, want: 0.7},
		{in: `{"probability":0}`, want: 0},
		{in: `{"p":0.7}`, wantErr: true},
		{in: `{"probability":`, wantErr: true},
		{in: "high", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProbability(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
