package registry

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/avgrelay/relay/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeListener struct {
	mu       sync.Mutex
	received []string
	fail     bool
	closed   int
}

func (f *fakeListener) Enqueue(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken stream")
	}
	f.received = append(f.received, string(msg))
	return nil
}

func (f *fakeListener) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeListener) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func assertMessages(t *testing.T, l *fakeListener, want ...string) {
	t.Helper()
	got := l.messages()
	if len(got) != len(want) {
		t.Fatalf("received %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func bigInt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad literal %q", s)
	}
	return v
}

func TestAverageEmpty(t *testing.T) {
	r := New(nil)
	if got := r.Average(); got.Sign() != 0 {
		t.Errorf("Average() = %s, want 0", got)
	}

	l := &fakeListener{}
	r.RegisterListener(l)
	r.Broadcast()
	assertMessages(t, l, "0")
}

func TestAverageTruncatesTowardZero(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"single", []string{"42"}, "42"},
		{"positive", []string{"3", "4"}, "3"},
		{"negative", []string{"-3", "-4"}, "-3"},
		{"mixed", []string{"-5", "2"}, "-1"},
		{"exact", []string{"10", "20"}, "15"},
		{"zero sum", []string{"-7", "7"}, "0"},
		{"int64 sum overflow", []string{"9223372036854775807", "9223372036854775807"}, "9223372036854775807"},
		{"int64 negative sum overflow", []string{"-9223372036854775808", "-9223372036854775808", "-1"}, "-6148914691236517205"},
		{"beyond int64", []string{"99999999999999999999", "1"}, "50000000000000000000"},
		{"beyond int64 negative", []string{"-100000000000000000001", "0"}, "-50000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(nil)
			for _, v := range tt.values {
				r.SetSenderValue(uuid.New(), bigInt(t, v))
			}
			if got := r.Average().String(); got != tt.want {
				t.Errorf("Average(%v) = %s, want %s", tt.values, got, tt.want)
			}
		})
	}
}

func TestSetSenderValueOverwrites(t *testing.T) {
	r := New(nil)
	id := uuid.New()
	r.SetSenderValue(id, big.NewInt(10))
	r.SetSenderValue(id, big.NewInt(30))

	if got := r.SenderCount(); got != 1 {
		t.Fatalf("SenderCount() = %d, want 1", got)
	}
	if v, _ := r.Value(id); v.Int64() != 30 {
		t.Errorf("Value() = %s, want 30", v)
	}
}

func TestBroadcastNoListeners(t *testing.T) {
	r := New(nil)
	r.SetSenderValue(uuid.New(), big.NewInt(5))
	if got := r.Broadcast(); got.Int64() != 5 {
		t.Errorf("Broadcast() = %s, want 5", got)
	}
}

func TestRegisterListenerIdempotent(t *testing.T) {
	r := New(nil)
	l := &fakeListener{}
	r.RegisterListener(l)
	r.RegisterListener(l)

	if got := r.ListenerCount(); got != 1 {
		t.Fatalf("ListenerCount() = %d, want 1", got)
	}
	r.Broadcast()
	assertMessages(t, l, "0")
}

func TestDeregisterTwice(t *testing.T) {
	r := New(nil)
	l := &fakeListener{}
	r.RegisterListener(l)

	r.DeregisterListener(l)
	r.DeregisterListener(l)

	if got := r.ListenerCount(); got != 0 {
		t.Errorf("ListenerCount() = %d, want 0", got)
	}
	if l.closed != 1 {
		t.Errorf("Close called %d times, want 1", l.closed)
	}
}

func TestRemoveSenderTwice(t *testing.T) {
	r := New(nil)
	a, b := uuid.New(), uuid.New()
	r.SetSenderValue(a, big.NewInt(4))
	r.SetSenderValue(b, big.NewInt(8))

	r.RemoveSender(a)
	r.RemoveSender(a)

	if got := r.SenderCount(); got != 1 {
		t.Errorf("SenderCount() = %d, want 1", got)
	}
	if got := r.Average(); got.Int64() != 8 {
		t.Errorf("Average() = %s, want 8", got)
	}

	r.RemoveSender(uuid.New())
	if got := r.SenderCount(); got != 1 {
		t.Errorf("SenderCount() after unknown removal = %d, want 1", got)
	}
}

func TestRetireBroadcastsRemainingAverage(t *testing.T) {
	r := New(nil)
	l := &fakeListener{}
	r.RegisterListener(l)

	first, second := uuid.New(), uuid.New()
	r.Report(first, big.NewInt(10))
	r.Report(second, big.NewInt(20))
	r.Retire(first)

	assertMessages(t, l, "10", "15", "20")
}

func TestRetireWithoutValueStillBroadcasts(t *testing.T) {
	r := New(nil)
	l := &fakeListener{}
	r.RegisterListener(l)

	r.Report(uuid.New(), big.NewInt(9))
	r.Retire(uuid.New())

	assertMessages(t, l, "9", "9")
}

func TestFailingListenerDoesNotBlockOthers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRelayMetrics(reg)
	r := New(m)

	broken := &fakeListener{fail: true}
	healthy := &fakeListener{}
	r.RegisterListener(broken)
	r.RegisterListener(healthy)

	r.Report(uuid.New(), big.NewInt(7))

	assertMessages(t, healthy, "7")
	if got := r.ListenerCount(); got != 1 {
		t.Errorf("ListenerCount() = %d, want 1", got)
	}
	if broken.closed != 1 {
		t.Errorf("broken listener closed %d times, want 1", broken.closed)
	}
	if got := testutil.ToFloat64(m.DroppedListeners); got != 1 {
		t.Errorf("dropped listeners = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Listeners); got != 1 {
		t.Errorf("listeners gauge = %v, want 1", got)
	}
}

func TestConcurrentReports(t *testing.T) {
	r := New(nil)
	l := &fakeListener{}
	r.RegisterListener(l)

	const senders = 50
	ids := make([]uuid.UUID, senders)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID, v int64) {
			defer wg.Done()
			r.Report(id, big.NewInt(v))
		}(id, int64(i))
	}
	wg.Wait()

	if got := r.SenderCount(); got != senders {
		t.Fatalf("SenderCount() = %d, want %d", got, senders)
	}
	// 0..49 sums to 1225.
	if got := r.Average(); got.Int64() != 24 {
		t.Errorf("Average() = %s, want 24", got)
	}
	if got := len(l.messages()); got != senders {
		t.Errorf("listener received %d broadcasts, want %d", got, senders)
	}
	if last := l.messages()[senders-1]; last != "24" {
		t.Errorf("last broadcast = %q, want %q", last, "24")
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"10", "10", false},
		{"-3", "-3", false},
		{"+4", "4", false},
		{"0", "0", false},
		{"99999999999999999999", "99999999999999999999", false},
		{"-123456789012345678901234567890", "-123456789012345678901234567890", false},
		{"abc", "", true},
		{"", "", true},
		{" 5", "", true},
		{"5\n", "", true},
		{"1.5", "", true},
		{"1_000", "", true},
		{"0x10", "", true},
	}

	for _, tt := range tests {
		got, err := ParseValue([]byte(tt.in))
		if tt.wantErr {
			if !errors.Is(err, ErrMalformedValue) {
				t.Errorf("ParseValue(%q) error = %v, want ErrMalformedValue", tt.in, err)
			}
			if got != nil {
				t.Errorf("ParseValue(%q) = %s on error, want nil", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseValue(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseValue(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestValueIsCopied(t *testing.T) {
	r := New(nil)
	id := uuid.New()
	in := big.NewInt(7)
	r.SetSenderValue(id, in)
	in.SetInt64(100)

	v, _ := r.Value(id)
	v.SetInt64(-1)
	if got := r.Average(); got.Int64() != 7 {
		t.Errorf("Average() = %s, want 7", got)
	}
}

func TestDropListenerCountsOnce(t *testing.T) {
	m := metrics.NewRelayMetrics(prometheus.NewRegistry())
	r := New(m)
	l := &fakeListener{}
	r.RegisterListener(l)

	r.DropListener(l)
	r.DropListener(l)

	if got := r.ListenerCount(); got != 0 {
		t.Errorf("ListenerCount() = %d, want 0", got)
	}
	if l.closed != 1 {
		t.Errorf("Close called %d times, want 1", l.closed)
	}
	if got := testutil.ToFloat64(m.DroppedListeners); got != 1 {
		t.Errorf("dropped listeners = %v, want 1", got)
	}
}

func TestFormatAverage(t *testing.T) {
	tests := []struct {
		in   *big.Int
		want string
	}{
		{big.NewInt(-12), "-12"},
		{big.NewInt(0), "0"},
		{new(big.Int).Lsh(big.NewInt(1), 70), "1180591620717411303424"},
	}
	for _, tt := range tests {
		if got := FormatAverage(tt.in); got != tt.want {
			t.Errorf("FormatAverage(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
