package ingress

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/vlanswitch/internal/config"
	"firestige.xyz/vlanswitch/internal/core"
)

var (
	macA = core.MustParseMAC("00:00:00:00:00:01")
	macB = core.MustParseMAC("00:00:00:00:00:02")
)

func buildFrame(t *testing.T, src, dst core.MAC) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr(src[:]),
		DstMAC:       net.HardwareAddr(dst[:]),
		EthernetType: layers.EthernetTypeIPv4,
	}
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, gopacket.Payload([]byte{1, 2, 3, 4}))
	require.NoError(t, err)
	return buf.Bytes()
}

type recordingSink struct {
	mu        sync.Mutex
	connected []core.SwitchConnected
	packets   []core.PacketIn
	err       error
}

func (s *recordingSink) SubmitSwitchConnected(ev core.SwitchConnected) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = append(s.connected, ev)
	return s.err
}

func (s *recordingSink) SubmitPacketIn(ev core.PacketIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = append(s.packets, ev)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connected) + len(s.packets)
}

func TestDecodeFrame(t *testing.T) {
	f, err := DecodeFrame(buildFrame(t, macA, macB))
	require.NoError(t, err)
	assert.Equal(t, macA, f.Src)
	assert.Equal(t, macB, f.Dst)
	assert.Equal(t, layers.EthernetTypeIPv4, f.EthernetType)

	_, err = DecodeFrame([]byte{0, 1, 2})
	assert.ErrorIs(t, err, core.ErrFrameTooShort)
}

func TestDecodePacketInWithExplicitMACs(t *testing.T) {
	data := []byte(`{"type":"packet_in","switch_id":1,"in_port":3,"src_mac":"00:00:00:00:00:01","dst_mac":"00:00:00:00:00:02","buffer_id":7}`)
	ev, err := Decode(data)
	require.NoError(t, err)

	pi, ok := ev.(core.PacketIn)
	require.True(t, ok)
	assert.Equal(t, core.SwitchID(1), pi.Switch)
	assert.Equal(t, core.PortNo(3), pi.InPort)
	assert.Equal(t, macA, pi.Src)
	assert.Equal(t, macB, pi.Dst)
	assert.Equal(t, core.BufferID(7), pi.BufferID)
}

func TestDecodePacketInFromPayload(t *testing.T) {
	frame := buildFrame(t, macB, macA)
	raw, err := json.Marshal(map[string]any{
		"type":      "packet_in",
		"switch_id": 2,
		"in_port":   5,
		"payload":   frame,
	})
	require.NoError(t, err)

	ev, err := Decode(raw)
	require.NoError(t, err)
	pi := ev.(core.PacketIn)
	assert.Equal(t, macB, pi.Src)
	assert.Equal(t, macA, pi.Dst)
	assert.Equal(t, core.NoBuffer, pi.BufferID, "missing buffer_id means unbuffered")
	assert.Equal(t, frame, pi.Payload)
}

func TestDecodePacketInPartialMACs(t *testing.T) {
	frame := buildFrame(t, macB, macA)
	env := Envelope{Type: TypePacketIn, Switch: 1, InPort: 1, Src: &macA, Payload: frame}
	pi, err := env.PacketIn()
	require.NoError(t, err)
	assert.Equal(t, macA, pi.Src, "explicit field wins")
	assert.Equal(t, macA, pi.Dst, "missing field comes from the frame")
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"port_status","switch_id":1}`))
	assert.ErrorIs(t, err, core.ErrUnknownEvent)

	_, err = Decode([]byte(`{"type":"packet_in","switch_id":1,"in_port":1}`))
	assert.ErrorIs(t, err, core.ErrFrameTooShort)

	_, err = Decode([]byte(`{"type":"packet_in","switch_id":1,"src_mac":"zz","dst_mac":"00:00:00:00:00:02"}`))
	assert.Error(t, err)
}

func TestDecodeSwitchConnected(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"switch_connected","switch_id":9}`))
	require.NoError(t, err)
	assert.Equal(t, core.SwitchConnected{Switch: 9}, ev)
}

func TestSubmit(t *testing.T) {
	sink := &recordingSink{}
	require.NoError(t, Submit(sink, core.SwitchConnected{Switch: 1}))
	require.NoError(t, Submit(sink, core.PacketIn{Switch: 1}))
	assert.ErrorIs(t, Submit(sink, "bogus"), core.ErrUnknownEvent)
	assert.Len(t, sink.connected, 1)
	assert.Len(t, sink.packets, 1)
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestKafkaEventConsumer(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"type":"switch_connected","switch_id":1}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"type":"packet_in","switch_id":1,"in_port":1,"src_mac":"00:00:00:00:00:01","dst_mac":"00:00:00:00:00:02"}`)},
	}}
	sink := &recordingSink{}
	c := &KafkaEventConsumer{reader: reader, sink: sink}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	assert.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	reader.mu.Lock()
	assert.Equal(t, []int64{1, 2, 3}, reader.committed, "bad messages are committed too")
	reader.mu.Unlock()

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
	assert.True(t, reader.closed)
}

func TestNewKafkaEventConsumerValidation(t *testing.T) {
	sink := &recordingSink{}
	_, err := NewKafkaEventConsumer(config.EventsKafkaConfig{Topic: "t", GroupID: "g"}, sink)
	assert.Error(t, err)
	_, err = NewKafkaEventConsumer(config.EventsKafkaConfig{Brokers: []string{"k:9092"}, GroupID: "g"}, sink)
	assert.Error(t, err)
	_, err = NewKafkaEventConsumer(config.EventsKafkaConfig{Brokers: []string{"k:9092"}, Topic: "t"}, sink)
	assert.Error(t, err)

	c, err := NewKafkaEventConsumer(config.EventsKafkaConfig{Brokers: []string{"k:9092"}, Topic: "t", GroupID: "g"}, sink)
	require.NoError(t, err)
	require.NoError(t, c.Stop())
}
