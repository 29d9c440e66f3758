package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generationEvent struct {
	Generation uint64 `json:"generation"`
	Origin     string `json:"origin"`
}

func TestDecodeJSON(t *testing.T) {
	ev, err := DecodeJSON[generationEvent]([]byte(`{"generation":7,"origin":"host-1"}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), ev.Generation)
	assert.Equal(t, "host-1", ev.Origin)

	_, err = DecodeJSON[generationEvent]([]byte(`{not json`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestEncode_CarriesTypeHeader(t *testing.T) {
	at := time.Unix(1700000000, 0)

	km, err := encode(Event{Key: "/srv/index", Type: "index.complete", Value: generationEvent{Generation: 3}}, at)
	require.NoError(t, err)

	msg := fromKafka(km)
	assert.Equal(t, "index.complete", msg.Type)
	assert.Equal(t, []byte("/srv/index"), msg.Key)
	assert.Equal(t, at, msg.Time)
	ev, err := DecodeJSON[generationEvent](msg.Value)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), ev.Generation)
}

func TestEncode_RejectsUnencodableValue(t *testing.T) {
	_, err := encode(Event{Type: "index.complete", Value: make(chan int)}, time.Now())
	assert.ErrorContains(t, err, "encoding index.complete event")
}
