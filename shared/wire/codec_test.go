package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestJSONCodecRegisteredUnderProtoName(t *testing.T) {
	c := encoding.GetCodec(codecName)
	require.NotNil(t, c)
	assert.Equal(t, "proto", c.Name())
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := encoding.GetCodec(codecName)
	in := &JobAssignment{JobID: "job-1", PolicyID: "policy-1", Payload: []byte("hi")}

	data, err := c.Marshal(in)
	require.NoError(t, err)

	out := new(JobAssignment)
	require.NoError(t, c.Unmarshal(data, out))
	assert.Equal(t, in.JobID, out.JobID)
	assert.Equal(t, in.Payload, out.Payload)
}
