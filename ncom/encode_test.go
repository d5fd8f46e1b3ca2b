package ncom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	in := &Sample{
		Sync:            Sync,
		DeviceTime:      59999,
		Acceleration:    Vector3{X: -0.5, Y: 0.25, Z: 9.8066},
		AngularVelocity: Vector3{X: 0.01234, Y: -0.5, Z: 1.5},
		NavStatus:       4,
		Latitude:        51.5074,
		Longitude:       -0.1278,
		Altitude:        35.25,
		Velocity:        VelocityNED{North: 1000, East: -2000, Down: 3},
		Orientation:     Orientation{Yaw: 3.14159, Pitch: -0.1, Roll: 0.05},
		Channel:         0,
		GPS: &GPSExtension{
			Minutes:         2345678,
			Satellites:      11,
			PositionMode:    4,
			VelocityMode:    4,
			OrientationMode: 4,
		},
	}

	frame, err := Encode(in)
	require.NoError(t, err)
	require.Len(t, frame, FrameLength)
	assert.Equal(t, Checksum(frame, checksum1Offset), frame[checksum1Offset])
	assert.Equal(t, Checksum(frame, checksum2Offset), frame[checksum2Offset])
	assert.Equal(t, Checksum(frame, checksum3Offset), frame[checksum3Offset])

	out, err := Decoder{StrictSync: true, VerifyChecksums: true}.Decode(frame)
	require.NoError(t, err)

	assert.InDelta(t, in.Acceleration.Z, out.Acceleration.Z, 1/accelScale)
	assert.InDelta(t, in.AngularVelocity.X, out.AngularVelocity.X, 1/angularRateScale)
	assert.InDelta(t, in.Orientation.Yaw, out.Orientation.Yaw, 1/angleScale)
	assert.InDelta(t, in.Latitude, out.Latitude, 1e-9)
	assert.InDelta(t, in.Longitude, out.Longitude, 1e-9)
	assert.Equal(t, in.Altitude, out.Altitude)
	assert.Equal(t, in.Velocity, out.Velocity)
	assert.Equal(t, in.DeviceTime, out.DeviceTime)
	assert.Equal(t, *in.GPS, *out.GPS)
}

func TestEncodePlaceholderTrailer(t *testing.T) {
	in := &Sample{
		Sync:     Sync,
		Channel:  27,
		Reserved: [8]byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 1, 2, 3},
	}
	frame, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, byte(27), frame[ChannelOffset])
	assert.Equal(t, in.Reserved[:], frame[63:71])

	out, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, in.Reserved, out.Reserved)
	assert.Nil(t, out.GPS)
}

func TestEncodeClampsToInt24(t *testing.T) {
	frame, err := Encode(&Sample{
		Acceleration: Vector3{X: 1e6, Y: -1e6},
		Velocity:     VelocityNED{North: 1 << 30},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(maxInt24), int24(frame[3:6]))
	assert.Equal(t, int32(minInt24), int24(frame[6:9]))
	assert.Equal(t, int32(maxInt24), int24(frame[43:46]))
}

func TestEncodeNil(t *testing.T) {
	_, err := Encode(nil)
	assert.Error(t, err)
}
