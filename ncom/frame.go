// Package ncom decodes and encodes the 72 byte little-endian inertial/GPS
// frame published by the simulator's OxTS RT3000 sensor.
package ncom

const (
	// FrameLength is the only accepted datagram size.
	FrameLength = 72

	// Sync is the marker expected in the first byte of every frame.
	Sync uint8 = 0xE7

	// ChannelOffset is the byte offset of the trailer discriminator.
	ChannelOffset = 62

	checksum1Offset = 22
	checksum2Offset = 61
	checksum3Offset = 71

	trailerLength = 8
)

// wire scaling
const (
	accelScale       = 10000.0
	angularRateScale = 100000.0
	angleScale       = 1000000.0
)

const (
	minInt24 = -1 << 23
	maxInt24 = 1<<23 - 1
)

type Vector3 struct {
	X, Y, Z float64
}

// Orientation angles are in radians.
type Orientation struct {
	Yaw   float64
	Pitch float64
	Roll  float64
}

// VelocityNED components are passed through unscaled.
type VelocityNED struct {
	North int32
	East  int32
	Down  int32
}

// GPSExtension is the trailer carried when Channel is 0.
type GPSExtension struct {
	Minutes         uint32
	Satellites      uint8
	PositionMode    uint8
	VelocityMode    uint8
	OrientationMode uint8
}

// Sample is one decoded frame. GPS is set only when Channel is 0, otherwise
// the trailer bytes are kept uninterpreted in Reserved.
type Sample struct {
	Sync       uint8
	DeviceTime uint16

	Acceleration    Vector3 // m/s^2
	AngularVelocity Vector3 // rad/s

	NavStatus uint8
	Checksum1 uint8

	Latitude  float64 // degrees
	Longitude float64 // degrees
	Altitude  float32

	Velocity    VelocityNED
	Orientation Orientation

	Checksum2 uint8
	Channel   uint8

	GPS      *GPSExtension
	Reserved [trailerLength]byte

	Checksum3 uint8
}

func (s *Sample) HasGPS() bool {
	return s.Channel == 0 && s.GPS != nil
}
