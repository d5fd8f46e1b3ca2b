package ncom

import (
	"math"
)

// Decoder holds the strictness options. The zero value is lenient: the sync
// byte and the checksums are carried through without being checked, which
// matches the senders in the simulator family.
type Decoder struct {
	StrictSync      bool
	VerifyChecksums bool
}

// Decode decodes frame with the lenient zero-value Decoder.
func Decode(frame []byte) (*Sample, error) {
	return Decoder{}.Decode(frame)
}

// Decode is pure: identical bytes always yield identical output. The length
// is checked before any field is read.
func (d Decoder) Decode(frame []byte) (*Sample, error) {
	if err := CheckLength(len(frame)); err != nil {
		return nil, err
	}

	s, err := decodeFields(frame)
	if err != nil {
		annotate(err, frame)
		return nil, err
	}

	if d.StrictSync && s.Sync != Sync {
		return nil, &ProtocolError{
			Kind:     BadSync,
			Expected: int(Sync),
			Actual:   int(s.Sync),
			Offset:   0,
			Field:    "sync",
			Length:   len(frame),
			Channel:  int(s.Channel),
		}
	}
	if d.VerifyChecksums {
		if err := verifyChecksums(frame); err != nil {
			annotate(err, frame)
			return nil, err
		}
	}
	return s, nil
}

func decodeFields(frame []byte) (*Sample, error) {
	c := &cursor{buf: frame}
	s := &Sample{}

	s.Sync = c.u8("sync")
	s.DeviceTime = c.u16("time")

	s.Acceleration.X = float64(c.i24("accel_x")) / accelScale
	s.Acceleration.Y = float64(c.i24("accel_y")) / accelScale
	s.Acceleration.Z = float64(c.i24("accel_z")) / accelScale

	s.AngularVelocity.X = float64(c.i24("gyro_x")) / angularRateScale
	s.AngularVelocity.Y = float64(c.i24("gyro_y")) / angularRateScale
	s.AngularVelocity.Z = float64(c.i24("gyro_z")) / angularRateScale

	s.NavStatus = c.u8("nav_status")
	s.Checksum1 = c.u8("checksum1")

	s.Latitude = radToDeg(c.f64("latitude"))
	s.Longitude = radToDeg(c.f64("longitude"))
	s.Altitude = c.f32("altitude")

	s.Velocity.North = c.i24("vel_north")
	s.Velocity.East = c.i24("vel_east")
	s.Velocity.Down = c.i24("vel_down")

	s.Orientation.Yaw = float64(c.i24("heading")) / angleScale
	s.Orientation.Pitch = float64(c.i24("pitch")) / angleScale
	s.Orientation.Roll = float64(c.i24("roll")) / angleScale

	s.Checksum2 = c.u8("checksum2")
	s.Channel = c.u8("channel")

	if s.Channel == 0 {
		gps := &GPSExtension{}
		gps.Minutes = c.u32("gps_minutes")
		gps.Satellites = c.u8("num_sats")
		gps.PositionMode = c.u8("position_mode")
		gps.VelocityMode = c.u8("velocity_mode")
		gps.OrientationMode = c.u8("orientation_mode")
		s.GPS = gps
	} else {
		c.bytes(s.Reserved[:], "reserved")
	}

	s.Checksum3 = c.u8("checksum3")

	if err := c.end(FrameLength); err != nil {
		return nil, err
	}
	return s, nil
}

// annotate fills in the diagnostic fields of a ProtocolError from the
// offending payload.
func annotate(err error, frame []byte) {
	perr, ok := err.(*ProtocolError)
	if !ok {
		return
	}
	perr.Length = len(frame)
	if len(frame) > ChannelOffset {
		perr.Channel = int(frame[ChannelOffset])
	} else {
		perr.Channel = -1
	}
}

func radToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}
