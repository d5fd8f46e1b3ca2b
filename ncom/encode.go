package ncom

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

type writer struct {
	buf []byte
	off int
}

func (w *writer) u8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *writer) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) i24(v int32) {
	putInt24(w.buf[w.off:], clampInt24(int64(v)))
	w.off += 3
}

func (w *writer) scaled(v, scale float64) {
	w.i24(clampInt24(int64(math.Round(v * scale))))
}

func (w *writer) f32(v float32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], math.Float32bits(v))
	w.off += 4
}

func (w *writer) f64(v float64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], math.Float64bits(v))
	w.off += 8
}

func (w *writer) bytes(b []byte) {
	w.off += copy(w.buf[w.off:], b)
}

// Encode builds the wire frame for s. Scaled fields are rounded to the
// nearest raw step and clamped to the signed 24 bit range. The checksum
// fields of s are ignored and recomputed from the encoded bytes. A channel
// 0 sample without a GPS extension is written with a zero trailer.
func Encode(s *Sample) ([]byte, error) {
	if s == nil {
		return nil, errors.New("ncom: cannot encode nil sample")
	}
	w := &writer{buf: make([]byte, FrameLength)}

	w.u8(s.Sync)
	w.u16(s.DeviceTime)

	w.scaled(s.Acceleration.X, accelScale)
	w.scaled(s.Acceleration.Y, accelScale)
	w.scaled(s.Acceleration.Z, accelScale)

	w.scaled(s.AngularVelocity.X, angularRateScale)
	w.scaled(s.AngularVelocity.Y, angularRateScale)
	w.scaled(s.AngularVelocity.Z, angularRateScale)

	w.u8(s.NavStatus)
	w.u8(0) // checksum1

	w.f64(degToRad(s.Latitude))
	w.f64(degToRad(s.Longitude))
	w.f32(s.Altitude)

	w.i24(s.Velocity.North)
	w.i24(s.Velocity.East)
	w.i24(s.Velocity.Down)

	w.scaled(s.Orientation.Yaw, angleScale)
	w.scaled(s.Orientation.Pitch, angleScale)
	w.scaled(s.Orientation.Roll, angleScale)

	w.u8(0) // checksum2
	w.u8(s.Channel)

	if s.Channel == 0 {
		gps := s.GPS
		if gps == nil {
			gps = &GPSExtension{}
		}
		w.u32(gps.Minutes)
		w.u8(gps.Satellites)
		w.u8(gps.PositionMode)
		w.u8(gps.VelocityMode)
		w.u8(gps.OrientationMode)
	} else {
		w.bytes(s.Reserved[:])
	}

	w.u8(0) // checksum3

	if w.off != FrameLength {
		return nil, errors.Errorf("ncom: encoder wrote %d bytes, expected %d", w.off, FrameLength)
	}
	fillChecksums(w.buf)
	return w.buf, nil
}

func clampInt24(v int64) int32 {
	if v < minInt24 {
		return minInt24
	}
	if v > maxInt24 {
		return maxInt24
	}
	return int32(v)
}
