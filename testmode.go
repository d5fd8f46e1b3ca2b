package telemon

import (
	"context"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/soda-auto/telemon/ncom"
)

const (
	testModeInterval = 10 * time.Millisecond
	testModeChannels = 128

	// origin of the synthetic track, degrees
	testModeLatitude  = 51.7612
	testModeLongitude = -1.2465
)

// RunTestMode generates synthetic frames at 100 Hz and hands each encoded
// frame to send until ctx is done. The channel byte cycles through 0..127
// like the simulator, so only every 128th frame carries the GPS trailer.
// Send errors are logged and do not stop generation.
func RunTestMode(ctx context.Context, send func([]byte) error) error {
	ticker := time.NewTicker(testModeInterval)
	defer ticker.Stop()

	start := time.Now()
	for i := 0; ; i++ {
		var now time.Time
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now = <-ticker.C:
		}

		frame, err := ncom.Encode(syntheticSample(i, now.Sub(start)))
		if err != nil {
			return err
		}
		if err := send(frame); err != nil {
			log.WithField("err", err).Warn("test mode: unable to send frame")
		}
	}
}

// syntheticSample is the i'th generated sample, elapsed after start.
func syntheticSample(i int, elapsed time.Duration) *ncom.Sample {
	ms := elapsed.Milliseconds()
	t := elapsed.Seconds()

	s := &ncom.Sample{
		Sync:       ncom.Sync,
		DeviceTime: uint16(ms),
		Channel:    uint8(i % testModeChannels),
		Acceleration: ncom.Vector3{
			X: 2 * math.Sin(t),
			Y: 1.5 * math.Cos(t),
			Z: 9.81 + 0.2*math.Sin(3*t),
		},
		AngularVelocity: ncom.Vector3{
			X: 0.05 * math.Sin(2*t),
			Y: 0.05 * math.Cos(2*t),
			Z: 0.3 * math.Sin(t/2),
		},
		Orientation: ncom.Orientation{
			Yaw:   math.Mod(t/10, 2*math.Pi) - math.Pi,
			Pitch: 0.05 * math.Sin(t),
			Roll:  0.08 * math.Cos(t),
		},
		Latitude:  testModeLatitude + 0.001*math.Sin(t/20),
		Longitude: testModeLongitude + 0.001*math.Cos(t/20),
		Altitude:  float32(62 + math.Sin(t/5)),
		Velocity: ncom.VelocityNED{
			North: int32(1000 * math.Cos(t/20)),
			East:  int32(-1000 * math.Sin(t/20)),
		},
		NavStatus: 4,
	}
	if s.Channel == 0 {
		s.GPS = &ncom.GPSExtension{
			Minutes:         uint32(ms / 60000),
			Satellites:      12,
			PositionMode:    4,
			VelocityMode:    4,
			OrientationMode: 4,
		}
	}
	return s
}
