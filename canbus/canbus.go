// Package canbus publishes decoded IMU samples onto a SocketCAN interface.
package canbus

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/soda-auto/telemon/ncom"
)

const (
	frameAcceleration    uint32 = 0x300
	frameAngularVelocity        = 0x301
	frameOrientation            = 0x302
)

// value of one least significant bit
const (
	accelResolution       = 0.01   // m/s^2
	angularResolution     = 0.001  // rad/s
	orientationResolution = 0.0001 // rad
)

type CANBus interface {
	ConnectAndPublish() error
	Disconnect() error
	Publish(can.Frame) error
}

// to allow testing
var newBus = func(name string) (CANBus, error) {
	return can.NewBusForInterfaceWithName(name)
}

type Connection struct {
	bus CANBus

	closeOnce sync.Once
	closeErr  error
}

func Connect(portName string) (*Connection, error) {
	bus, err := newBus(portName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open can interface %s", portName)
	}
	return &Connection{
		bus: bus,
	}, nil
}

// Start runs the bus until ctx is done or the interface fails.
func (c *Connection) Start(ctx context.Context) error {
	log.Info("CAN bus opened")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			log.Infof("stopping can bus: %v", ctx.Err())
			if err := c.disconnect(); err != nil {
				log.WithField("err", err).Warn("unable to disconnect canbus after context")
			}
		case <-stop:
		}
	}()

	return c.bus.ConnectAndPublish()
}

func (c *Connection) Close() error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	return c.disconnect()
}

func (c *Connection) disconnect() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.bus.Disconnect()
	})
	return c.closeErr
}

// SendIMU publishes the acceleration, angular velocity and orientation of
// s as three frames.
func (c *Connection) SendIMU(s *ncom.Sample) error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	for _, frame := range imuFrames(s) {
		log.WithField("canID", frame.ID).Debug("sending imu frame over canbus")
		if err := c.bus.Publish(frame); err != nil {
			return errors.Wrapf(err, "unable to publish can frame 0x%X", frame.ID)
		}
	}
	return nil
}

func imuFrames(s *ncom.Sample) [3]can.Frame {
	return [3]can.Frame{
		int16Frame(frameAcceleration, accelResolution,
			s.Acceleration.X, s.Acceleration.Y, s.Acceleration.Z),
		int16Frame(frameAngularVelocity, angularResolution,
			s.AngularVelocity.X, s.AngularVelocity.Y, s.AngularVelocity.Z),
		int16Frame(frameOrientation, orientationResolution,
			s.Orientation.Yaw, s.Orientation.Pitch, s.Orientation.Roll),
	}
}

func int16Frame(id uint32, resolution float64, values ...float64) can.Frame {
	frame := can.Frame{
		ID:     id,
		Length: uint8(2 * len(values)),
	}
	for i, v := range values {
		binary.LittleEndian.PutUint16(frame.Data[2*i:], uint16(toInt16(v/resolution)))
	}
	return frame
}

func toInt16(v float64) int16 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
