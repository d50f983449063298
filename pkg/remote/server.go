package remote

import (
	"errors"
	"net"

	"github.com/pion/logging"

	"github.com/backkem/tropic01/pkg/device"
)

// ErrMissingFactory is returned when a server is created without a device
// factory.
var ErrMissingFactory = errors.New("remote: missing device factory")

// ServerConfig configures a Server.
type ServerConfig struct {
	// NewDevice builds the served device. Called at start and again on
	// every RESET_TARGET message.
	// Required.
	NewDevice func() (*device.Device, error)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Server serves one device model over a control connection. Connections are
// handled sequentially; the device is a single-exchange part and two hosts
// driving it at once is not a meaningful setup.
type Server struct {
	newDevice func() (*device.Device, error)
	dev       *device.Device

	log logging.LeveledLogger
}

// NewServer creates a server and builds the initial device.
func NewServer(config ServerConfig) (*Server, error) {
	if config.NewDevice == nil {
		return nil, ErrMissingFactory
	}
	dev, err := config.NewDevice()
	if err != nil {
		return nil, err
	}
	s := &Server{
		newDevice: config.NewDevice,
		dev:       dev,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("remote")
	}
	return s, nil
}

// Serve accepts connections on the listener until it is closed.
func (s *Server) Serve(lis net.Listener) error {
	for {
		conn, err := lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if s.log != nil {
			s.log.Infof("connection from %s", conn.RemoteAddr())
		}
		s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		tag, payload, err := readMessage(conn)
		if err != nil {
			if s.log != nil {
				s.log.Debugf("connection closed: %v", err)
			}
			return
		}
		respTag, respPayload := s.process(tag, payload)
		if err := writeMessage(conn, respTag, respPayload); err != nil {
			if s.log != nil {
				s.log.Errorf("send: %v", err)
			}
			return
		}
	}
}

// process executes one control message against the device. The response
// echoes the request tag with the operation's output.
func (s *Server) process(tag Tag, payload []byte) (Tag, []byte) {
	if s.log != nil {
		s.log.Debugf("message %s, %d byte payload", tag, len(payload))
	}
	switch tag {
	case TagCSNLow:
		s.dev.DriveCSNLow()
		return tag, nil
	case TagCSNHigh:
		s.dev.DriveCSNHigh()
		return tag, nil
	case TagSPISend:
		return tag, s.dev.Exchange(payload)
	case TagPowerOn:
		s.dev.PowerOn()
		return tag, nil
	case TagPowerOff:
		s.dev.PowerOff()
		return tag, nil
	case TagWait:
		// The model has no clock; waiting is a no-op.
		return tag, nil
	case TagResetTarget:
		dev, err := s.newDevice()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("reset target: %v", err)
			}
			return TagException, nil
		}
		s.dev = dev
		return tag, nil
	case TagException, TagInvalid, TagUnsupported:
		return TagUnsupported, nil
	default:
		return TagInvalid, nil
	}
}
