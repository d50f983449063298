package host

import "github.com/backkem/tropic01/pkg/device"

// LocalChip adapts an in-process device to the Chip interface. Local
// exchanges cannot fail.
type LocalChip struct {
	Device *device.Device
}

// Local wraps an in-process device.
func Local(d *device.Device) *LocalChip {
	return &LocalChip{Device: d}
}

func (c *LocalChip) DriveCSNLow() error {
	c.Device.DriveCSNLow()
	return nil
}

func (c *LocalChip) DriveCSNHigh() error {
	c.Device.DriveCSNHigh()
	return nil
}

func (c *LocalChip) Exchange(tx []byte) ([]byte, error) {
	return c.Device.Exchange(tx), nil
}
