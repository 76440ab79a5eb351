// Package codec drives a 16-bit-register audio codec over I2C: register
// access, clock tree and FLL programming, and audio interface format.
//
// Register addresses and values are big-endian words. Write is a masked
// read-modify-write; a full mask skips the read.
package codec

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"tinygo.org/x/drivers"
)

var (
	ErrUnknownDevice = errors.New("codec: unexpected device id")
	ErrFLLLock       = errors.New("codec: fll did not lock")
	ErrUnsupported   = errors.New("codec: unsupported setting")
)

type Config struct {
	Address uint16
	// LockTimeout bounds FLL lock polling. Default 10 ms.
	LockTimeout time.Duration
	// LockPoll is the interval between lock status reads. Default 250 µs.
	LockPoll time.Duration
}

type Device struct {
	i2c  drivers.I2C
	addr uint16

	lockTimeout time.Duration
	lockPoll    time.Duration

	// Guards the buffers and keeps read-modify-write atomic.
	mu sync.Mutex
	w  [4]byte
	r  [2]byte
}

func New(i2c drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	d := &Device{
		i2c:         i2c,
		addr:        addr,
		lockTimeout: cfg.LockTimeout,
		lockPoll:    cfg.LockPoll,
	}
	if d.lockTimeout <= 0 {
		d.lockTimeout = 10 * time.Millisecond
	}
	if d.lockPoll <= 0 {
		d.lockPoll = 250 * time.Microsecond
	}
	return d
}

// CheckID checks the device id.
func (d *Device) CheckID() error {
	id, err := d.Read(regDeviceID)
	if err != nil {
		return err
	}
	if id != DeviceID {
		return errors.Wrapf(ErrUnknownDevice, "id %#04x", id)
	}
	return nil
}

func (d *Device) Read(reg uint16) (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readWord(reg)
}

// Write updates the bits of reg selected by mask.
func (d *Device) Write(reg, mask, val uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.modifyBitmaskRegister(reg, mask, val)
}

// ---------------- Word access ----------------

func (d *Device) modifyBitmaskRegister(reg, mask, val uint16) error {
	next := val & mask
	if mask != 0xFFFF {
		cur, err := d.readWord(reg)
		if err != nil {
			return err
		}
		next = (cur &^ mask) | next
	}
	return d.writeWord(reg, next)
}

func (d *Device) readWord(reg uint16) (uint16, error) {
	d.w[0] = byte(reg >> 8)
	d.w[1] = byte(reg)
	if err := d.i2c.Tx(d.addr, d.w[:2], d.r[:2]); err != nil {
		return 0, errors.Wrapf(err, "codec: read %#04x", reg)
	}
	return uint16(d.r[0])<<8 | uint16(d.r[1]), nil
}

func (d *Device) writeWord(reg, val uint16) error {
	d.w[0] = byte(reg >> 8)
	d.w[1] = byte(reg)
	d.w[2] = byte(val >> 8)
	d.w[3] = byte(val)
	if err := d.i2c.Tx(d.addr, d.w[:4], nil); err != nil {
		return errors.Wrapf(err, "codec: write %#04x", reg)
	}
	return nil
}
