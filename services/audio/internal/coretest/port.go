// Package coretest provides instrumented fakes of the card's hardware
// collaborators for tests.
package coretest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"audiocodec-go/services/audio/internal/core"
)

var ErrInjected = errors.New("injected failure")

// Call is one recorded port operation.
type Call struct {
	Op     string // "read","write","clk","pll"
	Reg    uint16
	Mask   uint16
	Val    uint16
	Domain core.ClockDomain
	Ref    core.ClockRef
	In     uint32
	Out    uint32
}

func (c Call) String() string {
	switch c.Op {
	case "clk":
		return fmt.Sprintf("clk %s<-%s@%d", c.Domain, c.Ref, c.Out)
	case "pll":
		return fmt.Sprintf("pll %s<-%s %d->%d", c.Domain, c.Ref, c.In, c.Out)
	case "write":
		return fmt.Sprintf("write %#04x &%#04x =%#04x", c.Reg, c.Mask, c.Val)
	default:
		return fmt.Sprintf("read %#04x", c.Reg)
	}
}

// Port records every call in order, keeps a register file, and can fail
// selected operations.
type Port struct {
	mu    sync.Mutex
	calls []Call
	regs  map[uint16]uint16

	// Fail returns a non-nil error to make the matching call fail.
	Fail func(c Call) error

	// sysclk tracking for "was the clock ever stopped" checks.
	pllRef  map[core.ClockDomain]core.ClockRef
	stopped bool
}

func NewPort() *Port {
	return &Port{
		regs:   map[uint16]uint16{},
		pllRef: map[core.ClockDomain]core.ClockRef{},
	}
}

func (p *Port) record(c Call) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
	if p.Fail != nil {
		if err := p.Fail(c); err != nil {
			return err
		}
	}
	switch c.Op {
	case "pll":
		p.pllRef[c.Domain] = c.Ref
		if c.Domain == core.PLLSync && c.Ref == core.RefNone {
			p.stopped = true
		}
	case "clk":
		if c.Domain == core.DomainSysClk && c.Ref == core.RefNone {
			p.stopped = true
		}
		// Releasing the reference the sync PLL is running from stops it.
		if c.Ref == core.RefNone {
			if (c.Domain == core.DomainMCLK1 && p.pllRef[core.PLLSync] == core.RefMCLK1) ||
				(c.Domain == core.DomainMCLK2 && p.pllRef[core.PLLSync] == core.RefMCLK2) {
				p.stopped = true
			}
		}
	case "write":
		p.regs[c.Reg] = (p.regs[c.Reg] &^ c.Mask) | (c.Val & c.Mask)
	}
	return nil
}

func (p *Port) Read(reg uint16) (uint16, error) {
	if err := p.record(Call{Op: "read", Reg: reg}); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regs[reg], nil
}

func (p *Port) Write(reg, mask, val uint16) error {
	return p.record(Call{Op: "write", Reg: reg, Mask: mask, Val: val})
}

func (p *Port) SetClockSource(d core.ClockDomain, ref core.ClockRef, rate uint32) error {
	return p.record(Call{Op: "clk", Domain: d, Ref: ref, Out: rate})
}

func (p *Port) SetPLL(d core.ClockDomain, ref core.ClockRef, in, out uint32) error {
	return p.record(Call{Op: "pll", Domain: d, Ref: ref, In: in, Out: out})
}

// Poke sets a register without recording a call.
func (p *Port) Poke(reg, val uint16) {
	p.mu.Lock()
	p.regs[reg] = val
	p.mu.Unlock()
}

// Peek reads a register without recording a call.
func (p *Port) Peek(reg uint16) uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regs[reg]
}

// Calls returns a copy of the recorded calls.
func (p *Port) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallsOf filters recorded calls by op.
func (p *Port) CallsOf(op string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the call log and the stopped flag.
func (p *Port) Reset() {
	p.mu.Lock()
	p.calls = nil
	p.stopped = false
	p.mu.Unlock()
}

// EverStopped reports whether SYSCLK lost its source since the last Reset.
func (p *Port) EverStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// ---- DAI ----

type DAICall struct {
	Link     core.LinkID
	Format   *core.Format
	BitClock uint32
}

// DAI records format and bit clock requests.
type DAI struct {
	mu    sync.Mutex
	calls []DAICall
	Err   error
}

func (d *DAI) SetFormat(_ context.Context, link core.LinkID, f core.Format) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, DAICall{Link: link, Format: &f})
	return d.Err
}

func (d *DAI) SetBitClock(_ context.Context, link core.LinkID, hz uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, DAICall{Link: link, BitClock: hz})
	return d.Err
}

func (d *DAI) Calls() []DAICall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DAICall(nil), d.calls...)
}

// LastFormat returns the most recent format set on link.
func (d *DAI) LastFormat(link core.LinkID) (core.Format, bool) {
	calls := d.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Link == link && calls[i].Format != nil {
			return *calls[i].Format, true
		}
	}
	return core.Format{}, false
}
