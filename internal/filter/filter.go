// Package filter builds and validates the capture filter expression.
package filter

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"firestige.xyz/dissect/internal/core"
)

// CompileFunc compiles expr for linkType against a dead pcap context.
type CompileFunc func(linkType layers.LinkType, snapLen int, expr string) ([]pcap.BPFInstruction, error)

// Compiled is a filter expression that libpcap accepted for LinkType.
// Only Compile produces it.
type Compiled struct {
	Expression string
	LinkType   layers.LinkType
	Program    []bpf.RawInstruction

	vm *bpf.VM
}

// Expression returns the active filter text: custom when set, otherwise
// a filter for UDP traffic on port.
func Expression(custom string, port uint16) string {
	if custom != "" {
		return custom
	}
	return fmt.Sprintf("udp port %d", port)
}

// Compile validates the active filter with libpcap's pcap_open_dead/pcap_compile.
func Compile(custom string, port uint16, linkType layers.LinkType, snapLen int) (*Compiled, error) {
	return CompileWith(pcap.CompileBPFFilter, custom, port, linkType, snapLen)
}

// CompileWith is Compile with a substitutable backend.
func CompileWith(compile CompileFunc, custom string, port uint16, linkType layers.LinkType, snapLen int) (*Compiled, error) {
	expr := Expression(custom, port)

	insns, err := compile(linkType, snapLen, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q for link type %s: %v", core.ErrFilterInvalid, expr, linkType, err)
	}

	// pcap.BPFInstruction and bpf.RawInstruction share layout: Code->Op, Jt, Jf, K.
	raw := make([]bpf.RawInstruction, len(insns))
	for i, ins := range insns {
		raw[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}

	return &Compiled{
		Expression: expr,
		LinkType:   linkType,
		Program:    raw,
	}, nil
}

// Matches runs the program over frame in user space. It is used where the
// kernel cannot filter for us, such as replaying a capture file.
func (c *Compiled) Matches(frame []byte) (bool, error) {
	if c.vm == nil {
		insns, ok := bpf.Disassemble(c.Program)
		if !ok {
			return false, fmt.Errorf("%w: %q uses instructions the user-space VM cannot run", core.ErrFilterInvalid, c.Expression)
		}
		vm, err := bpf.NewVM(insns)
		if err != nil {
			return false, fmt.Errorf("%w: %q: %v", core.ErrFilterInvalid, c.Expression, err)
		}
		c.vm = vm
	}
	n, err := c.vm.Run(frame)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Compiled) String() string {
	return c.Expression
}
