package ajp

import (
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestNewPool_InvalidSize(t *testing.T) {
	p, err := NewPool(2)
	if err == nil {
		t.Fatal("NewPool(2) did not fail")
	}
	if p != nil {
		t.Error("NewPool returned a pool on error")
	}
}

func TestPool_GetPut(t *testing.T) {
	p, err := NewPool(64)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	m := p.Get()
	if m == nil {
		t.Fatal("Get returned nil")
	}
	if m.Capacity() != 64 {
		t.Errorf("Capacity() = %d, want 64", m.Capacity())
	}

	// one full outbound cycle on the checked out message
	m.Reset()
	if err := m.AppendString("pooled"); err != nil {
		t.Fatalf("AppendString failed: %v", err)
	}
	m.End()
	p.Put(m)

	// a recycled message is usable for the next cycle
	m = p.Get()
	m.Reset()
	if err := m.AppendByte(1); err != nil {
		t.Fatalf("AppendByte failed: %v", err)
	}
	m.End()
	if m.PayloadLength() != 1 {
		t.Errorf("PayloadLength() = %d, want 1", m.PayloadLength())
	}
	p.Put(m)
}

func TestPool_PutNil(t *testing.T) {
	p, err := NewPool(64)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	// must not panic or poison the pool
	p.Put(nil)

	if m := p.Get(); m == nil || m.Capacity() != 64 {
		t.Error("pool degraded after Put(nil)")
	}
}

func TestPool_PutForeignMessage(t *testing.T) {
	logger := &mockLogger{}
	p, err := NewPool(64, LoggerOption(logger))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	foreign := newTestMessage(t, 16)
	p.Put(foreign)

	if !logger.warnCalled {
		t.Error("foreign message not reported")
	}
	if m := p.Get(); m.Capacity() != 64 {
		t.Errorf("Get() capacity = %d, want 64", m.Capacity())
	}
}

func TestPool_PacketSize(t *testing.T) {
	p, err := NewPool(DefaultPacketSize)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	if p.PacketSize() != DefaultPacketSize {
		t.Errorf("PacketSize() = %d, want %d", p.PacketSize(), DefaultPacketSize)
	}
}

func TestPool_Concurrent(t *testing.T) {
	p, err := NewPool(256)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	var group errgroup.Group
	for i := 0; i < 8; i++ {
		id := i
		group.Go(func() error {
			want := fmt.Sprintf("worker %d", id)
			for j := 0; j < 200; j++ {
				m := p.Get()

				m.Reset()
				if err := m.AppendString(want); err != nil {
					return err
				}
				if err := m.AppendInt16(j); err != nil {
					return err
				}
				m.End()

				if _, err := m.ParseHeader(); err != nil {
					return err
				}
				got, err := m.ReadString()
				if err != nil {
					return err
				}
				if got != want {
					return fmt.Errorf("read %q, want %q", got, want)
				}
				seq, err := m.ReadInt16()
				if err != nil {
					return err
				}
				if seq != j {
					return fmt.Errorf("sequence = %d, want %d", seq, j)
				}

				p.Put(m)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent pool cycle failed: %v", err)
	}
}
