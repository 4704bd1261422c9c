package main

import (
	"fmt"
	"log/slog"
	"os"

	ajp "github.com/lhxcc/Douyu"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	pool, err := ajp.NewPool(ajp.DefaultPacketSize, ajp.LoggerOption(logger))
	if err != nil {
		logger.Error("pool setup failed", "error", err)
		os.Exit(1)
	}

	// Encode one outbound packet: a status line followed by a header pair.
	msg := pool.Get()
	msg.Reset()
	_ = msg.AppendByte(4) // send-headers prefix
	_ = msg.AppendInt16(200)
	_ = msg.AppendString("OK")
	_ = msg.AppendInt16(1)
	_ = msg.AppendString("Content-Type")
	_ = msg.AppendString("text/html")
	msg.End()

	fmt.Printf("packet (%d bytes): % x\n", msg.Len(), msg.Buffer()[:msg.Len()])

	// Decode it back, as the peer would.
	length, err := msg.ParseHeader()
	if err != nil {
		logger.Error("bad packet", "error", err)
		os.Exit(1)
	}
	prefix, _ := msg.ReadByte()
	status, _ := msg.ReadInt16()
	text, _ := msg.ReadString()

	fmt.Printf("payload=%d prefix=%d status=%d text=%q\n", length, prefix, status, text)

	pool.Put(msg)
}
