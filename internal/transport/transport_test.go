package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"godds/internal/endpoint"
	"godds/internal/rtpscore"
	"godds/internal/wire"
)

func TestUnicastSendReceiveRoundTrip(t *testing.T) {
	logger := zerolog.Nop()
	server, err := ListenUnicast(0, nil, 65507, logger)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer server.Close()

	client, err := ListenUnicast(0, nil, 65507, logger)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	received := make(chan []byte, 1)
	go server.Run(ctx, func(from *net.UDPAddr, data []byte) {
		received <- data
	})

	dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: server.LocalPort()}
	if err := client.Send(dst, []byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != "hello" {
			t.Fatalf("got %q", data)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestSenderBatchesSubmessagesByLocator(t *testing.T) {
	logger := zerolog.Nop()
	server, err := ListenUnicast(0, nil, 65507, logger)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	header := wire.MessageHeader{Version: wire.DefaultProtocolVersion, VendorID: wire.VendorIDThisImplementation}
	sender := NewSender(server, header, 65507, logger)

	loc := rtpscore.NewUDPv4Locator(net.IPv4(127, 0, 0, 1), uint32(server.LocalPort()))
	msgs := []endpoint.OutboundSubmessage{
		{Locators: []rtpscore.Locator{loc}, Data: &wire.Data{SerializedPayload: []byte("a")}},
		{Locators: []rtpscore.Locator{loc}, Data: &wire.Data{SerializedPayload: []byte("b")}},
	}

	received := make(chan wire.Message, 1)
	go server.Run(ctx, func(from *net.UDPAddr, data []byte) {
		msg, err := wire.ParseMessage(data)
		if err == nil {
			received <- msg
		}
	})

	sender.SendAll(msgs)

	select {
	case msg := <-received:
		if len(msg.Submessages) != 2 {
			t.Fatalf("expected both DATA submessages batched into one message, got %d", len(msg.Submessages))
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for batched message")
	}
}
