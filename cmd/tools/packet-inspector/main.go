// Package main provides a UDP packet inspection tool for the tracking
// stream. It binds a robot's pose port, hex-dumps the first packets it
// sees alongside their decoded poses, then reports the packet rate.
// Useful for verifying the tracking system's output before a run.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/pilot/internal/pose"
)

var (
	port     = flag.Int("port", 9878, "UDP port to inspect")
	address  = flag.String("address", "", "Bind address (empty for all interfaces)")
	dumpN    = flag.Int("dump", 5, "Number of packets to hex-dump before switching to rate mode")
	interval = flag.Duration("interval", 5*time.Second, "Packet rate reporting interval")
)

func main() {
	flag.Parse()

	addr := net.UDPAddr{IP: net.ParseIP(*address), Port: *port}
	conn, err := net.ListenUDP("udp", &addr)
	if err != nil {
		log.Fatalf("Failed to bind UDP port %d: %v", *port, err)
	}
	defer conn.Close()
	log.Printf("Listening on %s (dumping first %d packets)", conn.LocalAddr(), *dumpN)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		conn.Close()
	}()

	dec := pose.NewDecoder(fmt.Sprintf("udp:%d", *port))
	buf := make([]byte, 2048)

	var total, malformed int64
	dumped := 0
	windowStart := time.Now()
	var windowCount int64

	for {
		if err := conn.SetReadDeadline(time.Now().Add(*interval)); err != nil {
			log.Fatalf("Failed to set read deadline: %v", err)
		}
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				reportRate(&windowStart, &windowCount, total, malformed)
				continue
			}
			// Closed by the signal handler.
			log.Printf("Stopping: %d packets seen, %d malformed", total, malformed)
			return
		}
		total++
		windowCount++

		if dumped < *dumpN {
			dumped++
			log.Printf("Packet %d from %s (%d bytes):", total, from, n)
			hexDump(buf[:n])
			frame, derr := dec.Decode(buf[:n])
			if derr != nil {
				malformed++
				log.Printf("  decode failed: %v", derr)
				continue
			}
			p := frame.Pose()
			log.Printf("  pose x=%.4f y=%.4f z=%.4f yaw=%.4f rad", p.X, p.Y, frame.Z, p.Yaw)
			continue
		}

		if _, derr := dec.Decode(buf[:n]); derr != nil {
			malformed++
		}
		if time.Since(windowStart) >= *interval {
			reportRate(&windowStart, &windowCount, total, malformed)
		}
	}
}

func reportRate(windowStart *time.Time, windowCount *int64, total, malformed int64) {
	elapsed := time.Since(*windowStart).Seconds()
	if elapsed <= 0 {
		return
	}
	log.Printf("%.1f packets/s (%d total, %d malformed)", float64(*windowCount)/elapsed, total, malformed)
	*windowStart = time.Now()
	*windowCount = 0
}

// hexDump prints data in 16-byte rows with offsets, like xxd.
func hexDump(data []byte) {
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]
		line := fmt.Sprintf("  %04x  ", off)
		for i, b := range row {
			line += fmt.Sprintf("%02x ", b)
			if i == 7 {
				line += " "
			}
		}
		log.Print(line)
	}
}
