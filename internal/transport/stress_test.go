package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/safecircle/sentinel/internal/encoding"
	"github.com/safecircle/sentinel/internal/models"
)

func tickFrame(i int) models.Frame {
	return models.NewFrame(models.FrameState, models.MonitorState{
		State:           models.StateCountdown,
		CountdownActive: true,
		Countdown:       30 - i%30,
	})
}

func TestSSE_Stress(t *testing.T) {
	server := NewSSEServer("127.0.0.1", 0, encoding.NewJSONEncoder(), nil)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	var wg sync.WaitGroup
	var totalReceived int64

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req, _ := http.NewRequest("GET", ts.URL+SSEPath, nil)
			reqCtx, reqCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer reqCancel()
			req = req.WithContext(reqCtx)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()

			buf := make([]byte, 8192)
			for {
				n, err := resp.Body.Read(buf)
				count := strings.Count(string(buf[:n]), "data:")
				atomic.AddInt64(&totalReceived, int64(count))
				if err == io.EOF || err != nil {
					break
				}
			}
		}()
	}

	waitFor(t, func() bool { return server.GetClientCount() == 5 })

	for i := 0; i < 50; i++ {
		server.Broadcast(tickFrame(i))
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)
	server.Shutdown()
	wg.Wait()

	t.Logf("Total received: %d (expected ~250)", totalReceived)
	if totalReceived < 200 {
		t.Errorf("Too many dropped: got %d, want >= 200", totalReceived)
	}
}

func TestUDP_Stress(t *testing.T) {
	server := NewUDPServer("127.0.0.1", 18889, encoding.NewJSONEncoder(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	var wg sync.WaitGroup
	var totalReceived int64

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			clientAddr, _ := net.ResolveUDPAddr("udp", "127.0.0.1:0")
			client, _ := net.ListenUDP("udp", clientAddr)
			defer client.Close()

			serverAddr, _ := net.ResolveUDPAddr("udp", "127.0.0.1:18889")
			client.WriteToUDP([]byte("subscribe"), serverAddr)

			buf := make([]byte, 4096)
			client.SetReadDeadline(time.Now().Add(2 * time.Second))

			for {
				n, err := client.Read(buf)
				if err != nil {
					break
				}
				if strings.Contains(string(buf[:n]), `"countdown_active":true`) {
					atomic.AddInt64(&totalReceived, 1)
				}
			}
		}()
	}

	waitFor(t, func() bool { return server.GetClientCount() == 5 })

	for i := 0; i < 50; i++ {
		server.Broadcast(tickFrame(i))
		time.Sleep(10 * time.Millisecond)
	}

	wg.Wait()

	t.Logf("Total received: %d (expected ~250)", totalReceived)
	if totalReceived < 200 {
		t.Errorf("Too many dropped: got %d, want >= 200", totalReceived)
	}
}
