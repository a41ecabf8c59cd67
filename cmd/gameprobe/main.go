// Package main provides a load and latency probe for the paired game API.
// It fabricates pairs of accounts, plays through today's games from both
// sides over real WebSocket connections, and measures event fanout latency.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Metrics tracks the probe results
type Metrics struct {
	PairingsCreated    int64
	ConnectionsSuccess int64
	ConnectionsFailed  int64
	AnswersSubmitted   int64
	EventsReceived     int64
	Errors             int64
	LatencySamples     int64
	LatencyTotalNs     int64
	LatencyMaxNs       int64
}

var metrics Metrics

func main() {
	host := flag.String("host", "localhost:8460", "API server host")
	secret := flag.String("secret", "", "JWT signing secret of the target instance")
	issuer := flag.String("issuer", "duet-auth", "JWT issuer claim")
	audience := flag.String("audience", "duet-client", "JWT audience claim")
	pairs := flag.Int("pairs", 10, "Number of concurrent pairings")
	duration := flag.Duration("duration", 30*time.Second, "Probe duration")
	cadence := flag.Duration("cadence", 2*time.Second, "Delay between answer submissions")
	flag.Parse()

	if *secret == "" {
		log.Fatal("❌ -secret is required (the probe signs its own test tokens)")
	}

	log.Printf("🚀 Starting Game Probe")
	log.Printf("Target: %s", *host)
	log.Printf("Pairs: %d", *pairs)
	log.Printf("Duration: %v", *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *pairs; i++ {
		wg.Add(1)
		go runPair(*host, *secret, *issuer, *audience, *cadence, stopChan, &wg)
		time.Sleep(100 * time.Millisecond) // Stagger pairing creation and ticket issuance
	}

	select {
	case <-time.After(*duration):
		log.Println("⏱️  Probe duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for pairs to disconnect...")
	wg.Wait()

	printMetrics()
}

func mintToken(secret, issuer, audience string, sub uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub": sub.String(),
		"iss": issuer,
		"aud": audience,
		"jti": uuid.NewString(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// party is one authenticated side of a pairing.
type party struct {
	host  string
	token string
	http  *http.Client
}

func (p *party) do(method, path string, payload, out any) error {
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, fmt.Sprintf("http://%s%s", p.host, path), body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed with status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (p *party) ticket() (string, error) {
	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := p.do("POST", "/api/ws/ticket", nil, &result); err != nil {
		return "", err
	}
	return result.Ticket, nil
}

// dialPairingSocket opens the pairing feed with a fresh single-use ticket and
// starts a read loop that resolves fanout latency for answered slots.
func (p *party) dialPairingSocket(pairingID uint, submitTimes *sync.Map, stopChan <-chan struct{}) (*websocket.Conn, error) {
	ticket, err := p.ticket()
	if err != nil {
		return nil, err
	}

	u := url.URL{
		Scheme:   "ws",
		Host:     p.host,
		Path:     fmt.Sprintf("/api/ws/pairings/%d", pairingID),
		RawQuery: "ticket=" + ticket,
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.EventsReceived, 1)

			var frame struct {
				Type   string `json:"type"`
				SlotID uint   `json:"slot_id"`
			}
			if err := json.Unmarshal(raw, &frame); err != nil {
				continue
			}
			if frame.Type != "slot_update" {
				continue
			}
			if start, ok := submitTimes.LoadAndDelete(frame.SlotID); ok {
				recordLatency(time.Since(start.(time.Time)))
			}
		}
	}()

	go func() {
		<-stopChan
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	return conn, nil
}

func recordLatency(d time.Duration) {
	ns := d.Nanoseconds()
	atomic.AddInt64(&metrics.LatencySamples, 1)
	atomic.AddInt64(&metrics.LatencyTotalNs, ns)
	for {
		max := atomic.LoadInt64(&metrics.LatencyMaxNs)
		if ns <= max || atomic.CompareAndSwapInt64(&metrics.LatencyMaxNs, max, ns) {
			return
		}
	}
}

type slotPayload struct {
	ID       uint `json:"id"`
	Position int  `json:"position"`
	Question struct {
		ID uint `json:"id"`
	} `json:"question"`
}

func runPair(host, secret, issuer, audience string, cadence time.Duration, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	initiatorToken, err := mintToken(secret, issuer, audience, uuid.New())
	if err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	counterpartToken, err := mintToken(secret, issuer, audience, uuid.New())
	if err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	initiator := &party{host: host, token: initiatorToken, http: httpClient}
	counterpart := &party{host: host, token: counterpartToken, http: httpClient}

	// Create and accept a pairing
	var created struct {
		Pairing struct {
			ID uint `json:"id"`
		} `json:"pairing"`
		InviteCode string `json:"invite_code"`
	}
	if err := initiator.do("POST", "/api/pairings", map[string]any{"kind": "friend"}, &created); err != nil {
		log.Printf("❌ Pairing creation failed: %v", err)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if err := counterpart.do("POST", "/api/pairings/accept", map[string]any{"invite_code": created.InviteCode}, nil); err != nil {
		log.Printf("❌ Pairing accept failed: %v", err)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	pairingID := created.Pairing.ID
	atomic.AddInt64(&metrics.PairingsCreated, 1)

	// Open both pairing sockets
	var submitTimes sync.Map
	for _, p := range []*party{initiator, counterpart} {
		if _, err := p.dialPairingSocket(pairingID, &submitTimes, stopChan); err != nil {
			atomic.AddInt64(&metrics.ConnectionsFailed, 1)
			atomic.AddInt64(&metrics.Errors, 1)
			return
		}
		atomic.AddInt64(&metrics.ConnectionsSuccess, 1)
	}

	// Materialize today's games
	var slots []slotPayload
	if err := initiator.do("GET", fmt.Sprintf("/api/pairings/%d/games/today", pairingID), nil, &slots); err != nil {
		log.Printf("❌ Fetching today's games failed: %v", err)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	// Both sides answer every slot, paced by the cadence flag
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for _, slot := range slots {
		for _, p := range []*party{initiator, counterpart} {
			select {
			case <-stopChan:
				return
			case <-ticker.C:
			}

			submitTimes.Store(slot.ID, time.Now())
			path := fmt.Sprintf("/api/slots/%d/answer", slot.ID)
			if err := p.do("POST", path, map[string]any{"option": 0}, nil); err != nil {
				submitTimes.Delete(slot.ID)
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.AnswersSubmitted, 1)
		}
	}

	<-stopChan
}

func printMetrics() {
	log.Println("\n📊 Probe Results")
	log.Println("================")
	log.Printf("Pairings Created: %d", atomic.LoadInt64(&metrics.PairingsCreated))
	log.Printf("Sockets Connected: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Sockets Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Answers Submitted: %d", atomic.LoadInt64(&metrics.AnswersSubmitted))
	log.Printf("Events Received: %d", atomic.LoadInt64(&metrics.EventsReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))

	samples := atomic.LoadInt64(&metrics.LatencySamples)
	if samples > 0 {
		avg := time.Duration(atomic.LoadInt64(&metrics.LatencyTotalNs) / samples)
		max := time.Duration(atomic.LoadInt64(&metrics.LatencyMaxNs))
		log.Printf("Fanout Latency: %d samples, avg %v, max %v", samples, avg, max)
	} else {
		log.Println("Fanout Latency: no samples collected")
	}
}
