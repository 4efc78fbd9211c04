//go:build ignore

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	baseURL = "http://localhost:8080"
	baseLat = -1.9441
	baseLng = 30.0619
)

type Stats struct {
	TotalRequests   int64
	SuccessRequests int64
	ConflictResults int64
	FailedRequests  int64
	TotalLatency    int64
	MinLatency      int64
	MaxLatency      int64
}

func newStats() *Stats {
	return &Stats{MinLatency: int64(^uint64(0) >> 1)}
}

func (s *Stats) record(latency int64, status int) {
	atomic.AddInt64(&s.TotalRequests, 1)
	atomic.AddInt64(&s.TotalLatency, latency)

	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&s.SuccessRequests, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&s.ConflictResults, 1)
	default:
		atomic.AddInt64(&s.FailedRequests, 1)
	}

	for {
		old := atomic.LoadInt64(&s.MinLatency)
		if latency >= old || atomic.CompareAndSwapInt64(&s.MinLatency, old, latency) {
			break
		}
	}
	for {
		old := atomic.LoadInt64(&s.MaxLatency)
		if latency <= old || atomic.CompareAndSwapInt64(&s.MaxLatency, old, latency) {
			break
		}
	}
}

var departure = time.Now().UTC().Add(time.Hour).Truncate(time.Minute)

func main() {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	fmt.Println("Ride coordination load test")
	fmt.Println("===========================")

	fmt.Println("\n1. Creating test data (20 drivers x 3 seats, 200 passengers)...")
	drivers := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		if id := createTrip(rng, "driver", fmt.Sprintf("lt-driver-%d", i)); id != "" {
			drivers = append(drivers, id)
		}
	}
	passengers := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		if id := createTrip(rng, "passenger", fmt.Sprintf("lt-passenger-%d", i)); id != "" {
			passengers = append(passengers, id)
		}
	}
	if len(drivers) == 0 || len(passengers) == 0 {
		log.Fatal("failed to create test data")
	}

	fmt.Println("\n2. Match queries (1000 queries, 50 concurrent)...")
	stats := run(1000, 50, func(i int) (int, error) {
		return get("/v1/trips/" + passengers[i%len(passengers)] + "/matches?limit=10")
	})
	printStats("Match queries", stats)

	fmt.Println("\n3. Proposing bookings (every passenger x 3 random drivers)...")
	var (
		mu       sync.Mutex
		bookings []string
	)
	stats = run(len(passengers)*3, 20, func(i int) (int, error) {
		body := map[string]string{
			"passenger_trip_id": passengers[i/3],
			"driver_trip_id":    drivers[rand.Intn(len(drivers))],
		}
		var resp struct {
			ID string `json:"id"`
		}
		status, err := post("/v1/bookings", body, &resp)
		if err == nil && status == http.StatusCreated {
			mu.Lock()
			bookings = append(bookings, resp.ID)
			mu.Unlock()
		}
		return status, err
	})
	printStats("Booking proposals", stats)

	fmt.Println("\n4. Confirming every proposal at once (50 concurrent)...")
	stats = run(len(bookings), 50, func(i int) (int, error) {
		return post("/v1/bookings/"+bookings[i]+"/confirm", nil, nil)
	})
	printStats("Confirmations", stats)

	fmt.Println("\n5. Checking capacity...")
	overbooked := 0
	for _, id := range drivers {
		var trip struct {
			SeatsTotal  int `json:"seats_total"`
			SeatsBooked int `json:"seats_booked"`
		}
		if _, err := getInto("/v1/trips/"+id, &trip); err != nil {
			continue
		}
		if trip.SeatsBooked > trip.SeatsTotal {
			overbooked++
		}
	}
	fmt.Printf("overbooked driver trips: %d (confirmed seats cannot exceed %d)\n", overbooked, len(drivers)*3)

	fmt.Println("\nLoad test completed!")
}

func run(n, concurrency int, fn func(i int) (int, error)) *Stats {
	stats := newStats()
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			status, err := fn(i)
			if err != nil {
				status = 0
			}
			stats.record(time.Since(start).Microseconds(), status)
		}(i)
	}
	wg.Wait()
	return stats
}

func createTrip(rng *rand.Rand, role, owner string) string {
	body := map[string]interface{}{
		"owner_id":       owner,
		"role":           role,
		"origin_lat":     baseLat + (rng.Float64()-0.5)*0.04,
		"origin_lng":     baseLng + (rng.Float64()-0.5)*0.04,
		"dest_lat":       -1.9706,
		"dest_lng":       30.1044,
		"scheduled_time": departure.Add(time.Duration(rng.Intn(20)) * time.Minute),
	}
	if role == "driver" {
		body["vehicle_type"] = "car"
		body["seats_total"] = 3
	}

	var resp struct {
		ID string `json:"id"`
	}
	status, err := post("/v1/trips", body, &resp)
	if err != nil || status != http.StatusCreated {
		return ""
	}
	return resp.ID
}

func get(path string) (int, error) {
	return getInto(path, nil)
}

func getInto(path string, dst interface{}) (int, error) {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, decode(resp.Body, dst)
}

func post(path string, body, dst interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	resp, err := http.Post(baseURL+path, "application/json", &buf)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, decode(resp.Body, dst)
}

func decode(r io.Reader, dst interface{}) error {
	if dst == nil {
		_, err := io.Copy(io.Discard, r)
		return err
	}
	return json.NewDecoder(r).Decode(dst)
}

func printStats(name string, stats *Stats) {
	avg := int64(0)
	if stats.TotalRequests > 0 {
		avg = stats.TotalLatency / stats.TotalRequests
	}
	fmt.Printf("\n%s Results:\n", name)
	fmt.Printf("  Total Requests:   %d\n", stats.TotalRequests)
	fmt.Printf("  Successful:       %d\n", stats.SuccessRequests)
	fmt.Printf("  Conflicts (409):  %d\n", stats.ConflictResults)
	fmt.Printf("  Failed:           %d\n", stats.FailedRequests)
	fmt.Printf("  Avg Latency:      %.2f ms\n", float64(avg)/1000)
	fmt.Printf("  Min Latency:      %.2f ms\n", float64(stats.MinLatency)/1000)
	fmt.Printf("  Max Latency:      %.2f ms\n", float64(stats.MaxLatency)/1000)
}
