package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
)

// Metrics
var (
	totalFlows     uint64
	flowsCompleted uint64
	flowsRejected  uint64 // card validation failures
	flowsFailed    uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
}

// Card number lengths per provider, matching the catalog's validation rules.
// Amazon is left out: its dash-separated format cannot be produced from a
// plain digit string.
var providers = []struct {
	id     string
	digits int
}{
	{"target", 15},
	{"walmart", 16},
	{"bestbuy", 12},
}

func randomCard(rng *rand.Rand, digits int) string {
	b := make([]byte, digits)
	for i := range b {
		b[i] = byte('0' + rng.Intn(10))
	}
	return string(b)
}

func main() {
	flag.Parse()
	log.Printf("Starting flow driver | Workers: %d | Duration: %s", concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

// worker runs the full redemption flow in a loop: validate a card, accept the
// offer, sign (mock), settle, then poll status until terminal.
func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 10 * time.Second}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for time.Since(start) < duration {
		atomic.AddUint64(&totalFlows, 1)
		if err := runFlow(client, rng); err != nil {
			atomic.AddUint64(&flowsFailed, 1)
		}
	}
}

func runFlow(client *http.Client, rng *rand.Rand) error {
	provider := providers[rng.Intn(len(providers))]
	cardNumber := randomCard(rng, provider.digits)

	var offer struct {
		CardValueUsd  float64 `json:"cardValueUsd"`
		UsdcAmount    float64 `json:"usdcAmount"`
		ProcessingFee float64 `json:"processingFee"`
		NetworkFee    float64 `json:"networkFee"`
	}
	ok, err := post(client, "/api/validate", map[string]any{
		"providerId": provider.id,
		"cardNumber": cardNumber,
		"pin":        "1234",
	}, &offer)
	if err != nil {
		return err
	}
	if !ok {
		atomic.AddUint64(&flowsRejected, 1)
		return nil
	}

	var created struct {
		TransactionID int64 `json:"transactionId"`
	}
	if ok, err = post(client, "/api/transactions", map[string]any{
		"providerId":    provider.id,
		"cardNumber":    cardNumber,
		"cardValueUsd":  offer.CardValueUsd,
		"usdcAmount":    offer.UsdcAmount,
		"processingFee": offer.ProcessingFee,
		"networkFee":    offer.NetworkFee,
		"walletAddress": "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd",
	}, &created); err != nil || !ok {
		return fmt.Errorf("create failed: %v", err)
	}

	var settled struct {
		TxHash string `json:"txHash"`
	}
	if ok, err = post(client, "/api/settle", map[string]any{
		"transactionId": created.TransactionID,
		"signedTx":      "0xsigned" + cardNumber,
	}, &settled); err != nil || !ok {
		return fmt.Errorf("settle failed: %v", err)
	}

	for i := 0; i < 20; i++ {
		var status struct {
			Status string `json:"status"`
		}
		resp, err := client.Get(targetURL + "/api/status?txHash=" + settled.TxHash)
		if err != nil {
			return err
		}
		var env struct {
			Success bool            `json:"success"`
			Data    json.RawMessage `json:"data"`
		}
		json.NewDecoder(resp.Body).Decode(&env)
		resp.Body.Close()
		json.Unmarshal(env.Data, &status)
		if status.Status == "COMPLETED" {
			atomic.AddUint64(&flowsCompleted, 1)
			return nil
		}
		if status.Status == "FAILED" {
			return fmt.Errorf("settlement failed")
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("never confirmed")
}

func post(client *http.Client, path string, body map[string]any, out any) (bool, error) {
	payload, _ := json.Marshal(body)
	resp, err := client.Post(targetURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return false, err
	}
	if !env.Success {
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return false, err
		}
	}
	return true, nil
}

func printResults(elapsed time.Duration) {
	total := atomic.LoadUint64(&totalFlows)
	fmt.Println("\n--- Results ---")
	fmt.Printf("Elapsed:    %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Flows:      %d (%.1f/sec)\n", total, float64(total)/elapsed.Seconds())
	fmt.Printf("Completed:  %d\n", atomic.LoadUint64(&flowsCompleted))
	fmt.Printf("Rejected:   %d\n", atomic.LoadUint64(&flowsRejected))
	fmt.Printf("Failed:     %d\n", atomic.LoadUint64(&flowsFailed))
}
