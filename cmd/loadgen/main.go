package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Fires concurrent checkouts for one product at a running server and
// checks that successes never exceed the configured stock.
func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:8080", "server base URL")
		productID     = flag.String("product", "", "product id to order")
		stock         = flag.Int("stock", 20, "stock the product was seeded with")
		totalRequests = flag.Int("requests", 50, "concurrent checkout attempts")
	)
	flag.Parse()

	if *productID == "" {
		log.Fatal("missing -product")
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var successCount atomic.Int32
	var conflictCount atomic.Int32
	var errorCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			body, _ := json.Marshal(map[string]any{
				"currency": "GHS",
				"items": []map[string]any{
					{"product_id": *productID, "quantity": 1},
				},
			})

			req, err := http.NewRequest(http.MethodPost, *baseURL+"/api/orders", bytes.NewReader(body))
			if err != nil {
				errorCount.Add(1)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-User-Id", fmt.Sprintf("loadgen-user-%d", userID))

			resp, err := client.Do(req)
			if err != nil {
				errorCount.Add(1)
				return
			}
			resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				successCount.Add(1)
			case http.StatusConflict:
				conflictCount.Add(1)
			default:
				errorCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	conflict := conflictCount.Load()

	fmt.Println("========== CHECKOUT LOAD RESULTS ==========")
	fmt.Printf("Seeded Stock:     %d\n", *stock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Created:          %d\n", success)
	fmt.Printf("Out of stock:     %d\n", conflict)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("===========================================")

	if int(success) > *stock {
		fmt.Printf("FAIL: %d orders created for %d units of stock (oversold)\n", success, *stock)
		return
	}
	fmt.Println("PASS: no oversell")
}
