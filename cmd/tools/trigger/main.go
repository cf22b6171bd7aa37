package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

type jobResponse struct {
	JobID  string         `json:"job_id"`
	Poll   string         `json:"poll"`
	Status string         `json:"status"`
	Error  string         `json:"error"`
	Result map[string]any `json:"result"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:8081", "API base URL")
	wait := flag.Bool("wait", true, "poll until the cycle finishes")
	flag.Parse()

	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	if adminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	var started jobResponse
	status, err := call(client, http.MethodPost, *baseURL+"/api/v1/monitor", adminSecret, &started)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Response Status: %d\n", status)
	if status != http.StatusAccepted {
		fmt.Printf("Error: %s (job %s)\n", started.Error, started.JobID)
		os.Exit(1)
	}
	fmt.Printf("Started job %s\n", started.JobID)
	if !*wait {
		return
	}

	for {
		time.Sleep(2 * time.Second)
		var job jobResponse
		if _, err := call(client, http.MethodGet, *baseURL+started.Poll, adminSecret, &job); err != nil {
			fmt.Printf("Error polling job: %v\n", err)
			os.Exit(1)
		}
		if job.Status == "running" {
			continue
		}
		out, _ := json.MarshalIndent(job, "", "  ")
		fmt.Println(string(out))
		if job.Status != "completed" {
			os.Exit(1)
		}
		return
	}
}

func call(client *http.Client, method, url, secret string, into any) (int, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-Admin-Secret", secret)
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
