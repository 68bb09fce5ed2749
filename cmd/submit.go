package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var submitAddr string

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Inject a test job into a running service",
	RunE:  submitJob,
}

func init() {
	submitCmd.Flags().StringVar(&submitAddr, "addr", "http://localhost:8080", "service base URL")
	rootCmd.AddCommand(submitCmd)
}

func submitJob(cmd *cobra.Command, args []string) error {
	payload := map[string]any{
		"job": map[string]any{
			"ticket_id":    fmt.Sprintf("test-%d", time.Now().Unix()),
			"customer_id":  "cust-test",
			"service_type": "onsite",
			"category":     "network setup",
			"description":  "test job injected from the CLI",
			"urgency":      "medium",
			"customer_location": map[string]any{
				"address":   "1 Test Street",
				"latitude":  37.7749,
				"longitude": -122.4194,
			},
		},
		"candidates": []any{},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := http.Post(submitAddr+"/api/dispatches", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s: %s\n", resp.Status, out)
	return nil
}
