package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <jwt> [server-addr]", os.Args[0])
	}

	token := os.Args[1]
	serverAddr := "http://localhost:8080"
	if len(os.Args) > 2 {
		serverAddr = "http://localhost" + os.Args[2]
	}

	payload, err := json.Marshal(map[string]string{
		"type":               "TOKEN",
		"authorizationToken": "Bearer " + token,
		"methodArn":          "arn:aws:execute-api:us-east-1:000000000000:local/test/GET/",
	})
	if err != nil {
		log.Fatalf("Failed to encode request: %v", err)
	}

	resp, err := http.Post(serverAddr+"/v1/authorize", "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}

	var decision struct {
		PrincipalID    *string         `json:"principalId"`
		PolicyDocument json.RawMessage `json:"policyDocument"`
	}
	if err := json.Unmarshal(body, &decision); err != nil {
		log.Fatalf("Unexpected response (%d): %s", resp.StatusCode, body)
	}

	if decision.PrincipalID != nil {
		fmt.Println("✅ Authorization ALLOWED")
		fmt.Printf("   Principal: %s\n", *decision.PrincipalID)
		fmt.Printf("   Policy: %s\n", decision.PolicyDocument)
	} else {
		fmt.Println("❌ Authorization DENIED")
		fmt.Printf("Body: %s\n", body)
	}

	check, err := http.NewRequest(http.MethodGet, serverAddr+"/v1/check/e2e", nil)
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}
	check.Header.Set("Authorization", "Bearer "+token)

	checkResp, err := http.DefaultClient.Do(check)
	if err != nil {
		log.Fatalf("Check request failed: %v", err)
	}
	defer checkResp.Body.Close()

	fmt.Printf("\nForward-auth check: %d %s\n", checkResp.StatusCode, checkResp.Header.Get("X-Auth-Principal"))
}
