package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const graphBase = "https://graph.facebook.com/v19.0"

var client = &http.Client{Timeout: 30 * time.Second}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: post-smoke <publish <image-url> <caption>|recent [limit]>")
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	token := os.Getenv("INSTAGRAM_ACCESS_TOKEN")
	accountID := os.Getenv("INSTAGRAM_BUSINESS_ACCOUNT_ID")
	if token == "" || accountID == "" {
		log.Fatal("INSTAGRAM_ACCESS_TOKEN and INSTAGRAM_BUSINESS_ACCOUNT_ID are required")
	}

	switch os.Args[1] {
	case "publish":
		if len(os.Args) < 4 {
			log.Fatal("Usage: post-smoke publish <image-url> <caption>")
		}
		if err := publish(accountID, token, os.Args[2], strings.Join(os.Args[3:], " ")); err != nil {
			log.Fatal(err)
		}
	case "recent":
		limit := 5
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil {
				log.Fatalf("Invalid limit %q", os.Args[2])
			}
			limit = n
		}
		if err := recent(accountID, token, limit); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Unknown command %q", os.Args[1])
	}
}

// publish runs the two-step container flow and prints both raw responses
func publish(accountID, token, imageURL, caption string) error {
	created, err := postForm(fmt.Sprintf("%s/%s/media", graphBase, accountID), url.Values{
		"image_url":    {imageURL},
		"caption":      {caption},
		"media_type":   {"IMAGE"},
		"access_token": {token},
	})
	if err != nil {
		return fmt.Errorf("creating container: %w", err)
	}
	containerID, _ := created["id"].(string)
	if containerID == "" {
		return fmt.Errorf("no container id in response")
	}

	published, err := postForm(fmt.Sprintf("%s/%s/media_publish", graphBase, accountID), url.Values{
		"creation_id":  {containerID},
		"access_token": {token},
	})
	if err != nil {
		return fmt.Errorf("publishing container %s: %w", containerID, err)
	}
	log.Printf("Published post %v", published["id"])
	return nil
}

func recent(accountID, token string, limit int) error {
	query := url.Values{
		"fields":       {"id,caption,timestamp,permalink"},
		"limit":        {strconv.Itoa(limit)},
		"access_token": {token},
	}
	resp, err := client.Get(fmt.Sprintf("%s/%s/media?%s", graphBase, accountID, query.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Printf("%d %s\n", resp.StatusCode, body)
	return nil
}

func postForm(endpoint string, form url.Values) (map[string]any, error) {
	resp, err := client.PostForm(endpoint, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response (HTTP %d): %w", resp.StatusCode, err)
	}
	fmt.Printf("%d %v\n", resp.StatusCode, out)
	if errObj, ok := out["error"]; ok {
		return nil, fmt.Errorf("graph error: %v", errObj)
	}
	return out, nil
}
