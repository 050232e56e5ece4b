package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Publisher publishes posts and lists recent ones
type Publisher interface {
	PublishInstagram(ctx context.Context, caption, imageURL string) PublishResult
	PublishFacebook(ctx context.Context, message string) PublishResult
	RecentPosts(ctx context.Context, platform Platform, limit int) ([]RecentItem, error)
}

// MetaAPIError is a Graph API error object, reported even with HTTP 200
type MetaAPIError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode"`
}

func (e *MetaAPIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("meta api error %d/%d: %s", e.Code, e.Subcode, e.Message)
	}
	return "meta api error: " + e.Message
}

// MetaClient publishes to an Instagram Business account and a Facebook Page
type MetaClient struct {
	baseURL            string
	instagramToken     string
	instagramAccountID string
	facebookPageID     string
	facebookPageToken  string
	client             *http.Client
}

// NewMetaClient creates a Graph API client
func NewMetaClient(settings MetaSettings, creds Credentials) *MetaClient {
	return &MetaClient{
		baseURL:            strings.TrimRight(settings.GraphAPIBase, "/"),
		instagramToken:     creds.InstagramToken,
		instagramAccountID: creds.InstagramAccountID,
		facebookPageID:     creds.FacebookPageID,
		facebookPageToken:  creds.FacebookPageToken,
		client:             &http.Client{Timeout: 30 * time.Second},
	}
}

// PublishInstagram creates a media container and publishes it
func (m *MetaClient) PublishInstagram(ctx context.Context, caption, imageURL string) PublishResult {
	log.Printf("→ Publishing to Instagram")
	container := map[string]string{
		"caption":      caption,
		"media_type":   "IMAGE",
		"access_token": m.instagramToken,
	}
	if imageURL != "" {
		container["image_url"] = imageURL
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := m.post(ctx, "/"+m.instagramAccountID+"/media", container, &created); err != nil {
		return publishFailed(PlatformInstagram, fmt.Errorf("creating media container: %w", err))
	}

	var published struct {
		ID string `json:"id"`
	}
	err := m.post(ctx, "/"+m.instagramAccountID+"/media_publish", map[string]string{
		"creation_id":  created.ID,
		"access_token": m.instagramToken,
	}, &published)
	if err != nil {
		return publishFailed(PlatformInstagram, fmt.Errorf("publishing container %s: %w", created.ID, err))
	}

	log.Printf("✓ Published to Instagram: %s", published.ID)
	return PublishResult{
		Success:  true,
		Platform: PlatformInstagram,
		PostID:   published.ID,
		PostURL:  "https://www.instagram.com/p/" + published.ID + "/",
	}
}

// PublishFacebook posts a message to the Page feed
func (m *MetaClient) PublishFacebook(ctx context.Context, message string) PublishResult {
	log.Printf("→ Publishing to Facebook")
	var created struct {
		ID string `json:"id"`
	}
	err := m.post(ctx, "/"+m.facebookPageID+"/feed", map[string]string{
		"message":      message,
		"access_token": m.facebookPageToken,
	}, &created)
	if err != nil {
		return publishFailed(PlatformFacebook, err)
	}

	log.Printf("✓ Published to Facebook: %s", created.ID)
	return PublishResult{
		Success:  true,
		Platform: PlatformFacebook,
		PostID:   created.ID,
		PostURL:  "https://www.facebook.com/" + created.ID,
	}
}

func publishFailed(platform Platform, err error) PublishResult {
	log.Printf("✗ Publishing to %s failed: %v", platform, err)
	return PublishResult{Success: false, Platform: platform, Error: err.Error()}
}

// RecentPosts lists the latest posts of a platform
func (m *MetaClient) RecentPosts(ctx context.Context, platform Platform, limit int) ([]RecentItem, error) {
	var path, token, fields string
	switch platform {
	case PlatformInstagram:
		path, token, fields = "/"+m.instagramAccountID+"/media", m.instagramToken, "id,caption,timestamp,permalink"
	case PlatformFacebook:
		path, token, fields = "/"+m.facebookPageID+"/feed", m.facebookPageToken, "id,message,created_time,permalink_url"
	default:
		return nil, fmt.Errorf("unknown platform %q", platform)
	}

	query := url.Values{}
	query.Set("fields", fields)
	query.Set("limit", strconv.Itoa(limit))
	query.Set("access_token", token)

	var page struct {
		Data []struct {
			ID           string `json:"id"`
			Caption      string `json:"caption"`
			Message      string `json:"message"`
			Timestamp    string `json:"timestamp"`
			CreatedTime  string `json:"created_time"`
			Permalink    string `json:"permalink"`
			PermalinkURL string `json:"permalink_url"`
		} `json:"data"`
	}
	if err := m.get(ctx, path, query, &page); err != nil {
		return nil, err
	}

	items := make([]RecentItem, 0, len(page.Data))
	for _, d := range page.Data {
		item := RecentItem{PostID: d.ID, Platform: platform}
		if platform == PlatformInstagram {
			item.Caption, item.Timestamp, item.Permalink = d.Caption, d.Timestamp, d.Permalink
		} else {
			item.Caption, item.Timestamp, item.Permalink = d.Message, d.CreatedTime, d.PermalinkURL
		}
		items = append(items, item)
	}
	return items, nil
}

func (m *MetaClient) post(ctx context.Context, path string, payload map[string]string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return m.do(req, out)
}

func (m *MetaClient) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	return m.do(req, out)
}

func (m *MetaClient) do(req *http.Request, out any) error {
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading graph response: %w", err)
	}

	// Graph reports errors in the body, sometimes with a 200 status
	var envelope struct {
		Error *MetaAPIError `json:"error"`
	}
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil {
		return envelope.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, URL: req.URL.Path}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding graph response: %w", err)
	}
	return nil
}

// DryRunPublisher reads through to a real publisher but never publishes
type DryRunPublisher struct {
	Reader Publisher
}

// PublishInstagram fakes a successful Instagram publish
func (d *DryRunPublisher) PublishInstagram(ctx context.Context, caption, imageURL string) PublishResult {
	log.Printf("[DRY RUN] Instagram publish skipped (%d chars)", len(caption))
	return PublishResult{Success: true, Platform: PlatformInstagram, PostID: "dry-run-" + uuid.NewString()}
}

// PublishFacebook fakes a successful Facebook publish
func (d *DryRunPublisher) PublishFacebook(ctx context.Context, message string) PublishResult {
	log.Printf("[DRY RUN] Facebook publish skipped (%d chars)", len(message))
	return PublishResult{Success: true, Platform: PlatformFacebook, PostID: "dry-run-" + uuid.NewString()}
}

// RecentPosts delegates to the wrapped publisher when there is one
func (d *DryRunPublisher) RecentPosts(ctx context.Context, platform Platform, limit int) ([]RecentItem, error) {
	if d.Reader == nil {
		return nil, nil
	}
	return d.Reader.RecentPosts(ctx, platform, limit)
}
