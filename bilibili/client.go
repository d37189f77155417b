package bilibili

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	viewAPI    = "https://api.bilibili.com/x/web-interface/view"
	playurlAPI = "https://api.bilibili.com/x/player/playurl"

	downloadRetries = 3
)

// ViewInfo is the subset of the view API payload the pipeline uses.
type ViewInfo struct {
	BVID     string `json:"bvid"`
	Aid      int64  `json:"aid"`
	Cid      int64  `json:"cid"`
	Title    string `json:"title"`
	Duration int64  `json:"duration"`
	Pubdate  int64  `json:"pubdate"`
	Videos   int    `json:"videos"`
}

// DashStream is one DASH representation from the playurl API.
type DashStream struct {
	ID        int    `json:"id"`
	BaseURL   string `json:"baseUrl"`
	Bandwidth int64  `json:"bandwidth"`
	Codecs    string `json:"codecs"`
}

// PlayInfo is the subset of the playurl payload needed for download.
type PlayInfo struct {
	Video []DashStream
	Audio []DashStream
}

// Client calls the Bilibili web API with the configured request headers.
type Client struct {
	http      *http.Client
	dl        *http.Client
	userAgent string
	referer   string
}

// NewClient returns a client using the given identification headers. The
// API rejects requests without a browser user agent and referer. Stream
// downloads have no client timeout; callers bound them with the context.
func NewClient(userAgent, referer string) *Client {
	return &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		dl:        &http.Client{},
		userAgent: userAgent,
		referer:   referer,
	}
}

type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) getJSON(ctx context.Context, url string) (json.RawMessage, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", c.referer)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("GET %s: parse response: %w", url, err)
	}
	if env.Code != 0 {
		return nil, nil, fmt.Errorf("GET %s: api code %d: %s", url, env.Code, env.Message)
	}
	return env.Data, body, nil
}

// View fetches video metadata. The second return is the raw response body
// for provenance capture.
func (c *Client) View(ctx context.Context, bvid string) (*ViewInfo, []byte, error) {
	data, raw, err := c.getJSON(ctx, fmt.Sprintf("%s?bvid=%s", viewAPI, bvid))
	if err != nil {
		return nil, nil, err
	}
	var info ViewInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, nil, fmt.Errorf("parse view data: %w", err)
	}
	if info.Cid == 0 {
		return nil, nil, fmt.Errorf("view data for %s has no cid", bvid)
	}
	return &info, raw, nil
}

// PlayURL fetches the DASH stream listing for a video page. fnval=16
// requests DASH format.
func (c *Client) PlayURL(ctx context.Context, bvid string, cid int64) (*PlayInfo, []byte, error) {
	url := fmt.Sprintf("%s?bvid=%s&cid=%d&fnval=16", playurlAPI, bvid, cid)
	data, raw, err := c.getJSON(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	var payload struct {
		Dash struct {
			Video []DashStream `json:"video"`
			Audio []DashStream `json:"audio"`
		} `json:"dash"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, fmt.Errorf("parse playurl data: %w", err)
	}
	return &PlayInfo{Video: payload.Dash.Video, Audio: payload.Dash.Audio}, raw, nil
}

// BestStream returns the highest-bandwidth stream, or an error when the
// list is empty.
func BestStream(streams []DashStream) (DashStream, error) {
	if len(streams) == 0 {
		return DashStream{}, fmt.Errorf("no streams available")
	}
	best := streams[0]
	for _, s := range streams[1:] {
		if s.Bandwidth > best.Bandwidth {
			best = s
		}
	}
	return best, nil
}

// Download streams url to dst, retrying transient failures. A partial file
// is removed before each retry.
func (c *Client) Download(ctx context.Context, url, dst string) error {
	var lastErr error
	for attempt := 1; attempt <= downloadRetries; attempt++ {
		if err := c.downloadOnce(ctx, url, dst); err != nil {
			lastErr = err
			os.Remove(dst)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("download failed after %d attempts: %w", downloadRetries, lastErr)
}

func (c *Client) downloadOnce(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", c.referer)

	resp, err := c.dl.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
