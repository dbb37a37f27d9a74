// Package reddit implements platform.Client against the Reddit OAuth API.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pario-ai/persona/pkg/httputil"
	"github.com/pario-ai/persona/pkg/platform"
)

const (
	DefaultAuthURL = "https://www.reddit.com"
	DefaultAPIURL  = "https://oauth.reddit.com"

	// tokens are refreshed this long before they expire
	tokenSlack = time.Minute

	replyCacheSize = 512
	replyCacheTTL  = 15 * time.Minute
	moreBatch      = 100
)

var ErrNoToken = errors.New("reddit: no access token in response")

// Options configures a Client.
type Options struct {
	ClientID          string
	ClientSecret      string
	Username          string
	Password          string
	UserAgent         string
	Subreddit         string
	AuthURL           string
	APIURL            string
	PollInterval      time.Duration
	RequestsPerMinute int
}

// Client is a platform.Client for a single subreddit and account.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	replies *expirable.LRU[string, []platform.Item]
	log     *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

var _ platform.Client = (*Client)(nil)

// New creates a Client. Empty URLs and user agent fall back to the defaults.
func New(opts Options, httpClient *http.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = httputil.RobustHTTPClient(log)
	}
	if opts.AuthURL == "" {
		opts.AuthURL = DefaultAuthURL
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = httputil.UserAgent()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}
	return &Client{
		opts:    opts,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		replies: expirable.NewLRU[string, []platform.Item](replyCacheSize, nil, replyCacheTTL),
		log:     log.Named("reddit"),
		now:     time.Now,
	}
}

// Me returns the bot's username.
func (c *Client) Me() string { return c.opts.Username }

// Stream returns a polling stream for the configured subreddit or the inbox.
func (c *Client) Stream(kind platform.StreamKind) platform.Stream {
	var path string
	switch kind {
	case platform.StreamSubmissions:
		path = "/r/" + c.opts.Subreddit + "/new"
	case platform.StreamComments:
		path = "/r/" + c.opts.Subreddit + "/comments"
	case platform.StreamInbox:
		path = "/message/unread"
	}
	return newPollStream(c, kind, path)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expiry) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.opts.Username},
		"password":   {c.opts.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.opts.AuthURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.opts.ClientID, c.opts.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.opts.UserAgent)

	body, err := httputil.Do(c.http, "reddit_auth", req)
	if err != nil {
		return "", err
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to parse reddit token JSON: %w", err)
	}
	if tr.AccessToken == "" {
		if tr.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrNoToken, tr.Error)
		}
		return "", ErrNoToken
	}

	c.token = tr.AccessToken
	c.expiry = c.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenSlack)
	c.log.Debug("refreshed access token", zap.Time("expiry", c.expiry))
	return c.token, nil
}

func (c *Client) dropToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// call sends a rate-limited API request. GET requests carry params in the
// query string, everything else as a form body.
func (c *Client) call(ctx context.Context, method, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("raw_json", "1")

	u := c.opts.APIURL + path
	var req *http.Request
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, u+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return fmt.Errorf("create reddit request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("User-Agent", c.opts.UserAgent)

	body, err := httputil.Do(c.http, "reddit", req)
	if err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
			c.dropToken()
		}
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse reddit resp JSON: %w", err)
	}
	return nil
}

type jsonResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []thing `json:"things"`
			Name   string  `json:"name"`
			ID     string  `json:"id"`
		} `json:"data"`
	} `json:"json"`
}

func (r jsonResponse) err() error {
	if len(r.JSON.Errors) == 0 {
		return nil
	}
	parts := make([]string, 0, len(r.JSON.Errors))
	for _, e := range r.JSON.Errors {
		parts = append(parts, fmt.Sprint(e...))
	}
	return fmt.Errorf("reddit api error: %s", strings.Join(parts, "; "))
}

// Submit creates a self or link post in the configured subreddit.
func (c *Client) Submit(ctx context.Context, p platform.Post) (platform.Ref, error) {
	params := url.Values{
		"api_type": {"json"},
		"sr":       {c.opts.Subreddit},
		"title":    {p.Title},
	}
	if p.IsLink() {
		params.Set("kind", "link")
		params.Set("url", p.URL)
	} else {
		params.Set("kind", "self")
		params.Set("text", p.Body)
	}
	if p.Flair != "" {
		params.Set("flair_id", p.Flair)
	}

	var resp jsonResponse
	if err := c.call(ctx, http.MethodPost, "/api/submit", params, &resp); err != nil {
		return platform.Ref{}, fmt.Errorf("submit: %w", err)
	}
	if err := resp.err(); err != nil {
		return platform.Ref{}, fmt.Errorf("submit: %w", err)
	}
	if resp.JSON.Data.Name != "" {
		return platform.ParseFullname(resp.JSON.Data.Name)
	}
	return platform.Ref{Kind: platform.KindSubmission, ID: resp.JSON.Data.ID}, nil
}

// Reply comments on target.
func (c *Client) Reply(ctx context.Context, target platform.Item, body string) (platform.Ref, error) {
	params := url.Values{
		"api_type": {"json"},
		"thing_id": {target.Ref().Fullname()},
		"text":     {body},
	}
	var resp jsonResponse
	if err := c.call(ctx, http.MethodPost, "/api/comment", params, &resp); err != nil {
		return platform.Ref{}, fmt.Errorf("reply to %s: %w", target.Ref(), err)
	}
	if err := resp.err(); err != nil {
		return platform.Ref{}, fmt.Errorf("reply to %s: %w", target.Ref(), err)
	}
	if len(resp.JSON.Data.Things) == 0 {
		return platform.Ref{}, fmt.Errorf("reply to %s: empty response", target.Ref())
	}
	it, err := resp.JSON.Data.Things[0].item()
	if err != nil {
		return platform.Ref{}, fmt.Errorf("reply to %s: %w", target.Ref(), err)
	}
	return it.Ref(), nil
}

// ExpandAllReplies loads every direct reply of target, following "more"
// placeholders, and caches them for Replies.
func (c *Client) ExpandAllReplies(ctx context.Context, target platform.Item) error {
	var (
		items []platform.Item
		more  []string
		link  string
		err   error
	)
	switch t := target.(type) {
	case *platform.Submission:
		link = t.Ref().Fullname()
		items, more, err = c.submissionReplies(ctx, t.ID)
	case *platform.Comment:
		link = t.Submission.Fullname()
		items, more, err = c.commentReplies(ctx, t)
	default:
		c.replies.Add(target.Ref().Fullname(), nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("expand replies of %s: %w", target.Ref(), err)
	}

	parent := target.Ref()
	for len(more) > 0 {
		n := min(len(more), moreBatch)
		batch := more[:n]
		more = more[n:]

		extra, next, err := c.moreChildren(ctx, link, batch)
		if err != nil {
			return fmt.Errorf("expand replies of %s: %w", target.Ref(), err)
		}
		for _, it := range extra {
			if pc, ok := it.(*platform.Comment); ok && pc.Parent == parent {
				items = append(items, it)
			}
		}
		more = append(more, next...)
	}

	c.replies.Add(target.Ref().Fullname(), items)
	return nil
}

// Replies returns the replies loaded by ExpandAllReplies.
func (c *Client) Replies(_ context.Context, target platform.Item) ([]platform.Item, error) {
	items, ok := c.replies.Get(target.Ref().Fullname())
	if !ok {
		return nil, platform.ErrNotExpanded
	}
	return items, nil
}

func (c *Client) submissionReplies(ctx context.Context, id string) ([]platform.Item, []string, error) {
	var listings []listing
	params := url.Values{"limit": {"500"}, "depth": {"1"}}
	if err := c.call(ctx, http.MethodGet, "/comments/"+id, params, &listings); err != nil {
		return nil, nil, err
	}
	if len(listings) < 2 {
		return nil, nil, fmt.Errorf("unexpected comments response with %d listings", len(listings))
	}
	return listings[1].items()
}

func (c *Client) commentReplies(ctx context.Context, cm *platform.Comment) ([]platform.Item, []string, error) {
	var listings []listing
	params := url.Values{"comment": {cm.ID}, "depth": {"2"}, "limit": {"500"}}
	if err := c.call(ctx, http.MethodGet, "/comments/"+cm.Submission.ID, params, &listings); err != nil {
		return nil, nil, err
	}
	if len(listings) < 2 {
		return nil, nil, fmt.Errorf("unexpected comments response with %d listings", len(listings))
	}
	for _, t := range listings[1].Data.Children {
		if t.Kind != string(platform.KindComment) {
			continue
		}
		var d thingData
		if err := json.Unmarshal(t.Data, &d); err != nil {
			return nil, nil, fmt.Errorf("decode comment: %w", err)
		}
		if d.ID != cm.ID {
			continue
		}
		replies, err := d.replyListing()
		if err != nil || replies == nil {
			return nil, nil, err
		}
		return replies.items()
	}
	return nil, nil, nil
}

func (c *Client) moreChildren(ctx context.Context, link string, ids []string) ([]platform.Item, []string, error) {
	params := url.Values{
		"api_type": {"json"},
		"link_id":  {link},
		"children": {strings.Join(ids, ",")},
	}
	var resp jsonResponse
	if err := c.call(ctx, http.MethodGet, "/api/morechildren", params, &resp); err != nil {
		return nil, nil, err
	}
	if err := resp.err(); err != nil {
		return nil, nil, err
	}
	l := listing{}
	l.Data.Children = resp.JSON.Data.Things
	return l.items()
}

func (c *Client) info(ctx context.Context, ref platform.Ref) (platform.Item, error) {
	var l listing
	if err := c.call(ctx, http.MethodGet, "/api/info", url.Values{"id": {ref.Fullname()}}, &l); err != nil {
		return nil, fmt.Errorf("info %s: %w", ref, err)
	}
	items, _, err := l.items()
	if err != nil {
		return nil, fmt.Errorf("info %s: %w", ref, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("info %s: not found", ref)
	}
	return items[0], nil
}

// Parent fetches the submission or comment c replies to.
func (c *Client) Parent(ctx context.Context, it platform.ParentedItem) (platform.Item, error) {
	ref := it.ParentRef()
	if ref.IsZero() {
		return nil, fmt.Errorf("%s has no parent", it.Ref())
	}
	if ref.Kind == platform.KindMessage {
		return nil, fmt.Errorf("parent of %s: message parents are not supported", it.Ref())
	}
	return c.info(ctx, ref)
}

// Submission fetches a submission by ref.
func (c *Client) Submission(ctx context.Context, ref platform.Ref) (*platform.Submission, error) {
	it, err := c.info(ctx, ref)
	if err != nil {
		return nil, err
	}
	s, ok := it.(*platform.Submission)
	if !ok {
		return nil, fmt.Errorf("%s is not a submission", ref)
	}
	return s, nil
}

// MarkRead marks inbox items as read.
func (c *Client) MarkRead(ctx context.Context, items ...platform.Item) error {
	if len(items) == 0 {
		return nil
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Ref().Fullname())
	}
	if err := c.call(ctx, http.MethodPost, "/api/read_message", url.Values{"id": {strings.Join(names, ",")}}, nil); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
