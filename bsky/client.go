package bsky

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/identity"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/bluesky-social/indigo/xrpc"
	log "github.com/sirupsen/logrus"

	"bskyrelay/config"
)

// Client wraps an authenticated XRPC connection to the account's PDS. The
// session is reused from disk when possible and refreshed in place when the
// access token expires mid-run.
type Client struct {
	xrpcClient *xrpc.Client
	store      *SessionStore
	username   string
	password   string
	pdsHost    string
	fetchLimit int64

	mu sync.Mutex // guards token refresh
}

func NewClient(ctx context.Context, cfg *config.Config, store *SessionStore) (*Client, error) {
	c := &Client{
		store:      store,
		username:   cfg.BskyUsername,
		password:   cfg.BskyPassword,
		pdsHost:    cfg.BskyPdsHost,
		fetchLimit: cfg.FetchLimit,
	}

	if session, err := store.Load(); err == nil && session != nil {
		c.xrpcClient = clientFromSession(session)
		if err := c.refreshSession(ctx); err == nil {
			log.Infof("Login with session success, me: %s", c.xrpcClient.Auth.Handle)
			return c, nil
		}
		log.Warn("Stored session rejected, falling back to password login")
	}

	if err := c.createSession(ctx); err != nil {
		return nil, err
	}
	log.Infof("Login with username and password success, me: %s", c.xrpcClient.Auth.Handle)
	return c, nil
}

// FetchTimeline returns one page of the account's home timeline, newest
// first.
func (c *Client) FetchTimeline(ctx context.Context) ([]*appbsky.FeedDefs_FeedViewPost, error) {
	output, err := appbsky.FeedGetTimeline(ctx, c.xrpcClient, "", "", c.fetchLimit)
	if isExpiredToken(err) {
		if err = c.refreshSession(ctx); err != nil {
			return nil, err
		}
		output, err = appbsky.FeedGetTimeline(ctx, c.xrpcClient, "", "", c.fetchLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch timeline: %w", err)
	}
	return output.Feed, nil
}

// FetchThread returns the full thread view of a post, ancestors included.
func (c *Client) FetchThread(ctx context.Context, uri string) (*appbsky.FeedDefs_ThreadViewPost, error) {
	output, err := appbsky.FeedGetPostThread(ctx, c.xrpcClient, 0, 10, uri)
	if isExpiredToken(err) {
		if err = c.refreshSession(ctx); err != nil {
			return nil, err
		}
		output, err = appbsky.FeedGetPostThread(ctx, c.xrpcClient, 0, 10, uri)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch thread %s: %w", uri, err)
	}
	if output.Thread == nil || output.Thread.FeedDefs_ThreadViewPost == nil {
		return nil, fmt.Errorf("fetch thread %s: post not available", uri)
	}
	return output.Thread.FeedDefs_ThreadViewPost, nil
}

// Profile returns the authenticated account's detailed profile.
func (c *Client) Profile(ctx context.Context) (*appbsky.ActorDefs_ProfileViewDetailed, error) {
	return appbsky.ActorGetProfile(ctx, c.xrpcClient, c.xrpcClient.Auth.Did)
}

func (c *Client) createSession(ctx context.Context) error {
	// Resolve the account's own PDS; the configured host is the fallback
	// when the identity directory is unreachable.
	pdsURL, identifier := c.pdsHost, c.username
	atid, err := syntax.ParseAtIdentifier(c.username)
	if err != nil {
		return err
	}
	dir := identity.DefaultDirectory()
	if ident, err := dir.Lookup(ctx, *atid); err == nil {
		if endpoint := ident.PDSEndpoint(); endpoint != "" {
			pdsURL = endpoint
		}
		identifier = ident.DID.String()
	} else {
		log.Warnf("Identity lookup failed, using configured PDS host: %v", err)
	}

	client := &xrpc.Client{Host: pdsURL}
	sess, err := comatproto.ServerCreateSession(ctx, client, &comatproto.ServerCreateSession_Input{
		Identifier: identifier,
		Password:   c.password,
	})
	if err != nil {
		return err
	}

	c.xrpcClient = &xrpc.Client{
		Client: http.DefaultClient,
		Host:   pdsURL,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  sess.AccessJwt,
			RefreshJwt: sess.RefreshJwt,
			Handle:     sess.Handle,
			Did:        sess.Did,
		},
	}
	c.saveSession()
	return nil
}

// refreshSession trades the refresh token for a new access token. The
// refresh endpoint authenticates with the refresh JWT in place of the access
// JWT.
func (c *Client) refreshSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	auth := c.xrpcClient.Auth
	refreshClient := &xrpc.Client{
		Client: http.DefaultClient,
		Host:   c.xrpcClient.Host,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  auth.RefreshJwt,
			RefreshJwt: auth.RefreshJwt,
			Handle:     auth.Handle,
			Did:        auth.Did,
		},
	}
	sess, err := comatproto.ServerRefreshSession(ctx, refreshClient)
	if err != nil {
		return err
	}

	auth.AccessJwt = sess.AccessJwt
	auth.RefreshJwt = sess.RefreshJwt
	auth.Handle = sess.Handle
	auth.Did = sess.Did
	c.saveSession()
	return nil
}

func (c *Client) saveSession() {
	auth := c.xrpcClient.Auth
	err := c.store.Save(&Session{
		AccessJwt:  auth.AccessJwt,
		RefreshJwt: auth.RefreshJwt,
		Handle:     auth.Handle,
		Did:        auth.Did,
		PdsHost:    c.xrpcClient.Host,
	})
	if err != nil {
		log.Errorf("Error saving session: %v", err)
	}
}

func clientFromSession(session *Session) *xrpc.Client {
	return &xrpc.Client{
		Client: http.DefaultClient,
		Host:   session.PdsHost,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  session.AccessJwt,
			RefreshJwt: session.RefreshJwt,
			Handle:     session.Handle,
			Did:        session.Did,
		},
	}
}

func isExpiredToken(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "ExpiredToken")
}
