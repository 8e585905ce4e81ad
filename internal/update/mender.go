// Package update implements device-initiated OTA updates against a Mender
// server: the device authenticates through the local mender-auth daemon,
// lists artifacts for its release and device type, and installs via
// mender-update.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"
)

// Artifact is one deployable artifact as returned by the Mender devices API.
type Artifact struct {
	ID   string `json:"id"`
	Name string `json:"artifact_name"`
}

// CommandRunner executes one external command and returns stdout. Tests
// substitute a fake for busctl/mender-update.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

// Client pulls artifacts from a Mender server.
type Client struct {
	serverURL   string
	releaseName string
	deviceType  string

	http *http.Client
	cmd  CommandRunner
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCommandRunner substitutes the command execution backend.
func WithCommandRunner(cmd CommandRunner) Option {
	return func(c *Client) { c.cmd = cmd }
}

// NewClient creates a Mender client for the given server, release and device
// type.
func NewClient(serverURL, releaseName, deviceType string, opts ...Option) *Client {
	c := &Client{
		serverURL:   strings.TrimRight(serverURL, "/"),
		releaseName: releaseName,
		deviceType:  deviceType,
		http:        &http.Client{Timeout: 30 * time.Second},
		cmd:         execRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// JWT fetches the device token from mender-auth over D-Bus. The busctl reply
// is `ss "<token>" "<server-url>"`. An unauthenticated device returns an
// error.
func (c *Client) JWT(ctx context.Context) (token, serverURL string, err error) {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := c.cmd.Run(callCtx, "busctl", "call",
		"io.mender.AuthenticationManager",
		"/io/mender/AuthenticationManager",
		"io.mender.Authentication1",
		"GetJwtToken")
	if err != nil {
		return "", "", fmt.Errorf("mender-auth call: %w", err)
	}
	return parseJWTReply(strings.TrimSpace(out))
}

func parseJWTReply(out string) (string, string, error) {
	if !strings.HasPrefix(out, "ss ") {
		return "", "", fmt.Errorf("unexpected busctl reply: %q", out)
	}
	parts := strings.SplitN(out[3:], `" "`, 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("unexpected busctl reply: %q", out)
	}
	token := strings.Trim(parts[0], `"`)
	server := strings.Trim(parts[1], `"`)
	if token == "" {
		return "", "", fmt.Errorf("device not authenticated with Mender")
	}
	return token, server, nil
}

// Versions reads the installed owl-os and retina-node versions from the
// mender-update provides database. Missing entries come back empty: a fresh
// bootstrap carries only the owl-os version until the first app OTA.
func (c *Client) Versions(ctx context.Context) (owlOS, retinaNode string) {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := c.cmd.Run(callCtx, "mender-update", "show-provides")
	if err != nil {
		// mender-update not installed (dev environment) or not ready.
		return "", ""
	}
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "rootfs-image.owl-os-pi5.version="); ok {
			owlOS = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(line, "rootfs-image.retina-node.version="); ok {
			retinaNode = strings.TrimSpace(v)
		}
	}
	return owlOS, retinaNode
}

// ListArtifacts lists artifacts for the configured release and device type.
func (c *Client) ListArtifacts(ctx context.Context) ([]Artifact, error) {
	token, _, err := c.JWT(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/api/devices/v1/deployments/artifacts?%s", c.serverURL, url.Values{
		"release_name": {c.releaseName},
		"device_type":  {c.deviceType},
	}.Encode())

	var artifacts []Artifact
	if err := c.getJSON(ctx, u, token, &artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// DownloadURL fetches the signed download URL for an artifact.
func (c *Client) DownloadURL(ctx context.Context, artifactID string) (string, error) {
	token, _, err := c.JWT(ctx)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/api/devices/v1/deployments/artifacts/%s/download",
		c.serverURL, url.PathEscape(artifactID))

	var reply struct {
		URI string `json:"uri"`
	}
	if err := c.getJSON(ctx, u, token, &reply); err != nil {
		return "", err
	}
	if reply.URI == "" {
		return "", fmt.Errorf("mender API returned no download URI")
	}
	return reply.URI, nil
}

// Install installs an artifact from a signed URL via mender-update. Installs
// are slow; the caller's context bounds them.
func (c *Client) Install(ctx context.Context, downloadURL string) error {
	out, err := c.cmd.Run(ctx, "mender-update", "install", downloadURL)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("installation timed out")
		}
		msg := strings.TrimSpace(out)
		if msg == "" {
			msg = "install failed"
		}
		return fmt.Errorf("mender-update install: %s", msg)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, u, token string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mender API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mender API error: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, into)
}
