package docker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/kebairia/opsctl/internal/health"
)

const defaultAPITimeout = 5 * time.Second

// Client wraps the official Docker SDK for the narrow set of engine
// operations opsctl needs: container health inspection and pruning.
type Client struct {
	api     *client.Client
	timeout time.Duration
}

var _ health.ContainerSource = (*Client)(nil)

// NewClient initializes a Docker client for the given API host. An empty
// host falls back to the SDK defaults (DOCKER_HOST or the local socket).
func NewClient(host string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}

	opts := []client.Opt{
		client.WithAPIVersionNegotiation(),
		client.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker client init: %w", err)
	}

	return &Client{api: api, timeout: timeout}, nil
}

// Ping validates connectivity to the Docker daemon.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errors.New("docker client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.api.Ping(ctx)
	return err
}

// Running lists running containers with their state and, where the
// container defines a health probe, the probe's current status.
func (c *Client) Running(ctx context.Context) ([]health.Container, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	list, err := c.api.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("container list: %w", err)
	}

	containers := make([]health.Container, 0, len(list))
	for _, item := range list {
		entry := health.Container{
			Name:  containerName(item.Names, item.ID),
			State: item.State,
		}
		// Health status only shows up on inspect.
		inspect, err := c.api.ContainerInspect(ctx, item.ID)
		if err == nil && inspect.State != nil {
			entry.State = inspect.State.Status
			if inspect.State.Health != nil {
				entry.Health = inspect.State.Health.Status
			}
		}
		containers = append(containers, entry)
	}
	return containers, nil
}

// Close releases resources associated with the client.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

func containerName(names []string, id string) string {
	if len(names) == 0 {
		if len(id) > 12 {
			return id[:12]
		}
		return id
	}
	return strings.TrimPrefix(names[0], "/")
}
