package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/andrescamacho/commuter-go/internal/domain/shared"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 5
	defaultBackoffBase = time.Second
	defaultPageSize    = 200
)

// Client is the HTTP/JSON client for the headless CMS. All reads paginate
// through the standard list endpoints; the core never writes.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	maxRetries  int
	backoffBase time.Duration
	pageSize    int
	clock       shared.Clock
}

// NewClient creates a CMS client with default settings.
// Rate limit: 10 requests per second with burst of 5.
// Retry: max 5 attempts with 1s exponential backoff plus jitter.
func NewClient(baseURL string) *Client {
	return NewClientWithConfig(baseURL, defaultTimeout, defaultMaxRetries, defaultBackoffBase, nil)
}

// NewClientWithConfig creates a CMS client with custom configuration.
// A nil clock selects the real clock.
func NewClientWithConfig(baseURL string, timeout time.Duration, maxRetries int, backoffBase time.Duration, clock shared.Clock) *Client {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(10), 5),
		baseURL:     baseURL,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		pageSize:    defaultPageSize,
		clock:       clock,
	}
}

// get fetches one page of a collection with rate limiting and retries.
// Server errors and transport errors retry with exponential backoff plus
// jitter; 4xx responses fail immediately.
func (c *Client) get(ctx context.Context, collection string, page int) ([]byte, error) {
	endpoint, err := url.JoinPath(c.baseURL, "api", collection)
	if err != nil {
		return nil, fmt.Errorf("invalid CMS url: %w", err)
	}
	endpoint += "?page=" + strconv.Itoa(page) + "&page_size=" + strconv.Itoa(c.pageSize)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase * time.Duration(1<<uint(attempt-1))
			jitter := time.Duration(rand.Int63n(int64(c.backoffBase)))
			c.clock.Sleep(backoff + jitter)
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				lastErr = readErr
				continue
			}
			return body, nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("CMS %s returned %d", collection, resp.StatusCode)
			continue
		default:
			return nil, fmt.Errorf("CMS %s returned %d", collection, resp.StatusCode)
		}
	}

	return nil, shared.NewUnavailableError(fmt.Sprintf("CMS unreachable after %d attempts: %v", c.maxRetries, lastErr))
}

// listAll walks every page of a collection
func listAll[T any](ctx context.Context, c *Client, collection string) ([]T, error) {
	var items []T
	for page := 1; ; page++ {
		body, err := c.get(ctx, collection, page)
		if err != nil {
			return nil, err
		}

		var resp listResponse[T]
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode CMS %s page %d: %w", collection, page, err)
		}
		items = append(items, resp.Items...)

		// A short page always ends the walk. Total only short-circuits when
		// the server actually reports it; a full page with no Total means
		// another fetch, which terminates on the trailing short page.
		if len(resp.Items) < c.pageSize {
			return items, nil
		}
		if resp.Total > 0 && len(items) >= resp.Total {
			return items, nil
		}
	}
}

// ListZones fetches all landuse zones
func (c *Client) ListZones(ctx context.Context) ([]ZoneDTO, error) {
	return listAll[ZoneDTO](ctx, c, "landuse-zones")
}

// ListPOIs fetches all amenity points
func (c *Client) ListPOIs(ctx context.Context) ([]POIDTO, error) {
	return listAll[POIDTO](ctx, c, "pois")
}

// ListPlaces fetches all named places
func (c *Client) ListPlaces(ctx context.Context) ([]PlaceDTO, error) {
	return listAll[PlaceDTO](ctx, c, "places")
}

// ListRoutes fetches all routes
func (c *Client) ListRoutes(ctx context.Context) ([]RouteDTO, error) {
	return listAll[RouteDTO](ctx, c, "routes")
}

// ListDepots fetches all depots
func (c *Client) ListDepots(ctx context.Context) ([]DepotDTO, error) {
	return listAll[DepotDTO](ctx, c, "depots")
}

// ListVehicles fetches all vehicle records
func (c *Client) ListVehicles(ctx context.Context) ([]VehicleDTO, error) {
	return listAll[VehicleDTO](ctx, c, "vehicles")
}

// ListGeofences fetches all geofences
func (c *Client) ListGeofences(ctx context.Context) ([]GeofenceDTO, error) {
	return listAll[GeofenceDTO](ctx, c, "geofences")
}

// ListConfiguration fetches all operational configuration entries
func (c *Client) ListConfiguration(ctx context.Context) ([]ConfigEntryDTO, error) {
	return listAll[ConfigEntryDTO](ctx, c, "operational-configuration")
}
