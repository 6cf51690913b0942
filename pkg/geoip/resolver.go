package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Resolver maps an IP address to a coarse location.
type Resolver interface {
	// Resolve never returns an error for provider failures; it degrades to
	// an unknown sample so location checks cannot block a login outright.
	Resolve(ctx context.Context, ip string) Sample
}

// HTTPResolver queries an ip-api style JSON endpoint:
//
//	GET {baseURL}/{ip} -> {"status":"success","city":"...","country":"...","lat":..,"lon":..}
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver creates a resolver against the given provider base URL.
// The timeout bounds the only blocking call in the location path.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type providerResponse struct {
	Status  string  `json:"status"`
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Resolve queries the provider. Any failure, timeout, non-2xx status,
// malformed body, or provider-reported failure yields an unknown sample.
func (r *HTTPResolver) Resolve(ctx context.Context, ip string) Sample {
	sample := Sample{
		ID:         uuid.New(),
		IP:         ip,
		City:       UnknownLocation,
		Country:    UnknownLocation,
		ObservedAt: time.Now().UTC(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", r.baseURL, ip), nil)
	if err != nil {
		slog.Error("Failed to build geolocation request", "ip", ip, "error", err)
		return sample
	}

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Warn("Geolocation provider unreachable, degrading to unknown location", "ip", ip, "error", err)
		return sample
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("Geolocation provider returned error status", "ip", ip, "status", resp.StatusCode)
		return sample
	}

	var body providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Warn("Failed to decode geolocation response", "ip", ip, "error", err)
		return sample
	}
	if body.Status != "success" || body.Country == "" {
		slog.Debug("Geolocation provider could not resolve IP", "ip", ip, "status", body.Status)
		return sample
	}

	sample.City = body.City
	sample.Country = body.Country
	if body.Lat != 0 || body.Lon != 0 {
		sample.Coordinates = &Coordinates{Latitude: body.Lat, Longitude: body.Lon}
	}
	return sample
}

// StaticResolver returns fixed samples keyed by IP. Used in tests and local
// development.
type StaticResolver struct {
	Samples map[string]Sample
}

func (r *StaticResolver) Resolve(ctx context.Context, ip string) Sample {
	if sample, ok := r.Samples[ip]; ok {
		sample.IP = ip
		if sample.ID == uuid.Nil {
			sample.ID = uuid.New()
		}
		if sample.ObservedAt.IsZero() {
			sample.ObservedAt = time.Now().UTC()
		}
		return sample
	}
	return Sample{
		ID:         uuid.New(),
		IP:         ip,
		City:       UnknownLocation,
		Country:    UnknownLocation,
		ObservedAt: time.Now().UTC(),
	}
}
