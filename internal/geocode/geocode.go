// Package geocode resolves coordinates and IP addresses to human-readable
// places via public lookup services. It is a read-only collaborator; failures
// degrade to coordinate-only output at the call site.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultIPLookupURL = "https://ipapi.co/json/"
	defaultReverseURL  = "https://nominatim.openstreetmap.org/reverse"
)

// Place is a resolved location.
type Place struct {
	Latitude    float64
	Longitude   float64
	City        string
	Region      string
	Country     string
	DisplayName string
}

type Resolver struct {
	http         *http.Client
	ipLookupURL  string
	reverseURL   string
	reverseLimit *rate.Limiter
}

// New creates a resolver against the public lookup services. The reverse
// geocoder is limited to one request per second, the usage policy of the
// upstream service.
func New() *Resolver {
	return &Resolver{
		http:         &http.Client{Timeout: 10 * time.Second},
		ipLookupURL:  defaultIPLookupURL,
		reverseURL:   defaultReverseURL,
		reverseLimit: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// NewWithEndpoints creates a resolver against alternate endpoints. Tests use
// it to point at local fakes.
func NewWithEndpoints(ipLookupURL, reverseURL string) *Resolver {
	r := New()
	r.ipLookupURL = ipLookupURL
	r.reverseURL = reverseURL
	return r
}

type ipLookupResponse struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	CountryName string  `json:"country_name"`
}

// LocationFromIP resolves the caller's approximate location from their public
// IP address.
func (r *Resolver) LocationFromIP(ctx context.Context) (*Place, error) {
	var resp ipLookupResponse
	if err := r.getJSON(ctx, r.ipLookupURL, &resp); err != nil {
		return nil, fmt.Errorf("ip geolocation: %w", err)
	}
	if resp.Latitude == 0 && resp.Longitude == 0 {
		return nil, fmt.Errorf("ip geolocation: response carried no coordinates")
	}

	place := &Place{
		Latitude:  resp.Latitude,
		Longitude: resp.Longitude,
		City:      resp.City,
		Region:    resp.Region,
		Country:   resp.CountryName,
	}
	place.DisplayName = joinPlaceParts(resp.City, resp.Region, resp.CountryName)
	return place, nil
}

type reverseAddress struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	State        string `json:"state"`
	Region       string `json:"region"`
	Country      string `json:"country"`
}

type reverseResponse struct {
	Address *reverseAddress `json:"address"`
}

// ReverseGeocode resolves coordinates to a place name. Calls are serialized
// through the rate limiter; the context bounds the wait.
func (r *Resolver) ReverseGeocode(ctx context.Context, lat, lon float64) (*Place, error) {
	if err := r.reverseLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	var resp reverseResponse
	if err := r.getJSON(ctx, r.reverseURL+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("reverse geocode: %w", err)
	}
	if resp.Address == nil {
		return nil, fmt.Errorf("reverse geocode: response carried no address")
	}

	addr := resp.Address
	city := firstNonEmpty(addr.City, addr.Town, addr.Village, addr.Municipality)
	region := firstNonEmpty(addr.State, addr.Region)

	place := &Place{
		Latitude:  lat,
		Longitude: lon,
		City:      city,
		Region:    region,
		Country:   addr.Country,
	}
	regionPart := ""
	if addr.State != "" && addr.State != city {
		regionPart = addr.State
	}
	place.DisplayName = joinPlaceParts(city, regionPart, addr.Country)
	return place, nil
}

func (r *Resolver) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lookup returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinPlaceParts(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
